package readiness_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ridedeck/ridedeck/internal/normalize"
	"github.com/ridedeck/ridedeck/internal/readiness"
)

func f(v float64) *float64 {
	return &v
}

func TestComputeReadiness_AllComponents(t *testing.T) {
	m := readiness.Metrics{
		BodyBattery:       f(80),
		SleepScore:        f(70),
		HRVStatus:         readiness.HRVBalanced,
		TrainingLoad:      f(40),
		RecoveryTimeHours: f(10),
	}

	// 24 + 17.5 + 12 + 12 + 8.61
	assert.Equal(t, 74, readiness.ComputeReadiness(m))
}

func TestComputeReadiness_NothingReported(t *testing.T) {
	assert.Equal(t, 50, readiness.ComputeReadiness(readiness.Metrics{}))
}

func TestComputeReadiness_AbsentComponentsScoreNeutral(t *testing.T) {
	tests := []struct {
		name string
		m    readiness.Metrics
		want int
	}{
		// 0.30*100 + 0.70*50
		{"body battery only", readiness.Metrics{BodyBattery: f(100)}, 65},
		{"body battery nan", readiness.Metrics{BodyBattery: f(math.NaN())}, 50},
		// 0.30*50 + 0.25*100 + 0.20*50 + 0.15*40 + 0.10*50
		{"sleep clamped with heavy load", readiness.Metrics{SleepScore: f(140), TrainingLoad: f(120)}, 61},
		// 0.20*40 + 0.80*50
		{"hrv only low", readiness.Metrics{HRVStatus: readiness.HRVLow}, 48},
		// 0.20*70 + 0.80*50
		{"hrv only high", readiness.Metrics{HRVStatus: readiness.HRVHigh}, 54},
		{"hrv unknown", readiness.Metrics{HRVStatus: readiness.HRVUnknown}, 50},
		// 0.15*70 + 0.85*50
		{"training load only", readiness.Metrics{TrainingLoad: f(60)}, 53},
		// 0.30*50 + 0.25*84 + 0.20*50 + 0.15*0 + 0.10*50
		{"training load above cap", readiness.Metrics{TrainingLoad: f(500), SleepScore: f(84)}, 51},
		{"recovery only", readiness.Metrics{RecoveryTimeHours: f(36)}, 50},
		// 0.10*100 + 0.90*50
		{"negative recovery", readiness.Metrics{RecoveryTimeHours: f(-5)}, 55},
		// 0.30*100 + 0.10*0 + 0.60*50
		{"battery and long recovery", readiness.Metrics{BodyBattery: f(100), RecoveryTimeHours: f(100)}, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readiness.ComputeReadiness(tt.m))
		})
	}
}

func TestComputeReadiness_AlwaysInRange(t *testing.T) {
	values := []float64{-1e9, -200, -1, 0, 0.5, 50, 99.9, 100, 101, 250, 1e9, math.Inf(1), math.Inf(-1), math.NaN()}
	statuses := []readiness.HRVStatus{"", readiness.HRVLow, readiness.HRVBalanced, readiness.HRVHigh, readiness.HRVUnknown}

	for _, v := range values {
		for _, s := range statuses {
			m := readiness.Metrics{
				BodyBattery:       f(v),
				SleepScore:        f(-v),
				HRVStatus:         s,
				TrainingLoad:      f(v),
				RecoveryTimeHours: f(v / 2),
			}
			score := readiness.ComputeReadiness(m)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 100)
		}
	}
}

func TestParseHRVStatus(t *testing.T) {
	tests := []struct {
		in     any
		want   readiness.HRVStatus
		wantOK bool
	}{
		{"LOW", readiness.HRVLow, true},
		{"Balanced", readiness.HRVBalanced, true},
		{"unbalanced_high", readiness.HRVBalanced, true},
		{"HIGH", readiness.HRVHigh, true},
		{"no reading", readiness.HRVUnknown, true},
		{42.0, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		got, ok := readiness.ParseHRVStatus(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestMetricsFromRecord(t *testing.T) {
	m := readiness.MetricsFromRecord(normalize.Record{
		"bodyBattery":  "80",
		"sleepScore":   70,
		"hrvStatus":    "BALANCED",
		"trainingLoad": "heavy",
		"recoveryTime": 10,
	})

	assert.Equal(t, f(80), m.BodyBattery)
	assert.Equal(t, f(70), m.SleepScore)
	assert.Equal(t, readiness.HRVBalanced, m.HRVStatus)
	assert.Nil(t, m.TrainingLoad)
	assert.Equal(t, f(10), m.RecoveryTimeHours)
}
