package readiness

import "math"

// NeutralScore is returned when no signal is available.
const NeutralScore = 50

// Component weights.
const (
	WeightBodyBattery  = 0.30
	WeightSleepScore   = 0.25
	WeightHRVStatus    = 0.20
	WeightTrainingLoad = 0.15
	WeightRecoveryTime = 0.10
)

// ComputeReadiness combines the wearable signals into a 0–100 score. A
// component that was not reported scores NeutralScore and keeps its weight.
func ComputeReadiness(m Metrics) int {
	components := []struct {
		score, weight float64
	}{
		{bounded(m.BodyBattery, func(v float64) float64 { return v }), WeightBodyBattery},
		{bounded(m.SleepScore, func(v float64) float64 { return v }), WeightSleepScore},
		{hrvScore(m.HRVStatus), WeightHRVStatus},
		{bounded(m.TrainingLoad, func(v float64) float64 { return 100 - clamp(v, 0, 200)/2 }), WeightTrainingLoad},
		{bounded(m.RecoveryTimeHours, func(v float64) float64 { return 100 - clamp(v, 0, 72)/72*100 }), WeightRecoveryTime},
	}

	var sum, weight float64
	for _, c := range components {
		sum += c.score * c.weight
		weight += c.weight
	}
	return int(math.Round(clamp(sum/weight, 0, 100)))
}

// bounded scores an optional metric with fn, clamped to 0–100.
func bounded(v *float64, fn func(float64) float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return NeutralScore
	}
	return clamp(fn(*v), 0, 100)
}

func hrvScore(s HRVStatus) float64 {
	switch s {
	case HRVLow:
		return 40
	case HRVBalanced:
		return 60
	case HRVHigh:
		return 70
	default:
		return 50
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
