package readiness

import (
	"errors"
	"strings"
	"time"

	"github.com/ridedeck/ridedeck/internal/normalize"
)

// Readiness errors.
var (
	ErrMissingAccessToken = errors.New("missing accessToken")
	ErrMissingUserID      = errors.New("missing userId")
	ErrSnapshotNotFound   = errors.New("readiness snapshot not found")
	ErrNotConfigured      = errors.New("wearable metrics provider not configured")
)

// Score sources.
const (
	SourceGarmin = "garmin"
	SourceManual = "manual"
)

// HRVStatus is the categorical heart-rate-variability state.
type HRVStatus string

const (
	HRVLow      HRVStatus = "low"
	HRVBalanced HRVStatus = "balanced"
	HRVHigh     HRVStatus = "high"
	HRVUnknown  HRVStatus = "unknown"
)

// ParseHRVStatus classifies a free-form status string by substring. Non-string
// input reports false; an unrecognized string is HRVUnknown.
func ParseHRVStatus(v any) (HRVStatus, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "low"):
		return HRVLow, true
	case strings.Contains(s, "balanced"):
		return HRVBalanced, true
	case strings.Contains(s, "high"):
		return HRVHigh, true
	default:
		return HRVUnknown, true
	}
}

// Metrics is one day of wearable signals. Nil fields were not reported.
type Metrics struct {
	CapturedAt        time.Time `json:"capturedAt"`
	BodyBattery       *float64  `json:"bodyBattery"`
	SleepScore        *float64  `json:"sleepScore"`
	HRVStatus         HRVStatus `json:"hrvStatus,omitempty"`
	TrainingLoad      *float64  `json:"trainingLoad"`
	RecoveryTimeHours *float64  `json:"recoveryTimeHours"`
}

var (
	metricBodyBattery  = normalize.Field{Aliases: []string{"bodyBattery", "body_battery"}}
	metricSleepScore   = normalize.Field{Aliases: []string{"sleepScore", "sleep_score"}}
	metricHRVStatus    = normalize.Field{Aliases: []string{"hrvStatus", "hrv_status", "hrv"}}
	metricTrainingLoad = normalize.Field{Aliases: []string{"trainingLoad", "training_load"}}
	metricRecoveryTime = normalize.Field{Aliases: []string{"recoveryTimeHours", "recoveryTime", "recovery_time_hours"}}
)

// MetricsFromRecord reads a loosely-typed metrics payload. Numeric strings are
// accepted; anything non-numeric is treated as absent.
func MetricsFromRecord(rec normalize.Record) Metrics {
	m := Metrics{
		BodyBattery:       optional(rec, metricBodyBattery),
		SleepScore:        optional(rec, metricSleepScore),
		TrainingLoad:      optional(rec, metricTrainingLoad),
		RecoveryTimeHours: optional(rec, metricRecoveryTime),
	}
	if raw, ok := rec.PickFirst(metricHRVStatus.Aliases...); ok {
		if status, ok := ParseHRVStatus(raw); ok {
			m.HRVStatus = status
		}
	}
	return m
}

func optional(rec normalize.Record, f normalize.Field) *float64 {
	n, ok := rec.OptionalNumber(f)
	if !ok {
		return nil
	}
	return &n
}

// Snapshot is a persisted readiness computation.
type Snapshot struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CapturedAt     time.Time `json:"capturedAt"`
	Metrics        Metrics   `json:"metrics"`
	ReadinessScore int       `json:"readinessScore"`
	CreatedAt      time.Time `json:"createdAt"`
	Source         string    `json:"source"`
}

// SyncRequest asks for today's (or a given day's) readiness for a user.
type SyncRequest struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	Date        string `json:"date,omitempty"`
}

// Validate checks that the identifiers required for a sync are present.
func (r SyncRequest) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return ErrMissingAccessToken
	}
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUserID
	}
	return nil
}
