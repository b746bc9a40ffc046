// Package handler provides HTTP handlers for the RideDeck API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/models"
	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
)

// pingTimeout bounds the database check on readiness probes.
const pingTimeout = 2 * time.Second

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScheduleCache exposes the world schedule cache to operators.
type ScheduleCache interface {
	CacheStats() availability.CacheStats
	Invalidate()
}

// OpsConfig holds the dependencies of the ops endpoints. Nil fields are
// skipped.
type OpsConfig struct {
	Version   string
	BuildTime string
	Providers *resilience.Registry
	Schedule  ScheduleCache
	Database  Pinger
	Logger    zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - fails while the database is
// unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if db := h.databaseStatus(r.Context()); db != nil && db.Status != models.HealthStatusOK {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"database": db.Detail}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider circuits and subsystems.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Schedule != nil {
		stats := h.cfg.Schedule.CacheStats()
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "schedule-cache",
			Status: models.HealthStatusOK,
			Stats: map[string]any{
				"entries": stats.Entries,
				"fresh":   stats.Fresh,
				"expired": stats.Expired,
				"hits":    stats.Hits,
				"misses":  stats.Misses,
			},
		})
	}
	if db := h.databaseStatus(r.Context()); db != nil {
		status.Subsystems = append(status.Subsystems, *db)
		status.Status = worst(status.Status, db.Status)
	}

	if h.cfg.Providers != nil {
		for _, health := range h.cfg.Providers.GetAllHealth() {
			p := providerStatus(health)
			status.Providers = append(status.Providers, p)
			// A failing upstream degrades the service without failing it.
			if p.Status != models.HealthStatusOK {
				status.Status = worst(status.Status, models.HealthStatusDegraded)
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

// InvalidateSchedule handles POST /v1/ops/schedule/invalidate - drops every
// cached schedule month.
func (h *OpsHandler) InvalidateSchedule(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Schedule == nil {
		response.ServiceUnavailable(w, r, availability.ErrNoSource.Error())
		return
	}
	h.cfg.Schedule.Invalidate()
	h.cfg.Logger.Info().Str("user_id", GetUserID(r.Context())).Msg("schedule cache invalidated")
	response.NoContent(w, r)
}

func (h *OpsHandler) databaseStatus(ctx context.Context) *models.SubsystemStatus {
	if h.cfg.Database == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	s := &models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if err := h.cfg.Database.Ping(ctx); err != nil {
		h.cfg.Logger.Warn().Err(err).Msg("database ping failed")
		s.Status = models.HealthStatusFail
		s.Detail = err.Error()
	}
	return s
}

func providerStatus(h *resilience.ProviderHealth) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider:            h.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        h.CircuitState.String(),
		ConsecutiveFailures: h.Counts.ConsecutiveFailures,
		LastError:           h.LastError,
	}
	switch {
	case h.IsUnhealthy():
		p.Status = models.HealthStatusFail
	case h.IsDegraded():
		p.Status = models.HealthStatusDegraded
	}
	if h.LastSuccessAt != nil {
		ts := models.Timestamp(*h.LastSuccessAt)
		p.LastSuccessAt = &ts
	}
	if h.LastFailureAt != nil {
		ts := models.Timestamp(*h.LastFailureAt)
		p.LastFailureAt = &ts
	}
	return p
}

// worst returns the more severe of two statuses.
func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
