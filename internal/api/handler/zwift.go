package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/dashboard"
	"github.com/ridedeck/ridedeck/internal/normalize"
	"github.com/ridedeck/ridedeck/internal/ride"
)

var errInvalidMonth = errors.New("year and month query parameters must name a valid month")

// RideService syncs rider data from the cycling platform.
type RideService interface {
	Sync(ctx context.Context, creds ride.Credentials) (*ride.SyncResult, error)
	Routes(ctx context.Context, creds ride.Credentials) ([]ride.Route, error)
}

// WorldResolver answers world availability questions.
type WorldResolver interface {
	Resolve(ctx context.Context, req availability.Request) (*availability.WorldAvailability, error)
	Schedule(ctx context.Context, year int, month time.Month) (availability.Schedule, error)
}

// DashboardService builds recommendation dashboards.
type DashboardService interface {
	Recommendations(ctx context.Context, req dashboard.Request) (*dashboard.Response, error)
}

// ZwiftHandler handles the cycling platform endpoints.
type ZwiftHandler struct {
	rides     RideService
	worlds    WorldResolver
	dashboard DashboardService
	logger    zerolog.Logger
}

// NewZwiftHandler creates a new ZwiftHandler.
func NewZwiftHandler(rides RideService, worlds WorldResolver, dash DashboardService, logger zerolog.Logger) *ZwiftHandler {
	return &ZwiftHandler{
		rides:     rides,
		worlds:    worlds,
		dashboard: dash,
		logger:    logger,
	}
}

// RoutesResponse wraps a route catalog.
type RoutesResponse struct {
	Routes []ride.Route `json:"routes"`
}

// ScheduleResponse is one month of guest worlds.
type ScheduleResponse struct {
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	Schedule availability.Schedule `json:"schedule"`
}

// recommendationRequest is the recommendations payload. The score is decoded
// loosely so numeric strings are accepted.
type recommendationRequest struct {
	ride.Credentials
	ReadinessScore any    `json:"readinessScore"`
	Date           string `json:"date,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// Sync handles POST /v1/zwift/sync - profile, activities, catalog and badges.
func (h *ZwiftHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var creds ride.Credentials
	if err := response.Decode(w, r, &creds); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.rides.Sync(r.Context(), creds)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Routes handles POST /v1/zwift/routes - the route catalog.
func (h *ZwiftHandler) Routes(w http.ResponseWriter, r *http.Request) {
	var creds ride.Credentials
	if err := response.Decode(w, r, &creds); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	routes, err := h.rides.Routes(r.Context(), creds)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, RoutesResponse{Routes: routes})
}

// Worlds handles POST /v1/zwift/worlds - worlds open on a day.
func (h *ZwiftHandler) Worlds(w http.ResponseWriter, r *http.Request) {
	var req availability.Request
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.worlds.Resolve(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Schedule handles GET /v1/zwift/schedule?year=&month= - a cached month of
// guest worlds.
func (h *ZwiftHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	year, errYear := strconv.Atoi(r.URL.Query().Get("year"))
	month, errMonth := strconv.Atoi(r.URL.Query().Get("month"))
	if errYear != nil || errMonth != nil || year < 1 || month < 1 || month > 12 {
		writeError(w, r, h.logger, errInvalidMonth)
		return
	}

	schedule, err := h.worlds.Schedule(r.Context(), year, time.Month(month))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ScheduleResponse{Year: year, Month: month, Schedule: schedule})
}

// Recommendations handles POST /v1/zwift/recommendations - the ride dashboard.
func (h *ZwiftHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	dreq := dashboard.Request{
		Credentials: req.Credentials,
		Date:        req.Date,
		Timezone:    req.Timezone,
	}
	if score, ok := normalize.OptionalNumber(req.ReadinessScore); ok {
		dreq.ReadinessScore = &score
	}

	result, err := h.dashboard.Recommendations(r.Context(), dreq)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}
