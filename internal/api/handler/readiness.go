package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/normalize"
	"github.com/ridedeck/ridedeck/internal/readiness"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
)

var errInvalidLimit = errors.New("limit must be between 1 and 100")

// ReadinessService scores metrics and reads stored snapshots.
type ReadinessService interface {
	Score(source string, m readiness.Metrics) int
	Latest(ctx context.Context, userID string) (*readiness.Snapshot, error)
	History(ctx context.Context, userID string, limit int) ([]*readiness.Snapshot, error)
}

// ReadinessHandler handles readiness scoring and history endpoints.
type ReadinessHandler struct {
	readiness ReadinessService
	logger    zerolog.Logger
}

// NewReadinessHandler creates a new ReadinessHandler.
func NewReadinessHandler(svc ReadinessService, logger zerolog.Logger) *ReadinessHandler {
	return &ReadinessHandler{readiness: svc, logger: logger}
}

// ScoreResponse is a readiness score computed from posted metrics.
type ScoreResponse struct {
	ReadinessScore int               `json:"readinessScore"`
	Metrics        readiness.Metrics `json:"metrics"`
}

// HistoryResponse lists stored snapshots, newest first.
type HistoryResponse struct {
	Items []*readiness.Snapshot `json:"items"`
	Limit int                   `json:"limit"`
}

// Score handles POST /v1/readiness/score - scores a loosely-typed metrics body.
func (h *ReadinessHandler) Score(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := response.Decode(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	metrics := readiness.MetricsFromRecord(normalize.AsRecord(body))
	score := h.readiness.Score(readiness.SourceManual, metrics)
	response.JSON(w, r, http.StatusOK, ScoreResponse{ReadinessScore: score, Metrics: metrics})
}

// Latest handles GET /v1/me/readiness - the newest stored snapshot.
func (h *ReadinessHandler) Latest(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.readiness.Latest(r.Context(), GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// History handles GET /v1/me/readiness/history?limit= - stored snapshots.
func (h *ReadinessHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, r, h.logger, errInvalidLimit)
			return
		}
		limit = n
	}

	items, err := h.readiness.History(r.Context(), GetUserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, HistoryResponse{Items: items, Limit: limit})
}
