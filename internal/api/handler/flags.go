package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/featureflags"
)

// FlagService lists and updates feature flags.
type FlagService interface {
	List(ctx context.Context) featureflags.FlagList
	Update(ctx context.Context, req featureflags.FlagUpdateRequest) error
}

// FlagsHandler handles the operator feature flag endpoints.
type FlagsHandler struct {
	flags  FlagService
	logger zerolog.Logger
}

// NewFlagsHandler creates a new FlagsHandler.
func NewFlagsHandler(flags FlagService, logger zerolog.Logger) *FlagsHandler {
	return &FlagsHandler{flags: flags, logger: logger}
}

// List handles GET /v1/ops/flags.
func (h *FlagsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.flags.List(r.Context()))
}

// Update handles PATCH /v1/ops/flags and returns the resulting flag list.
func (h *FlagsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.flags.Update(r.Context(), req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("user_id", GetUserID(r.Context())).
		Str("reason", req.Reason).
		Msg("feature flags changed by operator")
	response.JSON(w, r, http.StatusOK, h.flags.List(r.Context()))
}
