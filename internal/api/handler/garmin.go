package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/readiness"
	"github.com/ridedeck/ridedeck/internal/readiness/garmin"
)

// WearableAuthenticator runs the wearable OAuth flow.
type WearableAuthenticator interface {
	AuthURL(redirectURI, state string) (*garmin.AuthStart, error)
	Exchange(ctx context.Context, code, redirectURI string) (*garmin.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*garmin.Tokens, error)
}

// ReadinessSyncer pulls wearable metrics and stores a readiness snapshot.
type ReadinessSyncer interface {
	Sync(ctx context.Context, req readiness.SyncRequest) (*readiness.Snapshot, error)
}

// GarminHandler handles the wearable endpoints.
type GarminHandler struct {
	auth      WearableAuthenticator
	readiness ReadinessSyncer
	logger    zerolog.Logger
}

// NewGarminHandler creates a new GarminHandler.
func NewGarminHandler(auth WearableAuthenticator, syncer ReadinessSyncer, logger zerolog.Logger) *GarminHandler {
	return &GarminHandler{auth: auth, readiness: syncer, logger: logger}
}

type authStartRequest struct {
	RedirectURI string `json:"redirectUri"`
	State       string `json:"state,omitempty"`
}

type authExchangeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

type authRefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type readinessSyncRequest struct {
	AccessToken string `json:"accessToken"`
	Date        string `json:"date,omitempty"`
}

// AuthStart handles POST /v1/garmin/auth/start - builds the authorize URL.
func (h *GarminHandler) AuthStart(w http.ResponseWriter, r *http.Request) {
	var req authStartRequest
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	start, err := h.auth.AuthURL(req.RedirectURI, req.State)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, start)
}

// AuthExchange handles POST /v1/garmin/auth/exchange - trades a code for tokens.
func (h *GarminHandler) AuthExchange(w http.ResponseWriter, r *http.Request) {
	var req authExchangeRequest
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tokens, err := h.auth.Exchange(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, tokens)
}

// AuthRefresh handles POST /v1/garmin/auth/refresh - renews an access token.
func (h *GarminHandler) AuthRefresh(w http.ResponseWriter, r *http.Request) {
	var req authRefreshRequest
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, tokens)
}

// SyncReadiness handles POST /v1/garmin/readiness - fetches today's metrics
// for the authenticated rider and stores the computed score.
func (h *GarminHandler) SyncReadiness(w http.ResponseWriter, r *http.Request) {
	var req readinessSyncRequest
	if err := response.Decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	snapshot, err := h.readiness.Sync(r.Context(), readiness.SyncRequest{
		AccessToken: req.AccessToken,
		UserID:      GetUserID(r.Context()),
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}
