package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/middleware"
	"github.com/ridedeck/ridedeck/internal/api/models"
	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/availability/zwiftinsider"
	"github.com/ridedeck/ridedeck/internal/dashboard"
	"github.com/ridedeck/ridedeck/internal/featureflags"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/readiness"
	"github.com/ridedeck/ridedeck/internal/readiness/garmin"
	"github.com/ridedeck/ridedeck/internal/ride"
	"github.com/ridedeck/ridedeck/internal/ride/fitfile"
	"github.com/ridedeck/ridedeck/internal/telemetry"
)

// validationFields maps request validation errors to the offending field.
var validationFields = []struct {
	err   error
	field string
}{
	{ride.ErrMissingCredentials, "username"},
	{availability.ErrInvalidDate, "date"},
	{dashboard.ErrMissingReadinessScore, "readinessScore"},
	{readiness.ErrMissingAccessToken, "accessToken"},
	{readiness.ErrMissingUserID, "userId"},
	{garmin.ErrMissingRedirectURI, "redirectUri"},
	{garmin.ErrMissingCode, "code"},
	{garmin.ErrMissingRefreshToken, "refreshToken"},
	{fitfile.ErrNoSessions, "file"},
	{fitfile.ErrInvalidFile, "file"},
	{errMissingFile, "file"},
	{response.ErrEmptyBody, "body"},
	{errInvalidLimit, "limit"},
	{errInvalidMonth, "month"},
	{featureflags.ErrNoUpdates, "updates"},
	{featureflags.ErrUnknownFlag, "updates"},
	{featureflags.ErrInvalidFlagValue, "updates"},
}

// writeError maps a service error onto a problem response. Unexpected errors
// are logged and reported to Sentry; upstream failures keep the upstream
// status on the problem.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	for _, v := range validationFields {
		if errors.Is(err, v.err) {
			response.BadRequest(w, r, err.Error(), []models.FieldError{
				{Field: v.field, Message: v.err.Error(), Code: "INVALID"},
			})
			return
		}
	}

	var statusErr *resilience.StatusError
	switch {
	case errors.Is(err, readiness.ErrSnapshotNotFound):
		response.NotFound(w, r, err.Error())

	case errors.As(err, &statusErr):
		log.Warn().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("provider", statusErr.Provider).
			Int("upstream_status", statusErr.StatusCode).
			Msg("upstream request failed")
		response.BadGateway(w, r, err.Error(), statusErr.Provider, statusErr.StatusCode)

	case errors.Is(err, availability.ErrScheduleUnavailable):
		log.Warn().Err(err).Msg("world schedule unavailable")
		response.BadGateway(w, r, err.Error(), zwiftinsider.ProviderName, 0)

	case errors.Is(err, resilience.ErrMaxRetriesExceeded), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("upstream unreachable")
		response.BadGateway(w, r, err.Error(), "", 0)

	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, readiness.ErrNotConfigured),
		errors.Is(err, ride.ErrProviderUnavailable),
		errors.Is(err, availability.ErrNoSource):
		response.ServiceUnavailable(w, r, err.Error())

	default:
		requestID := middleware.GetRequestID(r.Context())
		log.Error().Err(err).
			Str("request_id", requestID).
			Str("path", r.URL.Path).
			Msg("request failed")
		telemetry.CaptureError(r.Context(), err, map[string]string{
			"request_id": requestID,
			"path":       r.URL.Path,
		})
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
