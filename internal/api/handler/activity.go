package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/response"
	"github.com/ridedeck/ridedeck/internal/ride"
	"github.com/ridedeck/ridedeck/internal/ride/fitfile"
)

// maxFITBytes caps uploaded activity files.
const maxFITBytes = 16 << 20

var errMissingFile = errors.New(`multipart upload must carry a "file" part`)

// ActivityHandler imports activity files.
type ActivityHandler struct {
	logger zerolog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{logger: logger}
}

// ActivitiesResponse lists normalized activities.
type ActivitiesResponse struct {
	Activities []ride.Activity `json:"activities"`
}

// ImportFIT handles POST /v1/activities/fit - decodes a FIT upload, sent either
// as the raw request body or as the "file" part of a multipart form.
func (h *ActivityHandler) ImportFIT(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFITBytes)

	body, closeBody, err := fitBody(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer closeBody()

	records, err := fitfile.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, r, "FIT file exceeds 16 MiB", nil)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	activities := ride.NormalizeActivities(records)
	h.logger.Debug().Int("activities", len(activities)).Msg("FIT file imported")
	response.JSON(w, r, http.StatusOK, ActivitiesResponse{Activities: activities})
}

func fitBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errMissingFile
	}
	return file, func() { _ = file.Close() }, nil
}
