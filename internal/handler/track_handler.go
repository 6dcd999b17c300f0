package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/evyataryagoni/iptracker/internal/geo"
	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/models"
	"github.com/evyataryagoni/iptracker/internal/service"
)

// maxBodyBytes caps the request body of POST /api/track
const maxBodyBytes = 4 << 10

// TrackHandler handles HTTP requests for the lookup API
// This is the handler layer - it deals with HTTP concerns only
//
// Responsibilities:
//   - Decode the JSON body
//   - Call the service
//   - Map service errors to status codes
//   - NO business logic (that's in the service layer)
type TrackHandler struct {
	service *service.TrackService
	logger  *logger.Logger
}

// NewTrackHandler creates a new track handler with the given service
func NewTrackHandler(service *service.TrackService, log *logger.Logger) *TrackHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &TrackHandler{
		service: service,
		logger:  log.WithComponent("track_handler"),
	}
}

// Track handles POST /api/track with body {"input": "<domain, URL or IP>"}
//
// Responses:
//   - 200 models.TrackRecord
//   - 400 "No input provided" or "Invalid domain or IP"
//   - 502 "Failed to fetch IP info"
//   - 500 "Server error"
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req models.TrackRequest

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, service.ErrInvalidInput.Error())
		return
	}

	record, err := h.service.Track(r.Context(), req.Input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.respondError(w, http.StatusBadRequest, service.ErrInvalidInput.Error())
		case errors.Is(err, geo.ErrResolve):
			h.respondError(w, http.StatusBadRequest, geo.ErrResolve.Error())
		case errors.Is(err, geo.ErrUpstream):
			h.respondError(w, http.StatusBadGateway, geo.ErrUpstream.Error())
		default:
			h.respondError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// respondJSON writes a JSON response with the given status code
func (h *TrackHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Headers are already sent, so an encode failure can only be logged
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes an error response with consistent formatting
func (h *TrackHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}
