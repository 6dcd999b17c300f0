package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/mapview"
	"github.com/evyataryagoni/iptracker/internal/models"
	"github.com/evyataryagoni/iptracker/internal/render"
	"github.com/evyataryagoni/iptracker/internal/view"
)

// busyMessage answers a submit that arrives while a lookup is running
const busyMessage = "A lookup is already in progress"

// UIState is the JSON the page script renders from
type UIState struct {
	State   string         `json:"state"`
	Busy    bool           `json:"busy"`
	Message string         `json:"message,omitempty"`
	Cycle   uint64         `json:"cycle"`
	Input   string         `json:"input"`
	Fields  []render.Field `json:"fields"`

	Map   mapview.Snapshot `json:"map"`
	Tiles []mapview.Tile   `json:"tiles,omitempty"`

	TileURL     string `json:"tile_url"`
	Subdomains  string `json:"subdomains"`
	MaxZoom     int    `json:"max_zoom"`
	Attribution string `json:"attribution"`
}

// mapFailures are the reasons the browser may report on POST /ui/map-error
var mapFailures = map[string]string{
	"library":   "map library is not loaded",
	"container": "map container unavailable",
}

// mapErrorRequest is the body of POST /ui/map-error
type mapErrorRequest struct {
	Cycle  uint64 `json:"cycle"`
	Reason string `json:"reason"`
}

// layoutRequest is the body of POST /ui/layout
type layoutRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UIHandler serves the tracker page and drives the view state machine
// All lookups go through the machine, so the page, the result panel and the
// map always agree on the current cycle
type UIHandler struct {
	machine *view.Machine
	results *render.Results
	maps    *mapview.Renderer
	tiles   mapview.TileConfig
	page    *template.Template
	logger  *logger.Logger

	mu    sync.Mutex
	input string
}

// NewUIHandler wires the page to the machine and its two renderers
// results and maps must already be subscribed to machine
func NewUIHandler(machine *view.Machine, results *render.Results, maps *mapview.Renderer, tiles mapview.TileConfig, log *logger.Logger) (*UIHandler, error) {
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &UIHandler{
		machine: machine,
		results: results,
		maps:    maps,
		tiles:   tiles,
		page:    page,
		logger:  log.WithComponent("UIHandler"),
	}, nil
}

// Index handles GET /
func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, h.snapshot()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
	}
}

// Track handles POST /track with form field "input"
// It blocks for one whole cycle; script clients (Accept: application/json)
// get the settled state back, plain form posts are redirected to /
func (h *UIHandler) Track(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	input := r.PostFormValue("input")

	// The echoed input is set before Submit so it shows while Loading
	h.mu.Lock()
	previous := h.input
	h.input = input
	h.mu.Unlock()

	// A client navigating away does not abort the cycle; POST /reset does
	err := h.machine.Submit(context.WithoutCancel(r.Context()), input)
	if errors.Is(err, view.ErrBusy) {
		// Rejected submits keep the echo of the cycle in flight
		h.mu.Lock()
		if h.input == input {
			h.input = previous
		}
		h.mu.Unlock()

		if wantsJSON(r) {
			h.respondJSON(w, http.StatusConflict, models.ErrorResponse{Error: busyMessage})
			return
		}
		http.Error(w, busyMessage, http.StatusConflict)
		return
	}

	h.settle(w, r)
}

// Reset handles POST /reset: abort any lookup and go back to Idle
func (h *UIHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.machine.Reset()

	h.mu.Lock()
	h.input = ""
	h.mu.Unlock()

	h.settle(w, r)
}

// State handles GET /ui/state
func (h *UIHandler) State(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.snapshot())
}

// Layout handles POST /ui/layout, the signal that the map container has its
// final size. The canvas adopts it and the new state is returned
func (h *UIHandler) Layout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid layout"})
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Width and height must be positive"})
		return
	}

	h.maps.LayoutSettled(req.Width, req.Height)
	h.respondJSON(w, http.StatusOK, h.snapshot())
}

// MapError handles POST /ui/map-error, sent when the browser could not show
// the map of a successful cycle. That cycle moves to Error; a report for any
// other cycle is ignored. The current state is returned either way
func (h *UIHandler) MapError(w http.ResponseWriter, r *http.Request) {
	var req mapErrorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid map error"})
		return
	}
	reason, ok := mapFailures[req.Reason]
	if !ok {
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Unknown map error"})
		return
	}

	if err := h.machine.Fail(req.Cycle, &mapview.MapRenderError{Reason: reason}); err != nil {
		h.logger.Debug().Uint64("cycle", req.Cycle).Msg("Ignoring map error for stale cycle")
	}
	h.respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *UIHandler) settle(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		h.respondJSON(w, http.StatusOK, h.snapshot())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// snapshot assembles the page state from the machine and both renderers
func (h *UIHandler) snapshot() UIState {
	st := h.machine.State()

	h.mu.Lock()
	input := h.input
	h.mu.Unlock()

	ui := UIState{
		State:       st.Kind.String(),
		Busy:        st.Busy(),
		Message:     st.Message,
		Cycle:       st.Cycle,
		Input:       input,
		Fields:      h.results.Fields(),
		Map:         h.maps.Snapshot(),
		TileURL:     h.tiles.URLTemplate,
		Subdomains:  h.tiles.Subdomains,
		MaxZoom:     h.tiles.MaxZoom,
		Attribution: h.tiles.Attribution,
	}
	if tc, ok := h.maps.Canvas().(*mapview.TileCanvas); ok {
		ui.Tiles = tc.VisibleTiles()
	}
	return ui
}

// respondJSON writes a JSON response with the given status code
func (h *UIHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
