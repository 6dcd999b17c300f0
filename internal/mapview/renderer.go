package mapview

import (
	"sync"
	"time"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/metrics"
	"github.com/evyataryagoni/iptracker/internal/view"
)

const (
	// DefaultZoom is used when the canvas is first created
	DefaultZoom = 5
	// FocusZoom is used when centering on a lookup result
	FocusZoom = 8

	// InvalidCoordinatesText replaces the map when a result has no usable position
	InvalidCoordinatesText = "Invalid coordinates"
)

// MapRenderError means the map could not be shown at all
type MapRenderError struct {
	Reason string
	Err    error
}

func (e *MapRenderError) Error() string {
	if e.Err != nil {
		return "map render failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "map render failed: " + e.Reason
}

func (e *MapRenderError) Unwrap() error { return e.Err }

// UserMessage is shown as a blocking notice
func (e *MapRenderError) UserMessage() string {
	return "Map could not be displayed: " + e.Reason
}

// Snapshot is what the page needs to draw the map
type Snapshot struct {
	Ready       bool         `json:"ready"`
	Placeholder string       `json:"placeholder,omitempty"`
	Canvas      *CanvasState `json:"canvas,omitempty"`
	Marker      *Marker      `json:"marker,omitempty"`
}

// Renderer owns one canvas and at most one marker on it
type Renderer struct {
	mu          sync.Mutex
	factory     CanvasFactory
	canvas      Canvas
	marker      MarkerID
	hasMarker   bool
	placeholder string

	// last container size reported by LayoutSettled
	width, height int
	sized         bool

	settleFallback time.Duration
	settleTimer    *time.Timer

	metrics *metrics.Metrics
	logger  *logger.Logger
}

// Option configures a Renderer
type Option func(r *Renderer)

// WithSettleFallback invalidates the canvas size d after a render when no
// LayoutSettled signal arrived in the meantime; zero disables it
func WithSettleFallback(d time.Duration) Option {
	return func(r *Renderer) {
		r.settleFallback = d
	}
}

// WithMetrics counts placed markers (m may be nil)
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// WithLogger sets the renderer logger
func WithLogger(log *logger.Logger) Option {
	return func(r *Renderer) {
		r.logger = log
	}
}

// NewRenderer creates a renderer; the canvas is built on first Show
// A nil factory means no map library is available
func NewRenderer(factory CanvasFactory, opts ...Option) *Renderer {
	r := &Renderer{factory: factory}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Nop()
	}
	r.logger = r.logger.WithComponent("MapRenderer")
	return r
}

// Show centers the map on (lat, lon) and replaces the marker
//
// Missing, non-finite or out-of-range coordinates leave the map untouched and
// set the placeholder instead. An unavailable canvas yields *MapRenderError.
func (r *Renderer) Show(lat, lon *float64, popup Popup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lat == nil || lon == nil || !(LatLng{Lat: *lat, Lng: *lon}).Valid() {
		r.logger.Warn().Msg("Refusing to place marker at invalid coordinates")
		r.placeholder = InvalidCoordinatesText
		return nil
	}
	pos := LatLng{Lat: *lat, Lng: *lon}

	if r.canvas == nil {
		if err := r.createCanvas(pos); err != nil {
			return err
		}
	}

	r.canvas.SetView(pos, FocusZoom)
	if r.hasMarker {
		r.canvas.RemoveMarker(r.marker)
	}
	r.marker = r.canvas.AddMarker(pos, popup)
	r.hasMarker = true
	r.placeholder = ""

	if r.metrics != nil {
		r.metrics.MarkersPlaced.Inc()
	}
	r.logger.Debug().Float64("lat", pos.Lat).Float64("lng", pos.Lng).Msg("Marker placed")

	r.armSettleFallback()
	return nil
}

// createCanvas builds the canvas at the default zoom; callers hold mu
func (r *Renderer) createCanvas(pos LatLng) error {
	if r.factory == nil {
		return &MapRenderError{Reason: "map library is not loaded"}
	}
	canvas, err := r.factory(pos, DefaultZoom)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to create map canvas")
		return &MapRenderError{Reason: "map container unavailable", Err: err}
	}
	if canvas == nil {
		return &MapRenderError{Reason: "map container unavailable"}
	}
	if r.sized {
		canvas.InvalidateSize(r.width, r.height)
	}
	r.canvas = canvas
	r.logger.Info().Msg("Map canvas created")
	return nil
}

// Clear removes the current marker and placeholder; the canvas is kept
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasMarker && r.canvas != nil {
		r.canvas.RemoveMarker(r.marker)
	}
	r.hasMarker = false
	r.placeholder = ""
}

// LayoutSettled is the signal that the container has its final size
// It may arrive before the canvas exists; the size is applied on creation
func (r *Renderer) LayoutSettled(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.width, r.height, r.sized = width, height, true
	if r.settleTimer != nil {
		r.settleTimer.Stop()
		r.settleTimer = nil
	}
	if r.canvas != nil {
		r.canvas.InvalidateSize(width, height)
		r.logger.Debug().Int("width", width).Int("height", height).Msg("Canvas size invalidated")
	}
}

// armSettleFallback starts the fallback resize timer; callers hold mu
func (r *Renderer) armSettleFallback() {
	if r.settleFallback <= 0 {
		return
	}
	if r.settleTimer != nil {
		r.settleTimer.Stop()
	}
	r.settleTimer = time.AfterFunc(r.settleFallback, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.settleTimer = nil
		if r.canvas == nil {
			return
		}
		st := r.canvas.State()
		w, h := st.Width, st.Height
		if r.sized {
			w, h = r.width, r.height
		}
		r.canvas.InvalidateSize(w, h)
		r.logger.Debug().Msg("No layout signal, invalidated canvas size after fallback delay")
	})
}

// Apply is a view.Listener: Success shows the result, every other state clears the marker
func (r *Renderer) Apply(s view.State) error {
	if s.Kind != view.Success || s.Result == nil {
		r.Clear()
		return nil
	}
	res := s.Result
	return r.Show(res.Latitude, res.Longitude, Popup{City: res.City, Country: res.Country, Org: res.Org})
}

// Canvas returns the canvas, nil before the first successful display
func (r *Renderer) Canvas() Canvas {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canvas
}

// Snapshot copies the current map state
func (r *Renderer) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{Placeholder: r.placeholder}
	if r.canvas == nil {
		return snap
	}
	st := r.canvas.State()
	snap.Ready = true
	snap.Canvas = &st
	if r.hasMarker {
		for i := range st.Markers {
			if st.Markers[i].ID == r.marker {
				m := st.Markers[i]
				snap.Marker = &m
			}
		}
	}
	return snap
}

// Close stops the fallback timer
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settleTimer != nil {
		r.settleTimer.Stop()
		r.settleTimer = nil
	}
}
