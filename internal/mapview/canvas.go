package mapview

import (
	"math"
	"strings"
)

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both parts are finite and inside the WGS84 range
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Popup is the text attached to a marker; empty parts are left out
type Popup struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Org     string `json:"org,omitempty"`
}

// Lines renders the popup as "City, Country" and "ISP: Org"
func (p Popup) Lines() []string {
	var lines []string
	var place []string
	if p.City != "" {
		place = append(place, p.City)
	}
	if p.Country != "" {
		place = append(place, p.Country)
	}
	if len(place) > 0 {
		lines = append(lines, strings.Join(place, ", "))
	}
	if p.Org != "" {
		lines = append(lines, "ISP: "+p.Org)
	}
	return lines
}

// MarkerID identifies a marker on one canvas
type MarkerID uint64

// Marker is a placed point
type Marker struct {
	ID       MarkerID `json:"id"`
	Position LatLng   `json:"position"`
	Popup    Popup    `json:"popup"`
}

// CanvasState is a copy of what a canvas currently shows
type CanvasState struct {
	Center  LatLng   `json:"center"`
	Zoom    int      `json:"zoom"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Markers []Marker `json:"markers"`
}

// Canvas is the map widget the Renderer drives
type Canvas interface {
	SetView(center LatLng, zoom int)
	AddMarker(pos LatLng, popup Popup) MarkerID
	RemoveMarker(id MarkerID)
	// InvalidateSize makes the canvas adopt new container pixel dimensions
	InvalidateSize(width, height int)
	State() CanvasState
}

// CanvasFactory builds the canvas on first display
// It fails when the map library or its container is unavailable
type CanvasFactory func(center LatLng, zoom int) (Canvas, error)
