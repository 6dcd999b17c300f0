package mapview

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// TileSize is the edge of a slippy map tile in pixels
const TileSize = 256

// maxMercatorLat is where Web Mercator is clipped
const maxMercatorLat = 85.0511287798

// maxTileZoom bounds shifts in tile math
const maxTileZoom = 30

// TileConfig describes the tile provider
type TileConfig struct {
	URLTemplate string // e.g. https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png
	Subdomains  string // one letter per subdomain, e.g. "abc"
	Attribution string
	MaxZoom     int
}

// DefaultTileConfig is the OpenStreetMap standard layer
func DefaultTileConfig() TileConfig {
	return TileConfig{
		URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Subdomains:  "abc",
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     18,
	}
}

// Tile is one {z}/{x}/{y} tile
type Tile struct {
	Z   int    `json:"z"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
	URL string `json:"url"`
}

// TileCanvas is an in-process slippy map: view, size and markers
// It has zero size until InvalidateSize reports the container dimensions
type TileCanvas struct {
	mu      sync.RWMutex
	cfg     TileConfig
	center  LatLng
	zoom    int
	width   int
	height  int
	nextID  MarkerID
	markers map[MarkerID]Marker
}

// NewTileCanvas validates cfg and creates a canvas centered on center
func NewTileCanvas(cfg TileConfig, center LatLng, zoom int) (*TileCanvas, error) {
	if cfg.URLTemplate == "" {
		return nil, errors.New("tile URL template is empty")
	}
	for _, part := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(cfg.URLTemplate, part) {
			return nil, errors.New("tile URL template is missing " + part)
		}
	}
	if cfg.Attribution == "" {
		return nil, errors.New("tile attribution is required")
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = 18
	}

	c := &TileCanvas{
		cfg:     cfg,
		markers: make(map[MarkerID]Marker),
	}
	c.SetView(center, zoom)
	return c, nil
}

// TileFactory returns a CanvasFactory producing TileCanvases for cfg
func TileFactory(cfg TileConfig) CanvasFactory {
	return func(center LatLng, zoom int) (Canvas, error) {
		return NewTileCanvas(cfg, center, zoom)
	}
}

// Attribution is the provider credit that must be displayed with the map
func (c *TileCanvas) Attribution() string {
	return c.cfg.Attribution
}

// SetView centers the map; zoom is clamped to [0, MaxZoom]
func (c *TileCanvas) SetView(center LatLng, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if zoom < 0 {
		zoom = 0
	}
	if zoom > c.cfg.MaxZoom {
		zoom = c.cfg.MaxZoom
	}
	c.center = center
	c.zoom = zoom
}

func (c *TileCanvas) AddMarker(pos LatLng, popup Popup) MarkerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.markers[c.nextID] = Marker{ID: c.nextID, Position: pos, Popup: popup}
	return c.nextID
}

func (c *TileCanvas) RemoveMarker(id MarkerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, id)
}

func (c *TileCanvas) InvalidateSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c.width = width
	c.height = height
}

func (c *TileCanvas) State() CanvasState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	markers := make([]Marker, 0, len(c.markers))
	for _, m := range c.markers {
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].ID < markers[j].ID })

	return CanvasState{
		Center:  c.center,
		Zoom:    c.zoom,
		Width:   c.width,
		Height:  c.height,
		Markers: markers,
	}
}

// VisibleTiles lists the tiles covering the container, row by row
// A zero-sized canvas shows nothing
func (c *TileCanvas) VisibleTiles() []Tile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.width == 0 || c.height == 0 {
		return nil
	}

	n := 1 << c.zoom
	cx, cy := worldPixel(c.center, c.zoom)
	minX := int(math.Floor((cx - float64(c.width)/2) / TileSize))
	maxX := int(math.Floor((cx + float64(c.width)/2 - 1) / TileSize))
	minY := int(math.Floor((cy - float64(c.height)/2) / TileSize))
	maxY := int(math.Floor((cy + float64(c.height)/2 - 1) / TileSize))

	var tiles []Tile
	for y := max(minY, 0); y <= min(maxY, n-1); y++ {
		for x := minX; x <= maxX; x++ {
			wx := ((x % n) + n) % n
			tiles = append(tiles, Tile{Z: c.zoom, X: wx, Y: y, URL: c.tileURL(wx, y, c.zoom)})
		}
	}
	return tiles
}

// MarkerPixel returns a marker's position relative to the container's top-left corner
func (c *TileCanvas) MarkerPixel(id MarkerID) (x, y float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.markers[id]
	if !ok {
		return 0, 0, false
	}
	cx, cy := worldPixel(c.center, c.zoom)
	mx, my := worldPixel(m.Position, c.zoom)
	return mx - cx + float64(c.width)/2, my - cy + float64(c.height)/2, true
}

// TileAt returns the tile containing p at zoom
func (c *TileCanvas) TileAt(p LatLng, zoom int) Tile {
	zoom = clampTileZoom(zoom)
	x, y := TileXY(p, zoom)
	return Tile{Z: zoom, X: x, Y: y, URL: c.tileURL(x, y, zoom)}
}

func (c *TileCanvas) tileURL(x, y, z int) string {
	sub := ""
	if len(c.cfg.Subdomains) > 0 {
		idx := (x + y) % len(c.cfg.Subdomains)
		if idx < 0 {
			idx = -idx
		}
		sub = string(c.cfg.Subdomains[idx])
	}
	r := strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(c.cfg.URLTemplate)
}

// TileXY converts a coordinate to slippy tile indices at zoom, which is
// clamped to [0, 30]
func TileXY(p LatLng, zoom int) (x, y int) {
	zoom = clampTileZoom(zoom)
	px, py := worldPixel(p, zoom)
	n := 1 << zoom
	x = int(math.Floor(px / TileSize))
	y = int(math.Floor(py / TileSize))
	if x >= n {
		x = n - 1
	}
	if y >= n {
		y = n - 1
	}
	if y < 0 {
		y = 0
	}
	return x, y
}

func clampTileZoom(zoom int) int {
	if zoom < 0 {
		return 0
	}
	if zoom > maxTileZoom {
		return maxTileZoom
	}
	return zoom
}

// worldPixel projects p to Web Mercator pixel space at zoom
func worldPixel(p LatLng, zoom int) (float64, float64) {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat))
	scale := float64(TileSize) * float64(int(1)<<clampTileZoom(zoom))
	x := (p.Lng + 180) / 360 * scale
	latRad := lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * scale
	return x, y
}
