package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/evyataryagoni/iptracker/internal/config"
	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/lookup"
	"github.com/evyataryagoni/iptracker/internal/mapview"
	"github.com/evyataryagoni/iptracker/internal/render"
	"github.com/evyataryagoni/iptracker/internal/view"
	"github.com/urfave/cli/v2"
)

// terminal output pretends the map container has this size
const terminalWidth, terminalHeight = 800, 400

func main() {
	appConfig := config.Load()

	app := &cli.App{
		Name:      "track",
		Usage:     "show where an IP address or domain is located",
		ArgsUsage: "<ip-or-domain> [more...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Usage: "lookup endpoint",
				Value: appConfig.BackendURL,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per lookup timeout",
				Value: appConfig.LookupTimeout,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print results as JSON",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one IP address or domain is required", 2)
			}

			log := logger.New(logger.Config{Level: c.String("log-level"), Pretty: true})
			tracker := newTracker(c.String("backend"), c.Duration("timeout"), tileConfig(appConfig), log)
			defer tracker.close()

			failed := 0
			for _, query := range c.Args().Slice() {
				if !tracker.track(c.Context, query, c.Bool("json"), os.Stdout, os.Stderr) {
					failed++
				}
			}
			if failed > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tileConfig(appConfig *config.Config) mapview.TileConfig {
	tiles := mapview.DefaultTileConfig()
	tiles.URLTemplate = appConfig.TileURL
	tiles.Attribution = appConfig.TileAttribution
	return tiles
}

// tracker is the terminal front-end: the same machine and renderers the web
// page uses, printed instead of drawn
type tracker struct {
	machine *view.Machine
	results *render.Results
	maps    *mapview.Renderer
	tiles   mapview.TileConfig
}

func newTracker(backend string, timeout time.Duration, tiles mapview.TileConfig, log *logger.Logger) *tracker {
	machine := view.NewMachine(lookup.NewClient(backend, lookup.WithLogger(log)),
		view.WithTimeout(timeout),
		view.WithLogger(log),
	)
	results := &render.Results{}
	maps := mapview.NewRenderer(mapview.TileFactory(tiles), mapview.WithLogger(log))
	maps.LayoutSettled(terminalWidth, terminalHeight)

	machine.Subscribe(results.Apply)
	machine.Subscribe(maps.Apply)

	return &tracker{machine: machine, results: results, maps: maps, tiles: tiles}
}

// jsonResult is one line of --json output
type jsonResult struct {
	Query   string           `json:"query"`
	State   string           `json:"state"`
	Message string           `json:"message,omitempty"`
	Fields  []render.Field   `json:"fields,omitempty"`
	Map     mapview.Snapshot `json:"map"`
	Tile    *mapview.Tile    `json:"tile,omitempty"`
}

// track runs one cycle and prints it; it reports whether the cycle succeeded
func (t *tracker) track(ctx context.Context, query string, asJSON bool, out, errOut io.Writer) bool {
	t.machine.Submit(ctx, query)
	st := t.machine.State()
	snap := t.maps.Snapshot()
	tile := t.markerTile(snap)

	if asJSON {
		err := json.NewEncoder(out).Encode(jsonResult{
			Query:   query,
			State:   st.Kind.String(),
			Message: st.Message,
			Fields:  t.results.Fields(),
			Map:     snap,
			Tile:    tile,
		})
		if err != nil {
			fmt.Fprintf(errOut, "%s: write failed: %v\n", query, err)
			return false
		}
		return st.Kind == view.Success
	}

	if st.Kind != view.Success {
		fmt.Fprintf(errOut, "%s: %s\n", query, st.Message)
		return false
	}

	fields := t.results.Fields()
	if tile != nil {
		fields = append(fields, render.Field{Label: "Map", Value: tile.URL})
	} else if snap.Placeholder != "" {
		fields = append(fields, render.Field{Label: "Map", Value: snap.Placeholder})
	}
	err := render.Text(out, fields)
	if err == nil && tile != nil {
		_, err = fmt.Fprintf(out, "Map data %s\n", t.tiles.Attribution)
	}
	if err == nil {
		_, err = fmt.Fprintln(out)
	}
	if err != nil {
		fmt.Fprintf(errOut, "%s: write failed: %v\n", query, err)
		return false
	}
	return true
}

// markerTile is the tile holding the marker at the current zoom
func (t *tracker) markerTile(snap mapview.Snapshot) *mapview.Tile {
	if snap.Marker == nil || snap.Canvas == nil {
		return nil
	}
	canvas, ok := t.maps.Canvas().(*mapview.TileCanvas)
	if !ok {
		return nil
	}
	tile := canvas.TileAt(snap.Marker.Position, snap.Canvas.Zoom)
	return &tile
}

func (t *tracker) close() {
	t.maps.Close()
}
