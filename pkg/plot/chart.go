// Package plot feeds normalized replay data into a persistent browser chart.
// One Chart instance owns the chart handle for the whole session: series are
// created once, replaced wholesale on data change, and overlays whose IDs
// disappear are explicitly removed.
package plot

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger"
	"github.com/raykavin/backreplay/pkg/playback"
	"github.com/raykavin/backreplay/pkg/replay"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

// Chart handles the visualization of one replay session
type Chart struct {
	sync.Mutex
	port          int
	debug         bool
	log           logger.Logger
	result        *core.Result
	reconstructor *replay.Reconstructor
	controller    *playback.Controller
	indicators    []Indicator
	dataframe     *core.Dataframe
	overlayIDs    *set.LinkedHashSetString
	scriptContent string
	indexHTML     *template.Template
	lastUpdate    time.Time
	ws            *WebSocketManager
}

// Option defines a function type for configuring a Chart instance
type Option func(*Chart)

// WithPort sets the HTTP server port
func WithPort(port int) Option {
	return func(chart *Chart) {
		chart.port = port
	}
}

// WithDebug enables debug mode (disables minification)
func WithDebug() Option {
	return func(chart *Chart) {
		chart.debug = true
	}
}

// WithIndicators adds overlay-line indicators to the chart
func WithIndicators(indicators ...Indicator) Option {
	return func(chart *Chart) {
		chart.indicators = indicators
	}
}

// WithController wires the playback controller driven by the HTTP handlers
func WithController(controller *playback.Controller) Option {
	return func(chart *Chart) {
		chart.controller = controller
	}
}

// NewChart creates a new chart instance with the provided options
func NewChart(log logger.Logger, options ...Option) (*Chart, error) {
	chart := &Chart{
		port:       8080,
		log:        log,
		overlayIDs: set.NewLinkedHashSetString(),
	}

	for _, option := range options {
		option(chart)
	}

	chart.ws = NewWebSocketManager(log)

	// Parse chart HTML template
	var err error
	chart.indexHTML, err = template.ParseFS(staticFiles, "assets/chart.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	// Read and transpile chart JavaScript
	chartJS, err := staticFiles.ReadFile("assets/chart.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read chart.js: %w", err)
	}

	transpileChartJS := api.Transform(string(chartJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !chart.debug,
		MinifyIdentifiers: !chart.debug,
		MinifyWhitespace:  !chart.debug,
	})

	if len(transpileChartJS.Errors) > 0 {
		return nil, fmt.Errorf("chart script failed with: %v", transpileChartJS.Errors)
	}

	chart.scriptContent = string(transpileChartJS.Code)

	return chart, nil
}

// SetResult replaces the rendered run. Replacement is detected by pointer
// identity, never by deep comparison. The full candle window, markers and
// overlays are re-pushed; overlays missing from the new update are removed
// from the chart explicitly.
func (c *Chart) SetResult(result *core.Result, reconstructor *replay.Reconstructor) {
	c.Lock()
	defer c.Unlock()

	if c.result == result {
		return
	}

	c.result = result
	c.reconstructor = reconstructor
	c.dataframe = core.NewDataframe(result.Symbol, result.Candles)
	c.lastUpdate = time.Now()

	overlays := c.overlaysLocked()
	removed := c.syncOverlayIDsLocked(overlays)

	for _, id := range removed {
		c.ws.Broadcast(Message{Type: "remove_overlay", Payload: map[string]any{"id": id}})
	}

	c.ws.Broadcast(Message{Type: "series", Payload: map[string]any{
		"symbol":   result.Symbol,
		"candles":  c.candleDataLocked(),
		"markers":  c.markersLocked(),
		"overlays": overlays,
		"equity":   c.equityDataLocked(),
	}})
}

// OnSnapshot pushes the per-cursor account state to connected clients
func (c *Chart) OnSnapshot(snapshot replay.Snapshot) {
	c.Lock()
	c.lastUpdate = time.Now()
	c.Unlock()

	c.ws.Broadcast(Message{Type: "snapshot", Payload: snapshot})
}

// candleDataLocked converts the current window into the chart's native data
// format: normalized times, ascending order, replace-not-append.
func (c *Chart) candleDataLocked() []Candle {
	if c.result == nil {
		return []Candle{}
	}

	candles := make([]Candle, 0, len(c.result.Candles))
	for _, candle := range c.result.Candles {
		if candle.Time.IsZero() {
			continue
		}
		candles = append(candles, Candle{
			Time:   candle.Time,
			Open:   candle.Open,
			Close:  candle.Close,
			High:   candle.High,
			Low:    candle.Low,
			Volume: candle.Volume,
		})
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles
}

// equityDataLocked returns the equity curve in chart format
func (c *Chart) equityDataLocked() []AssetValue {
	if c.result == nil {
		return []AssetValue{}
	}

	values := make([]AssetValue, 0, len(c.result.Equity))
	for _, point := range c.result.Equity {
		if point.Time.IsZero() {
			continue
		}
		values = append(values, AssetValue{Time: point.Time, Value: point.Equity})
	}

	sort.SliceStable(values, func(i, j int) bool { return values[i].Time < values[j].Time })
	return values
}

// markersLocked returns the trade markers for the current run
func (c *Chart) markersLocked() []Marker {
	if c.reconstructor == nil {
		return []Marker{}
	}

	source := c.reconstructor.Markers()
	markers := make([]Marker, 0, len(source))
	for _, m := range source {
		markers = append(markers, Marker{
			Time:  m.Time,
			Price: m.Price,
			Side:  m.Side,
			Label: m.Label,
		})
	}

	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Time < markers[j].Time })
	return markers
}

// syncOverlayIDsLocked diffs the live overlay IDs against the new update and
// returns the IDs that must be removed from the chart.
func (c *Chart) syncOverlayIDsLocked(overlays []Overlay) []string {
	next := set.NewLinkedHashSetString()
	present := make(map[string]bool, len(overlays))
	for _, overlay := range overlays {
		next.Add(overlay.ID)
		present[overlay.ID] = true
	}

	removed := make([]string, 0)
	for id := range c.overlayIDs.Iter() {
		if !present[id] {
			removed = append(removed, id)
		}
	}

	c.overlayIDs = next
	return removed
}

// statusPayload converts the controller status to its JSON shape
func (c *Chart) statusPayload() playbackStatus {
	if c.controller == nil {
		return playbackStatus{}
	}

	status := c.controller.Status()
	return playbackStatus{
		Index:   status.Index,
		Total:   status.Total,
		Playing: status.Playing,
		SpeedMs: status.Speed.Milliseconds(),
	}
}

// Start initializes the HTTP server for the chart and blocks until it fails
func (c *Chart) Start() error {
	return c.Serve(context.Background())
}

// Serve runs the HTTP server until the context is done, then shuts it down
// gracefully so the port is released.
func (c *Chart) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.port),
		Handler: c.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		fmt.Printf("Chart available at http://localhost:%d\n", c.port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Handler returns the chart's HTTP routes
func (c *Chart) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/assets/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("/assets/chart.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, c.scriptContent)
	})

	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("/data", c.handleData)
	mux.HandleFunc("/snapshot", c.handleSnapshot)
	mux.HandleFunc("/playback", c.handlePlayback)
	mux.HandleFunc("/history", c.handleTradingHistoryData)
	mux.HandleFunc("/ws", c.ws.HandleWebSocket)
	mux.HandleFunc("/", c.handleIndex)

	return mux
}
