package plot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger/zerolog"
	"github.com/raykavin/backreplay/pkg/playback"
	"github.com/raykavin/backreplay/pkg/replay"
	"github.com/stretchr/testify/require"
)

func testLog(t *testing.T) *zerolog.Adapter {
	t.Helper()
	log, err := zerolog.New("error", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return zerolog.NewAdapter(log.Logger)
}

func testResult() *core.Result {
	return &core.Result{
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Candles: []core.Candle{
			{Time: 120000, Open: 102, High: 106, Low: 101, Close: 105},
			{Time: 1, Open: 100, High: 101, Low: 99, Close: 100},
			{Time: 60000, Open: 100, High: 103, Low: 100, Close: 102},
		},
		Equity: []core.EquityPoint{
			{Time: 1, Equity: 1000},
			{Time: 120000, Equity: 1050},
		},
	}
}

func TestChart_CandleDataSortedAscending(t *testing.T) {
	chart, err := NewChart(testLog(t))
	require.NoError(t, err)

	result := testResult()
	chart.SetResult(result, replay.New(testLog(t), result))

	server := httptest.NewServer(chart.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload struct {
		Symbol  string   `json:"symbol"`
		Candles []Candle `json:"candles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	require.Equal(t, "BTCUSDT", payload.Symbol)
	require.Len(t, payload.Candles, 3)
	for i := 1; i < len(payload.Candles); i++ {
		require.Less(t, payload.Candles[i-1].Time, payload.Candles[i].Time)
	}
}

func TestChart_SetResultIdentityCheck(t *testing.T) {
	chart, err := NewChart(testLog(t))
	require.NoError(t, err)

	result := testResult()
	reconstructor := replay.New(testLog(t), result)

	chart.SetResult(result, reconstructor)
	first := chart.lastUpdate

	// The same reference must not trigger a second push
	chart.SetResult(result, reconstructor)
	require.Equal(t, first, chart.lastUpdate)

	// A new reference does, even when contents are equal
	other := testResult()
	chart.SetResult(other, replay.New(testLog(t), other))
	require.NotEqual(t, first, chart.lastUpdate)
}

type fakeIndicator struct {
	name    string
	minBars int
	metrics []IndicatorMetric
}

func (f *fakeIndicator) Name() string               { return f.name }
func (f *fakeIndicator) Overlay() bool              { return true }
func (f *fakeIndicator) Warmup() int                { return f.minBars }
func (f *fakeIndicator) Metrics() []IndicatorMetric { return f.metrics }

func (f *fakeIndicator) Load(df *core.Dataframe) {
	f.metrics = nil
	if len(df.Time) < f.minBars {
		return
	}
	f.metrics = []IndicatorMetric{{Color: "#fff", Style: "line", Values: df.Close, Time: df.Time}}
}

func TestChart_StaleOverlayRemoved(t *testing.T) {
	indicator := &fakeIndicator{name: "test", minBars: 3}
	chart, err := NewChart(testLog(t), WithIndicators(indicator))
	require.NoError(t, err)

	// Three bars: overlay is produced
	result := testResult()
	chart.SetResult(result, replay.New(testLog(t), result))
	require.Equal(t, 1, chart.overlayIDs.Length())

	// A shorter window drops below the indicator warm-up: the overlay id
	// disappears and must be reported as removed
	short := &core.Result{
		Symbol:  "BTCUSDT",
		Candles: []core.Candle{{Time: 1, Open: 100, High: 101, Low: 99, Close: 100}},
	}
	chart.Lock()
	chart.result = short
	chart.dataframe = core.NewDataframe(short.Symbol, short.Candles)
	removed := chart.syncOverlayIDsLocked(chart.overlaysLocked())
	chart.Unlock()

	require.Equal(t, []string{"test"}, removed)
	require.Zero(t, chart.overlayIDs.Length())
}

func TestChart_PlaybackEndpoint(t *testing.T) {
	controller := playback.NewController(testLog(t), playback.WithSpeed(time.Hour))
	controller.Load(10)

	chart, err := NewChart(testLog(t), WithController(controller))
	require.NoError(t, err)

	result := testResult()
	chart.SetResult(result, replay.New(testLog(t), result))

	server := httptest.NewServer(chart.Handler())
	defer server.Close()

	post := func(query string) playbackStatus {
		resp, err := http.Post(server.URL+"/playback?"+query, "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status playbackStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		return status
	}

	status := post("action=scrub&index=4")
	require.Equal(t, 4, status.Index)
	require.False(t, status.Playing)

	status = post("action=step&delta=1")
	require.Equal(t, 5, status.Index)

	status = post("action=speed&ms=100")
	require.Equal(t, int64(100), status.SpeedMs)

	// Unknown actions and bad parameters are rejected
	resp, err := http.Post(server.URL+"/playback?action=warp", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// GET is not allowed
	resp, err = http.Get(server.URL + "/playback?action=play")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChart_SnapshotEndpoint(t *testing.T) {
	controller := playback.NewController(testLog(t))
	result := testResult()
	result.Sanitize(testLog(t))
	controller.Load(len(result.Candles))
	controller.Scrub(2)

	chart, err := NewChart(testLog(t), WithController(controller))
	require.NoError(t, err)
	chart.SetResult(result, replay.New(testLog(t), result))

	server := httptest.NewServer(chart.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot replay.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Equal(t, 2, snapshot.Index)
	require.Equal(t, 1050.0, snapshot.Equity)
}
