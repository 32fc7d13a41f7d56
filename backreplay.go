package backreplay

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger"
	"github.com/raykavin/backreplay/pkg/metric"
	"github.com/raykavin/backreplay/pkg/playback"
	"github.com/raykavin/backreplay/pkg/plot"
	"github.com/raykavin/backreplay/pkg/replay"
	"github.com/raykavin/backreplay/pkg/storage"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
)

const defaultDatabase = "backreplay.db"

// DefaultLog is the logger used when no logger option is given.
// It is configured from environment variables, see init.go.
var DefaultLog logger.Logger

// Session ties one backtest result to a playback controller and a chart
// server. Loading a new result rewires all three. The mutex guards the
// result/reconstructor pair: tick consumers read it concurrently with
// SetResult, and must never observe one without the other.
type Session struct {
	mu            sync.Mutex
	log           logger.Logger
	storage       core.ResultStorage
	controller    *playback.Controller
	chart         *plot.Chart
	reconstructor *replay.Reconstructor
	result        *core.Result

	chartOptions    []plot.Option
	speed           time.Duration
	startingBalance float64
}

// Option is a functional option for configuring a Session
type Option func(*Session)

// WithStorage sets the result storage, by default a local file called backreplay.db
func WithStorage(storage core.ResultStorage) Option {
	return func(s *Session) {
		s.storage = storage
	}
}

// WithLog replaces the default logger
func WithLog(log logger.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithLogLevel sets the log level on the session logger
func WithLogLevel(level logger.Level) Option {
	return func(s *Session) {
		s.log.SetLevel(level)
	}
}

// WithSpeed sets the initial playback interval
func WithSpeed(speed time.Duration) Option {
	return func(s *Session) {
		s.speed = speed
	}
}

// WithStartingBalance sets the fallback starting balance for runs that do
// not carry one of their own
func WithStartingBalance(balance float64) Option {
	return func(s *Session) {
		s.startingBalance = balance
	}
}

// WithChartOptions forwards options to the chart server
func WithChartOptions(options ...plot.Option) Option {
	return func(s *Session) {
		s.chartOptions = append(s.chartOptions, options...)
	}
}

// NewSession creates a replay session with a running controller and a chart
// bound to it. The chart server itself is started by Run.
func NewSession(options ...Option) (*Session, error) {
	session := &Session{
		log:   DefaultLog,
		speed: 0,
	}

	for _, option := range options {
		option(session)
	}

	if session.storage == nil {
		store, err := storage.FromFile(defaultDatabase)
		if err != nil {
			return nil, err
		}
		session.storage = store
	}

	controllerOptions := []playback.Option{}
	if session.speed > 0 {
		controllerOptions = append(controllerOptions, playback.WithSpeed(session.speed))
	}
	session.controller = playback.NewController(session.log, controllerOptions...)

	chartOptions := append([]plot.Option{plot.WithController(session.controller)}, session.chartOptions...)
	chart, err := plot.NewChart(session.log, chartOptions...)
	if err != nil {
		return nil, err
	}
	session.chart = chart

	session.controller.Subscribe(session.onIndex)

	return session, nil
}

// SetResult loads a result into the session. Passing the result already
// loaded is a no-op so repeated loads do not reset playback. Playback is
// halted before any session state changes, so a tick from the replaced run
// can never observe a half-committed result/reconstructor pair.
func (s *Session) SetResult(result *core.Result) {
	if result == nil {
		return
	}

	s.mu.Lock()
	if result == s.result {
		s.mu.Unlock()
		return
	}

	s.controller.Pause()

	if result.StartingBalance == 0 {
		result.StartingBalance = s.startingBalance
	}
	result.Sanitize(s.log)

	reconstructor := replay.New(s.log, result)
	s.result = result
	s.reconstructor = reconstructor
	s.mu.Unlock()

	// Load notifies consumers, so it must run outside the session lock
	s.chart.SetResult(result, reconstructor)
	s.controller.Load(len(result.Candles))
}

// LoadResult fetches a stored run by id and loads it into the session
func (s *Session) LoadResult(id string) error {
	result, err := s.storage.Result(id)
	if err != nil {
		return err
	}
	s.SetResult(result)
	return nil
}

// SaveResult persists the currently loaded run
func (s *Session) SaveResult() error {
	result := s.Result()
	if result == nil {
		return core.ErrNoData
	}
	return s.storage.SaveResult(result)
}

// Controller exposes the playback controller for direct transport control
func (s *Session) Controller() *playback.Controller {
	return s.controller
}

// Result returns the currently loaded run, or nil
func (s *Session) Result() *core.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Run starts the chart server and blocks until the context is done or the
// server fails. Cancellation pauses playback and shuts the server down so
// the port is released.
func (s *Session) Run(ctx context.Context) error {
	defer s.controller.Pause()
	return s.chart.Serve(ctx)
}

// onIndex pushes the reconstructed state for each playback position to the
// chart subscribers
func (s *Session) onIndex(index int) {
	s.mu.Lock()
	reconstructor := s.reconstructor
	s.mu.Unlock()

	if reconstructor == nil {
		return
	}

	snapshot, err := reconstructor.At(index)
	if err != nil {
		s.log.WithError(err).Error("replay: snapshot failed")
		return
	}
	s.chart.OnSnapshot(snapshot)
}

// Summary prints trade statistics, the return histogram and bootstrap
// confidence intervals for the loaded run to stdout
func (s *Session) Summary() {
	result := s.Result()
	if result == nil {
		fmt.Println("no result loaded")
		return
	}

	summary := metric.Compute(result)

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Symbol", "Trades", "Win", "Loss", "% Win", "Pr Fact.", "Sharpe", "Max DD", "Profit"})
	table.Append([]string{
		result.Symbol,
		strconv.Itoa(summary.Trades),
		strconv.Itoa(summary.Wins),
		strconv.Itoa(summary.Losses),
		fmt.Sprintf("%.1f %%", summary.WinRate*100),
		fmt.Sprintf("%.3f", summary.ProfitFactor),
		fmt.Sprintf("%.2f", summary.Sharpe),
		fmt.Sprintf("%.1f %%", summary.MaxDrawdown*100),
		fmt.Sprintf("%.2f", summary.NetProfit),
	})
	table.Render()
	fmt.Println(buffer.String())

	if len(summary.Returns) > 0 {
		fmt.Println("------ RETURN -------")
		returnsPercent := make([]float64, len(summary.Returns))
		for i, r := range summary.Returns {
			returnsPercent[i] = r * 100
		}
		hist := histogram.Hist(15, returnsPercent)
		histogram.Fprint(os.Stdout, hist, histogram.Linear(10))
		fmt.Println()
	}

	if len(summary.TradeProfits) > 1 {
		fmt.Println("------ CONFIDENCE INTERVAL (95%) -------")
		interval := metric.Bootstrap(summary.TradeProfits, metric.Mean, 10000, 0.95)
		fmt.Printf("PROFIT/TRADE: %.2f (%.2f ~ %.2f)\n\n", interval.Mean, interval.Lower, interval.Upper)
	}
}
