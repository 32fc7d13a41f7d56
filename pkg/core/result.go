package core

import (
	"math"
	"sort"
	"time"

	"github.com/raykavin/backreplay/pkg/logger"
)

// EquityPoint is one sample of account equity at a backtest step boundary.
// The equity curve may have a different sample count than the candle series.
type EquityPoint struct {
	Time   Timestamp `json:"time"`
	Equity float64   `json:"equity"`
}

// Result holds the three series produced by one backtest run. All series are
// replaced together; consumers detect replacement by pointer identity, never
// by deep comparison.
type Result struct {
	ID              string        `json:"id"`
	Symbol          string        `json:"symbol"`
	Timeframe       string        `json:"timeframe"`
	StartingBalance float64       `json:"starting_balance"`
	CreatedAt       time.Time     `json:"created_at"`
	Candles         []Candle      `json:"candles"`
	Equity          []EquityPoint `json:"equity"`
	Trades          []Trade       `json:"trades,omitempty"`
}

// HasLedger reports whether an explicit trade ledger was returned for the run
func (r *Result) HasLedger() bool { return len(r.Trades) > 0 }

// IsEmpty reports whether there is nothing to replay
func (r *Result) IsEmpty() bool { return len(r.Candles) == 0 && len(r.Equity) == 0 }

// Sanitize drops entries the replay engine cannot work with and restores the
// ascending ordering both the aligner and the chart require. Malformed rows
// are skipped with a warning rather than propagated.
func (r *Result) Sanitize(log logger.Logger) {
	candles := r.Candles[:0]
	for _, c := range r.Candles {
		if c.Time.IsZero() || !isFinite(c.Open, c.High, c.Low, c.Close) {
			log.Warnf("dropping malformed candle at %v", c.Time)
			continue
		}
		candles = append(candles, c)
	}
	r.Candles = candles

	points := r.Equity[:0]
	for _, p := range r.Equity {
		if p.Time.IsZero() || !isFinite(p.Equity) {
			log.Warnf("dropping malformed equity point at %v", p.Time)
			continue
		}
		points = append(points, p)
	}
	r.Equity = points

	trades := r.Trades[:0]
	for _, t := range r.Trades {
		if t.EntryTime.IsZero() || !isFinite(t.EntryPrice, t.Profit) {
			log.Warnf("dropping malformed trade %d", t.ID)
			continue
		}
		trades = append(trades, t)
	}
	r.Trades = trades

	sort.SliceStable(r.Candles, func(i, j int) bool { return r.Candles[i].Time < r.Candles[j].Time })
	sort.SliceStable(r.Equity, func(i, j int) bool { return r.Equity[i].Time < r.Equity[j].Time })
}

func isFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ResultFilter defines a function type for filtering stored results
type ResultFilter func(Result) bool

// WithSymbol keeps results for the given trading symbol
func WithSymbol(symbol string) ResultFilter {
	return func(result Result) bool {
		return result.Symbol == symbol
	}
}

// WithTimeframe keeps results computed on the given timeframe
func WithTimeframe(timeframe string) ResultFilter {
	return func(result Result) bool {
		return result.Timeframe == timeframe
	}
}

// ResultStorage defines the interface for backtest result persistence
type ResultStorage interface {
	// SaveResult stores a backtest run, assigning an ID when absent
	SaveResult(result *Result) error

	// Result retrieves a single run by ID
	Result(id string) (*Result, error)

	// Results retrieves stored runs matching all provided filters
	Results(filters ...ResultFilter) ([]*Result, error)
}
