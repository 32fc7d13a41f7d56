// Package replay derives the per-cursor view of a backtest run: current
// equity, open positions, realized profit, and chart markers. When the run
// has no explicit trade ledger, discrete trade events are inferred from
// equity-curve deltas as best-effort point markers.
package replay

import (
	"fmt"
	"math"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger"
	"github.com/raykavin/backreplay/pkg/series"
)

// Equity steps smaller than this are floating noise, not trade events
const deltaEpsilon = 1e-9

// Snapshot is the reconstructed account state at one cursor position
type Snapshot struct {
	Index          int            `json:"index"`
	Time           core.Timestamp `json:"time"`
	Price          float64        `json:"price"`
	Equity         float64        `json:"equity"`
	OpenTrades     []core.Trade   `json:"open_trades"`
	RealizedProfit float64        `json:"realized_profit"`
}

// Reconstructor computes snapshots and markers for one backtest result.
// Markers are precomputed once per result; snapshots are cheap per-cursor
// lookups over the aligned series.
type Reconstructor struct {
	log     logger.Logger
	result  *core.Result
	markers []core.Marker
}

// New creates a reconstructor for the given result. The result reference is
// the same one the playback controller advances over; it is never copied.
func New(log logger.Logger, result *core.Result) *Reconstructor {
	r := &Reconstructor{
		log:    log,
		result: result,
	}

	r.markers = r.buildMarkers()
	return r
}

// Result returns the underlying run, for identity checks by callers
func (r *Reconstructor) Result() *core.Result { return r.result }

// At reconstructs the account state at the given cursor index. The index is
// clamped to the reference series; core.ErrNoData is returned when there is
// nothing to replay, so the UI can show an explicit empty state.
func (r *Reconstructor) At(index int) (Snapshot, error) {
	if r.result.IsEmpty() {
		return Snapshot{}, core.ErrNoData
	}

	at, price, index := r.resolveCursor(index)

	snapshot := Snapshot{
		Index:      index,
		Time:       at,
		Price:      price,
		Equity:     r.equityAt(at),
		OpenTrades: make([]core.Trade, 0),
	}

	if r.result.HasLedger() {
		snapshot.OpenTrades = series.OpenTradesAt(r.result.Trades, at)
		snapshot.RealizedProfit = series.ClosedProfitAt(r.result.Trades, at)
	}

	return snapshot, nil
}

// Markers returns the chart markers for the run. With an explicit ledger the
// markers are the trade entries and exits; without one they are inferred from
// equity deltas and carry no entry/exit pairing.
func (r *Reconstructor) Markers() []core.Marker {
	return r.markers
}

// resolveCursor clamps the index and resolves the canonical instant and price
// at that position. Candles are the reference series; the equity curve is the
// fallback when no candles were returned.
func (r *Reconstructor) resolveCursor(index int) (core.Timestamp, float64, int) {
	candles := r.result.Candles

	if len(candles) > 0 {
		index = clamp(index, len(candles)-1)
		c := candles[index]
		return c.Time, c.Close, index
	}

	equity := r.result.Equity
	index = clamp(index, len(equity)-1)
	return equity[index].Time, 0, index
}

// equityAt resolves current equity: aligned lookup, then the last sample,
// then the starting balance.
func (r *Reconstructor) equityAt(at core.Timestamp) float64 {
	equity := r.result.Equity

	if point, ok := series.LastAtOrBefore(equity, at); ok {
		return point.Equity
	}

	if len(equity) > 0 {
		return equity[len(equity)-1].Equity
	}

	return r.result.StartingBalance
}

func (r *Reconstructor) buildMarkers() []core.Marker {
	if r.result.HasLedger() {
		return r.ledgerMarkers()
	}
	return r.inferredMarkers()
}

// ledgerMarkers produces entry and exit markers straight from the trade
// ledger. Inferred markers are suppressed whenever a real ledger exists, to
// avoid double-counting the same events.
func (r *Reconstructor) ledgerMarkers() []core.Marker {
	markers := make([]core.Marker, 0, 2*len(r.result.Trades))

	for _, t := range r.result.Trades {
		markers = append(markers, core.Marker{
			Time:  t.EntryTime,
			Price: t.EntryPrice,
			Side:  t.Side,
			Label: fmt.Sprintf("entry #%d", t.ID),
		})

		if t.ExitTime == nil {
			continue
		}

		exit := core.Marker{
			Time:  *t.ExitTime,
			Side:  t.Side,
			Label: fmt.Sprintf("exit #%d %+.2f", t.ID, t.Profit),
		}
		if t.ExitPrice != nil {
			exit.Price = *t.ExitPrice
		}
		markers = append(markers, exit)
	}

	return markers
}

// inferredMarkers scans consecutive equity pairs for steps larger than the
// noise epsilon and maps each onto the candle bar at the sample's relative
// offset from the start of the candle window. The equity curve may carry
// pre-candle warm-up samples, hence the offset. This is a best-effort
// heuristic: it yields point markers, not open-trade state.
func (r *Reconstructor) inferredMarkers() []core.Marker {
	candles := r.result.Candles
	equity := r.result.Equity

	if len(candles) == 0 || len(equity) < 2 {
		return []core.Marker{}
	}

	offset := len(equity) - len(candles)
	if offset < 0 {
		r.log.Warnf("equity curve shorter than candle window (offset %d), clamping to 0", offset)
		offset = 0
	}

	markers := make([]core.Marker, 0)
	for k := 1; k < len(equity); k++ {
		delta := equity[k].Equity - equity[k-1].Equity
		if math.Abs(delta) <= deltaEpsilon {
			continue
		}

		bar := clamp(k-offset, len(candles)-1)
		side := core.SideLong
		if delta < 0 {
			side = core.SideShort
		}

		markers = append(markers, core.Marker{
			Time:  candles[bar].Time,
			Price: candles[bar].Close,
			Side:  side,
			Label: fmt.Sprintf("%+.2f", delta),
		})
	}

	return markers
}

func clamp(index, last int) int {
	if last < 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > last {
		return last
	}
	return index
}
