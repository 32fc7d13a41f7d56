// Package series answers cross-series lookups over canonically timestamped
// data: "most recent value at or before T" and "which trades contain T".
package series

import (
	"sort"

	"github.com/raykavin/backreplay/pkg/core"
)

// LastAtOrBefore returns the latest equity sample whose time is at or before
// the given instant. When the instant precedes the first sample the first
// sample is returned, so playback before any data exists shows the earliest
// known equity. The second return value is false only for an empty series.
func LastAtOrBefore(points []core.EquityPoint, at core.Timestamp) (core.EquityPoint, bool) {
	if len(points) == 0 {
		return core.EquityPoint{}, false
	}

	i := sort.Search(len(points), func(i int) bool {
		return points[i].Time > at
	})

	if i == 0 {
		return points[0], true
	}
	return points[i-1], true
}

// CandleAtOrBefore is LastAtOrBefore over the candle series.
func CandleAtOrBefore(candles []core.Candle, at core.Timestamp) (core.Candle, bool) {
	if len(candles) == 0 {
		return core.Candle{}, false
	}

	i := sort.Search(len(candles), func(i int) bool {
		return candles[i].Time > at
	})

	if i == 0 {
		return candles[0], true
	}
	return candles[i-1], true
}

// OpenTradesAt returns every trade active at the given instant, ascending by
// entry time for deterministic display. The ledger is not required to be
// sorted; a copy is ordered here. Open-interval semantics: a trade whose exit
// equals the instant is already closed.
func OpenTradesAt(trades []core.Trade, at core.Timestamp) []core.Trade {
	open := make([]core.Trade, 0)
	for _, t := range trades {
		if t.OpenAt(at) {
			open = append(open, t)
		}
	}

	sort.SliceStable(open, func(i, j int) bool {
		return open[i].EntryTime < open[j].EntryTime
	})

	return open
}

// ClosedProfitAt sums the realized profit of every trade whose exit is at or
// before the given instant.
func ClosedProfitAt(trades []core.Trade, at core.Timestamp) float64 {
	var total float64
	for _, t := range trades {
		if t.ClosedBy(at) {
			total += t.Profit
		}
	}
	return total
}
