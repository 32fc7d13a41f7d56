package core

import "fmt"

// Side represents the direction of a trade (LONG or SHORT)
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Trade represents one entry in the backtest trade ledger. A trade with a nil
// ExitTime is still open as of the end of the series.
type Trade struct {
	ID         int64      `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	EntryTime  Timestamp  `json:"entry_time"`
	ExitTime   *Timestamp `json:"exit_time,omitempty"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	Quantity   float64    `json:"quantity"`
	Profit     float64    `json:"profit"`
}

// IsOpen returns true while the trade has no exit
func (t Trade) IsOpen() bool { return t.ExitTime == nil }

// OpenAt reports whether the trade is active at the given instant.
// Open-interval semantics: the exit instant itself is already closed.
func (t Trade) OpenAt(at Timestamp) bool {
	return t.EntryTime <= at && (t.ExitTime == nil || *t.ExitTime > at)
}

// ClosedBy reports whether the trade has realized its profit at the given instant
func (t Trade) ClosedBy(at Timestamp) bool {
	return t.ExitTime != nil && *t.ExitTime <= at
}

// IsLong returns true if the trade is a long position
func (t Trade) IsLong() bool { return t.Side == SideLong }

// IsShort returns true if the trade is a short position
func (t Trade) IsShort() bool { return t.Side == SideShort }

// String returns a human-readable representation of the trade
func (t Trade) String() string {
	state := "OPEN"
	if !t.IsOpen() {
		state = "CLOSED"
	}
	return fmt.Sprintf("[%s] %s %s | ID: %d, %f x $%f (pnl %.2f)",
		state, t.Side, t.Symbol, t.ID, t.Quantity, t.EntryPrice, t.Profit)
}

// Marker is a trade-like chart annotation. When no explicit ledger is
// available it is inferred from equity-curve deltas; inferred markers are
// derived data, recomputed whenever the underlying series change.
type Marker struct {
	Time  Timestamp `json:"time"`
	Price float64   `json:"price"`
	Side  Side      `json:"side"`
	Label string    `json:"label,omitempty"`
}
