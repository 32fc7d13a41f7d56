// Package result loads already-computed backtest runs from local files. The
// remote service that computes them is an external collaborator; by the time
// data reaches this package it is a static payload of candles, equity curve
// and an optional trade ledger.
package result

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger"
	"github.com/samber/lo"
)

// Wire shapes of the backtest service. Timestamps arrive as epoch seconds,
// epoch milliseconds or date strings depending on the endpoint; they are
// normalized at decode time by core.Timestamp.
type candlePayload struct {
	Ts     core.Timestamp `json:"ts"`
	Open   float64        `json:"open"`
	High   float64        `json:"high"`
	Low    float64        `json:"low"`
	Close  float64        `json:"close"`
	Volume float64        `json:"volume"`
}

type equityPayload struct {
	Ts     core.Timestamp `json:"ts"`
	Equity float64        `json:"equity"`
}

type tradePayload struct {
	EntryTs    core.Timestamp  `json:"entry_ts"`
	ExitTs     *core.Timestamp `json:"exit_ts"`
	Side       int             `json:"side"`
	EntryPrice float64         `json:"entry_price"`
	ExitPrice  *float64        `json:"exit_price"`
	Qty        float64         `json:"qty"`
	Pnl        float64         `json:"pnl"`
}

type resultPayload struct {
	Symbol          string            `json:"symbol"`
	Interval        string            `json:"interval"`
	StartingBalance float64           `json:"starting_balance"`
	Candles         []json.RawMessage `json:"candles"`
	EquityCurve     []json.RawMessage `json:"equity_curve"`
	Trades          []json.RawMessage `json:"trades"`
}

// FromJSON decodes one backtest run. Entries with malformed timestamps are
// dropped with a warning instead of failing the whole load, so one corrupt
// row cannot take the playback view down.
func FromJSON(log logger.Logger, r io.Reader) (*core.Result, error) {
	var payload resultPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode backtest result: %w", err)
	}

	result := &core.Result{
		Symbol:          payload.Symbol,
		Timeframe:       payload.Interval,
		StartingBalance: payload.StartingBalance,
		Candles:         make([]core.Candle, 0, len(payload.Candles)),
	}

	result.Candles = lo.Map(decodeRows[candlePayload](log, payload.Candles, "candle"),
		func(p candlePayload, _ int) core.Candle {
			return core.Candle{
				Time:   p.Ts,
				Open:   p.Open,
				High:   p.High,
				Low:    p.Low,
				Close:  p.Close,
				Volume: p.Volume,
			}
		})

	result.Equity = lo.Map(decodeRows[equityPayload](log, payload.EquityCurve, "equity point"),
		func(p equityPayload, _ int) core.EquityPoint {
			return core.EquityPoint{Time: p.Ts, Equity: p.Equity}
		})

	result.Trades = lo.Map(decodeRows[tradePayload](log, payload.Trades, "trade"),
		func(p tradePayload, i int) core.Trade {
			return core.Trade{
				ID:         int64(i + 1),
				Symbol:     payload.Symbol,
				Side:       sideFromInt(p.Side),
				EntryTime:  p.EntryTs,
				ExitTime:   p.ExitTs,
				EntryPrice: p.EntryPrice,
				ExitPrice:  p.ExitPrice,
				Quantity:   p.Qty,
				Profit:     p.Pnl,
			}
		})

	result.Sanitize(log)
	return result, nil
}

// FromJSONFile loads a backtest run from a file on disk
func FromJSONFile(log logger.Logger, path string) (*core.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}
	defer f.Close()

	return FromJSON(log, f)
}

// decodeRows decodes each raw row independently so malformed rows are
// skipped, not propagated.
func decodeRows[T any](log logger.Logger, rows []json.RawMessage, kind string) []T {
	decoded := make([]T, 0, len(rows))
	for i, raw := range rows {
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			log.Warnf("dropping malformed %s at position %d: %v", kind, i, err)
			continue
		}
		decoded = append(decoded, row)
	}
	return decoded
}

// The backtest service encodes sides as +1 long / -1 short
func sideFromInt(side int) core.Side {
	if side < 0 {
		return core.SideShort
	}
	return core.SideLong
}
