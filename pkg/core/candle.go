package core

import (
	"strconv"
)

// Candle represents one OHLCV bar of the reference series.
// Candle slices are ordered ascending by Time with unique time values and are
// replaced wholesale when a new backtest result arrives.
type Candle struct {
	Time   Timestamp `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// GetTime returns the timestamp of the candle
func (c Candle) GetTime() Timestamp { return c.Time }

// GetOpen returns the opening price of the candle
func (c Candle) GetOpen() float64 { return c.Open }

// GetClose returns the closing price of the candle
func (c Candle) GetClose() float64 { return c.Close }

// GetLow returns the lowest price during the candle period
func (c Candle) GetLow() float64 { return c.Low }

// GetHigh returns the highest price during the candle period
func (c Candle) GetHigh() float64 { return c.High }

// GetVolume returns the traded volume during the candle period
func (c Candle) GetVolume() float64 { return c.Volume }

// IsEmpty checks if the candle contains no significant data
func (c Candle) IsEmpty() bool { return c.Time.IsZero() && c.Open == 0 && c.Close == 0 }

// ToSlice converts a candle to a string slice for CSV serialization
// with the specified decimal precision
func (c Candle) ToSlice(precision int) []string {
	return []string{
		strconv.FormatInt(int64(c.Time), 10),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}
