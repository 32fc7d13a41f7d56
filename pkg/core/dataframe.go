package core

import (
	"time"
)

// Dataframe is a columnar view over a candle series, used to feed indicator
// calculations without copying per-bar structs around.
type Dataframe struct {
	Symbol string

	Close  Series[float64]
	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Volume Series[float64]

	Time       []time.Time
	LastUpdate time.Time
}

// NewDataframe builds a columnar frame from an ordered candle series
func NewDataframe(symbol string, candles []Candle) *Dataframe {
	df := &Dataframe{
		Symbol: symbol,
		Close:  make(Series[float64], 0, len(candles)),
		Open:   make(Series[float64], 0, len(candles)),
		High:   make(Series[float64], 0, len(candles)),
		Low:    make(Series[float64], 0, len(candles)),
		Volume: make(Series[float64], 0, len(candles)),
		Time:   make([]time.Time, 0, len(candles)),
	}

	for _, c := range candles {
		df.Close = append(df.Close, c.Close)
		df.Open = append(df.Open, c.Open)
		df.High = append(df.High, c.High)
		df.Low = append(df.Low, c.Low)
		df.Volume = append(df.Volume, c.Volume)
		df.Time = append(df.Time, c.Time.Time())
	}

	if len(df.Time) > 0 {
		df.LastUpdate = df.Time[len(df.Time)-1]
	}

	return df
}

// Sample returns a subset of the dataframe with the last 'positions' elements
func (df Dataframe) Sample(positions int) Dataframe {
	size := len(df.Time)
	start := size - positions

	// Return the entire dataframe if requested sample is larger than dataframe
	if start <= 0 {
		return df
	}

	return Dataframe{
		Symbol:     df.Symbol,
		Close:      df.Close.LastValues(positions),
		Open:       df.Open.LastValues(positions),
		High:       df.High.LastValues(positions),
		Low:        df.Low.LastValues(positions),
		Volume:     df.Volume.LastValues(positions),
		Time:       df.Time[start:],
		LastUpdate: df.LastUpdate,
	}
}
