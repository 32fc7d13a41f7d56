package storage

import (
	"testing"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/stretchr/testify/require"
)

func sampleResult(symbol, timeframe string) *core.Result {
	return &core.Result{
		Symbol:          symbol,
		Timeframe:       timeframe,
		StartingBalance: 1000,
		Candles: []core.Candle{
			{Time: 1700000000000, Open: 100, High: 102, Low: 99, Close: 101, Volume: 10},
		},
		Equity: []core.EquityPoint{
			{Time: 1700000000000, Equity: 1000},
		},
	}
}

func TestBuntStorage_SaveAndLoad(t *testing.T) {
	store, err := FromMemory()
	require.NoError(t, err)

	result := sampleResult("BTCUSDT", "1m")
	require.NoError(t, store.SaveResult(result))
	require.NotEmpty(t, result.ID)
	require.False(t, result.CreatedAt.IsZero())

	loaded, err := store.Result(result.ID)
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", loaded.Symbol)
	require.Len(t, loaded.Candles, 1)
	require.Equal(t, core.Timestamp(1700000000000), loaded.Candles[0].Time)
}

func TestBuntStorage_NotFound(t *testing.T) {
	store, err := FromMemory()
	require.NoError(t, err)

	_, err = store.Result("missing")
	require.Error(t, err)
}

func TestBuntStorage_Filters(t *testing.T) {
	store, err := FromMemory()
	require.NoError(t, err)

	require.NoError(t, store.SaveResult(sampleResult("BTCUSDT", "1m")))
	require.NoError(t, store.SaveResult(sampleResult("ETHUSDT", "1m")))
	require.NoError(t, store.SaveResult(sampleResult("BTCUSDT", "1h")))

	all, err := store.Results()
	require.NoError(t, err)
	require.Len(t, all, 3)

	btc, err := store.Results(core.WithSymbol("BTCUSDT"))
	require.NoError(t, err)
	require.Len(t, btc, 2)

	btcHourly, err := store.Results(core.WithSymbol("BTCUSDT"), core.WithTimeframe("1h"))
	require.NoError(t, err)
	require.Len(t, btcHourly, 1)
}

func TestBuntStorage_UpdateKeepsID(t *testing.T) {
	store, err := FromMemory()
	require.NoError(t, err)

	result := sampleResult("BTCUSDT", "1m")
	require.NoError(t, store.SaveResult(result))
	id := result.ID

	result.StartingBalance = 2000
	require.NoError(t, store.SaveResult(result))
	require.Equal(t, id, result.ID)

	loaded, err := store.Result(id)
	require.NoError(t, err)
	require.Equal(t, 2000.0, loaded.StartingBalance)
}
