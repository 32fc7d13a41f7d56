package result

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func testLog(t *testing.T) *zerolog.Adapter {
	t.Helper()
	log, err := zerolog.New("error", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return zerolog.NewAdapter(log.Logger)
}

const samplePayload = `{
	"symbol": "BTCUSDT",
	"interval": "1m",
	"starting_balance": 1000,
	"candles": [
		{"ts": 1700000060, "open": 101, "high": 103, "low": 100, "close": 102, "volume": 5},
		{"ts": 1700000000000, "open": 100, "high": 102, "low": 99, "close": 101, "volume": 10},
		{"ts": "not a date", "open": 1, "high": 1, "low": 1, "close": 1, "volume": 1}
	],
	"equity_curve": [
		{"ts": 1700000000, "equity": 1000},
		{"ts": 1700000060, "equity": 1012.5}
	],
	"trades": [
		{"entry_ts": 1700000000, "exit_ts": 1700000060, "side": 1, "entry_price": 101, "exit_price": 102, "qty": 0.5, "pnl": 12.5},
		{"entry_ts": 1700000060, "side": -1, "entry_price": 102, "qty": 0.25, "pnl": 0}
	]
}`

func TestFromJSON(t *testing.T) {
	result, err := FromJSON(testLog(t), strings.NewReader(samplePayload))
	require.NoError(t, err)

	require.Equal(t, "BTCUSDT", result.Symbol)
	require.Equal(t, "1m", result.Timeframe)
	require.Equal(t, 1000.0, result.StartingBalance)

	// The malformed candle is dropped, the rest normalized and re-sorted:
	// both seconds and milliseconds timestamps land on the same scale
	require.Len(t, result.Candles, 2)
	require.Equal(t, core.Timestamp(1700000000000), result.Candles[0].Time)
	require.Equal(t, core.Timestamp(1700000060000), result.Candles[1].Time)

	require.Len(t, result.Equity, 2)
	require.Equal(t, 1012.5, result.Equity[1].Equity)

	require.Len(t, result.Trades, 2)
	require.Equal(t, core.SideLong, result.Trades[0].Side)
	require.NotNil(t, result.Trades[0].ExitTime)
	require.Equal(t, core.Timestamp(1700000060000), *result.Trades[0].ExitTime)
	require.Equal(t, core.SideShort, result.Trades[1].Side)
	require.True(t, result.Trades[1].IsOpen())
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON(testLog(t), strings.NewReader("{broken"))
	require.Error(t, err)
}

func TestFromJSON_EmptyRun(t *testing.T) {
	result, err := FromJSON(testLog(t), strings.NewReader(`{"symbol": "ETHUSDT", "interval": "1h"}`))
	require.NoError(t, err)
	require.True(t, result.IsEmpty())
}

func TestCandlesFromCSV(t *testing.T) {
	csvContent := strings.Join([]string{
		"time,open,close,low,high,volume",
		"1700000000,100,101,99,102,10",
		"1700000060,101,102,100,103,5",
		"garbage,1,1,1,1,1",
		"1700000240,102,104,101,105,7",
	}, "\n")

	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvContent), 0o644))

	candles, err := CandlesFromCSV(testLog(t), path, "BTCUSDT", "1m")
	require.NoError(t, err)

	// Malformed row skipped, the rest normalized to milliseconds
	require.Len(t, candles, 3)
	require.Equal(t, core.Timestamp(1700000000000), candles[0].Time)
	require.Equal(t, 104.0, candles[2].Close)
}

func TestCandlesFromCSV_NoHeader(t *testing.T) {
	csvContent := "1700000000,100,101,99,102,10\n1700000060,101,102,100,103,5\n"

	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvContent), 0o644))

	candles, err := CandlesFromCSV(testLog(t), path, "BTCUSDT", "1m")
	require.NoError(t, err)
	require.Len(t, candles, 2)
}

func TestCandlesFromCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := CandlesFromCSV(testLog(t), path, "BTCUSDT", "1m")
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestCandlesFromCSV_BadTimeframe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte("1700000000,100,101,99,102,10\n"), 0o644))

	_, err := CandlesFromCSV(testLog(t), path, "BTCUSDT", "never")
	require.Error(t, err)
}
