package series

import (
	"testing"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/stretchr/testify/require"
)

func ts(v int64) core.Timestamp { return core.Timestamp(v) }

func tsPtr(v int64) *core.Timestamp {
	t := core.Timestamp(v)
	return &t
}

func TestLastAtOrBefore_Empty(t *testing.T) {
	_, ok := LastAtOrBefore(nil, ts(1000))
	require.False(t, ok)
}

func TestLastAtOrBefore_BeforeFirstReturnsFirst(t *testing.T) {
	points := []core.EquityPoint{
		{Time: ts(60000), Equity: 1000},
		{Time: ts(120000), Equity: 1050},
	}

	p, ok := LastAtOrBefore(points, ts(0))
	require.True(t, ok)
	require.Equal(t, 1000.0, p.Equity)
}

func TestLastAtOrBefore_Lookup(t *testing.T) {
	points := []core.EquityPoint{
		{Time: ts(0), Equity: 1000},
		{Time: ts(120000), Equity: 1050},
	}

	tt := []struct {
		name string
		at   int64
		want float64
	}{
		{"between samples", 60000, 1000},
		{"exact sample", 120000, 1050},
		{"after last", 500000, 1050},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := LastAtOrBefore(points, ts(tc.at))
			require.True(t, ok)
			require.Equal(t, tc.want, p.Equity)
		})
	}
}

func TestOpenTradesAt_OpenInterval(t *testing.T) {
	trades := []core.Trade{
		{ID: 1, EntryTime: ts(0), ExitTime: tsPtr(120000), Profit: 50},
	}

	// Exit instant itself is already closed
	require.Empty(t, OpenTradesAt(trades, ts(120000)))

	// One tick earlier the trade is still open
	open := OpenTradesAt(trades, ts(119999))
	require.Len(t, open, 1)
	require.Equal(t, int64(1), open[0].ID)
}

func TestOpenTradesAt_SortsUnorderedLedger(t *testing.T) {
	trades := []core.Trade{
		{ID: 2, EntryTime: ts(60000)},
		{ID: 1, EntryTime: ts(0)},
		{ID: 3, EntryTime: ts(120000), ExitTime: tsPtr(130000)},
	}

	open := OpenTradesAt(trades, ts(125000))
	require.Len(t, open, 3)
	require.Equal(t, int64(1), open[0].ID)
	require.Equal(t, int64(2), open[1].ID)
	require.Equal(t, int64(3), open[2].ID)
}

func TestOpenTradesAt_BeforeEntry(t *testing.T) {
	trades := []core.Trade{{ID: 1, EntryTime: ts(60000)}}
	require.Empty(t, OpenTradesAt(trades, ts(0)))
}

func TestClosedProfitAt(t *testing.T) {
	trades := []core.Trade{
		{ID: 1, EntryTime: ts(0), ExitTime: tsPtr(120000), Profit: 50},
		{ID: 2, EntryTime: ts(60000), ExitTime: tsPtr(240000), Profit: -20},
		{ID: 3, EntryTime: ts(90000), Profit: 35}, // still open, never realized
	}

	require.Equal(t, 0.0, ClosedProfitAt(trades, ts(60000)))
	require.Equal(t, 50.0, ClosedProfitAt(trades, ts(120000)))
	require.Equal(t, 30.0, ClosedProfitAt(trades, ts(240000)))
}
