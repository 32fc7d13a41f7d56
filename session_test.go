package backreplay

import (
	"context"
	"testing"
	"time"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/logger/zerolog"
	"github.com/raykavin/backreplay/pkg/plot"
	"github.com/raykavin/backreplay/pkg/storage"
	"github.com/stretchr/testify/require"
)

func testLog(t *testing.T) *zerolog.Adapter {
	t.Helper()
	log, err := zerolog.New("error", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return zerolog.NewAdapter(log.Logger)
}

func testSession(t *testing.T, options ...Option) *Session {
	t.Helper()
	store, err := storage.FromMemory()
	require.NoError(t, err)

	session, err := NewSession(append(options,
		WithStorage(store),
		WithLog(testLog(t)),
	)...)
	require.NoError(t, err)
	return session
}

func runFixture(symbol string, bars int) *core.Result {
	result := &core.Result{
		Symbol:          symbol,
		Timeframe:       "1m",
		StartingBalance: 1000,
	}

	for i := 0; i < bars; i++ {
		ts := core.Timestamp(int64(i+1) * 60000)
		price := 100 + float64(i)
		result.Candles = append(result.Candles, core.Candle{
			Time: ts, Open: price, High: price + 1, Low: price - 1, Close: price,
		})
		result.Equity = append(result.Equity, core.EquityPoint{Time: ts, Equity: 1000 + float64(i)})
	}

	return result
}

func TestSession_SetResultResetsPlayback(t *testing.T) {
	session := testSession(t)

	session.SetResult(runFixture("BTCUSDT", 10))
	session.Controller().Scrub(7)

	session.SetResult(runFixture("ETHUSDT", 5))

	status := session.Controller().Status()
	require.Zero(t, status.Index)
	require.False(t, status.Playing)
	require.Equal(t, 5, status.Total)
	require.Equal(t, "ETHUSDT", session.Result().Symbol)
}

func TestSession_SetResultSameReferenceKeepsProgress(t *testing.T) {
	session := testSession(t)

	result := runFixture("BTCUSDT", 10)
	session.SetResult(result)
	session.Controller().Scrub(4)

	session.SetResult(result)
	require.Equal(t, 4, session.Controller().Index())
}

func TestSession_ReplaceResultMidPlayback(t *testing.T) {
	session := testSession(t, WithSpeed(2*time.Millisecond))

	session.SetResult(runFixture("BTCUSDT", 100))
	session.Controller().Play()

	require.Eventually(t, func() bool {
		return session.Controller().Index() > 0
	}, 2*time.Second, time.Millisecond)

	replacement := runFixture("ETHUSDT", 40)
	session.SetResult(replacement)

	status := session.Controller().Status()
	require.Zero(t, status.Index)
	require.False(t, status.Playing)
	require.Equal(t, 40, status.Total)
	require.Same(t, replacement, session.Result())

	// No tick from the replaced run may advance the new cursor
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, session.Controller().Index())
}

func TestSession_ReplaceResultWhileTicksFire(t *testing.T) {
	session := testSession(t, WithSpeed(time.Millisecond))

	runs := []*core.Result{
		runFixture("BTCUSDT", 60),
		runFixture("ETHUSDT", 30),
	}

	session.SetResult(runs[0])
	session.Controller().Play()

	// Swap the run repeatedly while the tick goroutine is notifying; every
	// snapshot must come from a fully committed result/reconstructor pair.
	for i := 1; i <= 20; i++ {
		time.Sleep(2 * time.Millisecond)
		session.SetResult(runs[i%2])
		session.Controller().Play()
	}

	session.Controller().Pause()
	require.Same(t, runs[0], session.Result())
}

func TestSession_RunStopsOnContextCancel(t *testing.T) {
	session := testSession(t, WithChartOptions(plot.WithPort(0)))
	session.SetResult(runFixture("BTCUSDT", 5))
	session.Controller().Play()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	require.False(t, session.Controller().Status().Playing)
}
