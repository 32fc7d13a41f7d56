// Package metric computes display statistics for a finished backtest run.
// Nothing here feeds back into the replay engine; these are summaries of the
// series the engine plays back.
package metric

import (
	"math"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the aggregate statistics of one run
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor float64
	NetProfit    float64
	Sharpe       float64
	MaxDrawdown  float64
	Returns      []float64 // per-sample equity returns
	TradeProfits []float64
}

// Compute derives the summary from the trade ledger and equity curve.
// Ledger statistics are zero when the run carries no explicit ledger.
func Compute(result *core.Result) Summary {
	summary := Summary{
		TradeProfits: lo.Map(result.Trades, func(t core.Trade, _ int) float64 { return t.Profit }),
		Returns:      equityReturns(result.Equity),
	}

	summary.Trades = len(result.Trades)
	summary.NetProfit = lo.Sum(summary.TradeProfits)

	var grossProfit, grossLoss float64
	for _, profit := range summary.TradeProfits {
		if profit > 0 {
			summary.Wins++
			grossProfit += profit
		} else if profit < 0 {
			summary.Losses++
			grossLoss += -profit
		}
	}

	if summary.Trades > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.Trades)
	}
	if grossLoss > 0 {
		summary.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		summary.ProfitFactor = math.Inf(1)
	}

	summary.Sharpe = sharpe(summary.Returns)
	summary.MaxDrawdown = maxDrawdown(result.Equity)

	return summary
}

// equityReturns computes percentage changes between consecutive samples
func equityReturns(equity []core.EquityPoint) []float64 {
	returns := make([]float64, 0)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	return returns
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(float64(len(returns)))
}

// maxDrawdown returns the largest peak-to-trough equity loss as a fraction
func maxDrawdown(equity []core.EquityPoint) float64 {
	var peak, worst float64
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			drawdown := (peak - point.Equity) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}
	return worst
}
