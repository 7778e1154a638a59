package engine

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"weathertrader/types"
)

// summarize computes the full statistics block from a finished equity
// curve and trade log. Pure computation, no side effects; the metric
// groups run in parallel since they are independent.
func summarize(equity []types.EquityPoint, trades []types.Trade, cfg Config) *Result {
	result := &Result{
		Start:          cfg.Start,
		End:            cfg.End,
		InitialCapital: cfg.InitialCapital,
		EquityCurve:    equity,
		Trades:         trades,
		TotalTrades:    len(trades),
		Metrics:        make(map[string]decimal.Decimal),
	}
	if len(equity) > 0 {
		result.FinalValue = equity[len(equity)-1].Value
	} else {
		result.FinalValue = cfg.InitialCapital
	}

	result.TotalReturn = calcTotalReturn(cfg.InitialCapital, result.FinalValue)

	var (
		wg                      sync.WaitGroup
		annualized, vol, sharpe decimal.Decimal
		maxDD                   decimal.Decimal
		winRate, profitFactor   decimal.Decimal
		expectancy, totalFees   decimal.Decimal
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		annualized, vol, sharpe = calcRiskAdjusted(equity, result.TotalReturn, cfg)
	}()
	go func() {
		defer wg.Done()
		maxDD = calcMaxDrawdown(equity)
	}()
	go func() {
		defer wg.Done()
		winRate, profitFactor, expectancy = calcTradeStats(trades)
	}()
	go func() {
		defer wg.Done()
		totalFees = calcTotalFees(trades)
	}()
	wg.Wait()

	result.AnnualizedReturn = annualized
	result.Volatility = vol
	result.SharpeRatio = sharpe
	result.MaxDrawdown = maxDD
	result.WinRate = winRate
	result.TotalFees = totalFees
	result.Metrics["profit_factor"] = profitFactor
	result.Metrics["expectancy"] = expectancy
	return result
}

func calcTotalReturn(initial, final decimal.Decimal) decimal.Decimal {
	if !initial.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return final.Div(initial).Sub(decimal.NewFromInt(1))
}

// calcRiskAdjusted computes annualized return, annualized volatility
// and the Sharpe ratio. Volatility of zero yields a Sharpe of exactly
// zero rather than a division error.
func calcRiskAdjusted(equity []types.EquityPoint, totalReturn decimal.Decimal, cfg Config) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	returns := periodReturns(equity)
	if len(returns) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	ppy := cfg.Frequency.PeriodsPerYear()
	growth := 1.0 + totalReturn.InexactFloat64()
	annualizedFloat := 0.0
	if growth > 0 {
		annualizedFloat = math.Pow(growth, ppy/float64(len(returns))) - 1.0
	}

	volFloat := stddev(returns) * math.Sqrt(ppy)

	sharpeFloat := 0.0
	if volFloat > 0 {
		sharpeFloat = (annualizedFloat - cfg.RiskFreeRate.InexactFloat64()) / volFloat
	}

	return decimal.NewFromFloat(annualizedFloat),
		decimal.NewFromFloat(volFloat),
		decimal.NewFromFloat(sharpeFloat)
}

// calcMaxDrawdown is the largest peak-to-trough decline of the curve,
// as a positive fraction of the peak. A monotonically non-decreasing
// curve has drawdown zero.
func calcMaxDrawdown(equity []types.EquityPoint) decimal.Decimal {
	maxDD := decimal.Zero
	peak := decimal.Zero

	for i, point := range equity {
		if i == 0 || point.Value.GreaterThan(peak) {
			peak = point.Value
			continue
		}
		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(point.Value).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// calcTradeStats derives win rate, profit factor and expectancy from
// closing trades only; opening fills have no realized P&L to score.
func calcTradeStats(trades []types.Trade) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	wins := 0
	closing := 0
	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	netTotal := decimal.Zero

	for _, t := range trades {
		if !t.Closing {
			continue
		}
		closing++
		netTotal = netTotal.Add(t.RealizedPnL)
		switch {
		case t.RealizedPnL.GreaterThan(decimal.Zero):
			wins++
			grossWin = grossWin.Add(t.RealizedPnL)
		case t.RealizedPnL.LessThan(decimal.Zero):
			grossLoss = grossLoss.Add(t.RealizedPnL.Abs())
		}
	}

	if closing == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	n := decimal.NewFromInt(int64(closing))
	winRate := decimal.NewFromInt(int64(wins)).Div(n)

	profitFactor := decimal.Zero
	if grossLoss.GreaterThan(decimal.Zero) {
		profitFactor = grossWin.Div(grossLoss)
	} else if grossWin.GreaterThan(decimal.Zero) {
		profitFactor = grossWin
	}

	return winRate, profitFactor, netTotal.Div(n)
}

func calcTotalFees(trades []types.Trade) decimal.Decimal {
	fees := decimal.Zero
	for _, t := range trades {
		fees = fees.Add(t.Commission)
	}
	return fees
}

func periodReturns(equity []types.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	prev := equity[0].Value
	for _, point := range equity[1:] {
		if prev.GreaterThan(decimal.Zero) {
			returns = append(returns, point.Value.Div(prev).Sub(decimal.NewFromInt(1)).InexactFloat64())
		}
		prev = point.Value
	}
	return returns
}

// stddev is the sample standard deviation; fewer than two observations
// give zero.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var varianceSum float64
	for _, x := range xs {
		diff := x - mean
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(xs)-1))
}
