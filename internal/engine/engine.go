package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"weathertrader/types"
)

// Engine drives the time-stepped simulation for one strategy over one
// configured window. It holds no per-run state, so a single Engine is
// safe to share across concurrent runs (the optimizer relies on this);
// every run allocates its own portfolio, history buffers and equity
// curve.
type Engine struct {
	provider     DataProvider
	showProgress bool
}

type Option func(*Engine)

// WithProgress renders a progress bar during the run. Interactive CLI
// use only; sweeps leave it off.
func WithProgress() Option {
	return func(e *Engine) { e.showProgress = true }
}

func NewEngine(provider DataProvider, opts ...Option) *Engine {
	e := &Engine{provider: provider}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one backtest and returns its result. It fails with
// InvalidConfigErr on a malformed config, InsufficientDataErr when the
// provider has nothing for the window, and a StrategyError when the
// strategy fails mid-run. No partial result is ever produced.
func (e *Engine) Run(ctx context.Context, strat Strategy, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slices, err := e.provider.Slices(ctx, cfg.Start, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("load slices: %w", err)
	}
	if len(slices) == 0 {
		return nil, InsufficientDataErr
	}

	var bar *progressbar.ProgressBar
	if e.showProgress {
		bar = initProgressBar(len(slices))
	}

	port := newPortfolio(cfg.InitialCapital, cfg.AllowShort)
	equity := make([]types.EquityPoint, 0, len(slices))
	marketHistory := make(map[string][]types.MarketSnapshot)
	var weatherHistory []types.WeatherSnapshot

	for _, slice := range slices {
		// History grows before signal generation so the strategy sees
		// data up to and including the current timestamp, never past
		// it.
		prices := make(map[string]decimal.Decimal, len(slice.Markets))
		for _, m := range slice.Markets {
			inst := m.Instrument()
			marketHistory[inst] = append(marketHistory[inst], m)
			prices[inst] = m.Probability
		}
		weatherHistory = append(weatherHistory, slice.Weather...)

		sc := StrategyContext{
			Time:           slice.Time,
			Markets:        slice.Markets,
			Weather:        slice.Weather,
			MarketHistory:  marketHistory,
			WeatherHistory: weatherHistory,
			Portfolio:      port.snapshot(slice.Time),
		}

		signals, err := strat.GenerateSignals(sc)
		if err != nil {
			return nil, &StrategyError{Strategy: strat.Name(), Time: slice.Time, Err: err}
		}

		// Fills apply in generation order; a conflicting buy+sell pair
		// for one instrument executes sequentially, no netting.
		for _, signal := range signals {
			price, ok := prices[signal.Instrument]
			if !ok {
				slog.Debug("signal for instrument with no quote this step",
					"instrument", signal.Instrument, "time", slice.Time)
				continue
			}
			trade := fill(signal, price, port, cfg, slice.Time)
			if trade == nil {
				slog.Debug("fill rejected",
					"instrument", signal.Instrument, "side", signal.Side, "time", slice.Time)
				continue
			}
			if err := port.applyFill(*trade); err != nil {
				return nil, fmt.Errorf("apply fill at %s: %w", slice.Time, err)
			}
		}

		port.updateMarks(prices)
		equity = append(equity, types.EquityPoint{
			Time:  slice.Time,
			Value: port.markToMarket(prices),
		})

		if bar != nil {
			bar.Add(1)
		}
	}

	result := summarize(equity, port.trades, cfg)
	slog.Info("backtest complete",
		"strategy", strat.Name(),
		"steps", len(slices),
		"trades", result.TotalTrades,
		"total_return", result.TotalReturn,
	)
	return result, nil
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
