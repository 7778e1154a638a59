package engine

import (
	"context"
	"time"

	"weathertrader/types"
)

// DataProvider is the only data boundary the engine depends on. The
// returned slices must be ordered by time ascending, pre-joined, and
// immutable; the engine shares them freely across concurrent runs.
type DataProvider interface {
	Slices(ctx context.Context, start, end time.Time) ([]types.TimeSlice, error)
}

// Strategy turns the state visible at one timestep into signals.
// Implementations must be stateless across calls apart from their own
// immutable parameters, so runs stay deterministic and re-runnable.
type Strategy interface {
	Name() string
	GenerateSignals(sc StrategyContext) ([]types.Signal, error)
}

// StrategyContext is everything a strategy may see at the current
// timestep. History slices only ever contain snapshots with timestamps
// at or before Time; future data is never visible.
type StrategyContext struct {
	Time    time.Time
	Markets []types.MarketSnapshot
	Weather []types.WeatherSnapshot

	// Visible history up to and including Time, oldest first.
	MarketHistory  map[string][]types.MarketSnapshot
	WeatherHistory []types.WeatherSnapshot

	Portfolio types.PortfolioView
}

// LastProbability returns the most recent visible probability for an
// instrument, or zero when it has never traded.
func (sc StrategyContext) LastProbability(instrument string) (float64, bool) {
	hist := sc.MarketHistory[instrument]
	if len(hist) == 0 {
		return 0, false
	}
	return hist[len(hist)-1].Probability.InexactFloat64(), true
}
