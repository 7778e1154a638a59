// Package weather holds the reference weather-conditioned strategies.
// Each strategy is a pure function of the visible state plus its own
// immutable, validated parameter struct; none retains state between
// timesteps, which keeps backtest runs deterministic and re-runnable.
package weather

import (
	"weathertrader/internal/engine"
	"weathertrader/types"
)

// readingFor picks the current weather reading for a location. An
// empty location matches the first reading in the slice, which covers
// single-location datasets.
func readingFor(sc engine.StrategyContext, location string) (types.WeatherSnapshot, bool) {
	for _, w := range sc.Weather {
		if location == "" || w.Location == location {
			return w, true
		}
	}
	return types.WeatherSnapshot{}, false
}

// holding reports whether the portfolio has an open long in the
// instrument.
func holding(sc engine.StrategyContext, instrument string) bool {
	pos, ok := sc.Portfolio.Positions[instrument]
	return ok && pos.Quantity.IsPositive()
}
