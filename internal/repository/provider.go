package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"weathertrader/internal/engine"
	"weathertrader/types"
)

// SnapshotProvider adapts the SQLite store to the engine's
// DataProvider boundary: it loads both series for a window once,
// buckets market quotes into timesteps at the configured frequency,
// joins weather by nearest earlier timestamp within MaxSkew, and
// derives the rolling statistics strategies read. All I/O happens
// before the engine loop starts; the returned slices are immutable.
type SnapshotProvider struct {
	db        *Database
	frequency engine.Frequency
	// MaxSkew is how stale a weather reading may be and still join a
	// timestep. Readings dated after the timestep never join it.
	maxSkew  time.Duration
	lookback int
}

func NewSnapshotProvider(db *Database, frequency engine.Frequency, maxSkew time.Duration, lookback int) *SnapshotProvider {
	if lookback < 1 {
		lookback = 1
	}
	return &SnapshotProvider{db: db, frequency: frequency, maxSkew: maxSkew, lookback: lookback}
}

// Slices implements engine.DataProvider.
func (p *SnapshotProvider) Slices(ctx context.Context, start, end time.Time) ([]types.TimeSlice, error) {
	markets, err := p.db.GetMarketSnapshots(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("%w: no market snapshots in [%s, %s]", NoSnapshotsErr,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	// Weather may lead the window by the skew so the first timesteps
	// still join a reading.
	weather, err := p.db.GetWeatherSnapshots(ctx, start.Add(-p.maxSkew), end)
	if err != nil {
		return nil, err
	}

	step := p.frequency.Duration()
	buckets := make(map[time.Time][]types.MarketSnapshot)
	for _, m := range markets {
		bucket := m.Timestamp.Truncate(step)
		buckets[bucket] = append(buckets[bucket], m)
	}

	times := make([]time.Time, 0, len(buckets))
	for t := range buckets {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	joiner := newWeatherJoiner(weather, p.maxSkew, p.lookback)

	slices := make([]types.TimeSlice, 0, len(times))
	for _, t := range times {
		slices = append(slices, types.TimeSlice{
			Time:    t,
			Markets: buckets[t],
			Weather: joiner.join(t),
		})
	}
	return slices, nil
}

// weatherJoiner walks the weather series once across ascending slice
// times, keeping a per-location cursor so the join stays linear.
type weatherJoiner struct {
	byLocation map[string][]types.WeatherSnapshot
	cursor     map[string]int
	locations  []string
	maxSkew    time.Duration
	lookback   int
}

func newWeatherJoiner(weather []types.WeatherSnapshot, maxSkew time.Duration, lookback int) *weatherJoiner {
	byLocation := make(map[string][]types.WeatherSnapshot)
	for _, w := range weather {
		byLocation[w.Location] = append(byLocation[w.Location], w)
	}
	locations := make([]string, 0, len(byLocation))
	for loc := range byLocation {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	return &weatherJoiner{
		byLocation: byLocation,
		cursor:     make(map[string]int, len(byLocation)),
		locations:  locations,
		maxSkew:    maxSkew,
		lookback:   lookback,
	}
}

// join returns, per location, the latest reading at or before t within
// the skew tolerance, with rolling fields derived from the lookback
// window ending at that reading. Future readings never join: the
// engine's no-look-ahead invariant extends through the join.
func (j *weatherJoiner) join(t time.Time) []types.WeatherSnapshot {
	var joined []types.WeatherSnapshot
	for _, loc := range j.locations {
		series := j.byLocation[loc]
		i := j.cursor[loc]
		for i < len(series) && !series[i].Timestamp.After(t) {
			i++
		}
		j.cursor[loc] = i
		if i == 0 {
			continue // nothing at or before t yet
		}
		latest := series[i-1]
		if t.Sub(latest.Timestamp) > j.maxSkew {
			continue // too stale to join
		}
		joined = append(joined, withRollups(latest, series[:i], j.lookback))
	}
	return joined
}

// withRollups fills the derived fields from the last n readings ending
// at the joined one.
func withRollups(latest types.WeatherSnapshot, visible []types.WeatherSnapshot, n int) types.WeatherSnapshot {
	start := len(visible) - n
	if start < 0 {
		start = 0
	}
	window := visible[start:]

	var tempSum, windSum, precipSum float64
	for _, w := range window {
		tempSum += w.TemperatureC
		windSum += w.WindSpeedKph
		precipSum += w.PrecipitationMM
	}
	count := float64(len(window))
	latest.TempMean = tempSum / count
	latest.WindMean = windSum / count
	latest.PrecipTotal = precipSum
	return latest
}
