package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/internal/polymarket"
	"weathertrader/internal/repository"
	"weathertrader/types"
)

// PriceFetcher is the slice of the Polymarket client the market
// backfill needs.
type PriceFetcher interface {
	FetchPriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) ([]polymarket.PricePoint, error)
}

// HourlyFetcher is the slice of the weather archive client the weather
// backfill needs.
type HourlyFetcher interface {
	FetchHourly(ctx context.Context, location string, lat, lon float64, start, end time.Time) ([]types.WeatherSnapshot, error)
}

// MarketSource maps one CLOB token onto the (market, outcome) pair it
// trades as.
type MarketSource struct {
	MarketID string
	Outcome  string
	TokenID  string
}

// Location names a coordinate pair for the weather archive.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// MarketHistory backfills the price series for each source into the
// store. Prices outside [0, 1] are counted and skipped, like bad CSV
// rows. The CLOB reports no volume for history samples, so volume is
// stored as zero.
func MarketHistory(ctx context.Context, db *repository.Database, fetcher PriceFetcher, sources []MarketSource, start, end time.Time, fidelityMinutes int) (Report, error) {
	var report Report
	for _, src := range sources {
		points, err := fetcher.FetchPriceHistory(ctx, src.TokenID, start, end, fidelityMinutes)
		if err != nil {
			return report, fmt.Errorf("ingest.MarketHistory %s:%s: %w", src.MarketID, src.Outcome, err)
		}

		snaps := make([]types.MarketSnapshot, 0, len(points))
		for _, pt := range points {
			report.Rows++
			prob := decimal.NewFromFloat(pt.Price)
			if prob.IsNegative() || prob.GreaterThan(decimal.NewFromInt(1)) {
				report.Skipped++
				slog.Debug("skipping price point",
					"market", src.MarketID, "outcome", src.Outcome, "price", pt.Price)
				continue
			}
			snaps = append(snaps, types.MarketSnapshot{
				Timestamp:   pt.Time,
				MarketID:    src.MarketID,
				Outcome:     src.Outcome,
				Probability: prob,
			})
		}

		if err := db.SaveMarketSnapshots(ctx, snaps); err != nil {
			return report, err
		}
		report.Loaded += len(snaps)
	}
	return report, nil
}

// WeatherHistory backfills hourly readings for each location into the
// store.
func WeatherHistory(ctx context.Context, db *repository.Database, fetcher HourlyFetcher, locations []Location, start, end time.Time) (Report, error) {
	var report Report
	for _, loc := range locations {
		snaps, err := fetcher.FetchHourly(ctx, loc.Name, loc.Latitude, loc.Longitude, start, end)
		if err != nil {
			return report, fmt.Errorf("ingest.WeatherHistory %s: %w", loc.Name, err)
		}
		report.Rows += len(snaps)

		if err := db.SaveWeatherSnapshots(ctx, snaps); err != nil {
			return report, err
		}
		report.Loaded += len(snaps)
	}
	return report, nil
}
