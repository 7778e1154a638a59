// Package ingest loads historical weather and market CSV exports into
// the snapshot store. Rows that fail to parse are counted and skipped
// rather than aborting the file; the data-quality call is the
// caller's.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/internal/repository"
	"weathertrader/types"
)

// Report summarizes one ingestion pass.
type Report struct {
	Rows    int
	Loaded  int
	Skipped int
}

// WeatherCSV reads rows of
//
//	timestamp,location,temperature_c,humidity,wind_speed_kph,precipitation_mm
//
// with an optional header, and stores them.
func WeatherCSV(ctx context.Context, db *repository.Database, path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("ingest.WeatherCSV: open %q: %w", path, err)
	}
	defer f.Close()

	return readWeather(ctx, db, f)
}

func readWeather(ctx context.Context, db *repository.Database, r io.Reader) (Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6

	var report Report
	var snaps []types.WeatherSnapshot
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("ingest.WeatherCSV: read: %w", err)
		}
		report.Rows++
		if report.Rows == 1 && record[0] == "timestamp" {
			continue // header
		}

		snap, err := parseWeatherRow(record)
		if err != nil {
			report.Skipped++
			slog.Debug("skipping weather row", "row", report.Rows, "err", err)
			continue
		}
		snaps = append(snaps, snap)
	}

	if err := db.SaveWeatherSnapshots(ctx, snaps); err != nil {
		return report, err
	}
	report.Loaded = len(snaps)
	return report, nil
}

func parseWeatherRow(record []string) (types.WeatherSnapshot, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return types.WeatherSnapshot{}, fmt.Errorf("timestamp %q: %w", record[0], err)
	}
	if record[1] == "" {
		return types.WeatherSnapshot{}, fmt.Errorf("empty location")
	}

	fields := make([]float64, 4)
	for i, raw := range record[2:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.WeatherSnapshot{}, fmt.Errorf("field %d %q: %w", i+2, raw, err)
		}
		fields[i] = v
	}

	return types.WeatherSnapshot{
		Timestamp:       ts.UTC(),
		Location:        record[1],
		TemperatureC:    fields[0],
		Humidity:        fields[1],
		WindSpeedKph:    fields[2],
		PrecipitationMM: fields[3],
	}, nil
}

// MarketCSV reads rows of
//
//	timestamp,market_id,outcome,probability,volume
//
// with an optional header, and stores them. Probabilities outside
// [0, 1] are skipped.
func MarketCSV(ctx context.Context, db *repository.Database, path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("ingest.MarketCSV: open %q: %w", path, err)
	}
	defer f.Close()

	return readMarkets(ctx, db, f)
}

func readMarkets(ctx context.Context, db *repository.Database, r io.Reader) (Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5

	var report Report
	var snaps []types.MarketSnapshot
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("ingest.MarketCSV: read: %w", err)
		}
		report.Rows++
		if report.Rows == 1 && record[0] == "timestamp" {
			continue
		}

		snap, err := parseMarketRow(record)
		if err != nil {
			report.Skipped++
			slog.Debug("skipping market row", "row", report.Rows, "err", err)
			continue
		}
		snaps = append(snaps, snap)
	}

	if err := db.SaveMarketSnapshots(ctx, snaps); err != nil {
		return report, err
	}
	report.Loaded = len(snaps)
	return report, nil
}

func parseMarketRow(record []string) (types.MarketSnapshot, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("timestamp %q: %w", record[0], err)
	}
	if record[1] == "" || record[2] == "" {
		return types.MarketSnapshot{}, fmt.Errorf("empty market id or outcome")
	}

	prob, err := decimal.NewFromString(record[3])
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("probability %q: %w", record[3], err)
	}
	if prob.IsNegative() || prob.GreaterThan(decimal.NewFromInt(1)) {
		return types.MarketSnapshot{}, fmt.Errorf("probability %s outside [0,1]", prob)
	}

	vol, err := decimal.NewFromString(record[4])
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("volume %q: %w", record[4], err)
	}

	return types.MarketSnapshot{
		Timestamp:   ts.UTC(),
		MarketID:    record[1],
		Outcome:     record[2],
		Probability: prob,
		Volume:      vol,
	}, nil
}
