package repository

import (
	"context"
	"fmt"
	"time"

	"weathertrader/types"
)

// SaveWeatherSnapshots upserts a batch of weather readings in one
// transaction. Derived rolling fields are not persisted; the provider
// recomputes them per window.
func (d *Database) SaveWeatherSnapshots(ctx context.Context, snaps []types.WeatherSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository.SaveWeatherSnapshots: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO weather_snapshots
			(timestamp, location, temperature_c, humidity, wind_speed_kph, precipitation_mm)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(timestamp, location) DO UPDATE SET
			temperature_c    = excluded.temperature_c,
			humidity         = excluded.humidity,
			wind_speed_kph   = excluded.wind_speed_kph,
			precipitation_mm = excluded.precipitation_mm
	`)
	if err != nil {
		return fmt.Errorf("repository.SaveWeatherSnapshots: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx,
			s.Timestamp.UTC(), s.Location,
			s.TemperatureC, s.Humidity, s.WindSpeedKph, s.PrecipitationMM,
		); err != nil {
			return fmt.Errorf("repository.SaveWeatherSnapshots: upsert %s@%s: %w", s.Location, s.Timestamp, err)
		}
	}
	return tx.Commit()
}

// GetWeatherSnapshots returns all weather readings in [start, end],
// ordered by timestamp then location.
func (d *Database) GetWeatherSnapshots(ctx context.Context, start, end time.Time) ([]types.WeatherSnapshot, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT timestamp, location, temperature_c, humidity, wind_speed_kph, precipitation_mm
		FROM weather_snapshots
		WHERE timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC, location ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("repository.GetWeatherSnapshots: query: %w", err)
	}
	defer rows.Close()

	var snaps []types.WeatherSnapshot
	for rows.Next() {
		var s types.WeatherSnapshot
		var ts time.Time
		if err := rows.Scan(&ts, &s.Location, &s.TemperatureC, &s.Humidity, &s.WindSpeedKph, &s.PrecipitationMM); err != nil {
			return nil, fmt.Errorf("repository.GetWeatherSnapshots: scan row: %w", err)
		}
		s.Timestamp = ts.UTC()
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
