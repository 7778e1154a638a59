package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/types"
)

// SaveMarketSnapshots upserts a batch of market snapshots in one
// transaction. Re-ingesting the same file is idempotent.
func (d *Database) SaveMarketSnapshots(ctx context.Context, snaps []types.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository.SaveMarketSnapshots: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_snapshots (timestamp, market_id, outcome, probability, volume)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(timestamp, market_id, outcome) DO UPDATE SET
			probability = excluded.probability,
			volume      = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("repository.SaveMarketSnapshots: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx,
			s.Timestamp.UTC(), s.MarketID, s.Outcome,
			s.Probability.String(), s.Volume.String(),
		); err != nil {
			return fmt.Errorf("repository.SaveMarketSnapshots: upsert %s: %w", s.Instrument(), err)
		}
	}
	return tx.Commit()
}

// GetMarketSnapshots returns all market snapshots in [start, end],
// ordered by timestamp then instrument so identical queries always
// produce identical slices.
func (d *Database) GetMarketSnapshots(ctx context.Context, start, end time.Time) ([]types.MarketSnapshot, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT timestamp, market_id, outcome, probability, volume
		FROM market_snapshots
		WHERE timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC, market_id ASC, outcome ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("repository.GetMarketSnapshots: query: %w", err)
	}
	defer rows.Close()

	var snaps []types.MarketSnapshot
	for rows.Next() {
		var s types.MarketSnapshot
		var ts time.Time
		var prob, vol string
		if err := rows.Scan(&ts, &s.MarketID, &s.Outcome, &prob, &vol); err != nil {
			return nil, fmt.Errorf("repository.GetMarketSnapshots: scan row: %w", err)
		}
		s.Timestamp = ts.UTC()
		if s.Probability, err = decimal.NewFromString(prob); err != nil {
			return nil, fmt.Errorf("repository.GetMarketSnapshots: probability %q: %w", prob, err)
		}
		if s.Volume, err = decimal.NewFromString(vol); err != nil {
			return nil, fmt.Errorf("repository.GetMarketSnapshots: volume %q: %w", vol, err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
