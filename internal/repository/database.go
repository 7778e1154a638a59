package repository

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var (
	NoSnapshotsErr = errors.New("no snapshots found in datasource")
)

const schema = `
CREATE TABLE IF NOT EXISTS market_snapshots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   DATETIME NOT NULL,
    market_id   TEXT     NOT NULL,
    outcome     TEXT     NOT NULL,
    probability TEXT     NOT NULL,
    volume      TEXT     NOT NULL DEFAULT '0',
    UNIQUE(timestamp, market_id, outcome)
);

CREATE TABLE IF NOT EXISTS weather_snapshots (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp        DATETIME NOT NULL,
    location         TEXT     NOT NULL,
    temperature_c    REAL     NOT NULL,
    humidity         REAL     NOT NULL DEFAULT 0,
    wind_speed_kph   REAL     NOT NULL DEFAULT 0,
    precipitation_mm REAL     NOT NULL DEFAULT 0,
    UNIQUE(timestamp, location)
);

CREATE INDEX IF NOT EXISTS idx_market_ts  ON market_snapshots(timestamp);
CREATE INDEX IF NOT EXISTS idx_market_mkt ON market_snapshots(market_id, outcome, timestamp);
CREATE INDEX IF NOT EXISTS idx_weather_ts ON weather_snapshots(timestamp);
`

// Database is the SQLite-backed snapshot store shared by the ingestion
// scripts and the backtest data provider.
type Database struct {
	db *sql.DB
}

// NewDatabase opens (or creates) the database at the given path and
// applies the schema. Pass ":memory:" for an ephemeral store.
func NewDatabase(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository.NewDatabase: open %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository.NewDatabase: apply schema: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
