package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaVersion = 1

var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS readings (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id          TEXT    NOT NULL,
			captured_at       INTEGER NOT NULL,
			power_output      REAL    NOT NULL,
			voltage_1         REAL    NOT NULL,
			current_1         REAL    NOT NULL,
			voltage_2         REAL    NOT NULL,
			current_2         REAL    NOT NULL,
			temperature_1     REAL    NOT NULL,
			temperature_2     REAL    NOT NULL,
			grid_voltage      REAL    NOT NULL,
			peak_power_today  REAL    NOT NULL,
			energy_today      REAL    NOT NULL,
			energy_week       REAL    NOT NULL,
			energy_month      REAL    NOT NULL,
			energy_year       REAL    NOT NULL,
			energy_total      REAL    NOT NULL,
			efficiency        REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_readings_captured_at ON readings(captured_at);`,
	},
}

// Open opens the reading database at path and brings its schema up to date.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}

	for next := version + 1; next <= schemaVersion; next++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, stmt := range migrations[next] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()

				return fmt.Errorf("migration %d: %w", next, err)
			}
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, next)); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("set schema version %d: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", next, err)
		}
	}

	return nil
}

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
