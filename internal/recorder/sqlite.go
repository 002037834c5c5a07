package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ndrandal/stocksim/internal/engine"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS daily_closes (
	date        TEXT NOT NULL,
	stock_id    INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	name        TEXT NOT NULL,
	open        REAL NOT NULL,
	close       REAL NOT NULL,
	high        REAL NOT NULL,
	low         REAL NOT NULL,
	rolling_avg REAL NOT NULL,
	pruned      INTEGER NOT NULL,
	PRIMARY KEY (date, stock_id)
);
CREATE TABLE IF NOT EXISTS save_events (
	saved_at TEXT NOT NULL,
	path     TEXT NOT NULL,
	stocks   INTEGER NOT NULL
);
`

// SQLite records into a local database file.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens or creates the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate recorder db: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (r *SQLite) RecordDaily(ctx context.Context, date time.Time, closes []engine.DailyClose) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT OR REPLACE INTO daily_closes
		(date, stock_id, symbol, name, open, close, high, low, rolling_avg, pruned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	day := engine.Day(date).Format(time.DateOnly)
	for _, c := range closes {
		closePrice := c.Data.Open
		if c.Data.Close != nil {
			closePrice = *c.Data.Close
		}
		if _, err := tx.ExecContext(ctx, q,
			day, c.StockID, c.Symbol, c.Name,
			c.Data.Open, closePrice, c.Data.High, c.Data.Low,
			c.RollingAvg, c.Pruned); err != nil {
			return fmt.Errorf("insert close %s: %w", c.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLite) RecordSave(ctx context.Context, path string, savedAt time.Time, stocks int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO save_events (saved_at, path, stocks) VALUES (?, ?, ?)`,
		savedAt.UTC().Format(time.RFC3339), path, stocks)
	if err != nil {
		return fmt.Errorf("insert save event: %w", err)
	}
	return nil
}

func (r *SQLite) Close(context.Context) error {
	return r.db.Close()
}
