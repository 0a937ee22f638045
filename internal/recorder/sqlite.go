package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/scanner"
)

// SQLiteRecorder persists scan runs and their signals to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read the journal while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          TEXT PRIMARY KEY,
			exchange    TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			fast_period INTEGER NOT NULL,
			slow_period INTEGER NOT NULL,
			total       INTEGER NOT NULL,
			found       INTEGER NOT NULL,
			partial     INTEGER NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_finished ON scan_runs(finished_at)`,

		`CREATE TABLE IF NOT EXISTS scan_signals (
			scan_id  TEXT NOT NULL REFERENCES scan_runs(id),
			position INTEGER NOT NULL,
			symbol   TEXT NOT NULL,
			price    REAL,
			ema_fast REAL,
			ema_slow REAL,
			signal   TEXT NOT NULL,
			trend    TEXT NOT NULL,
			PRIMARY KEY (scan_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_signals_symbol ON scan_signals(symbol, signal)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(ctx context.Context, rs *scanner.ResultSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO scan_runs
		(id, exchange, timeframe, fast_period, slow_period, total, found, partial, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rs.ID, rs.Exchange, string(rs.Params.Timeframe), rs.Params.FastPeriod, rs.Params.SlowPeriod,
		rs.Total, len(rs.Records), rs.Partial, rs.StartedAt.UnixMilli(), rs.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scan_signals
		(scan_id, position, symbol, price, ema_fast, ema_slow, signal, trend)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare signals: %w", err)
	}
	defer stmt.Close()

	for i, rec := range rs.Records {
		if _, err := stmt.ExecContext(ctx, rs.ID, i, rec.Symbol, rec.Price, rec.EMAFast, rec.EMASlow,
			string(rec.Signal), string(rec.Trend)); err != nil {
			return fmt.Errorf("insert signal %s: %w", rec.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecentScans returns the latest runs, newest first.
func (r *SQLiteRecorder) RecentScans(ctx context.Context, limit int) ([]ScanRun, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, exchange, timeframe, fast_period, slow_period, total, found, partial, started_at, finished_at
		FROM scan_runs ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		var (
			run               ScanRun
			tf                string
			started, finished int64
		)
		if err := rows.Scan(&run.ID, &run.Exchange, &tf, &run.FastPeriod, &run.SlowPeriod,
			&run.Total, &run.Found, &run.Partial, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		run.Timeframe = model.Timeframe(tf)
		run.StartedAt = time.UnixMilli(started).UTC()
		run.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SignalsFor returns the journaled records of one scan in scan order.
func (r *SQLiteRecorder) SignalsFor(ctx context.Context, scanID string) ([]model.SignalRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, price, ema_fast, ema_slow, signal, trend
		FROM scan_signals WHERE scan_id = ? ORDER BY position`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []model.SignalRecord
	for rows.Next() {
		var rec model.SignalRecord
		var sig, trend string
		if err := rows.Scan(&rec.Symbol, &rec.Price, &rec.EMAFast, &rec.EMASlow, &sig, &trend); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Signal = model.Signal(sig)
		rec.Trend = model.Trend(trend)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
