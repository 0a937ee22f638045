package recorder

import (
	"context"
	"time"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/scanner"
)

// ScanRun is one journaled scan without its records.
type ScanRun struct {
	ID         string          `json:"id"`
	Exchange   string          `json:"exchange"`
	Timeframe  model.Timeframe `json:"timeframe"`
	FastPeriod int             `json:"fast_period"`
	SlowPeriod int             `json:"slow_period"`
	Total      int             `json:"total"`
	Found      int             `json:"found"`
	Partial    bool            `json:"partial"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Recorder journals finished scans for later analysis.
type Recorder interface {
	RecordScan(ctx context.Context, rs *scanner.ResultSet) error
	RecentScans(ctx context.Context, limit int) ([]ScanRun, error)
	SignalsFor(ctx context.Context, scanID string) ([]model.SignalRecord, error)
	Close() error
}
