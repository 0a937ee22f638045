package recorder

import (
	"context"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/scanner"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

// NewNoopRecorder returns a Recorder that discards everything.
func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(context.Context, *scanner.ResultSet) error { return nil }
func (n *NoopRecorder) RecentScans(context.Context, int) ([]ScanRun, error) { return nil, nil }
func (n *NoopRecorder) SignalsFor(context.Context, string) ([]model.SignalRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
