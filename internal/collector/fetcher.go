package collector

import (
	"context"
	"errors"

	"CryptoScreener/internal/model"
)

var (
	// ErrProviderUnavailable marks connectivity, auth, throttling and listing failures.
	ErrProviderUnavailable = errors.New("market data provider unavailable")
	// ErrSymbolUnavailable marks a request for one instrument that the exchange rejected
	// or answered with unusable data.
	ErrSymbolUnavailable = errors.New("symbol unavailable")
)

// Provider defines the interface for listing instruments and fetching their bars.
type Provider interface {
	Name() string
	// ListInstruments returns the tradeable perpetuals in the exchange's listing order.
	ListInstruments(ctx context.Context) ([]string, error)
	// FetchBars returns at most limit bars, oldest first.
	FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error)
}
