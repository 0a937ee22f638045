package collector

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"CryptoScreener/internal/cache"
)

// Options selects and tunes the provider built by New.
type Options struct {
	Exchange  string // binance, bybit or mock
	BaseURL   string
	Settle    string
	ProxyURL  string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	Burst     int

	Cache   cache.BytesCache // nil disables caching
	ListTTL time.Duration
	BarsTTL time.Duration
}

// New builds the provider variant named by opts.Exchange, wrapped in a cache when one is given.
func New(opts Options, log zerolog.Logger) (Provider, error) {
	settle := opts.Settle
	if settle == "" {
		settle = "USDT"
	}
	limiter := NewLimiter(opts.RateLimit, opts.Burst)

	var p Provider
	switch strings.ToLower(opts.Exchange) {
	case "binance", "":
		p = NewBinanceProvider(opts.BaseURL, settle, opts.ProxyURL, opts.Timeout, limiter)
	case "bybit":
		p = NewBybitProvider(opts.BaseURL, settle, opts.ProxyURL, opts.Timeout, limiter)
	case "mock":
		p = NewDemoProvider()
	default:
		return nil, fmt.Errorf("unknown exchange %q", opts.Exchange)
	}

	if opts.Cache != nil {
		log.Info().Str("exchange", p.Name()).Dur("bars_ttl", opts.BarsTTL).Msg("provider cache enabled")
		p = NewCachedProvider(p, opts.Cache, opts.ListTTL, opts.BarsTTL, log)
	}
	return p, nil
}
