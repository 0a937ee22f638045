package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"CryptoScreener/internal/cache"
	"CryptoScreener/internal/model"
)

// CachedProvider serves instrument lists and bar windows from a BytesCache,
// falling through to the wrapped provider on a miss. Cache errors never fail a request.
type CachedProvider struct {
	next    Provider
	cache   cache.BytesCache
	listTTL time.Duration
	barsTTL time.Duration
	log     zerolog.Logger
}

func NewCachedProvider(next Provider, c cache.BytesCache, listTTL, barsTTL time.Duration, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: c, listTTL: listTTL, barsTTL: barsTTL, log: log}
}

func (p *CachedProvider) Name() string { return p.next.Name() }

func (p *CachedProvider) ListInstruments(ctx context.Context) ([]string, error) {
	key := p.next.Name() + ":instruments"
	var symbols []string
	if p.load(ctx, key, &symbols) {
		return symbols, nil
	}
	symbols, err := p.next.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, symbols, p.listTTL)
	return symbols, nil
}

func (p *CachedProvider) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	key := fmt.Sprintf("%s:bars:%s:%s:%d", p.next.Name(), symbol, tf, limit)
	var bars model.Series
	if p.load(ctx, key, &bars) {
		return bars, nil
	}
	bars, err := p.next.FetchBars(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, bars, p.barsTTL)
	return bars, nil
}

func (p *CachedProvider) load(ctx context.Context, key string, out any) bool {
	b, ok, err := p.cache.GetBytes(ctx, key)
	if err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return false
	}
	return true
}

func (p *CachedProvider) store(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.cache.SetBytes(ctx, key, b, ttl); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
