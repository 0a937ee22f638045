package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"CryptoScreener/internal/model"
)

const (
	DefaultBinanceURL = "https://fapi.binance.com"
	binanceMaxLimit   = 1500
)

var binanceIntervals = map[model.Timeframe]string{
	model.TF1m:  "1m",
	model.TF5m:  "5m",
	model.TF15m: "15m",
	model.TF30m: "30m",
	model.TF1h:  "1h",
	model.TF4h:  "4h",
	model.TF1d:  "1d",
	model.TF1w:  "1w",
}

// BinanceProvider implements Provider over the USDⓈ-M futures REST API.
type BinanceProvider struct {
	rest   *restClient
	settle string
}

// NewBinanceProvider creates a provider for perpetuals settled in settle (e.g. USDT).
func NewBinanceProvider(baseURL, settle, proxyURL string, timeout time.Duration, limiter *Limiter) *BinanceProvider {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &BinanceProvider{
		rest:   newRESTClient(baseURL, proxyURL, timeout, limiter),
		settle: settle,
	}
}

func (p *BinanceProvider) Name() string { return "binance" }

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
		BaseAsset    string `json:"baseAsset"`
		QuoteAsset   string `json:"quoteAsset"`
		MarginAsset  string `json:"marginAsset"`
	} `json:"symbols"`
}

func (p *BinanceProvider) ListInstruments(ctx context.Context) ([]string, error) {
	var info binanceExchangeInfo
	if err := p.rest.getJSON(ctx, "/fapi/v1/exchangeInfo", nil, ErrProviderUnavailable, &info); err != nil {
		return nil, fmt.Errorf("binance list instruments: %w", err)
	}
	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.ContractType != "PERPETUAL" {
			continue
		}
		if s.QuoteAsset != p.settle || s.MarginAsset != p.settle {
			continue
		}
		// drops dated and suffixed aliases of the same pair
		if s.Symbol != s.BaseAsset+s.QuoteAsset {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}

func (p *BinanceProvider) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	interval, ok := binanceIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("binance %s: %w: unsupported timeframe %q", symbol, ErrSymbolUnavailable, tf)
	}
	if limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	// Rows mix numbers and decimal strings: [openTime, o, h, l, c, volume, closeTime, ...]
	var raw [][]json.Number
	if err := p.rest.getJSON(ctx, "/fapi/v1/klines", params, ErrSymbolUnavailable, &raw); err != nil {
		return nil, fmt.Errorf("binance %s: %w", symbol, err)
	}

	bars := make(model.Series, 0, len(raw))
	for i, row := range raw {
		bar, err := parseKlineRow(row[:min(len(row), 6)])
		if err != nil {
			return nil, fmt.Errorf("binance %s: %w: row %d: %w", symbol, ErrSymbolUnavailable, i, err)
		}
		bars = append(bars, bar)
	}
	return finishSeries("binance", symbol, bars, limit)
}

// parseKlineRow decodes [startMillis, open, high, low, close, volume].
func parseKlineRow(row []json.Number) (model.OHLCV, error) {
	if len(row) < 6 {
		return model.OHLCV{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}
	ms, err := strconv.ParseInt(row[0].String(), 10, 64)
	if err != nil {
		return model.OHLCV{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := parseNumber(row[i+1].String())
		if err != nil {
			return model.OHLCV{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return model.OHLCV{
		Time:   time.UnixMilli(ms).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// finishSeries sorts bars chronologically, keeps the newest limit and validates ordering.
func finishSeries(exchange, symbol string, bars model.Series, limit int) (model.Series, error) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", exchange, symbol, ErrSymbolUnavailable, err)
	}
	return bars, nil
}
