package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"CryptoScreener/internal/model"
)

const (
	DefaultBybitURL = "https://api.bybit.com"
	bybitMaxLimit   = 1000
	bybitMaxPages   = 50
	bybitRateLimit  = 10006
)

var bybitIntervals = map[model.Timeframe]string{
	model.TF1m:  "1",
	model.TF5m:  "5",
	model.TF15m: "15",
	model.TF30m: "30",
	model.TF1h:  "60",
	model.TF4h:  "240",
	model.TF1d:  "D",
	model.TF1w:  "W",
}

// BybitProvider implements Provider over the v5 linear-contract REST API.
type BybitProvider struct {
	rest   *restClient
	settle string
}

func NewBybitProvider(baseURL, settle, proxyURL string, timeout time.Duration, limiter *Limiter) *BybitProvider {
	if baseURL == "" {
		baseURL = DefaultBybitURL
	}
	return &BybitProvider{
		rest:   newRESTClient(baseURL, proxyURL, timeout, limiter),
		settle: settle,
	}
}

func (p *BybitProvider) Name() string { return "bybit" }

// bybitResponse is the v5 envelope.
type bybitResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type bybitInstruments struct {
	List []struct {
		Symbol       string `json:"symbol"`
		ContractType string `json:"contractType"`
		Status       string `json:"status"`
		BaseCoin     string `json:"baseCoin"`
		QuoteCoin    string `json:"quoteCoin"`
		SettleCoin   string `json:"settleCoin"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

type bybitKlines struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

func (p *BybitProvider) ListInstruments(ctx context.Context) ([]string, error) {
	var symbols []string
	cursor := ""
	for page := 0; page < bybitMaxPages; page++ {
		params := url.Values{}
		params.Set("category", "linear")
		params.Set("limit", "1000")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp bybitResponse[bybitInstruments]
		if err := p.rest.getJSON(ctx, "/v5/market/instruments-info", params, ErrProviderUnavailable, &resp); err != nil {
			return nil, fmt.Errorf("bybit list instruments: %w", err)
		}
		if resp.RetCode != 0 {
			return nil, fmt.Errorf("bybit list instruments: %w: API error %d: %s", ErrProviderUnavailable, resp.RetCode, resp.RetMsg)
		}
		for _, s := range resp.Result.List {
			if s.Status != "Trading" || s.ContractType != "LinearPerpetual" {
				continue
			}
			if s.QuoteCoin != p.settle || s.SettleCoin != p.settle {
				continue
			}
			if s.Symbol != s.BaseCoin+s.QuoteCoin {
				continue
			}
			symbols = append(symbols, s.Symbol)
		}
		cursor = resp.Result.NextPageCursor
		if cursor == "" {
			break
		}
	}
	return symbols, nil
}

func (p *BybitProvider) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	interval, ok := bybitIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("bybit %s: %w: unsupported timeframe %q", symbol, ErrSymbolUnavailable, tf)
	}
	if limit > bybitMaxLimit {
		limit = bybitMaxLimit
	}
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var resp bybitResponse[bybitKlines]
	if err := p.rest.getJSON(ctx, "/v5/market/kline", params, ErrSymbolUnavailable, &resp); err != nil {
		return nil, fmt.Errorf("bybit %s: %w", symbol, err)
	}
	if resp.RetCode == bybitRateLimit {
		return nil, fmt.Errorf("bybit %s: %w: API error %d: %s", symbol, ErrProviderUnavailable, resp.RetCode, resp.RetMsg)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit %s: %w: API error %d: %s", symbol, ErrSymbolUnavailable, resp.RetCode, resp.RetMsg)
	}

	// [startTime, open, high, low, close, volume, turnover], newest first
	bars := make(model.Series, 0, len(resp.Result.List))
	for i, row := range resp.Result.List {
		nums := make([]json.Number, len(row))
		for j, v := range row {
			nums[j] = json.Number(v)
		}
		bar, err := parseKlineRow(nums[:min(len(nums), 6)])
		if err != nil {
			return nil, fmt.Errorf("bybit %s: %w: row %d: %w", symbol, ErrSymbolUnavailable, i, err)
		}
		bars = append(bars, bar)
	}
	return finishSeries("bybit", symbol, bars, limit)
}
