package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoScreener/internal/model"
)

const binanceExchangeInfoJSON = `{
  "symbols": [
    {"symbol":"BTCUSDT","status":"TRADING","contractType":"PERPETUAL","baseAsset":"BTC","quoteAsset":"USDT","marginAsset":"USDT"},
    {"symbol":"ETHUSDT","status":"TRADING","contractType":"PERPETUAL","baseAsset":"ETH","quoteAsset":"USDT","marginAsset":"USDT"},
    {"symbol":"BTCUSDT_250627","status":"TRADING","contractType":"CURRENT_QUARTER","baseAsset":"BTC","quoteAsset":"USDT","marginAsset":"USDT"},
    {"symbol":"ETHBTC","status":"TRADING","contractType":"PERPETUAL","baseAsset":"ETH","quoteAsset":"BTC","marginAsset":"BTC"},
    {"symbol":"BTCUSDC","status":"TRADING","contractType":"PERPETUAL","baseAsset":"BTC","quoteAsset":"USDC","marginAsset":"USDC"},
    {"symbol":"LUNAUSDT","status":"SETTLING","contractType":"PERPETUAL","baseAsset":"LUNA","quoteAsset":"USDT","marginAsset":"USDT"},
    {"symbol":"SOLUSDT","status":"TRADING","contractType":"PERPETUAL","baseAsset":"SOL","quoteAsset":"USDT","marginAsset":"USDT"}
  ]
}`

// newest last, mixed number and string fields like the live API
const binanceKlinesJSON = `[
  [1704067200000,"42000.10","42100.00","41900.00","42050.5","120.5",1704070799999,"0",10,"0","0","0"],
  [1704070800000,"42050.50","42200.00","42000.00","42180.0","98.25",1704074399999,"0",10,"0","0","0"],
  [1704074400000,"42180.00","42300.00","42100.00","42250.123456","77",1704077999999,"0",10,"0","0","0"]
]`

func newBinanceTestServer(t *testing.T, handler http.HandlerFunc) *BinanceProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBinanceProvider(srv.URL, "USDT", "", 5*time.Second, nil)
}

func TestBinance_ListInstruments(t *testing.T) {
	p := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		_, _ = w.Write([]byte(binanceExchangeInfoJSON))
	})
	symbols, err := p.ListInstruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, symbols)
}

func TestBinance_ListInstrumentsUnavailable(t *testing.T) {
	p := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := p.ListInstruments(context.Background())
	assert.True(t, errors.Is(err, ErrProviderUnavailable), "got %v", err)
}

func TestBinance_ListInstrumentsBadJSON(t *testing.T) {
	p := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := p.ListInstruments(context.Background())
	assert.True(t, errors.Is(err, ErrProviderUnavailable), "got %v", err)
}

func TestBinance_FetchBars(t *testing.T) {
	p := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4h", r.URL.Query().Get("interval"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(binanceKlinesJSON))
	})
	bars, err := p.FetchBars(context.Background(), "BTCUSDT", model.TF4h, 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, time.UnixMilli(1704067200000).UTC(), bars[0].Time)
	assert.Equal(t, 42000.10, bars[0].Open)
	assert.Equal(t, 42250.123456, bars[2].Close)
	assert.Equal(t, 77.0, bars[2].Volume)
	assert.NoError(t, bars.Validate())
}

func TestBinance_FetchBarsTruncatesToLimit(t *testing.T) {
	p := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(binanceKlinesJSON))
	})
	bars, err := p.FetchBars(context.Background(), "BTCUSDT", model.TF1h, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 42250.123456, bars[1].Close)
}

func TestBinance_FetchBarsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unknown symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, ErrSymbolUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003}`, ErrProviderUnavailable},
		{"server error", http.StatusBadGateway, ``, ErrProviderUnavailable},
		{"malformed row", http.StatusOK, `[[1704067200000,"abc","1","1","1","1"]]`, ErrSymbolUnavailable},
		{"short row", http.StatusOK, `[[1704067200000,"1","1"]]`, ErrSymbolUnavailable},
		{"duplicate bars", http.StatusOK, `[[1,"1","1","1","1","1"],[1,"1","1","1","1","1"]]`, ErrSymbolUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.FetchBars(context.Background(), "XXXUSDT", model.TF1h, 10)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBinance_FetchBarsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	p := NewBinanceProvider(srv.URL, "USDT", "", 50*time.Millisecond, nil)

	_, err := p.FetchBars(context.Background(), "BTCUSDT", model.TF1h, 10)
	assert.True(t, errors.Is(err, ErrProviderUnavailable), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
