package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"CryptoScreener/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Instruments []string
	Bars        map[string]model.Series // fixed bars per symbol; generated when absent
	Errs        map[string]error        // per-symbol fetch errors
	ListErr     error
	// OnFetch runs before each fetch, e.g. to cancel a scan mid-flight.
	OnFetch func(symbol string)

	mu         sync.Mutex
	listCalls  int
	fetchCalls map[string]int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) ListInstruments(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]string, len(m.Instruments))
	copy(out, m.Instruments)
	return out, nil
}

func (m *MockProvider) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	m.mu.Lock()
	if m.fetchCalls == nil {
		m.fetchCalls = make(map[string]int)
	}
	m.fetchCalls[symbol]++
	m.mu.Unlock()

	if m.OnFetch != nil {
		m.OnFetch(symbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errs[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		if limit > 0 && len(bars) > limit {
			bars = bars[len(bars)-limit:]
		}
		return bars, nil
	}
	if m.Bars != nil {
		return nil, fmt.Errorf("mock %s: %w", symbol, ErrSymbolUnavailable)
	}
	return generateMockBars(symbol, tf, limit), nil
}

// ListCalls returns how many times ListInstruments was called.
func (m *MockProvider) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// FetchCalls returns the total number of FetchBars calls.
func (m *MockProvider) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.fetchCalls {
		n += c
	}
	return n
}

// FetchCallsFor returns the number of FetchBars calls for one symbol.
func (m *MockProvider) FetchCallsFor(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls[symbol]
}

// NewDemoProvider returns a mock with a handful of familiar perpetuals and synthetic bars.
func NewDemoProvider() *MockProvider {
	return &MockProvider{
		Instruments: []string{
			"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT",
			"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
		},
	}
}

var timeframeDurations = map[model.Timeframe]time.Duration{
	model.TF1m:  time.Minute,
	model.TF5m:  5 * time.Minute,
	model.TF15m: 15 * time.Minute,
	model.TF30m: 30 * time.Minute,
	model.TF1h:  time.Hour,
	model.TF4h:  4 * time.Hour,
	model.TF1d:  24 * time.Hour,
	model.TF1w:  7 * 24 * time.Hour,
}

// generateMockBars builds a deterministic oscillating series whose phase depends on the symbol,
// so different symbols land on different signals.
func generateMockBars(symbol string, tf model.Timeframe, count int) model.Series {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum32()

	step, ok := timeframeDurations[tf]
	if !ok {
		step = time.Hour
	}
	basePrice := 1 + float64(seed%50000)
	phase := float64(seed%360) * math.Pi / 180
	end := time.Now().UTC().Truncate(step)

	bars := make(model.Series, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.03*math.Sin(phase+float64(i)*2*math.Pi/40) + float64(i-count/2)*0.0005)
		open := p * (1 - 0.002*math.Cos(phase+float64(i)))
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-1-i) * step),
			Open:   open,
			High:   math.Max(open, p) * 1.004,
			Low:    math.Min(open, p) * 0.996,
			Close:  p,
			Volume: 1000000 * (1 + 0.5*math.Sin(float64(i))),
		}
	}
	return bars
}
