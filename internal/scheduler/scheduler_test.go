package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"CryptoScreener/internal/collector"
	"CryptoScreener/internal/model"
	"CryptoScreener/internal/recorder"
	"CryptoScreener/internal/scanner"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	args := m.Called(ctx, text, maxRetries)
	return args.Error(0)
}

func testParams() model.ScanParameters {
	return model.ScanParameters{ExchangeID: "mock", FastPeriod: 9, SlowPeriod: 26, Timeframe: model.TF1h, MaxSymbols: 10, BarLimit: 60}
}

func newTestScheduler(t *testing.T, provider collector.Provider, sender Sender) *Scheduler {
	t.Helper()
	sc := scanner.New(provider)
	return NewScheduler(context.Background(), sc, testParams(), sender, recorder.NewNoopRecorder(), zerolog.Nop())
}

func TestRunScan_StoresLatest(t *testing.T) {
	s := newTestScheduler(t, collector.NewDemoProvider(), nil)
	assert.Nil(t, s.Latest())

	rs, err := s.RunScan(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 10, rs.Total)
	assert.Same(t, rs, s.Latest())
}

func TestRunScan_FailureKeepsPrevious(t *testing.T) {
	provider := collector.NewDemoProvider()
	s := newTestScheduler(t, provider, nil)
	first, err := s.RunScan(context.Background(), testParams())
	require.NoError(t, err)

	provider.ListErr = collector.ErrProviderUnavailable
	_, err = s.RunScan(context.Background(), testParams())
	assert.ErrorIs(t, err, collector.ErrProviderUnavailable)
	assert.Same(t, first, s.Latest())
}

func TestRunScan_RejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	provider := &collector.MockProvider{
		Instruments: []string{"A"},
		OnFetch: func(string) {
			once.Do(func() { close(started) })
			<-release
		},
	}
	s := newTestScheduler(t, provider, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunScan(context.Background(), testParams())
		done <- err
	}()
	<-started

	_, err := s.RunScan(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestScanTask_SendsReport(t *testing.T) {
	sender := new(mockSender)
	sender.On("SendWithRetry", mock.Anything, mock.MatchedBy(func(text string) bool {
		return containsAll(text, "EMA 9/26 scan", "Total Scanned: 10")
	}), 3).Return(nil).Once()

	s := newTestScheduler(t, collector.NewDemoProvider(), sender)
	s.RunNow()
	sender.AssertExpectations(t)
}

func TestScanTask_ReportsFailure(t *testing.T) {
	sender := new(mockSender)
	sender.On("SendWithRetry", mock.Anything, mock.MatchedBy(func(text string) bool {
		return containsAll(text, "Scan failed")
	}), 3).Return(errors.New("telegram down")).Once()

	s := newTestScheduler(t, &collector.MockProvider{ListErr: errors.New("timeout")}, sender)
	s.RunNow()
	sender.AssertExpectations(t)
	assert.Nil(t, s.Latest())
}

func TestHandleCommand(t *testing.T) {
	s := newTestScheduler(t, collector.NewDemoProvider(), nil)
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/summary"), "No scan has completed yet")
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "Available commands")
	assert.Contains(t, s.HandleCommand(ctx, ""), "Available commands")

	report := s.HandleCommand(ctx, "/scan@screener_bot")
	assert.Contains(t, report, "Total Scanned: 10")
	require.NotNil(t, s.Latest())

	sum := s.Latest().Summary()
	assert.Contains(t, s.HandleCommand(ctx, "/summary"), "Total Scanned: 10")
	if sum.Bullish > 0 {
		assert.Contains(t, s.HandleCommand(ctx, "/bullish"), "<b>Bullish</b>")
	}
	assert.Contains(t, s.HandleCommand(ctx, "/bearish"), "<b>Bearish</b>")

	first := s.Latest().Records[0]
	reply := s.HandleCommand(ctx, "/signal "+strings.ToLower(first.Symbol))
	assert.Contains(t, reply, "<b>"+first.Symbol+"</b>")
	assert.Contains(t, reply, "EMA26:")
	assert.Contains(t, s.HandleCommand(ctx, "/signal NOPEUSDT"), "NOPEUSDT is not in the latest scan")
	assert.Contains(t, s.HandleCommand(ctx, "/signal"), "Usage: /signal SYMBOL")
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(t, collector.NewDemoProvider(), nil)
	assert.NoError(t, s.Register(""))
	assert.Error(t, s.Register("not a cron"))
	require.NoError(t, s.Register("0 */5 * * * *"))
	s.Start()
	assert.Len(t, s.cron.Entries(), 1)
	assert.True(t, s.cron.Entries()[0].Next.After(time.Now()))
	s.Stop()
}

func TestDetail_UsesLatestParams(t *testing.T) {
	s := newTestScheduler(t, collector.NewDemoProvider(), nil)
	chart, err := s.Detail(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, chart.Points, 60)

	p := testParams()
	p.BarLimit = 40
	_, err = s.RunScan(context.Background(), p)
	require.NoError(t, err)
	chart, err = s.Detail(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, chart.Points, 40)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
