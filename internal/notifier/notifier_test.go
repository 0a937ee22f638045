package notifier

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/scanner"
)

const testToken = "123456:TEST-token"

const sendMessageOK = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	n, err := NewTelegramNotifier(testToken, "42", "", zerolog.Nop(), bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	n.backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/sendMessage"), r.URL.Path)
		calls.Add(1)
		_, _ = w.Write([]byte(sendMessageOK))
	})
	require.NoError(t, n.Send(context.Background(), "<b>hello</b>"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(42), n.chatID)
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
			return
		}
		_, _ = w.Write([]byte(sendMessageOK))
	})
	require.NoError(t, n.SendWithRetry(context.Background(), "report", 3))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
	})
	err := n.SendWithRetry(context.Background(), "report", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retries exhausted")
	assert.Equal(t, int32(3), calls.Load())
}

func TestHandleUpdate(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(sendMessageOK))
	})

	var got []string
	handler := func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		if cmd == "/quiet" {
			return ""
		}
		return "ok"
	}

	ctx := context.Background()
	n.handleUpdate(ctx, &models.Update{Message: &models.Message{Text: " /scan ", Chat: models.Chat{ID: 42}}}, handler)
	n.handleUpdate(ctx, &models.Update{Message: &models.Message{Text: "/quiet", Chat: models.Chat{ID: 42}}}, handler)
	n.handleUpdate(ctx, &models.Update{Message: &models.Message{Text: "/scan", Chat: models.Chat{ID: 7}}}, handler)
	n.handleUpdate(ctx, &models.Update{}, handler)

	assert.Equal(t, []string{"/scan", "/quiet"}, got)
	assert.Equal(t, int32(1), calls.Load())
}

func sampleResultSet() *scanner.ResultSet {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &scanner.ResultSet{
		ID:         "scan-1",
		Exchange:   "binance",
		Params:     model.ScanParameters{FastPeriod: 9, SlowPeriod: 26, Timeframe: model.TF1h, MaxSymbols: 100, BarLimit: 100},
		Total:      4,
		StartedAt:  t0,
		FinishedAt: t0.Add(1500 * time.Millisecond),
		Records: []model.SignalRecord{
			{Symbol: "ETHUSDT", Price: 2300.5, EMAFast: 2310, EMASlow: 2300, Signal: model.SignalBullishCross, Trend: model.TrendBullish},
			{Symbol: "BTCUSDT", Price: 42000, EMAFast: 41000, EMASlow: 42000, Signal: model.SignalBearishTrend, Trend: model.TrendBearish},
			{Symbol: "PEPEUSDT", Price: 0.0000012, EMAFast: 0.0000011, EMASlow: 0.0000012, Signal: model.SignalBearishCross, Trend: model.TrendBearish},
		},
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "42000.000000", FormatPrice(42000))
	assert.Equal(t, "0.000001", FormatPrice(0.0000012))
	assert.Equal(t, "2300.50", FormatNumber(2300.5, 2))
}

func TestPercentChange(t *testing.T) {
	assert.InDelta(t, 10.0, PercentChange(110, 100), 1e-9)
	assert.InDelta(t, -50.0, PercentChange(50, 100), 1e-9)
	assert.Equal(t, 0.0, PercentChange(5, 0))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "🟢 BULLISH CROSS", SignalLabel(model.SignalBullishCross))
	assert.Equal(t, "🟠 BEARISH (Recent)", SignalLabel(model.SignalBearishTrend))
	assert.Equal(t, "Neutral", SignalLabel(model.SignalNeutral))
	assert.Equal(t, "Bullish", TrendLabel(model.TrendBullish))
	assert.Equal(t, "Bearish", TrendLabel(model.TrendBearish))
}

func TestFormatScanReport(t *testing.T) {
	msg := FormatScanReport(sampleResultSet())
	assert.Contains(t, msg, "EMA 9/26 scan")
	assert.Contains(t, msg, "Total Scanned: 4")
	assert.Contains(t, msg, "Signals Found: 3")
	assert.Contains(t, msg, "Bullish/Bearish: 1/2")
	assert.Contains(t, msg, "ETHUSDT")
	assert.Contains(t, msg, "PEPEUSDT")
	assert.NotContains(t, msg, "BTCUSDT")
}

func TestFormatScanReport_Empty(t *testing.T) {
	rs := sampleResultSet()
	rs.Records = nil
	assert.Contains(t, FormatScanReport(rs), "No instrument passed the minimum-history filter")

	rs = sampleResultSet()
	rs.Records = rs.Records[1:2]
	assert.Contains(t, FormatScanReport(rs), "No crosses on the latest bar")
}

func TestFormatSignalList(t *testing.T) {
	msg := FormatSignalList("Bearish", sampleResultSet(), 1)
	assert.Contains(t, msg, "<b>Bearish</b> (3)")
	assert.Contains(t, msg, "… and 2 more")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResultSet()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "EMA9")
	assert.Contains(t, lines[0], "EMA26")
	assert.Contains(t, lines[1], "2300.500000")
	assert.Contains(t, lines[1], "🟢 BULLISH CROSS")
}

func TestWriteChart(t *testing.T) {
	c := &model.Chart{
		Symbol: "BTCUSDT", FastPeriod: 9, SlowPeriod: 26,
		Points: []model.ChartPoint{
			{OHLCV: model.OHLCV{Time: time.Unix(0, 0), Open: 1, Close: 2}, Rising: true},
			{OHLCV: model.OHLCV{Time: time.Unix(3600, 0), Open: 2, Close: 1}, Rising: false},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, c))
	out := buf.String()
	assert.Contains(t, out, "▲")
	assert.Contains(t, out, "▼")
	assert.Contains(t, out, "1970-01-01 01:00")
}

func TestFormatSignal(t *testing.T) {
	rs := sampleResultSet()
	msg := FormatSignal(rs.Records[0], rs.Params)
	assert.Contains(t, msg, "<b>ETHUSDT</b> | 1h")
	assert.Contains(t, msg, "EMA9: 2310.000000")
	assert.Contains(t, msg, "EMA26: 2300.000000")
	assert.Contains(t, msg, "🟢 BULLISH CROSS")
	assert.Contains(t, msg, "Trend: Bullish (gap +0.43%)")
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleResultSet()))
	assert.Contains(t, buf.String(), "Total Scanned:")
	assert.Contains(t, buf.String(), "Duration:")
	assert.NotContains(t, buf.String(), "<b>")
}
