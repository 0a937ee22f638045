package scanner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoScreener/internal/model"
)

func sampleResultSet() *ResultSet {
	return &ResultSet{
		ID:       "scan-1",
		Exchange: "binance",
		Total:    6,
		Records: []model.SignalRecord{
			{Symbol: "ETHUSDT", Price: 2300, EMAFast: 2310, EMASlow: 2300, Signal: model.SignalBullishCross, Trend: model.TrendBullish},
			{Symbol: "BTCUSDT", Price: 42000, EMAFast: 41000, EMASlow: 42000, Signal: model.SignalBearishTrend, Trend: model.TrendBearish},
			{Symbol: "SOLUSDT", Price: 95, EMAFast: 96, EMASlow: 90, Signal: model.SignalBullishTrend, Trend: model.TrendBullish},
			{Symbol: "XRPUSDT", Price: 0.6, EMAFast: 0.5, EMASlow: 0.5, Signal: model.SignalNeutral, Trend: model.TrendBearish},
			{Symbol: "ADAUSDT", Price: 0.5, EMAFast: 0.49, EMASlow: 0.5, Signal: model.SignalBearishCross, Trend: model.TrendBearish},
		},
	}
}

func symbolsOf(rs *ResultSet) []string {
	out := make([]string, 0, len(rs.Records))
	for _, r := range rs.Records {
		out = append(out, r.Symbol)
	}
	return out
}

func TestFilter_SoundAndOrdered(t *testing.T) {
	rs := sampleResultSet()
	got := Filter(rs, []model.Signal{model.SignalBullishCross, model.SignalBearishTrend, model.SignalNeutral}, []model.Trend{model.TrendBearish})
	assert.Equal(t, []string{"BTCUSDT", "XRPUSDT"}, symbolsOf(got))
	for _, r := range got.Records {
		assert.Equal(t, model.TrendBearish, r.Trend)
	}
	assert.Equal(t, rs.ID, got.ID)
	assert.Equal(t, rs.Total, got.Total)
}

func TestFilter_AllFacetsIsIdentity(t *testing.T) {
	rs := sampleResultSet()
	got := Filter(rs, model.AllSignals(), model.AllTrends())
	assert.Equal(t, rs.Records, got.Records)
}

func TestFilter_EmptyFacetSelectsNothing(t *testing.T) {
	rs := sampleResultSet()
	assert.Equal(t, 0, Filter(rs, nil, model.AllTrends()).Len())
	assert.Equal(t, 0, Filter(rs, model.AllSignals(), []model.Trend{}).Len())
	assert.Nil(t, Filter(nil, model.AllSignals(), model.AllTrends()))
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	rs := sampleResultSet()
	before := append([]model.SignalRecord(nil), rs.Records...)
	_ = rs.Filter([]model.Signal{model.SignalNeutral}, model.AllTrends())
	_ = rs.Sorted(SortPrice)
	assert.Equal(t, before, rs.Records)
}

func TestResultSet_Summary(t *testing.T) {
	s := sampleResultSet().Summary()
	assert.Equal(t, 6, s.Scanned)
	assert.Equal(t, 5, s.Found)
	assert.Equal(t, 2, s.Bullish)
	assert.Equal(t, 2, s.Bearish)
	assert.Equal(t, 1, s.Neutral)
	assert.Equal(t, 2, s.Crosses)
	assert.Equal(t, 1, s.BySignal[model.SignalBearishCross])
}

func TestResultSet_Sorted(t *testing.T) {
	rs := sampleResultSet()
	assert.Equal(t, []string{"ADAUSDT", "BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}, symbolsOf(rs.Sorted(SortSymbol)))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT"}, symbolsOf(rs.Sorted(SortPrice)))
	// gaps: ETH .0043, BTC .0238, SOL .0667, XRP 0, ADA .02
	assert.Equal(t, []string{"SOLUSDT", "BTCUSDT", "ADAUSDT", "ETHUSDT", "XRPUSDT"}, symbolsOf(rs.Sorted(SortGap)))
	assert.Equal(t, symbolsOf(rs), symbolsOf(rs.Sorted(SortNone)))

	_, err := ParseSortKey("volume")
	assert.Error(t, err)
	k, err := ParseSortKey("gap")
	require.NoError(t, err)
	assert.Equal(t, SortGap, k)
}

func TestResultSet_Find(t *testing.T) {
	rs := sampleResultSet()
	r, ok := rs.Find("SOLUSDT")
	require.True(t, ok)
	assert.Equal(t, model.SignalBullishTrend, r.Signal)
	_, ok = rs.Find("DOGEUSDT")
	assert.False(t, ok)
}

func TestResultSet_JSON(t *testing.T) {
	b, err := json.Marshal(sampleResultSet())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "scan-1", decoded["id"])
	records := decoded["records"].([]any)
	first := records[0].(map[string]any)
	assert.Equal(t, "BULLISH_CROSS", first["signal"])
	assert.Equal(t, "ETHUSDT", first["symbol"])
}
