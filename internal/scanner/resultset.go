package scanner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"CryptoScreener/internal/model"
)

// ResultSet is the ordered outcome of one scan. Records keep the order instruments were listed in.
type ResultSet struct {
	ID         string               `json:"id"`
	Exchange   string               `json:"exchange"`
	Params     model.ScanParameters `json:"parameters"`
	Total      int                  `json:"total"` // instruments considered after truncation
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Partial    bool                 `json:"partial"`
	Records    []model.SignalRecord `json:"records"`
}

// Len returns the number of records.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Duration returns the wall time of the scan.
func (rs *ResultSet) Duration() time.Duration {
	return rs.FinishedAt.Sub(rs.StartedAt)
}

// withRecords copies the metadata of rs onto a new record slice.
func (rs *ResultSet) withRecords(records []model.SignalRecord) *ResultSet {
	out := *rs
	out.Records = records
	return &out
}

// Filter returns the records whose signal is in signals and whose trend is in trends.
// An empty facet selects nothing. rs is not modified.
func Filter(rs *ResultSet, signals []model.Signal, trends []model.Trend) *ResultSet {
	if rs == nil {
		return nil
	}
	return rs.Filter(signals, trends)
}

// Filter is the method form of the package-level Filter.
func (rs *ResultSet) Filter(signals []model.Signal, trends []model.Trend) *ResultSet {
	sigSet := make(map[model.Signal]struct{}, len(signals))
	for _, s := range signals {
		sigSet[s] = struct{}{}
	}
	trendSet := make(map[model.Trend]struct{}, len(trends))
	for _, t := range trends {
		trendSet[t] = struct{}{}
	}

	records := make([]model.SignalRecord, 0, len(rs.Records))
	for _, r := range rs.Records {
		if _, ok := sigSet[r.Signal]; !ok {
			continue
		}
		if _, ok := trendSet[r.Trend]; !ok {
			continue
		}
		records = append(records, r)
	}
	return rs.withRecords(records)
}

// Summary holds the headline counts of a result set.
type Summary struct {
	Scanned  int                  `json:"scanned"`
	Found    int                  `json:"found"`
	Bullish  int                  `json:"bullish"`
	Bearish  int                  `json:"bearish"`
	Neutral  int                  `json:"neutral"`
	Crosses  int                  `json:"crosses"`
	BySignal map[model.Signal]int `json:"by_signal"`
}

// Summary counts the records by direction and crosses.
func (rs *ResultSet) Summary() Summary {
	s := Summary{
		Scanned:  rs.Total,
		Found:    len(rs.Records),
		BySignal: rs.Counts(),
	}
	s.Bullish = s.BySignal[model.SignalBullishCross] + s.BySignal[model.SignalBullishTrend]
	s.Bearish = s.BySignal[model.SignalBearishCross] + s.BySignal[model.SignalBearishTrend]
	s.Neutral = s.BySignal[model.SignalNeutral]
	for sig, n := range s.BySignal {
		if sig.IsCross() {
			s.Crosses += n
		}
	}
	return s
}

// Counts returns the number of records per signal.
func (rs *ResultSet) Counts() map[model.Signal]int {
	counts := make(map[model.Signal]int, len(model.AllSignals()))
	for _, r := range rs.Records {
		counts[r.Signal]++
	}
	return counts
}

// SortKey orders a sorted view.
type SortKey string

const (
	SortNone   SortKey = ""
	SortSymbol SortKey = "symbol"
	SortPrice  SortKey = "price"
	SortGap    SortKey = "gap"
)

// ParseSortKey maps a query value to a SortKey. The empty string keeps scan order.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortNone, SortSymbol, SortPrice, SortGap:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Sorted returns a stable sorted copy: symbol ascending, price descending,
// or gap (absolute EMA distance relative to the slow EMA) descending.
func (rs *ResultSet) Sorted(key SortKey) *ResultSet {
	records := make([]model.SignalRecord, len(rs.Records))
	copy(records, rs.Records)

	switch key {
	case SortSymbol:
		sort.SliceStable(records, func(i, j int) bool { return records[i].Symbol < records[j].Symbol })
	case SortPrice:
		sort.SliceStable(records, func(i, j int) bool { return records[i].Price > records[j].Price })
	case SortGap:
		sort.SliceStable(records, func(i, j int) bool {
			return math.Abs(records[i].Gap()) > math.Abs(records[j].Gap())
		})
	}
	return rs.withRecords(records)
}

// Find returns the record for symbol.
func (rs *ResultSet) Find(symbol string) (model.SignalRecord, bool) {
	for _, r := range rs.Records {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return model.SignalRecord{}, false
}
