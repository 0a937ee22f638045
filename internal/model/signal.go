package model

import "fmt"

// Signal is the crossover classification of an instrument's latest bar.
type Signal string

const (
	SignalBullishCross Signal = "BULLISH_CROSS"
	SignalBearishCross Signal = "BEARISH_CROSS"
	SignalBullishTrend Signal = "BULLISH_TREND"
	SignalBearishTrend Signal = "BEARISH_TREND"
	SignalNeutral      Signal = "NEUTRAL"
)

// AllSignals returns every signal value in decision order.
func AllSignals() []Signal {
	return []Signal{SignalBullishCross, SignalBearishCross, SignalBullishTrend, SignalBearishTrend, SignalNeutral}
}

// ParseSignal converts a case-sensitive wire value into a Signal.
func ParseSignal(s string) (Signal, error) {
	for _, v := range AllSignals() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown signal %q", s)
}

// IsCross reports whether the signal marks a crossover on the latest bar.
func (s Signal) IsCross() bool {
	return s == SignalBullishCross || s == SignalBearishCross
}

// Trend is the side of the slow EMA the fast EMA sits on.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
)

// AllTrends returns both trend values.
func AllTrends() []Trend {
	return []Trend{TrendBullish, TrendBearish}
}

// ParseTrend converts a case-sensitive wire value into a Trend.
func ParseTrend(s string) (Trend, error) {
	switch Trend(s) {
	case TrendBullish, TrendBearish:
		return Trend(s), nil
	default:
		return "", fmt.Errorf("unknown trend %q", s)
	}
}

// SignalRecord is one instrument's scan outcome.
type SignalRecord struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	EMAFast float64 `json:"ema_fast"`
	EMASlow float64 `json:"ema_slow"`
	Signal  Signal  `json:"signal"`
	Trend   Trend   `json:"trend"`
}

// Gap returns the relative distance of the fast EMA from the slow EMA.
func (r SignalRecord) Gap() float64 {
	if r.EMASlow == 0 {
		return 0
	}
	return (r.EMAFast - r.EMASlow) / r.EMASlow
}
