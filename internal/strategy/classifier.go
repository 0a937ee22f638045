package strategy

import (
	"errors"
	"fmt"
	"math"

	"CryptoScreener/internal/calculator"
	"CryptoScreener/internal/model"
)

// ErrInsufficientHistory is returned when a series is too short to compare two bars.
var ErrInsufficientHistory = errors.New("insufficient history")

// MinBars returns the number of bars an instrument needs for the given slow period:
// the slow window plus the previous bar, never fewer than two. It saturates at math.MaxInt.
func MinBars(slowPeriod int) int {
	if slowPeriod >= math.MaxInt {
		return math.MaxInt
	}
	return max(slowPeriod, 1) + 1
}

// Classify maps the latest and previous EMA pair to a signal and trend.
// The first matching rule wins; equality on the latest bar is not bullish.
func Classify(latestFast, latestSlow, prevFast, prevSlow float64) (model.Signal, model.Trend) {
	trend := model.TrendBearish
	if latestFast > latestSlow {
		trend = model.TrendBullish
	}

	switch {
	case latestFast > latestSlow && prevFast <= prevSlow:
		return model.SignalBullishCross, trend
	case latestFast < latestSlow && prevFast >= prevSlow:
		return model.SignalBearishCross, trend
	case latestFast > latestSlow:
		return model.SignalBullishTrend, trend
	case latestFast < latestSlow:
		return model.SignalBearishTrend, trend
	default:
		return model.SignalNeutral, trend
	}
}

// Evaluate computes both EMAs over the series and classifies its last bar.
func Evaluate(symbol string, bars model.Series, fastPeriod, slowPeriod int) (*model.SignalRecord, error) {
	if need := MinBars(slowPeriod); len(bars) < need {
		return nil, fmt.Errorf("%s: %w: have %d bars, need %d", symbol, ErrInsufficientHistory, len(bars), need)
	}

	fast, slow, err := calculator.CalculateEMAPair(bars, fastPeriod, slowPeriod)
	if err != nil {
		return nil, fmt.Errorf("%s: ema: %w", symbol, err)
	}

	n := len(bars)
	sig, trend := Classify(fast[n-1], slow[n-1], fast[n-2], slow[n-2])

	return &model.SignalRecord{
		Symbol:  symbol,
		Price:   bars.Last().Close,
		EMAFast: fast[n-1],
		EMASlow: slow[n-1],
		Signal:  sig,
		Trend:   trend,
	}, nil
}
