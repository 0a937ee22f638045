package calculator

import (
	"errors"

	"CryptoScreener/internal/model"
)

// ErrInsufficientData is returned when an indicator is asked to run over an empty series.
var ErrInsufficientData = errors.New("not enough data for EMA calculation")

// CalculateEMA computes the recursive exponential moving average of prices.
// The filter is seeded with the first price and defined from the first sample,
// so the output has one value per input and no warm-up gap.
func CalculateEMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) == 0 {
		return nil, ErrInsufficientData
	}
	alpha := 2.0 / float64(period+1)
	ema := make([]float64, len(prices))
	ema[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		ema[i] = alpha*prices[i] + (1-alpha)*ema[i-1]
	}
	return ema, nil
}

// CalculateEMAPair returns the fast and slow EMA series of the bars' closes.
func CalculateEMAPair(bars model.Series, fastPeriod, slowPeriod int) (fast, slow []float64, err error) {
	closes := bars.Closes()
	fast, err = CalculateEMA(closes, fastPeriod)
	if err != nil {
		return nil, nil, err
	}
	slow, err = CalculateEMA(closes, slowPeriod)
	if err != nil {
		return nil, nil, err
	}
	return fast, slow, nil
}
