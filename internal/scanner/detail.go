package scanner

import (
	"context"
	"fmt"

	"CryptoScreener/internal/calculator"
	"CryptoScreener/internal/model"
)

// Detail re-fetches one instrument and returns its bars with both EMA overlays.
func (s *Scanner) Detail(ctx context.Context, params model.ScanParameters, symbol string) (*model.Chart, error) {
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	bars, err := s.provider.FetchBars(ctx, symbol, params.Timeframe, params.BarLimit)
	if err != nil {
		return nil, fmt.Errorf("detail %s: %w", symbol, err)
	}
	return BuildChart(symbol, params, bars)
}

// BuildChart computes the chart series for bars.
func BuildChart(symbol string, params model.ScanParameters, bars model.Series) (*model.Chart, error) {
	fast, slow, err := calculator.CalculateEMAPair(bars, params.FastPeriod, params.SlowPeriod)
	if err != nil {
		return nil, fmt.Errorf("detail %s: %w", symbol, err)
	}
	points := make([]model.ChartPoint, len(bars))
	for i, b := range bars {
		points[i] = model.ChartPoint{
			OHLCV:   b,
			EMAFast: fast[i],
			EMASlow: slow[i],
			Rising:  b.Close >= b.Open,
		}
	}
	return &model.Chart{
		Symbol:     symbol,
		Timeframe:  params.Timeframe,
		FastPeriod: params.FastPeriod,
		SlowPeriod: params.SlowPeriod,
		Points:     points,
	}, nil
}
