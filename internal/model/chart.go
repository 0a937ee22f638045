package model

// ChartPoint is one bar of the detail chart with its EMA overlays.
type ChartPoint struct {
	OHLCV
	EMAFast float64 `json:"ema_fast"`
	EMASlow float64 `json:"ema_slow"`
	Rising  bool    `json:"rising"` // close >= open
}

// Chart holds the detail series for one instrument.
type Chart struct {
	Symbol     string       `json:"symbol"`
	Timeframe  Timeframe    `json:"timeframe"`
	FastPeriod int          `json:"fast_period"`
	SlowPeriod int          `json:"slow_period"`
	Points     []ChartPoint `json:"points"`
}
