package model

import "github.com/creasty/defaults"

// ScanParameters configures one scan invocation.
// Defaults are applied by config loading and the HTTP layer, never by the scanner itself.
type ScanParameters struct {
	ExchangeID string    `yaml:"exchange_id" json:"exchange_id"`
	FastPeriod int       `yaml:"fast_period" json:"fast_period" default:"9" validate:"min=1,max=1000"`
	SlowPeriod int       `yaml:"slow_period" json:"slow_period" default:"26" validate:"gtfield=FastPeriod,max=1000"`
	Timeframe  Timeframe `yaml:"timeframe" json:"timeframe" default:"1h" validate:"timeframe"`
	MaxSymbols int       `yaml:"max_symbols" json:"max_symbols" default:"100" validate:"min=1,max=1000"`
	BarLimit   int       `yaml:"bar_limit" json:"bar_limit" default:"100" validate:"min=1,max=1500"`
}

// ApplyDefaults fills zero-valued fields from the struct's default tags.
func (p *ScanParameters) ApplyDefaults() error {
	return defaults.Set(p)
}

// DefaultScanParameters returns the reference settings: EMA 9/26 on 1h bars, 100 symbols, 100 bars.
func DefaultScanParameters() ScanParameters {
	var p ScanParameters
	_ = p.ApplyDefaults()
	return p
}
