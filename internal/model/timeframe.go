package model

// Timeframe is the bucket size of each bar. The core treats it as opaque.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// Timeframes lists every supported bucket size, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF1w}
}

// IsValid reports whether tf is one of the supported bucket sizes.
func (tf Timeframe) IsValid() bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF1w:
		return true
	default:
		return false
	}
}
