package repository

import "time"

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// AllTimeframes lists every supported timeframe, slowest first. Sweeps walk
// this order so higher-timeframe structure is scored before intraday noise.
func AllTimeframes() []Timeframe {
	return []Timeframe{TF1d, TF4h, TF1h, TF15m}
}

// Duration returns the bucket length of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF15m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}
