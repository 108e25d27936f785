package indicators

import (
	"math"

	"LevelScan/internal/domain/models"
)

// OBV accumulates sign(close diff) × volume.
func OBV(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - candles[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// VWAP computes a rolling volume-weighted average of the typical price.
// A window with zero traded volume is undefined.
func VWAP(candles []models.Candle, window int) []float64 {
	out := nanSlice(len(candles))
	if len(candles) < window {
		return out
	}
	for i := window - 1; i < len(candles); i++ {
		var pv, vol float64
		for j := i - window + 1; j <= i; j++ {
			typical := (candles[j].High + candles[j].Low + candles[j].Close) / 3
			pv += typical * candles[j].Volume
			vol += candles[j].Volume
		}
		if vol == 0 {
			continue // NaN: nothing traded
		}
		out[i] = pv / vol
	}
	return out
}

// PointOfControl returns the center of the price bin accumulating the most
// traded volume across a fixed bin count. Candle volume lands in the bin of
// its close. A flat series has no profile.
func PointOfControl(candles []models.Candle, bins int) float64 {
	if len(candles) == 0 || bins <= 0 {
		return math.NaN()
	}
	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	if hi == lo {
		return math.NaN()
	}
	width := (hi - lo) / float64(bins)
	acc := make([]float64, bins)
	for _, c := range candles {
		idx := int((c.Close - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		acc[idx] += c.Volume
	}
	best := 0
	for i := 1; i < bins; i++ {
		if acc[i] > acc[best] {
			best = i
		}
	}
	return lo + (float64(best)+0.5)*width
}
