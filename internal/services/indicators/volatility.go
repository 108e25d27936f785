package indicators

import (
	"math"

	"LevelScan/internal/domain/models"
)

// TrueRange returns the true-range series; index 0 falls back to high-low.
func TrueRange(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		hl := c.High - c.Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prev := candles[i-1].Close
		out[i] = math.Max(hl, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	return out
}

// ATR computes a Wilder-smoothed average true range: the first value is a
// simple mean, the rest carry (prev*(n-1)+tr)/n.
func ATR(candles []models.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if len(candles) < period+1 {
		return out
	}
	tr := TrueRange(candles)
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// ADX derives the average directional index from Wilder-smoothed directional
// movement over the smoothed true range. Flat stretches where DI+ + DI- is
// zero leave DX undefined for that bar.
func ADX(candles []models.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if len(candles) < 2*period+1 {
		return out
	}
	n := len(candles)
	tr := TrueRange(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder running sums seeded from the first `period` bars.
	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}
	dx := nanSlice(n)
	for i := period; i < n; i++ {
		if i > period {
			sTR = sTR - sTR/float64(period) + tr[i]
			sPlus = sPlus - sPlus/float64(period) + plusDM[i]
			sMinus = sMinus - sMinus/float64(period) + minusDM[i]
		}
		if sTR == 0 {
			continue
		}
		diPlus := 100 * sPlus / sTR
		diMinus := 100 * sMinus / sTR
		if diPlus+diMinus == 0 {
			continue // NaN: no directional movement at all
		}
		dx[i] = 100 * math.Abs(diPlus-diMinus) / (diPlus + diMinus)
	}

	// ADX: mean of the first `period` DX values, Wilder-carried after.
	var sum float64
	count := 0
	for i := period; i < 2*period && i < n; i++ {
		if math.IsNaN(dx[i]) {
			continue
		}
		sum += dx[i]
		count++
	}
	if count == 0 {
		return out
	}
	out[2*period-1] = sum / float64(count)
	for i := 2 * period; i < n; i++ {
		if math.IsNaN(dx[i]) {
			out[i] = out[i-1]
			continue
		}
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

// Supertrend returns the binary trend flag series (+1 bullish, -1 bearish)
// from ATR-based bands with the usual carry: while price stays inside the
// channel the prior band and flag are retained.
func Supertrend(candles []models.Candle, period int, mult float64) []float64 {
	out := nanSlice(len(candles))
	atr := ATR(candles, period)
	if len(candles) < period+2 {
		return out
	}

	upper := nanSlice(len(candles))
	lower := nanSlice(len(candles))
	for i := period; i < len(candles); i++ {
		if math.IsNaN(atr[i]) {
			continue
		}
		mid := (candles[i].High + candles[i].Low) / 2
		bu := mid + mult*atr[i]
		bl := mid - mult*atr[i]

		// carry prior bands while price has not crossed them
		if i > period && !math.IsNaN(upper[i-1]) && candles[i-1].Close <= upper[i-1] && upper[i-1] < bu {
			bu = upper[i-1]
		}
		if i > period && !math.IsNaN(lower[i-1]) && candles[i-1].Close >= lower[i-1] && lower[i-1] > bl {
			bl = lower[i-1]
		}
		upper[i] = bu
		lower[i] = bl

		if i == period {
			if candles[i].Close > bu {
				out[i] = 1
			} else {
				out[i] = -1
			}
			continue
		}
		switch {
		case candles[i].Close > upper[i-1]:
			out[i] = 1
		case candles[i].Close < lower[i-1]:
			out[i] = -1
		default:
			out[i] = out[i-1] // inside the channel: carry the flag
		}
	}
	return out
}
