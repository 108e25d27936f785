package indicators

import "math"

// Series helpers mirror rolling/ewm semantics: positions before the window is
// full are NaN, and a degenerate denominator yields NaN instead of panicking.
// NaN values are treated as absent downstream, never as zero.

// EMA computes an exponential moving average with smoothing 2/(span+1),
// seeded from the first value.
func EMA(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SMA computes a simple moving average over a fixed window.
func SMA(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	if window <= 0 || len(xs) < window {
		return out
	}
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// StdDev computes a rolling sample standard deviation (ddof=1).
func StdDev(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	if window <= 1 || len(xs) < window {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		var mean float64
		for j := i - window + 1; j <= i; j++ {
			mean += xs[j]
		}
		mean /= float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := xs[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// RSI computes the relative strength index using simple-mean gains/losses.
// An all-gain window saturates at 100 (the gain/loss ratio diverges); a
// window with neither gains nor losses has no defined ratio and yields NaN.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) < period+1 {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := SMA(gains[1:], period)
	avgLoss := SMA(losses[1:], period)
	for i := period - 1; i < len(avgGain); i++ {
		if avgLoss[i] == 0 {
			if avgGain[i] > 0 {
				out[i+1] = 100
			}
			continue // 0/0 stays NaN
		}
		rs := avgGain[i] / avgLoss[i]
		out[i+1] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the MACD line, signal line and histogram for the
// fast/slow/signal spans.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Bollinger returns the middle, upper and lower bands (SMA ± k sigma).
func Bollinger(closes []float64, window int, k float64) (mid, upper, lower []float64) {
	mid = SMA(closes, window)
	std := StdDev(closes, window)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(mid[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return mid, upper, lower
}

// Stochastic returns %K over kPeriod and its dPeriod SMA as %D.
// A flat window (high == low) leaves %K undefined.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	k = nanSlice(len(closes))
	for i := kPeriod - 1; i < len(closes); i++ {
		lo, hi := lows[i], highs[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			if lows[j] < lo {
				lo = lows[j]
			}
			if highs[j] > hi {
				hi = highs[j]
			}
		}
		if hi == lo {
			continue // NaN: zero range
		}
		k[i] = 100 * (closes[i] - lo) / (hi - lo)
	}
	d = nanSMA(k, dPeriod)
	return k, d
}

// nanSMA averages a window, yielding NaN whenever the window holds a NaN.
func nanSMA(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		var sum float64
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(xs[j]) {
				ok = false
				break
			}
			sum += xs[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	nan := math.NaN()
	for i := range out {
		out[i] = nan
	}
	return out
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}
