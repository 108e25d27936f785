package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestEMAConstantSeriesStaysFlat(t *testing.T) {
	xs := []float64{5, 5, 5, 5, 5, 5}
	out := EMA(xs, 3)
	for i, v := range out {
		if !almostEqual(v, 5, 1e-12) {
			t.Fatalf("out[%d] = %v, want 5", i, v)
		}
	}
}

func TestEMAEmptyAndBadSpan(t *testing.T) {
	if got := EMA(nil, 3); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
	out := EMA([]float64{1, 2}, 0)
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("bad span should return zero slice, got %v", out)
	}
}

func TestSMAWindow(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	out := SMA(xs, 3)
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatalf("warm-up positions must be NaN, got %v", out[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(out[i+2], w, 1e-12) {
			t.Fatalf("out[%d] = %v, want %v", i+2, out[i+2], w)
		}
	}
}

func TestSMAShorterThanWindow(t *testing.T) {
	out := SMA([]float64{1, 2}, 3)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("out[%d] = %v, want NaN", i, v)
		}
	}
}

func TestStdDevSampleVariance(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	out := StdDev(xs, 3)
	// sample stddev of {1,2,3} and {2,3,4} is 1
	if !almostEqual(out[2], 1, 1e-12) || !almostEqual(out[3], 1, 1e-12) {
		t.Fatalf("got %v %v, want 1 1", out[2], out[3])
	}
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatal("warm-up positions must be NaN")
	}
}

func TestRSIKnownValue(t *testing.T) {
	// period 2: moves +2 then -1, avg gain 1, avg loss 0.5, RS 2
	out := RSI([]float64{10, 12, 11}, 2)
	if !almostEqual(out[2], 100-100.0/3.0, 1e-9) {
		t.Fatalf("RSI = %v, want %v", out[2], 100-100.0/3.0)
	}
}

func TestRSIMonotonicGainsSaturate(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	out := RSI(closes, 3)
	for i := 0; i < 3; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("out[%d] = %v, want NaN in warm-up", i, out[i])
		}
	}
	for i := 3; i < len(out); i++ {
		if out[i] != 100 {
			t.Fatalf("out[%d] = %v, want 100 on an all-gain window", i, out[i])
		}
	}
}

func TestRSIFlatSeriesUndefined(t *testing.T) {
	closes := []float64{5, 5, 5, 5, 5, 5}
	out := RSI(closes, 3)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("out[%d] = %v, want NaN with no gains or losses", i, v)
		}
	}
}

func TestRSITooShort(t *testing.T) {
	out := RSI([]float64{1, 2}, 14)
	for _, v := range out {
		if !math.IsNaN(v) {
			t.Fatal("short series must be all NaN")
		}
	}
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	line, sig, hist := MACD(closes, 12, 26, 9)
	n := len(closes) - 1
	if !almostEqual(line[n], 0, 1e-9) || !almostEqual(sig[n], 0, 1e-9) || !almostEqual(hist[n], 0, 1e-9) {
		t.Fatalf("flat series: line=%v sig=%v hist=%v, want zeros", line[n], sig[n], hist[n])
	}
}

func TestMACDHistogramIsLineMinusSignal(t *testing.T) {
	closes := []float64{1, 3, 2, 5, 4, 7, 6, 9, 8, 11}
	line, sig, hist := MACD(closes, 3, 6, 2)
	for i := range closes {
		if !almostEqual(hist[i], line[i]-sig[i], 1e-12) {
			t.Fatalf("hist[%d] = %v, want %v", i, hist[i], line[i]-sig[i])
		}
	}
}

func TestBollingerSymmetricAroundMid(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	mid, upper, lower := Bollinger(closes, 4, 2)
	for i := 3; i < len(closes); i++ {
		if !almostEqual(upper[i]-mid[i], mid[i]-lower[i], 1e-12) {
			t.Fatalf("bands not symmetric at %d: %v %v %v", i, lower[i], mid[i], upper[i])
		}
		if upper[i] <= mid[i] {
			t.Fatalf("upper band must exceed mid at %d", i)
		}
	}
	if !math.IsNaN(upper[0]) || !math.IsNaN(lower[2]) {
		t.Fatal("warm-up bands must be NaN")
	}
}

func TestStochasticCloseAtExtremes(t *testing.T) {
	highs := []float64{10, 10, 10, 10}
	lows := []float64{5, 5, 5, 5}

	atHigh := []float64{7, 8, 9, 10}
	k, _ := Stochastic(highs, lows, atHigh, 3, 2)
	if !almostEqual(k[3], 100, 1e-12) {
		t.Fatalf("close at high: %%K = %v, want 100", k[3])
	}

	atLow := []float64{7, 6, 5, 5}
	k, _ = Stochastic(highs, lows, atLow, 3, 2)
	if !almostEqual(k[3], 0, 1e-12) {
		t.Fatalf("close at low: %%K = %v, want 0", k[3])
	}
}

func TestStochasticFlatWindowUndefined(t *testing.T) {
	flat := []float64{5, 5, 5, 5}
	k, d := Stochastic(flat, flat, flat, 3, 2)
	for i := range flat {
		if !math.IsNaN(k[i]) || !math.IsNaN(d[i]) {
			t.Fatalf("flat window must be NaN at %d, got k=%v d=%v", i, k[i], d[i])
		}
	}
}

func TestStochasticDIsSmoothedK(t *testing.T) {
	highs := []float64{10, 11, 12, 13, 14, 15}
	lows := []float64{8, 9, 10, 11, 12, 13}
	closes := []float64{9, 10, 11, 12, 13, 14}
	k, d := Stochastic(highs, lows, closes, 3, 2)
	n := len(closes) - 1
	want := (k[n] + k[n-1]) / 2
	if !almostEqual(d[n], want, 1e-12) {
		t.Fatalf("%%D = %v, want %v", d[n], want)
	}
}
