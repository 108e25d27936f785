package fibo

import (
	"math"
	"testing"

	"LevelScan/internal/domain/models"
)

func rangeCandles(n int, high, low float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{Time: int64(i) * 3_600_000, High: (high + low) / 2, Low: (high + low) / 2, Close: (high + low) / 2}
	}
	// plant the extremes mid-series
	out[n/3].High = high
	out[2*n/3].Low = low
	return out
}

func TestCalculateRetracementValues(t *testing.T) {
	fl := NewEngine().Calculate("BTCUSDT", "1h", rangeCandles(60, 200, 100))
	if fl == nil {
		t.Fatal("expected a retracement set")
	}
	if fl.High != 200 || fl.Low != 100 {
		t.Fatalf("range = [%v, %v], want [100, 200]", fl.Low, fl.High)
	}
	// measured down from the high: level(r) = high - (high-low)*r
	want := map[float64]float64{
		0.236: 176.4,
		0.382: 161.8,
		0.5:   150,
		0.618: 138.2,
		0.786: 121.4,
	}
	for r, w := range want {
		got, ok := fl.Levels[r]
		if !ok {
			t.Fatalf("missing ratio %v", r)
		}
		if math.Abs(got-w) > 1e-9 {
			t.Fatalf("level[%v] = %v, want %v", r, got, w)
		}
	}
	if fl.Symbol != "BTCUSDT" || fl.Timeframe != "1h" {
		t.Fatalf("identity = %s/%s", fl.Symbol, fl.Timeframe)
	}
}

func TestCalculateShortSeriesNil(t *testing.T) {
	if got := NewEngine().Calculate("BTCUSDT", "1h", rangeCandles(MinCandles-1, 200, 100)); got != nil {
		t.Fatalf("got %+v, want nil below the floor", got)
	}
}

func TestCalculateFlatRangeCollapses(t *testing.T) {
	fl := NewEngine().Calculate("BTCUSDT", "1h", rangeCandles(60, 100, 100))
	for r, v := range fl.Levels {
		if v != 100 {
			t.Fatalf("level[%v] = %v, want 100 on a zero range", r, v)
		}
	}
}
