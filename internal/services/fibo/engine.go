package fibo

import "LevelScan/internal/domain/models"

// MinCandles is the shortest series retracements are computed from.
const MinCandles = 50

// Ratios are the classic retracement ratios, shallow to deep.
var Ratios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// Engine computes Fibonacci retracement levels from a series' high/low range.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Calculate returns the retracement set for one pair, or nil when the series
// is too short. Levels are measured down from the range high.
func (e *Engine) Calculate(symbol, timeframe string, candles []models.Candle) *models.FiboLevels {
	if len(candles) < MinCandles {
		return nil
	}
	high, low := candles[0].High, candles[0].Low
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	levels := make(map[float64]float64, len(Ratios))
	for _, r := range Ratios {
		levels[r] = high - (high-low)*r
	}
	return &models.FiboLevels{
		Symbol:    symbol,
		Timeframe: timeframe,
		High:      high,
		Low:       low,
		Levels:    levels,
	}
}
