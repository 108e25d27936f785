package trend

import (
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
)

// MinCandles is the history floor for the EMA200 crossover.
const MinCandles = 200

// Engine classifies each instrument's bias from the EMA50/EMA200 crossover.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Classify builds one trend row per instrument from all available series.
// Series under the floor are skipped; when an instrument qualifies on several
// timeframes the slowest one wins, so the stored bias reflects higher-timeframe
// structure and is stable across sweeps over the same input. Equal EMAs resolve
// to bearish by the strict comparison.
func (e *Engine) Classify(all map[domrepo.PairKey][]models.Candle) map[string]models.Trend {
	symbols := make(map[string]struct{})
	for key := range all {
		symbols[key.Symbol] = struct{}{}
	}
	trends := make(map[string]models.Trend)
	now := time.Now().Unix()
	for symbol := range symbols {
		for _, tf := range domrepo.AllTimeframes() {
			candles := all[domrepo.PairKey{Symbol: symbol, Timeframe: tf}]
			if len(candles) < MinCandles {
				continue
			}
			closes := models.Closes(candles)
			ema50 := lastEMA(closes, 50)
			ema200 := lastEMA(closes, 200)
			direction := models.TrendBearish
			if ema50 > ema200 {
				direction = models.TrendBullish
			}
			trends[symbol] = models.Trend{
				Symbol:    symbol,
				Direction: direction,
				EMA50:     ema50,
				EMA200:    ema200,
				UpdatedAt: now,
			}
			break
		}
	}
	return trends
}

func lastEMA(xs []float64, span int) float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	ema := xs[0]
	for _, x := range xs[1:] {
		ema = alpha*x + (1-alpha)*ema
	}
	return ema
}
