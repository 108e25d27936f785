package levels

import (
	"fmt"
	"time"

	"LevelScan/internal/domain/models"
	"LevelScan/pkg/config"
)

// MinCandles is the shortest series the detector will look at.
const MinCandles = 100

// pivot is one local extremum candidate before clustering.
type pivot struct {
	price float64
	kind  models.LevelType // support or resistance
}

// Detector finds structurally significant price levels: local pivots
// clustered into support/resistance channels, plus EMA pseudo-levels.
type Detector struct {
	rules map[string]config.LevelRules
}

func NewDetector(rules map[string]config.LevelRules) *Detector {
	return &Detector{rules: rules}
}

// Detect returns the level set for one (instrument, timeframe) series.
// Series without rules for the timeframe or below the length floor yield nil;
// that is a skip, not an error.
func (d *Detector) Detect(symbol, timeframe string, candles []models.Candle) []models.Level {
	rules, ok := d.rules[timeframe]
	if !ok || len(candles) < MinCandles {
		return nil
	}

	pivots := detectPivots(candles, rules.PivotPeriod)
	if len(pivots) > rules.MaxPivotPoints {
		pivots = pivots[len(pivots)-rules.MaxPivotPoints:]
	}

	lastClose := candles[len(candles)-1].Close
	width := avgClose(candles, 50) * rules.MaxChannelWidthPct / 100
	now := time.Now().Unix()

	var out []models.Level
	for _, cl := range clusterPivots(pivots, width) {
		if len(cl) < rules.MinStrength {
			continue
		}
		out = append(out, promote(symbol, timeframe, cl, lastClose, now))
	}

	// EMA pseudo-levels carry fixed strengths so downstream strength filters
	// never prune them.
	if len(candles) >= 200 {
		closes := models.Closes(candles)
		for _, e := range []struct {
			span     int
			kind     models.LevelType
			strength int
		}{
			{50, models.LevelEMA50, 5},
			{200, models.LevelEMA200, 6},
		} {
			ema := lastEMA(closes, e.span)
			out = append(out, models.Level{
				Symbol:      symbol,
				Timeframe:   timeframe,
				Price:       ema,
				Type:        e.kind,
				Strength:    e.strength,
				Upper:       ema,
				Lower:       ema,
				Distance:    relDistance(ema, lastClose),
				LastTouched: now,
			})
		}
	}
	return out
}

// detectPivots marks a candle as a pivot high (resistance) when its high is
// the maximum of the symmetric 2×period+1 window, a pivot low (support)
// analogously; a candle that is both counts as resistance only.
func detectPivots(candles []models.Candle, period int) []pivot {
	var out []pivot
	for i := period; i < len(candles)-period; i++ {
		isHigh, isLow := true, true
		for j := i - period; j <= i+period; j++ {
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
		}
		switch {
		case isHigh:
			out = append(out, pivot{price: candles[i].High, kind: models.LevelResistance})
		case isLow:
			out = append(out, pivot{price: candles[i].Low, kind: models.LevelSupport})
		}
	}
	return out
}

// clusterPivots does a greedy single pass: each unconsumed pivot seeds a
// cluster and folds in every later unconsumed pivot within width of it.
func clusterPivots(pivots []pivot, width float64) [][]pivot {
	used := make([]bool, len(pivots))
	var clusters [][]pivot
	for i, p := range pivots {
		if used[i] {
			continue
		}
		cluster := []pivot{p}
		for j := i + 1; j < len(pivots); j++ {
			if used[j] {
				continue
			}
			if abs(p.price-pivots[j].price) <= width {
				cluster = append(cluster, pivots[j])
				used[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// promote turns a cluster into a Level: majority-vote type (ties toward
// resistance), mean price, min/max channel bounds.
func promote(symbol, timeframe string, cluster []pivot, lastClose float64, now int64) models.Level {
	var sum, lo, hi float64
	resistance := 0
	lo, hi = cluster[0].price, cluster[0].price
	for _, p := range cluster {
		sum += p.price
		if p.price < lo {
			lo = p.price
		}
		if p.price > hi {
			hi = p.price
		}
		if p.kind == models.LevelResistance {
			resistance++
		}
	}
	kind := models.LevelSupport
	if resistance*2 >= len(cluster) {
		kind = models.LevelResistance
	}
	price := sum / float64(len(cluster))
	return models.Level{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Price:       price,
		Type:        kind,
		Strength:    len(cluster),
		Upper:       hi,
		Lower:       lo,
		Distance:    relDistance(price, lastClose),
		LastTouched: now,
	}
}

// Merge folds duplicate levels on the (symbol, timeframe, price@8dp) key:
// the fold keeps the maximum strength, counts the touch and refreshes
// last_touched. First-seen order is preserved.
func Merge(all []models.Level) []models.Level {
	index := make(map[string]int, len(all))
	out := make([]models.Level, 0, len(all))
	now := time.Now().Unix()
	for _, lvl := range all {
		key := fmt.Sprintf("%s_%s_%.8f", lvl.Symbol, lvl.Timeframe, lvl.Price)
		if i, ok := index[key]; ok {
			if lvl.Strength > out[i].Strength {
				out[i].Strength = lvl.Strength
			}
			out[i].Touched++
			out[i].LastTouched = now
			continue
		}
		index[key] = len(out)
		out = append(out, lvl)
	}
	return out
}

func avgClose(candles []models.Candle, n int) float64 {
	if len(candles) < n {
		n = len(candles)
	}
	var sum float64
	for _, c := range candles[len(candles)-n:] {
		sum += c.Close
	}
	return sum / float64(n)
}

func lastEMA(xs []float64, span int) float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	ema := xs[0]
	for _, x := range xs[1:] {
		ema = alpha*x + (1-alpha)*ema
	}
	return ema
}

func relDistance(price, lastClose float64) float64 {
	return abs(price-lastClose) / lastClose
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
