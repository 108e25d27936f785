package scoring

import (
	"fmt"
	"math"

	"LevelScan/internal/domain/models"
	"LevelScan/pkg/config"

	"github.com/creasty/defaults"
)

// Scorer accumulates points from independent additive rules. Evaluate is pure:
// identical inputs produce an identical score and detail ordering, and a rule
// whose input is absent is silently skipped, never counted against.
type Scorer struct {
	w config.ScoringWeights
}

// New builds a scorer around an immutable weight configuration. A zero-value
// config is filled with the defaults.
func New(w config.ScoringWeights) *Scorer {
	if w == (config.ScoringWeights{}) {
		_ = defaults.Set(&w)
	}
	return &Scorer{w: w}
}

// Weights exposes the effective configuration (for logging and tests).
func (s *Scorer) Weights() config.ScoringWeights { return s.w }

// Evaluate scores one directional hypothesis against trend, level, indicator,
// Fibonacci and macro-capitalization evidence. Rules fire in a fixed order;
// rationale lines are appended in that order and never reordered.
func (s *Scorer) Evaluate(
	trend *models.Trend,
	levels []models.Level,
	ind *models.IndicatorSet,
	fib *models.FiboLevels,
	caps []models.MarketCapPoint,
	hyp models.Hypothesis,
) models.Score {
	w := s.w
	long := hyp.Direction == models.DirectionLong
	price := hyp.CurrentPrice

	score := 0
	var details []string
	add := func(points int, line string) {
		score += points
		details = append(details, line)
	}

	// 1. trend alignment
	if trend != nil {
		if (long && trend.Direction == models.TrendBullish) ||
			(!long && trend.Direction == models.TrendBearish) {
			add(w.TrendAlignment, fmt.Sprintf("trend %s confirms %s", trend.Direction, hyp.Direction))
		}
	}

	// 2. level proximity: every level in range contributes
	for _, lvl := range levels {
		if lvl.Symbol != hyp.Symbol || lvl.Timeframe != hyp.Timeframe {
			continue
		}
		if math.Abs(lvl.Price-price) < w.LevelProximityPct*price {
			add(w.LevelProximity, fmt.Sprintf("near %s level %.8f", lvl.Type, lvl.Price))
		}
	}

	// 3. fibonacci proximity, shallow ratios first for a stable order
	if fib != nil {
		for _, ratio := range fiboOrder {
			lv, ok := fib.Levels[ratio]
			if !ok {
				continue
			}
			if math.Abs(lv-price) < w.FiboProximityPct*price {
				add(w.FiboProximity, fmt.Sprintf("near fibo %.3f at %.8f", ratio, lv))
			}
		}
	}

	if ind != nil {
		// 4. RSI extreme
		if ind.Has(models.KindRSI) {
			switch {
			case long && ind.RSI < w.RSILongBelow:
				add(w.RSIExtreme, fmt.Sprintf("RSI %.2f oversold", ind.RSI))
			case !long && ind.RSI > w.RSIShortAbove:
				add(w.RSIExtreme, fmt.Sprintf("RSI %.2f overbought", ind.RSI))
			}
		}

		// 5. MACD histogram polarity
		if ind.Has(models.KindMACDHist) {
			switch {
			case long && ind.MACDHist > 0:
				add(w.MACDHistogram, "MACD histogram positive")
			case !long && ind.MACDHist < 0:
				add(w.MACDHistogram, "MACD histogram negative")
			}
		}

		// 6. funding rate magnitude
		if ind.Has(models.KindFundingRate) && math.Abs(ind.FundingRate) > w.FundingRateAbs {
			add(w.FundingRate, fmt.Sprintf("funding rate %.5f beyond threshold", ind.FundingRate))
		}

		// 7. ADX trend strength
		if ind.Has(models.KindADX) && ind.ADX > w.ADXThreshold {
			add(w.ADXTrend, fmt.Sprintf("ADX %.2f confirms trend strength", ind.ADX))
		}

		// 8. supertrend agreement
		if ind.Has(models.KindSupertrend) {
			switch {
			case long && ind.Supertrend > 0:
				add(w.Supertrend, "supertrend bullish")
			case !long && ind.Supertrend < 0:
				add(w.Supertrend, "supertrend bearish")
			}
		}

		// 9-10. EMA50/EMA200 on the favorable side of price
		for _, e := range []struct {
			kind models.IndicatorKind
			name string
			val  float64
		}{
			{models.KindEMA50, "EMA50", ind.EMA50},
			{models.KindEMA200, "EMA200", ind.EMA200},
		} {
			if !ind.Has(e.kind) {
				continue
			}
			switch {
			case long && e.val < price:
				add(w.EMASide, fmt.Sprintf("%s below price", e.name))
			case !long && e.val > price:
				add(w.EMASide, fmt.Sprintf("%s above price", e.name))
			}
		}

		// 11. stochastic %K and %D jointly extreme
		if ind.Has(models.KindStochK) && ind.Has(models.KindStochD) {
			switch {
			case long && ind.StochK < w.StochLongBelow && ind.StochD < w.StochLongBelow:
				add(w.Stochastic, fmt.Sprintf("stochastic %.2f/%.2f oversold", ind.StochK, ind.StochD))
			case !long && ind.StochK > w.StochShortAbove && ind.StochD > w.StochShortAbove:
				add(w.Stochastic, fmt.Sprintf("stochastic %.2f/%.2f overbought", ind.StochK, ind.StochD))
			}
		}
	}

	// 12. macro capitalization 24h change
	if change, ok := capChange24h(caps); ok {
		switch {
		case long && change > w.MarketCapPct:
			add(w.MarketCapTrend, fmt.Sprintf("market cap %+.2f%% over 24h", change))
		case !long && change < -w.MarketCapPct:
			add(w.MarketCapTrend, fmt.Sprintf("market cap %+.2f%% over 24h", change))
		}
	}

	return models.Score{
		Value:          score,
		Recommendation: s.classify(score),
		Details:        details,
	}
}

func (s *Scorer) classify(score int) models.Recommendation {
	switch {
	case score >= s.w.StrongAt:
		return models.RecommendationStrong
	case score >= s.w.ModerateAt:
		return models.RecommendationModerate
	default:
		return models.RecommendationWeak
	}
}

// fiboOrder fixes detail ordering; map iteration would not be deterministic.
var fiboOrder = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// capChange24h returns the percentage change between the latest sample and
// the newest sample at least 24h older. Short series report absent.
func capChange24h(caps []models.MarketCapPoint) (float64, bool) {
	if len(caps) < 2 {
		return 0, false
	}
	latest := caps[len(caps)-1]
	cutoff := latest.FetchedAt - 24*3600
	var base *models.MarketCapPoint
	for i := range caps {
		if caps[i].FetchedAt <= cutoff {
			base = &caps[i]
		}
	}
	if base == nil || base.TotalCap == 0 {
		return 0, false
	}
	return (latest.TotalCap - base.TotalCap) / base.TotalCap * 100, true
}
