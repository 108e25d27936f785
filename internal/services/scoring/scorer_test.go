package scoring

import (
	"testing"

	"LevelScan/internal/domain/models"
	"LevelScan/pkg/config"

	"github.com/creasty/defaults"
)

func defaultWeights(t *testing.T) config.ScoringWeights {
	t.Helper()
	var w config.ScoringWeights
	if err := defaults.Set(&w); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	return w
}

func TestEvaluateConcreteLongScenario(t *testing.T) {
	s := New(defaultWeights(t))

	trend := &models.Trend{Symbol: "BTCUSDT", Direction: models.TrendBullish}
	levels := []models.Level{
		{Symbol: "BTCUSDT", Timeframe: "1h", Price: 99.7, Type: models.LevelSupport, Strength: 3},
	}
	ind := models.NewIndicatorSet("BTCUSDT", "1h")
	ind.SetValue(models.KindRSI, 25)
	ind.SetValue(models.KindMACDHist, 0.002)

	got := s.Evaluate(trend, levels, ind, nil, nil, models.Hypothesis{
		Symbol:       "BTCUSDT",
		Timeframe:    "1h",
		Direction:    models.DirectionLong,
		CurrentPrice: 100,
	})

	// trend 20 + level 15 + RSI 10 + MACD 8
	if got.Value != 53 {
		t.Fatalf("score = %d, want 53 (details: %v)", got.Value, got.Details)
	}
	if got.Recommendation != models.RecommendationStrong {
		t.Fatalf("recommendation = %s, want strong", got.Recommendation)
	}
	if len(got.Details) != 4 {
		t.Fatalf("details = %v, want 4 lines", got.Details)
	}
}

func TestEvaluateAbsentInputsScoreZero(t *testing.T) {
	s := New(defaultWeights(t))

	got := s.Evaluate(nil, nil, nil, nil, nil, models.Hypothesis{
		Symbol:       "ETHUSDT",
		Timeframe:    "4h",
		Direction:    models.DirectionShort,
		CurrentPrice: 2500,
	})
	if got.Value != 0 || len(got.Details) != 0 {
		t.Fatalf("empty evidence scored %d with details %v", got.Value, got.Details)
	}
	if got.Recommendation != models.RecommendationWeak {
		t.Fatalf("recommendation = %s, want weak", got.Recommendation)
	}
}

func TestEvaluateNaNIndicatorNeverCounts(t *testing.T) {
	s := New(defaultWeights(t))
	ind := models.NewIndicatorSet("SOLUSDT", "15m")

	got := s.Evaluate(nil, nil, ind, nil, nil, models.Hypothesis{
		Symbol: "SOLUSDT", Timeframe: "15m",
		Direction: models.DirectionLong, CurrentPrice: 150,
	})
	if got.Value != 0 {
		t.Fatalf("all-NaN indicator set scored %d: %v", got.Value, got.Details)
	}
}

func TestEvaluateAddingEvidenceNeverLowersScore(t *testing.T) {
	s := New(defaultWeights(t))
	hyp := models.Hypothesis{
		Symbol: "BTCUSDT", Timeframe: "1d",
		Direction: models.DirectionShort, CurrentPrice: 60000,
	}
	trend := &models.Trend{Symbol: "BTCUSDT", Direction: models.TrendBearish}

	base := s.Evaluate(nil, nil, nil, nil, nil, hyp).Value
	withTrend := s.Evaluate(trend, nil, nil, nil, nil, hyp).Value
	if withTrend < base {
		t.Fatalf("trend evidence lowered score: %d -> %d", base, withTrend)
	}

	ind := models.NewIndicatorSet("BTCUSDT", "1d")
	ind.SetValue(models.KindRSI, 85)
	ind.SetValue(models.KindSupertrend, -1)
	withInd := s.Evaluate(trend, nil, ind, nil, nil, hyp).Value
	if withInd < withTrend {
		t.Fatalf("indicator evidence lowered score: %d -> %d", withTrend, withInd)
	}
}

func TestEvaluateDirectionGatesRules(t *testing.T) {
	s := New(defaultWeights(t))
	ind := models.NewIndicatorSet("BTCUSDT", "1h")
	ind.SetValue(models.KindRSI, 25) // oversold favors long only

	long := s.Evaluate(nil, nil, ind, nil, nil, models.Hypothesis{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Direction: models.DirectionLong, CurrentPrice: 100,
	})
	short := s.Evaluate(nil, nil, ind, nil, nil, models.Hypothesis{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Direction: models.DirectionShort, CurrentPrice: 100,
	})
	if long.Value != 10 || short.Value != 0 {
		t.Fatalf("long = %d short = %d, want 10/0", long.Value, short.Value)
	}
}

func TestEvaluateFiboAndEMASides(t *testing.T) {
	s := New(defaultWeights(t))
	fib := &models.FiboLevels{
		High: 120, Low: 80,
		Levels: map[float64]float64{0.5: 100.2, 0.618: 95.28},
	}
	ind := models.NewIndicatorSet("BTCUSDT", "1h")
	ind.SetValue(models.KindEMA50, 98)
	ind.SetValue(models.KindEMA200, 103)

	got := s.Evaluate(nil, nil, ind, fib, nil, models.Hypothesis{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Direction: models.DirectionLong, CurrentPrice: 100,
	})
	// fibo 0.5 within 0.8% (+10), EMA50 below price (+5); EMA200 above price is unfavorable
	if got.Value != 15 {
		t.Fatalf("score = %d, want 15: %v", got.Value, got.Details)
	}
}

func TestEvaluateMarketCapChange(t *testing.T) {
	s := New(defaultWeights(t))
	now := int64(1_700_000_000)
	caps := []models.MarketCapPoint{
		{TotalCap: 2.0e12, FetchedAt: now - 25*3600},
		{TotalCap: 2.1e12, FetchedAt: now}, // +5% over 24h
	}

	long := s.Evaluate(nil, nil, nil, nil, caps, models.Hypothesis{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Direction: models.DirectionLong, CurrentPrice: 100,
	})
	if long.Value != 3 {
		t.Fatalf("rising cap should add 3 for long, got %d: %v", long.Value, long.Details)
	}

	short := s.Evaluate(nil, nil, nil, nil, caps, models.Hypothesis{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Direction: models.DirectionShort, CurrentPrice: 100,
	})
	if short.Value != 0 {
		t.Fatalf("rising cap must not reward short, got %d", short.Value)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	s := New(defaultWeights(t))
	cases := []struct {
		score int
		want  models.Recommendation
	}{
		{0, models.RecommendationWeak},
		{24, models.RecommendationWeak},
		{25, models.RecommendationModerate},
		{39, models.RecommendationModerate},
		{40, models.RecommendationStrong},
		{90, models.RecommendationStrong},
	}
	for _, tc := range cases {
		if got := s.classify(tc.score); got != tc.want {
			t.Errorf("classify(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
