package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	"LevelScan/internal/services/alerts"
	"LevelScan/internal/services/fibo"
	"LevelScan/internal/services/indicators"
	"LevelScan/internal/services/levels"
	"LevelScan/internal/services/scoring"
	"LevelScan/internal/services/trend"
	"LevelScan/pkg/config"
	applogger "LevelScan/pkg/logger"
)

// --- in-memory fakes ---

type fakeCandleStore struct {
	mu     sync.Mutex
	series map[domrepo.PairKey][]models.Candle
}

func newFakeCandleStore() *fakeCandleStore {
	return &fakeCandleStore{series: make(map[domrepo.PairKey][]models.Candle)}
}

func (f *fakeCandleStore) put(symbol string, tf domrepo.Timeframe, cs []models.Candle) {
	f.series[domrepo.PairKey{Symbol: symbol, Timeframe: tf}] = cs
}

func (f *fakeCandleStore) GetCandles(_ context.Context, symbol string, tf domrepo.Timeframe) ([]models.Candle, error) {
	return f.series[domrepo.PairKey{Symbol: symbol, Timeframe: tf}], nil
}

func (f *fakeCandleStore) GetCandleRange(_ context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range f.series[domrepo.PairKey{Symbol: symbol, Timeframe: tf}] {
		if c.Time >= from.UnixMilli() && c.Time < to.UnixMilli() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCandleStore) GetAllCandles(_ context.Context, tf domrepo.Timeframe) (map[domrepo.PairKey][]models.Candle, error) {
	out := make(map[domrepo.PairKey][]models.Candle)
	for key, cs := range f.series {
		if key.Timeframe == tf {
			out[key] = cs
		}
	}
	return out, nil
}

func (f *fakeCandleStore) GetLatestClose(_ context.Context, symbol string, tf domrepo.Timeframe) (float64, error) {
	cs := f.series[domrepo.PairKey{Symbol: symbol, Timeframe: tf}]
	if len(cs) == 0 {
		return 0, errors.New("no candles")
	}
	return cs[len(cs)-1].Close, nil
}

func (f *fakeCandleStore) StoreBatch(_ context.Context, symbol string, tf domrepo.Timeframe, cs []models.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domrepo.PairKey{Symbol: symbol, Timeframe: tf}
	f.series[key] = append(f.series[key], cs...)
	return nil
}

func (f *fakeCandleStore) TrimOldest(context.Context, int) error { return nil }
func (f *fakeCandleStore) Close() error                          { return nil }

type fakeLevelStore struct {
	mu     sync.Mutex
	levels []models.Level
	swaps  int
}

func (f *fakeLevelStore) ReplaceAll(_ context.Context, lvls []models.Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = lvls
	f.swaps++
	return nil
}

func (f *fakeLevelStore) GetLevels(context.Context) ([]models.Level, error) {
	return f.levels, nil
}

type fakeTrendStore struct{ saved map[string]models.Trend }

func (f *fakeTrendStore) SaveTrends(_ context.Context, trends map[string]models.Trend) error {
	f.saved = trends
	return nil
}
func (f *fakeTrendStore) GetTrend(context.Context, string) (*models.Trend, error) { return nil, nil }
func (f *fakeTrendStore) GetAllTrends(context.Context) ([]models.Trend, error)    { return nil, nil }

type fakeIndicatorStore struct {
	mu   sync.Mutex
	sets map[domrepo.PairKey]*models.IndicatorSet
}

func (f *fakeIndicatorStore) SaveSnapshot(_ context.Context, set *models.IndicatorSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets == nil {
		f.sets = make(map[domrepo.PairKey]*models.IndicatorSet)
	}
	f.sets[domrepo.PairKey{Symbol: set.Symbol, Timeframe: domrepo.Timeframe(set.Timeframe)}] = set
	return nil
}

func (f *fakeIndicatorStore) GetSnapshot(context.Context, string, domrepo.Timeframe) (*models.IndicatorSet, error) {
	return nil, nil
}

type fakeAlertStore struct{ alerts []models.Alert }

func (f *fakeAlertStore) SaveAlerts(_ context.Context, as []models.Alert) error {
	f.alerts = append(f.alerts, as...)
	return nil
}
func (f *fakeAlertStore) GetAlerts(context.Context, int) ([]models.Alert, error) {
	return f.alerts, nil
}

type fakeSignalStore struct{ signals []models.Signal }

func (f *fakeSignalStore) SaveSignals(_ context.Context, sigs []models.Signal) error {
	f.signals = append(f.signals, sigs...)
	return nil
}
func (f *fakeSignalStore) GetSignals(context.Context, int) ([]models.Signal, error) {
	return f.signals, nil
}

type fakeMarketCapStore struct{ points []models.MarketCapPoint }

func (f *fakeMarketCapStore) SavePoint(context.Context, models.MarketCapPoint) error { return nil }
func (f *fakeMarketCapStore) TrimOldest(context.Context, int) error                  { return nil }
func (f *fakeMarketCapStore) GetMarketCap(context.Context, int) ([]models.MarketCapPoint, error) {
	if f.points == nil {
		return nil, errors.New("no series")
	}
	return f.points, nil
}

type fakeUniverse struct{ symbols []string }

func (f *fakeUniverse) FetchUniverse(context.Context) ([]string, error) { return f.symbols, nil }

type fakeFunding struct{ rate float64 }

func (f *fakeFunding) FundingRate(context.Context, string) (float64, error) { return f.rate, nil }

type fakePublisher struct {
	mu        sync.Mutex
	published []models.Signal
}

func (f *fakePublisher) PublishBatch(_ context.Context, sigs []models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, sigs...)
	return nil
}
func (f *fakePublisher) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordPairAnalyzed(string)          {}
func (noopMetrics) RecordSignalEmitted(string, string) {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordLastPrice(string, float64)    {}
func (noopMetrics) RecordLatency(string, float64)      {}

// --- fixtures ---

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// waveCandles oscillates between clear crests and troughs so pivot
// clustering always produces at least one support and one resistance.
func waveCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		close := 100 + 5*math.Sin(2*math.Pi*float64(i)/20)
		out[i] = models.Candle{
			Time:   int64(i) * 3_600_000,
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1000,
		}
	}
	return out
}

type sweepFixture struct {
	sweep     *Sweep
	candles   *fakeCandleStore
	levelSt   *fakeLevelStore
	trendSt   *fakeTrendStore
	indSt     *fakeIndicatorStore
	alertSt   *fakeAlertStore
	signalSt  *fakeSignalStore
	publisher *fakePublisher
	universe  *fakeUniverse
}

func newSweepFixture(t *testing.T, cfg config.AnalysisConfig, symbols []string) *sweepFixture {
	t.Helper()
	log := testLogger(t)
	f := &sweepFixture{
		candles:   newFakeCandleStore(),
		levelSt:   &fakeLevelStore{},
		trendSt:   &fakeTrendStore{},
		indSt:     &fakeIndicatorStore{},
		alertSt:   &fakeAlertStore{},
		signalSt:  &fakeSignalStore{},
		publisher: &fakePublisher{},
		universe:  &fakeUniverse{symbols: symbols},
	}
	f.sweep = NewSweep(cfg, SweepDeps{
		Candles:       f.candles,
		Levels:        f.levelSt,
		Trends:        f.trendSt,
		Indicators:    f.indSt,
		Alerts:        f.alertSt,
		Signals:       f.signalSt,
		MarketCap:     &fakeMarketCapStore{},
		Universe:      f.universe,
		Funding:       &fakeFunding{rate: 0.0001},
		Publisher:     f.publisher,
		Metrics:       noopMetrics{},
		LevelDetector: levels.NewDetector(config.DefaultLevelRules()),
		IndEngine:     indicators.NewEngine(),
		TrendEngine:   trend.NewEngine(),
		AlertDetector: alerts.NewDetector(f.candles, cfg.AlertThresholdPct, log),
		FiboEngine:    fibo.NewEngine(),
		Scorer:        scoring.New(cfg.Scoring),
		Logger:        log,
	})
	return f
}

func analysisConfig(minScore int, alertPct float64) config.AnalysisConfig {
	return config.AnalysisConfig{
		Workers:           4,
		MinScore:          minScore,
		AlertThresholdPct: alertPct,
		Stablecoins:       config.DefaultStablecoins(),
		Levels:            config.DefaultLevelRules(),
	}
}

// --- tests ---

func TestRunSweepEmitsOneSignalPerAlertedPair(t *testing.T) {
	// generous alert threshold so the detected channels always gate in;
	// zero floor so both directions survive and get merged
	f := newSweepFixture(t, analysisConfig(0, 15.0), []string{"BTCUSDT"})
	f.candles.put("BTCUSDT", domrepo.TF1h, waveCandles(120))

	signals, err := f.sweep.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want exactly 1 per pair: %+v", len(signals), signals)
	}
	sig := signals[0]
	if sig.Symbol != "BTCUSDT" || sig.Timeframe != "1h" {
		t.Fatalf("unexpected signal identity: %+v", sig)
	}
	if !strings.Contains(sig.SignalType, "long") {
		t.Fatalf("signal type %q should carry the long direction", sig.SignalType)
	}
	if len(f.signalSt.signals) != 1 {
		t.Fatalf("persisted %d signals, want 1", len(f.signalSt.signals))
	}
	if len(f.publisher.published) != 1 {
		t.Fatalf("published %d signals, want 1", len(f.publisher.published))
	}
	if f.levelSt.swaps != 1 {
		t.Fatalf("level store swapped %d times, want 1", f.levelSt.swaps)
	}
	if len(f.levelSt.levels) < 2 {
		t.Fatalf("wave series should yield support and resistance, got %d levels", len(f.levelSt.levels))
	}
	if len(f.alertSt.alerts) == 0 {
		t.Fatal("expected alerts for levels within threshold")
	}
}

func TestRunSweepScoreFloorSuppressesSignals(t *testing.T) {
	f := newSweepFixture(t, analysisConfig(1000, 15.0), []string{"BTCUSDT"})
	f.candles.put("BTCUSDT", domrepo.TF1h, waveCandles(120))

	signals, err := f.sweep.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("floor 1000 should suppress everything, got %+v", signals)
	}
	// analysis upstream of scoring still ran
	if len(f.alertSt.alerts) == 0 {
		t.Fatal("alerts should still be recorded below the score floor")
	}
}

func TestRunSweepNoAlertNoSignal(t *testing.T) {
	// tight threshold: last close sits ~1.5% off the nearest channel
	f := newSweepFixture(t, analysisConfig(0, 0.01), []string{"BTCUSDT"})
	f.candles.put("BTCUSDT", domrepo.TF1h, waveCandles(120))

	signals, err := f.sweep.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("pairs without alerts must not be scored, got %+v", signals)
	}
}

func TestRunSweepExcludesStablecoins(t *testing.T) {
	f := newSweepFixture(t, analysisConfig(0, 15.0), []string{"USDCUSDT"})
	f.candles.put("USDCUSDT", domrepo.TF1h, waveCandles(120))

	signals, err := f.sweep.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("stablecoin pair must be excluded from the sweep, got %+v", signals)
	}
}

func TestRunSweepShortSeriesIsSkippedSilently(t *testing.T) {
	f := newSweepFixture(t, analysisConfig(0, 15.0), []string{"ETHUSDT"})
	f.candles.put("ETHUSDT", domrepo.TF1h, waveCandles(30))

	signals, err := f.sweep.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(signals) != 0 || len(f.levelSt.levels) != 0 {
		t.Fatalf("30 candles should produce nothing: signals=%d levels=%d",
			len(signals), len(f.levelSt.levels))
	}
}

func TestReduceMergesDirections(t *testing.T) {
	job := pairJob{key: domrepo.PairKey{Symbol: "BTCUSDT", Timeframe: domrepo.TF1h}, price: 100}
	cands := []candidate{
		{direction: models.DirectionLong, score: models.Score{
			Value: 35, Recommendation: models.RecommendationModerate,
			Details: []string{"a", "b"},
		}},
		{direction: models.DirectionShort, score: models.Score{
			Value: 45, Recommendation: models.RecommendationStrong,
			Details: []string{"b", "c"},
		}},
	}

	sig, ok := reduce(job, cands, 1234)
	if !ok {
		t.Fatal("reduce dropped a non-empty candidate set")
	}
	if sig.SignalType != "long+short" {
		t.Fatalf("signal type = %q, want long+short", sig.SignalType)
	}
	if sig.Score != 45 || sig.Recommendation != models.RecommendationStrong {
		t.Fatalf("base must be the max-score candidate: %+v", sig)
	}
	// base details first, then the rest, first occurrence wins
	want := []string{"b", "c", "a"}
	if len(sig.Details) != len(want) {
		t.Fatalf("details = %v, want %v", sig.Details, want)
	}
	for i := range want {
		if sig.Details[i] != want[i] {
			t.Fatalf("details = %v, want %v", sig.Details, want)
		}
	}
	if sig.Time != 1234 {
		t.Fatalf("time = %d, want batch timestamp", sig.Time)
	}
}

func TestReduceEmptyCandidates(t *testing.T) {
	if _, ok := reduce(pairJob{}, nil, 0); ok {
		t.Fatal("empty candidate set must reduce to nothing")
	}
}

func TestReduceSingleDirection(t *testing.T) {
	job := pairJob{key: domrepo.PairKey{Symbol: "ETHUSDT", Timeframe: domrepo.TF4h}, price: 2500}
	sig, ok := reduce(job, []candidate{
		{direction: models.DirectionShort, score: models.Score{
			Value: 31, Recommendation: models.RecommendationModerate, Details: []string{"x"},
		}},
	}, 99)
	if !ok || sig.SignalType != "short" || sig.Score != 31 {
		t.Fatalf("single candidate reduce: %+v ok=%v", sig, ok)
	}
}
