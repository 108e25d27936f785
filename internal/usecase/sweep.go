package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
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

// marketCapDays is the history window handed to the scorer; it only needs
// the last 24h but a short margin covers gaps in the sampled series.
const marketCapDays = 3

// SweepDeps bundles everything one analysis sweep touches.
type SweepDeps struct {
	Candles    domrepo.CandleStore
	Levels     domrepo.LevelStore
	Trends     domrepo.TrendStore
	Indicators domrepo.IndicatorStore
	Alerts     domrepo.AlertStore
	Signals    domrepo.SignalStore
	MarketCap  domrepo.MarketCapStore
	Universe   domrepo.UniverseSource
	Funding    domrepo.FundingSource
	Publisher  domrepo.SignalPublisher
	Metrics    domrepo.Metrics

	LevelDetector *levels.Detector
	IndEngine     *indicators.Engine
	TrendEngine   *trend.Engine
	AlertDetector *alerts.Detector
	FiboEngine    *fibo.Engine
	Scorer        *scoring.Scorer

	Logger *applogger.Logger
}

// Sweep runs the full analysis pipeline over the instrument universe:
// levels, indicators, trends, alerts, then scoring and persistence. One
// sweep is one atomic pass; per-pair failures are logged and skipped,
// stage-level store failures abort the sweep.
type Sweep struct {
	cfg  config.AnalysisConfig
	deps SweepDeps

	stable map[string]struct{}
}

func NewSweep(cfg config.AnalysisConfig, deps SweepDeps) *Sweep {
	stable := make(map[string]struct{}, len(cfg.Stablecoins))
	for _, s := range cfg.Stablecoins {
		stable[strings.ToUpper(s)] = struct{}{}
	}
	return &Sweep{cfg: cfg, deps: deps, stable: stable}
}

// RunSweep executes one full cycle and returns the persisted signal batch.
func (s *Sweep) RunSweep(ctx context.Context) ([]models.Signal, error) {
	start := time.Now()
	log := s.deps.Logger

	universe, err := s.fetchUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}

	series, err := s.loadSeries(ctx, universe)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(series) == 0 {
		log.Warn("sweep: no candle series available")
		return nil, nil
	}

	merged, err := s.refreshLevels(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("refresh levels: %w", err)
	}

	sets := s.computeIndicators(ctx, series)

	trends := s.deps.TrendEngine.Classify(series)
	if len(trends) > 0 {
		if err := s.deps.Trends.SaveTrends(ctx, trends); err != nil {
			return nil, fmt.Errorf("save trends: %w", err)
		}
	}

	alertBatch := s.deps.AlertDetector.Check(ctx, merged)
	if len(alertBatch) > 0 {
		if err := s.deps.Alerts.SaveAlerts(ctx, alertBatch); err != nil {
			return nil, fmt.Errorf("save alerts: %w", err)
		}
	}

	caps := s.loadMarketCap(ctx)
	jobs := s.buildJobs(series, merged, sets, trends, alertBatch)
	signals := s.analyze(ctx, jobs, caps)

	if len(signals) > 0 {
		if err := s.deps.Signals.SaveSignals(ctx, signals); err != nil {
			return nil, fmt.Errorf("save signals: %w", err)
		}
		if s.deps.Publisher != nil {
			if err := s.deps.Publisher.PublishBatch(ctx, signals); err != nil {
				// persisted already; downstream fan-out is best effort
				s.deps.Metrics.RecordError("publish_signals")
				log.Error("sweep: publish signal batch", applogger.Error(err))
			}
		}
		for _, sig := range signals {
			s.deps.Metrics.RecordSignalEmitted(sig.Timeframe, sig.SignalType)
		}
	}

	s.deps.Metrics.RecordLatency("sweep", time.Since(start).Seconds())
	log.Info("sweep complete",
		applogger.Int("pairs", len(series)),
		applogger.Int("levels", len(merged)),
		applogger.Int("alerts", len(alertBatch)),
		applogger.Int("signals", len(signals)),
		applogger.Duration("took", time.Since(start)),
	)
	return signals, nil
}

// fetchUniverse pulls the tradable instruments and drops stablecoins.
func (s *Sweep) fetchUniverse(ctx context.Context) ([]string, error) {
	raw, err := s.deps.Universe.FetchUniverse(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, sym := range raw {
		if s.isStable(sym) {
			continue
		}
		out = append(out, sym)
	}
	return out, nil
}

func (s *Sweep) isStable(symbol string) bool {
	_, ok := s.stable[strings.ToUpper(symbol)]
	return ok
}

// loadSeries reads every (instrument, timeframe) series once; everything
// downstream shares the same immutable snapshot.
func (s *Sweep) loadSeries(ctx context.Context, universe []string) (map[domrepo.PairKey][]models.Candle, error) {
	allowed := make(map[string]struct{}, len(universe))
	for _, sym := range universe {
		allowed[sym] = struct{}{}
	}
	out := make(map[domrepo.PairKey][]models.Candle)
	for _, tf := range domrepo.AllTimeframes() {
		byPair, err := s.deps.Candles.GetAllCandles(ctx, tf)
		if err != nil {
			return nil, fmt.Errorf("timeframe %s: %w", tf, err)
		}
		for key, candles := range byPair {
			if _, ok := allowed[key.Symbol]; !ok {
				continue
			}
			out[key] = candles
		}
	}
	return out, nil
}

// refreshLevels recomputes every channel, merges duplicates and swaps the
// stored set wholesale.
func (s *Sweep) refreshLevels(ctx context.Context, series map[domrepo.PairKey][]models.Candle) ([]models.Level, error) {
	var detected []models.Level
	for key, candles := range series {
		detected = append(detected, s.deps.LevelDetector.Detect(key.Symbol, string(key.Timeframe), candles)...)
	}
	merged := levels.Merge(detected)
	if err := s.deps.Levels.ReplaceAll(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// computeIndicators builds and persists the latest snapshot per pair.
// Funding rates are fetched once per instrument and folded into every
// timeframe's snapshot before it is stored.
func (s *Sweep) computeIndicators(ctx context.Context, series map[domrepo.PairKey][]models.Candle) map[domrepo.PairKey]*models.IndicatorSet {
	funding := make(map[string]float64)
	sets := make(map[domrepo.PairKey]*models.IndicatorSet, len(series))
	for key, candles := range series {
		set := s.deps.IndEngine.Compute(key.Symbol, string(key.Timeframe), candles)
		if set == nil {
			continue
		}
		set.SetValue(models.KindFundingRate, s.fundingRate(ctx, funding, key.Symbol))
		if err := s.deps.Indicators.SaveSnapshot(ctx, set); err != nil {
			s.deps.Metrics.RecordError("save_indicators")
			s.deps.Logger.Error("sweep: save indicator snapshot",
				applogger.String("symbol", key.Symbol),
				applogger.String("tf", string(key.Timeframe)),
				applogger.Error(err),
			)
			continue
		}
		sets[key] = set
	}
	return sets
}

func (s *Sweep) fundingRate(ctx context.Context, memo map[string]float64, symbol string) float64 {
	if rate, ok := memo[symbol]; ok {
		return rate
	}
	rate := math.NaN()
	if s.deps.Funding != nil {
		v, err := s.deps.Funding.FundingRate(ctx, symbol)
		if err != nil {
			s.deps.Logger.Debug("sweep: funding rate unavailable",
				applogger.String("symbol", symbol), applogger.Error(err))
		} else {
			rate = v
		}
	}
	memo[symbol] = rate
	return rate
}

func (s *Sweep) loadMarketCap(ctx context.Context) []models.MarketCapPoint {
	caps, err := s.deps.MarketCap.GetMarketCap(ctx, marketCapDays)
	if err != nil {
		s.deps.Logger.Warn("sweep: market cap series unavailable", applogger.Error(err))
		return nil
	}
	return caps
}
