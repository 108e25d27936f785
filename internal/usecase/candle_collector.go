package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "LevelScan/internal/domain/repository"
	"LevelScan/internal/service/binance"
	applogger "LevelScan/pkg/logger"
	"LevelScan/pkg/queue"
)

// CandleRefreshType is the queue message type for one (symbol, timeframe)
// refresh.
const CandleRefreshType = "candle_refresh"

// CandleRefreshPayload asks for one series to be re-fetched over REST.
type CandleRefreshPayload struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Limit     int    `json:"limit"`
}

// CandleRefreshJob fetches one kline series and upserts it into the candle
// store. Registered on the redis queue consumer; retries are the queue's
// concern.
type CandleRefreshJob struct {
	source  *binance.Client
	store   domrepo.CandleStore
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

var _ queue.Job = (*CandleRefreshJob)(nil)

func NewCandleRefreshJob(source *binance.Client, store domrepo.CandleStore, metrics domrepo.Metrics, logger *applogger.Logger) *CandleRefreshJob {
	return &CandleRefreshJob{source: source, store: store, metrics: metrics, logger: logger}
}

func (j *CandleRefreshJob) Name() string { return "candle-refresh" }
func (j *CandleRefreshJob) Type() string { return CandleRefreshType }

func (j *CandleRefreshJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[CandleRefreshPayload](payload)
	if err != nil {
		j.metrics.RecordError("refresh_payload")
		return fmt.Errorf("parse refresh payload: %w", err)
	}
	tf := domrepo.Timeframe(p.Timeframe)
	if !domrepo.IsValidTimeframe(tf) {
		j.metrics.RecordError("refresh_timeframe")
		return fmt.Errorf("unknown timeframe %q", p.Timeframe)
	}

	start := time.Now()
	candles, err := j.source.Klines(ctx, p.Symbol, tf, p.Limit)
	if err != nil {
		j.metrics.RecordError("refresh_fetch")
		return fmt.Errorf("fetch %s %s: %w", p.Symbol, tf, err)
	}
	if len(candles) == 0 {
		j.logger.Debug("candle refresh: empty series",
			applogger.String("symbol", p.Symbol),
			applogger.String("tf", p.Timeframe),
		)
		return nil
	}
	if err := j.store.StoreBatch(ctx, p.Symbol, tf, candles); err != nil {
		j.metrics.RecordError("refresh_store")
		return fmt.Errorf("store %s %s: %w", p.Symbol, tf, err)
	}
	j.metrics.RecordLatency("candle_refresh", time.Since(start).Seconds())
	return nil
}

// CandleCollector schedules one refresh job per (instrument, timeframe) each
// collection cycle and trims the store to the retention horizon afterwards.
type CandleCollector struct {
	universe  domrepo.UniverseSource
	queue     queue.QueueService
	store     domrepo.CandleStore
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	limit     int
	retention int
}

func NewCandleCollector(
	universe domrepo.UniverseSource,
	q queue.QueueService,
	store domrepo.CandleStore,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	limit, retention int,
) *CandleCollector {
	return &CandleCollector{
		universe:  universe,
		queue:     q,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		limit:     limit,
		retention: retention,
	}
}

// RunCollect enqueues the full refresh fan-out. The queue workers do the
// fetching; this only schedules.
func (c *CandleCollector) RunCollect(ctx context.Context) error {
	start := time.Now()
	symbols, err := c.universe.FetchUniverse(ctx)
	if err != nil {
		return fmt.Errorf("fetch universe: %w", err)
	}

	enqueued := 0
	for _, tf := range domrepo.AllTimeframes() {
		for _, symbol := range symbols {
			payload := CandleRefreshPayload{Symbol: symbol, Timeframe: string(tf), Limit: c.limit}
			if err := c.queue.PublishMessage(ctx, CandleRefreshType, payload); err != nil {
				c.metrics.RecordError("refresh_enqueue")
				c.logger.Error("collect: enqueue refresh",
					applogger.String("symbol", symbol),
					applogger.String("tf", string(tf)),
					applogger.Error(err),
				)
				continue
			}
			enqueued++
		}
	}

	if err := c.store.TrimOldest(ctx, c.retention); err != nil {
		c.metrics.RecordError("trim")
		c.logger.Error("collect: trim retention", applogger.Error(err))
	}

	c.metrics.RecordLatency("collect", time.Since(start).Seconds())
	c.logger.Info("collection cycle scheduled",
		applogger.Int("symbols", len(symbols)),
		applogger.Int("jobs", enqueued),
		applogger.Duration("took", time.Since(start)),
	)
	return nil
}
