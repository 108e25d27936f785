package repository

import (
	"context"
	"time"

	"LevelScan/internal/domain/models"
)

// PairKey identifies one (instrument, timeframe) series.
type PairKey struct {
	Symbol    string
	Timeframe Timeframe
}

// CandleStore supplies ordered OHLCV series per (instrument, timeframe).
type CandleStore interface {
	GetCandles(ctx context.Context, symbol string, tf Timeframe) ([]models.Candle, error)
	GetCandleRange(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Candle, error)
	GetAllCandles(ctx context.Context, tf Timeframe) (map[PairKey][]models.Candle, error)
	GetLatestClose(ctx context.Context, symbol string, tf Timeframe) (float64, error)
	StoreBatch(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) error
	TrimOldest(ctx context.Context, retain int) error
	Close() error
}

// LevelStore owns the global level set. ReplaceAll swaps the whole set in one
// transaction so readers never observe a half-rewritten table.
type LevelStore interface {
	ReplaceAll(ctx context.Context, levels []models.Level) error
	GetLevels(ctx context.Context) ([]models.Level, error)
}

// TrendStore keeps one row per instrument, upserted by symbol.
type TrendStore interface {
	SaveTrends(ctx context.Context, trends map[string]models.Trend) error
	GetTrend(ctx context.Context, symbol string) (*models.Trend, error)
	GetAllTrends(ctx context.Context) ([]models.Trend, error)
}

// IndicatorStore persists latest-only snapshots keyed by
// (instrument, timeframe, indicator kind).
type IndicatorStore interface {
	SaveSnapshot(ctx context.Context, set *models.IndicatorSet) error
	GetSnapshot(ctx context.Context, symbol string, tf Timeframe) (*models.IndicatorSet, error)
}

// AlertStore appends alert batches; alerts are never replaced.
type AlertStore interface {
	SaveAlerts(ctx context.Context, alerts []models.Alert) error
	GetAlerts(ctx context.Context, limit int) ([]models.Alert, error)
}

// SignalStore upserts signal batches on the natural key
// (instrument, timeframe, signal_type, time).
type SignalStore interface {
	SaveSignals(ctx context.Context, signals []models.Signal) error
	GetSignals(ctx context.Context, limit int) ([]models.Signal, error)
}

// MarketCapStore persists the global capitalization series.
type MarketCapStore interface {
	SavePoint(ctx context.Context, p models.MarketCapPoint) error
	GetMarketCap(ctx context.Context, days int) ([]models.MarketCapPoint, error)
	TrimOldest(ctx context.Context, days int) error
}

// SignalPublisher fans persisted signal batches out to downstream consumers.
type SignalPublisher interface {
	PublishBatch(ctx context.Context, signals []models.Signal) error
	Close() error
}

// FundingSource supplies the latest perpetual funding rate per instrument.
type FundingSource interface {
	FundingRate(ctx context.Context, symbol string) (float64, error)
}

// UniverseSource supplies the tradable instrument universe.
type UniverseSource interface {
	FetchUniverse(ctx context.Context) ([]string, error)
}

// Metrics records operational measurements for the pipeline.
type Metrics interface {
	RecordPairAnalyzed(tf string)
	RecordSignalEmitted(tf, signalType string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
