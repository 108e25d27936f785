package usecase

import (
	"context"
	"fmt"

	domrepo "LevelScan/internal/domain/repository"
	"LevelScan/internal/service/marketcap"
	applogger "LevelScan/pkg/logger"
)

// MarketCapCollector samples the global capitalization and appends it to the
// store, trimming samples past the retention horizon after each fetch so the
// series stays bounded. Runs on the collection schedule; the scorer reads the
// series back.
type MarketCapCollector struct {
	client        *marketcap.Client
	store         domrepo.MarketCapStore
	metrics       domrepo.Metrics
	logger        *applogger.Logger
	retentionDays int
}

func NewMarketCapCollector(client *marketcap.Client, store domrepo.MarketCapStore, metrics domrepo.Metrics, logger *applogger.Logger, retentionDays int) *MarketCapCollector {
	return &MarketCapCollector{client: client, store: store, metrics: metrics, logger: logger, retentionDays: retentionDays}
}

func (c *MarketCapCollector) RunFetch(ctx context.Context) error {
	point, err := c.client.Fetch(ctx)
	if err != nil {
		c.metrics.RecordError("market_cap_fetch")
		return fmt.Errorf("fetch market cap: %w", err)
	}
	if err := c.store.SavePoint(ctx, point); err != nil {
		c.metrics.RecordError("market_cap_store")
		return fmt.Errorf("store market cap: %w", err)
	}
	if err := c.store.TrimOldest(ctx, c.retentionDays); err != nil {
		c.metrics.RecordError("market_cap_trim")
		c.logger.Warn("market cap trim failed", applogger.Error(err))
	}
	c.logger.Debug("market cap sampled", applogger.Float64("total_cap", point.TotalCap))
	return nil
}
