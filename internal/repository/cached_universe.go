package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "LevelScan/internal/domain/repository"
	"LevelScan/pkg/cache"
	applogger "LevelScan/pkg/logger"
)

const universeCacheKey = "universe:tradable"

// CachedUniverse wraps a UniverseSource with a TTL cache so repeated sweeps
// do not hit the exchange listing endpoint every cycle.
type CachedUniverse struct {
	src    domrepo.UniverseSource
	cache  cache.Service
	ttl    time.Duration
	logger *applogger.Logger
}

var _ domrepo.UniverseSource = (*CachedUniverse)(nil)

func NewCachedUniverse(src domrepo.UniverseSource, c cache.Service, ttl time.Duration, logger *applogger.Logger) *CachedUniverse {
	return &CachedUniverse{src: src, cache: c, ttl: ttl, logger: logger}
}

func (u *CachedUniverse) FetchUniverse(ctx context.Context) ([]string, error) {
	var raw string
	if err := u.cache.Get(ctx, universeCacheKey, &raw); err == nil && raw != "" {
		var symbols []string
		if err := json.Unmarshal([]byte(raw), &symbols); err == nil && len(symbols) > 0 {
			return symbols, nil
		}
	}

	symbols, err := u.src.FetchUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}

	if data, err := json.Marshal(symbols); err == nil {
		// best effort; a cold cache just means one extra listing call
		if err := u.cache.Set(ctx, universeCacheKey, string(data), u.ttl); err != nil {
			u.logger.Debug("universe cache write failed", applogger.Error(err))
		}
	}
	return symbols, nil
}
