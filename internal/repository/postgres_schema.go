package repository

import (
	"context"

	pkgpg "LevelScan/pkg/postgres"
)

// pgSchema covers every analysis artifact persisted to Postgres. Candle
// series stay in ClickHouse; everything here is upsert-heavy state.
var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS levels (
        id           BIGSERIAL PRIMARY KEY,
        symbol       TEXT             NOT NULL,
        timeframe    TEXT             NOT NULL,
        price        DOUBLE PRECISION NOT NULL,
        level_type   TEXT             NOT NULL,
        strength     INT              NOT NULL,
        upper_bound  DOUBLE PRECISION NOT NULL,
        lower_bound  DOUBLE PRECISION NOT NULL,
        distance     DOUBLE PRECISION NOT NULL,
        touched      INT              NOT NULL DEFAULT 0,
        broken       BOOLEAN          NOT NULL DEFAULT FALSE,
        last_touched BIGINT           NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_levels_pair ON levels (symbol, timeframe)`,

	`CREATE TABLE IF NOT EXISTS trends (
        symbol     TEXT PRIMARY KEY,
        direction  TEXT             NOT NULL,
        ema50      DOUBLE PRECISION NOT NULL,
        ema200     DOUBLE PRECISION NOT NULL,
        updated_at BIGINT           NOT NULL
    )`,

	`CREATE TABLE IF NOT EXISTS indicator_values (
        symbol      TEXT             NOT NULL,
        timeframe   TEXT             NOT NULL,
        name        TEXT             NOT NULL,
        value       DOUBLE PRECISION NOT NULL,
        computed_at BIGINT           NOT NULL,
        PRIMARY KEY (symbol, timeframe, name)
    )`,

	`CREATE TABLE IF NOT EXISTS indicator_advice (
        symbol      TEXT   NOT NULL,
        timeframe   TEXT   NOT NULL,
        advice      TEXT   NOT NULL,
        computed_at BIGINT NOT NULL,
        PRIMARY KEY (symbol, timeframe)
    )`,

	`CREATE TABLE IF NOT EXISTS alerts (
        id            BIGSERIAL PRIMARY KEY,
        symbol        TEXT             NOT NULL,
        timeframe     TEXT             NOT NULL,
        level_price   DOUBLE PRECISION NOT NULL,
        current_price DOUBLE PRECISION NOT NULL,
        level_type    TEXT             NOT NULL,
        distance      DOUBLE PRECISION NOT NULL,
        strength      INT              NOT NULL,
        source        TEXT             NOT NULL,
        created_at    BIGINT           NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS signals (
        symbol         TEXT             NOT NULL,
        timeframe      TEXT             NOT NULL,
        signal_type    TEXT             NOT NULL,
        current_price  DOUBLE PRECISION NOT NULL,
        score          INT              NOT NULL,
        recommendation TEXT             NOT NULL,
        details        TEXT[]           NOT NULL,
        ts             BIGINT           NOT NULL,
        PRIMARY KEY (symbol, timeframe, signal_type, ts)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals (ts DESC)`,

	`CREATE TABLE IF NOT EXISTS market_cap (
        fetched_at BIGINT PRIMARY KEY,
        total_cap  DOUBLE PRECISION NOT NULL
    )`,
}

// InitPostgresSchema creates every analysis table (idempotent).
func InitPostgresSchema(ctx context.Context, client *pkgpg.Client) error {
	return client.InitSchema(ctx, pgSchema)
}
