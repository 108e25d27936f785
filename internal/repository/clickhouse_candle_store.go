package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgch "LevelScan/pkg/clickhouse"
	applogger "LevelScan/pkg/logger"
)

// CHCandleStore keeps OHLCV series in ClickHouse, one table per timeframe.
type CHCandleStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)

func NewCHCandleStore(ch *pkgch.Client) *CHCandleStore {
	return &CHCandleStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

// InitSchema ensures the candle tables exist (idempotent).
func (s *CHCandleStore) InitSchema(ctx context.Context) error {
	stmts := []string{`CREATE DATABASE IF NOT EXISTS levelscan`}
	for _, tf := range domrepo.AllTimeframes() {
		table, err := tableForTF(tf)
		if err != nil {
			return err
		}
		stmts = append(stmts, fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                symbol LowCardinality(String),
                time   Int64,
                open   Float64,
                high   Float64,
                low    Float64,
                close  Float64,
                vol    Float64
            )
            ENGINE = ReplacingMergeTree
            ORDER BY (symbol, time)
        `, table))
	}
	return s.client.InitSchema(ctx, stmts)
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT time, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY time ASC
    `, table)
	rows, err := s.db.QueryContext(ctx, q, symbol)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// GetCandleRange reads a half-open [from, to) window of a single series.
func (s *CHCandleStore) GetCandleRange(ctx context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT time, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND time >= ? AND time < ?
        ORDER BY time ASC
    `, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("get candle range: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

func (s *CHCandleStore) GetAllCandles(ctx context.Context, tf domrepo.Timeframe) (map[domrepo.PairKey][]models.Candle, error) {
	start := time.Now()
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT time, symbol, open, high, low, close, vol
        FROM %s
        ORDER BY symbol, time ASC
    `, table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get all candles: %w", err)
	}
	defer rows.Close()

	out := make(map[domrepo.PairKey][]models.Candle)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		key := domrepo.PairKey{Symbol: c.Symbol, Timeframe: tf}
		out[key] = append(out[key], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_all_candles ok",
			applogger.String("table", table),
			applogger.Int("pairs", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHCandleStore) GetLatestClose(ctx context.Context, symbol string, tf domrepo.Timeframe) (float64, error) {
	table, err := tableForTF(tf)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`
        SELECT close
        FROM %s
        WHERE symbol = ?
        ORDER BY time DESC
        LIMIT 1
    `, table)
	var close float64
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&close); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("no candles for %s %s", symbol, tf)
		}
		return 0, fmt.Errorf("get latest close: %w", err)
	}
	return close, nil
}

func (s *CHCandleStore) StoreBatch(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	table, err := tableForTF(tf)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (time, symbol, open, high, low, close, vol) VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Time, symbol, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append candle: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse store_batch ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(candles)),
		)
	}
	return nil
}

// TrimOldest drops rows older than the retention horizon: retain buckets of
// the timeframe's duration back from now, per table.
func (s *CHCandleStore) TrimOldest(ctx context.Context, retain int) error {
	if retain <= 0 {
		return nil
	}
	now := time.Now()
	for _, tf := range domrepo.AllTimeframes() {
		table, err := tableForTF(tf)
		if err != nil {
			return err
		}
		cutoff := now.Add(-time.Duration(retain) * tf.Duration()).UnixMilli()
		q := fmt.Sprintf(`ALTER TABLE %s DELETE WHERE time < ?`, table)
		if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("trim %s: %w", table, err)
		}
	}
	return nil
}

// Close is a no-op: the shared client owns the connection pool.
func (s *CHCandleStore) Close() error { return nil }

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF15m:
		return "levelscan.candles_15m", nil
	case domrepo.TF1h:
		return "levelscan.candles_1h", nil
	case domrepo.TF4h:
		return "levelscan.candles_4h", nil
	case domrepo.TF1d:
		return "levelscan.candles_1d", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}
