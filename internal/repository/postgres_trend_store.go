package repository

import (
	"context"
	"database/sql"
	"fmt"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgpg "LevelScan/pkg/postgres"
)

// PGTrendStore keeps one trend row per instrument; the latest computation
// always wins.
type PGTrendStore struct {
	db *sql.DB
}

var _ domrepo.TrendStore = (*PGTrendStore)(nil)

func NewPGTrendStore(pg *pkgpg.Client) *PGTrendStore {
	return &PGTrendStore{db: pg.DB()}
}

func (s *PGTrendStore) SaveTrends(ctx context.Context, trends map[string]models.Trend) error {
	if len(trends) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trends: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
        INSERT INTO trends (symbol, direction, ema50, ema200, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (symbol) DO UPDATE SET
            direction  = EXCLUDED.direction,
            ema50      = EXCLUDED.ema50,
            ema200     = EXCLUDED.ema200,
            updated_at = EXCLUDED.updated_at
    `
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare trends: %w", err)
	}
	defer stmt.Close()

	for _, tr := range trends {
		if _, err := stmt.ExecContext(ctx,
			tr.Symbol, string(tr.Direction), tr.EMA50, tr.EMA200, tr.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert trend %s: %w", tr.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trends: %w", err)
	}
	return nil
}

func (s *PGTrendStore) GetTrend(ctx context.Context, symbol string) (*models.Trend, error) {
	const q = `SELECT symbol, direction, ema50, ema200, updated_at FROM trends WHERE symbol = $1`
	var tr models.Trend
	var dir string
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&tr.Symbol, &dir, &tr.EMA50, &tr.EMA200, &tr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trend: %w", err)
	}
	tr.Direction = models.TrendDirection(dir)
	return &tr, nil
}

func (s *PGTrendStore) GetAllTrends(ctx context.Context) ([]models.Trend, error) {
	const q = `SELECT symbol, direction, ema50, ema200, updated_at FROM trends ORDER BY symbol`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get trends: %w", err)
	}
	defer rows.Close()

	var out []models.Trend
	for rows.Next() {
		var tr models.Trend
		var dir string
		if err := rows.Scan(&tr.Symbol, &dir, &tr.EMA50, &tr.EMA200, &tr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		tr.Direction = models.TrendDirection(dir)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
