package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgpg "LevelScan/pkg/postgres"
)

// PGMarketCapStore keeps the sampled global capitalization series keyed by
// fetch time.
type PGMarketCapStore struct {
	db *sql.DB
}

var _ domrepo.MarketCapStore = (*PGMarketCapStore)(nil)

func NewPGMarketCapStore(pg *pkgpg.Client) *PGMarketCapStore {
	return &PGMarketCapStore{db: pg.DB()}
}

func (s *PGMarketCapStore) SavePoint(ctx context.Context, p models.MarketCapPoint) error {
	const q = `
        INSERT INTO market_cap (fetched_at, total_cap)
        VALUES ($1, $2)
        ON CONFLICT (fetched_at) DO UPDATE SET total_cap = EXCLUDED.total_cap
    `
	if _, err := s.db.ExecContext(ctx, q, p.FetchedAt, p.TotalCap); err != nil {
		return fmt.Errorf("save market cap: %w", err)
	}
	return nil
}

// TrimOldest drops samples older than the retention horizon so the table
// stays bounded under the collection schedule.
func (s *PGMarketCapStore) TrimOldest(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	const q = `DELETE FROM market_cap WHERE fetched_at < $1`
	if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
		return fmt.Errorf("trim market cap: %w", err)
	}
	return nil
}

func (s *PGMarketCapStore) GetMarketCap(ctx context.Context, days int) ([]models.MarketCapPoint, error) {
	if days <= 0 {
		days = 1
	}
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	const q = `
        SELECT fetched_at, total_cap
        FROM market_cap
        WHERE fetched_at >= $1
        ORDER BY fetched_at ASC
    `
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("get market cap: %w", err)
	}
	defer rows.Close()

	var out []models.MarketCapPoint
	for rows.Next() {
		var p models.MarketCapPoint
		if err := rows.Scan(&p.FetchedAt, &p.TotalCap); err != nil {
			return nil, fmt.Errorf("scan market cap: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
