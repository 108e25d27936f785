package repository

import (
	"context"
	"database/sql"
	"fmt"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgpg "LevelScan/pkg/postgres"
)

// PGAlertStore appends alert batches. Alerts are an audit trail and are
// never updated or replaced.
type PGAlertStore struct {
	db *sql.DB
}

var _ domrepo.AlertStore = (*PGAlertStore)(nil)

func NewPGAlertStore(pg *pkgpg.Client) *PGAlertStore {
	return &PGAlertStore{db: pg.DB()}
}

func (s *PGAlertStore) SaveAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alerts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
        INSERT INTO alerts
            (symbol, timeframe, level_price, current_price, level_type,
             distance, strength, source, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare alerts: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		if _, err := stmt.ExecContext(ctx,
			a.Symbol, a.Timeframe, a.LevelPrice, a.CurrentPrice, string(a.Type),
			a.Distance, a.Strength, a.Source, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert alert %s %s: %w", a.Symbol, a.Timeframe, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alerts: %w", err)
	}
	return nil
}

func (s *PGAlertStore) GetAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
        SELECT symbol, timeframe, level_price, current_price, level_type,
               distance, strength, source, created_at
        FROM alerts
        ORDER BY created_at DESC, id DESC
        LIMIT $1
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("get alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlerts(rows *sql.Rows) ([]models.Alert, error) {
	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		var typ string
		if err := rows.Scan(
			&a.Symbol, &a.Timeframe, &a.LevelPrice, &a.CurrentPrice, &typ,
			&a.Distance, &a.Strength, &a.Source, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = models.LevelType(typ)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
