package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgpg "LevelScan/pkg/postgres"
)

// PGSignalStore upserts signal batches on the natural key
// (instrument, timeframe, signal_type, time): a re-run of the same sweep
// overwrites its own records instead of duplicating them.
type PGSignalStore struct {
	db *sql.DB
}

var _ domrepo.SignalStore = (*PGSignalStore)(nil)

func NewPGSignalStore(pg *pkgpg.Client) *PGSignalStore {
	return &PGSignalStore{db: pg.DB()}
}

func (s *PGSignalStore) SaveSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin signals: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
        INSERT INTO signals
            (symbol, timeframe, signal_type, current_price, score,
             recommendation, details, ts)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (symbol, timeframe, signal_type, ts) DO UPDATE SET
            current_price  = EXCLUDED.current_price,
            score          = EXCLUDED.score,
            recommendation = EXCLUDED.recommendation,
            details        = EXCLUDED.details
    `
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare signals: %w", err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		if _, err := stmt.ExecContext(ctx,
			sig.Symbol, sig.Timeframe, sig.SignalType, sig.CurrentPrice, sig.Score,
			string(sig.Recommendation), pq.Array(sig.Details), sig.Time,
		); err != nil {
			return fmt.Errorf("upsert signal %s %s: %w", sig.Symbol, sig.Timeframe, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit signals: %w", err)
	}
	return nil
}

func (s *PGSignalStore) GetSignals(ctx context.Context, limit int) ([]models.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
        SELECT symbol, timeframe, signal_type, current_price, score,
               recommendation, details, ts
        FROM signals
        ORDER BY ts DESC, score DESC
        LIMIT $1
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("get signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var sig models.Signal
		var rec string
		var details pq.StringArray
		if err := rows.Scan(
			&sig.Symbol, &sig.Timeframe, &sig.SignalType, &sig.CurrentPrice, &sig.Score,
			&rec, &details, &sig.Time,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Recommendation = models.Recommendation(rec)
		sig.Details = details
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
