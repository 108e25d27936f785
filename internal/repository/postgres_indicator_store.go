package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgpg "LevelScan/pkg/postgres"
)

// PGIndicatorStore persists latest-only indicator snapshots, one row per
// (instrument, timeframe, indicator name). NaN values are absent: they are
// never written, and a row missing on read stays NaN in the snapshot.
type PGIndicatorStore struct {
	db *sql.DB
}

var _ domrepo.IndicatorStore = (*PGIndicatorStore)(nil)

func NewPGIndicatorStore(pg *pkgpg.Client) *PGIndicatorStore {
	return &PGIndicatorStore{db: pg.DB()}
}

func (s *PGIndicatorStore) SaveSnapshot(ctx context.Context, set *models.IndicatorSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const qv = `
        INSERT INTO indicator_values (symbol, timeframe, name, value, computed_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (symbol, timeframe, name) DO UPDATE SET
            value       = EXCLUDED.value,
            computed_at = EXCLUDED.computed_at
    `
	stmt, err := tx.PrepareContext(ctx, qv)
	if err != nil {
		return fmt.Errorf("prepare snapshot: %w", err)
	}
	defer stmt.Close()

	for _, kind := range models.NumericKinds {
		v := set.Value(kind)
		if math.IsNaN(v) {
			// absent; stale rows for the kind are removed below
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM indicator_values WHERE symbol = $1 AND timeframe = $2 AND name = $3`,
				set.Symbol, set.Timeframe, string(kind),
			); err != nil {
				return fmt.Errorf("delete stale %s: %w", kind, err)
			}
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			set.Symbol, set.Timeframe, string(kind), v, set.ComputedAt,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", kind, err)
		}
	}

	const qa = `
        INSERT INTO indicator_advice (symbol, timeframe, advice, computed_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (symbol, timeframe) DO UPDATE SET
            advice      = EXCLUDED.advice,
            computed_at = EXCLUDED.computed_at
    `
	if _, err := tx.ExecContext(ctx, qa,
		set.Symbol, set.Timeframe, string(set.Recommendation), set.ComputedAt,
	); err != nil {
		return fmt.Errorf("upsert advice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *PGIndicatorStore) GetSnapshot(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.IndicatorSet, error) {
	set := models.NewIndicatorSet(symbol, string(tf))

	const qv = `
        SELECT name, value, computed_at
        FROM indicator_values
        WHERE symbol = $1 AND timeframe = $2
    `
	rows, err := s.db.QueryContext(ctx, qv, symbol, string(tf))
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var name string
		var value float64
		var computedAt int64
		if err := rows.Scan(&name, &value, &computedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		set.SetValue(models.IndicatorKind(name), value)
		if computedAt > set.ComputedAt {
			set.ComputedAt = computedAt
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	const qa = `SELECT advice FROM indicator_advice WHERE symbol = $1 AND timeframe = $2`
	var advice string
	switch err := s.db.QueryRowContext(ctx, qa, symbol, string(tf)).Scan(&advice); err {
	case nil:
		set.Recommendation = models.Advice(advice)
		found = true
	case sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("get advice: %w", err)
	}

	if !found {
		return nil, nil
	}
	return set, nil
}
