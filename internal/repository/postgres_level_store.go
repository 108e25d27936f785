package repository

import (
	"context"
	"database/sql"
	"fmt"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgpg "LevelScan/pkg/postgres"
)

// PGLevelStore owns the global level set in Postgres. The set is replaced
// wholesale inside one transaction so readers never observe a partial
// rewrite.
type PGLevelStore struct {
	db *sql.DB
}

var _ domrepo.LevelStore = (*PGLevelStore)(nil)

func NewPGLevelStore(pg *pkgpg.Client) *PGLevelStore {
	return &PGLevelStore{db: pg.DB()}
}

func (s *PGLevelStore) ReplaceAll(ctx context.Context, levels []models.Level) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM levels`); err != nil {
		return fmt.Errorf("clear levels: %w", err)
	}

	const q = `
        INSERT INTO levels
            (symbol, timeframe, price, level_type, strength,
             upper_bound, lower_bound, distance, touched, broken, last_touched)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, lvl := range levels {
		if _, err := stmt.ExecContext(ctx,
			lvl.Symbol, lvl.Timeframe, lvl.Price, string(lvl.Type), lvl.Strength,
			lvl.Upper, lvl.Lower, lvl.Distance, lvl.Touched, lvl.Broken, lvl.LastTouched,
		); err != nil {
			return fmt.Errorf("insert level %s %s: %w", lvl.Symbol, lvl.Timeframe, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *PGLevelStore) GetLevels(ctx context.Context) ([]models.Level, error) {
	const q = `
        SELECT symbol, timeframe, price, level_type, strength,
               upper_bound, lower_bound, distance, touched, broken, last_touched
        FROM levels
        ORDER BY symbol, timeframe, price
    `
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get levels: %w", err)
	}
	defer rows.Close()

	var out []models.Level
	for rows.Next() {
		var lvl models.Level
		var typ string
		if err := rows.Scan(
			&lvl.Symbol, &lvl.Timeframe, &lvl.Price, &typ, &lvl.Strength,
			&lvl.Upper, &lvl.Lower, &lvl.Distance, &lvl.Touched, &lvl.Broken, &lvl.LastTouched,
		); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		lvl.Type = models.LevelType(typ)
		out = append(out, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
