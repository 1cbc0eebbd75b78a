package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cptracker/internal/common"
	"cptracker/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type PlatformRepository interface {
	Create(ctx context.Context, platform *model.Platform) error
	FindByID(ctx context.Context, id string) (*model.Platform, error)
	List(ctx context.Context) ([]model.Platform, error)
	// Delete cascades to the platform's problems, their tag links and their
	// submissions via the schema's ON DELETE CASCADE chain.
	Delete(ctx context.Context, tx *sql.Tx, id string) error
}

type pgPlatformRepository struct {
	db *sql.DB
}

func NewPgPlatformRepository(db *sql.DB) PlatformRepository {
	return &pgPlatformRepository{db: db}
}

func (r *pgPlatformRepository) Create(ctx context.Context, platform *model.Platform) error {
	query := `INSERT INTO platforms (id, name, base_url) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, platform.ID, platform.Name, platform.BaseURL)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("platform with this name already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgPlatformRepository.Create: %w", err)
	}
	return nil
}

func (r *pgPlatformRepository) FindByID(ctx context.Context, id string) (*model.Platform, error) {
	query := `SELECT id, name, base_url FROM platforms WHERE id = $1`
	platform := &model.Platform{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&platform.ID, &platform.Name, &platform.BaseURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgPlatformRepository.FindByID: %w", err)
	}
	return platform, nil
}

func (r *pgPlatformRepository) List(ctx context.Context) ([]model.Platform, error) {
	query := `SELECT id, name, base_url FROM platforms ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgPlatformRepository.List: %w", err)
	}
	defer rows.Close()

	platforms := []model.Platform{}
	for rows.Next() {
		var p model.Platform
		if err := rows.Scan(&p.ID, &p.Name, &p.BaseURL); err != nil {
			return nil, fmt.Errorf("pgPlatformRepository.List scan: %w", err)
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgPlatformRepository.List rows.Err: %w", err)
	}
	return platforms, nil
}

func (r *pgPlatformRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	query := `DELETE FROM platforms WHERE id = $1`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		return fmt.Errorf("pgPlatformRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
