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

type TagRepository interface {
	Create(ctx context.Context, tx *sql.Tx, tag *model.Tag) error
	FindByID(ctx context.Context, id string) (*model.Tag, error)
	FindBySlug(ctx context.Context, tx *sql.Tx, slug string) (*model.Tag, error)
	List(ctx context.Context) ([]model.Tag, error)
	Delete(ctx context.Context, tx *sql.Tx, id string) error
}

type pgTagRepository struct {
	db *sql.DB
}

func NewPgTagRepository(db *sql.DB) TagRepository {
	return &pgTagRepository{db: db}
}

func (r *pgTagRepository) Create(ctx context.Context, tx *sql.Tx, tag *model.Tag) error {
	query := `INSERT INTO tags (id, name, slug) VALUES ($1, $2, $3)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, tag.ID, tag.Name, tag.Slug)
	} else {
		_, err = r.db.ExecContext(ctx, query, tag.ID, tag.Name, tag.Slug)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("tag with this name already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTagRepository.Create: %w", err)
	}
	return nil
}

func (r *pgTagRepository) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	query := `SELECT id, name, slug FROM tags WHERE id = $1`
	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTagRepository.FindByID: %w", err)
	}
	return tag, nil
}

func (r *pgTagRepository) FindBySlug(ctx context.Context, tx *sql.Tx, slug string) (*model.Tag, error) {
	query := `SELECT id, name, slug FROM tags WHERE slug = $1`
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, slug)
	} else {
		row = r.db.QueryRowContext(ctx, query, slug)
	}
	tag := &model.Tag{}
	if err := row.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTagRepository.FindBySlug: %w", err)
	}
	return tag, nil
}

func (r *pgTagRepository) List(ctx context.Context) ([]model.Tag, error) {
	query := `SELECT id, name, slug FROM tags ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgTagRepository.List: %w", err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("pgTagRepository.List scan: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTagRepository.List rows.Err: %w", err)
	}
	return tags, nil
}

func (r *pgTagRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	query := `DELETE FROM tags WHERE id = $1`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		return fmt.Errorf("pgTagRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
