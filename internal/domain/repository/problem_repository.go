package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cptracker/internal/common"
	"cptracker/internal/domain/model"
)

type ProblemRepository interface {
	Create(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindByID(ctx context.Context, id string) (*model.Problem, error)
	List(ctx context.Context, difficulty model.ProblemDifficulty, tagID, searchTerm string) ([]model.Problem, error)
	Delete(ctx context.Context, tx *sql.Tx, id string) error

	AddTags(ctx context.Context, tx *sql.Tx, problemID string, tagIDs []string) error
	GetTags(ctx context.Context, problemID string) ([]model.Tag, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) Create(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, platform_id, title, slug, difficulty, problem_url, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, p.ID, p.PlatformID, p.Title, p.Slug, p.Difficulty, p.ProblemURL, p.CreatedAt)
	} else {
		_, err = r.db.ExecContext(ctx, query, p.ID, p.PlatformID, p.Title, p.Slug, p.Difficulty, p.ProblemURL, p.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("pgProblemRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT p.id, p.platform_id, p.title, p.slug, p.difficulty, p.problem_url, p.created_at,
	                 pl.name AS platform_name
	          FROM problems p
	          JOIN platforms pl ON pl.id = p.platform_id
	          WHERE p.id = $1`
	problem := &model.Problem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&problem.ID, &problem.PlatformID, &problem.Title, &problem.Slug,
		&problem.Difficulty, &problem.ProblemURL, &problem.CreatedAt, &problem.PlatformName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindByID: %w", err)
	}
	return problem, nil
}

// List builds the filter clause dynamically; every filter is optional.
func (r *pgProblemRepository) List(ctx context.Context, difficulty model.ProblemDifficulty, tagID, searchTerm string) ([]model.Problem, error) {
	var query strings.Builder
	query.WriteString(`
	    SELECT DISTINCT p.id, p.platform_id, p.title, p.slug, p.difficulty, p.problem_url, p.created_at,
	           pl.name AS platform_name
	    FROM problems p
	    JOIN platforms pl ON pl.id = p.platform_id`)

	var conditions []string
	var args []interface{}
	argID := 1

	if tagID != "" {
		query.WriteString(" JOIN problem_tags pt ON pt.problem_id = p.id")
		conditions = append(conditions, fmt.Sprintf("pt.tag_id = $%d", argID))
		args = append(args, tagID)
		argID++
	}
	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("p.difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}
	if searchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(p.title) LIKE $%d", argID))
		args = append(args, "%"+strings.ToLower(searchTerm)+"%")
		argID++
	}

	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY p.title")

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.List: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.PlatformID, &p.Title, &p.Slug, &p.Difficulty, &p.ProblemURL, &p.CreatedAt, &p.PlatformName); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.List scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.List rows.Err: %w", err)
	}
	return problems, nil
}

func (r *pgProblemRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	query := `DELETE FROM problems WHERE id = $1`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		return fmt.Errorf("pgProblemRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) AddTags(ctx context.Context, tx *sql.Tx, problemID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	query := `INSERT INTO problem_tags (problem_id, tag_id) VALUES ($1, $2)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.AddTags prepare: %w", err)
	}
	defer stmt.Close()

	for _, tagID := range tagIDs {
		if _, err := stmt.ExecContext(ctx, problemID, tagID); err != nil {
			return fmt.Errorf("pgProblemRepository.AddTags exec for tag %s: %w", tagID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetTags(ctx context.Context, problemID string) ([]model.Tag, error) {
	query := `SELECT t.id, t.name, t.slug
	          FROM tags t
	          JOIN problem_tags pt ON pt.tag_id = t.id
	          WHERE pt.problem_id = $1
	          ORDER BY t.name`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTags: %w", err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTags scan: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTags rows.Err: %w", err)
	}
	return tags, nil
}
