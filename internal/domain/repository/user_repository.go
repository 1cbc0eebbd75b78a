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

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Delete(ctx context.Context, tx *sql.Tx, id string) error

	// IncrementSubmissionCount bumps total_submissions by one. Runs inside
	// the same transaction as the submission insert.
	IncrementSubmissionCount(ctx context.Context, tx *sql.Tx, userID string) error

	// MarkFirstSolve bumps total_solved by one, but only when the
	// (user, problem) pair holds exactly one accepted submission — i.e. the
	// row inserted by the surrounding transaction was the first solve.
	// Returns whether the counter moved.
	MarkFirstSolve(ctx context.Context, tx *sql.Tx, userID, problemID string) (bool, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, joined_at, total_solved, total_submissions)
	          VALUES ($1, $2, $3, $4, 0, 0)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.JoinedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, username, email, joined_at, total_solved, total_submissions
	          FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "FindByID")
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT id, username, email, joined_at, total_solved, total_submissions
	          FROM users WHERE username = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username), "FindByUsername")
}

func (r *pgUserRepository) scanOne(row *sql.Row, method string) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.JoinedAt, &user.TotalSolved, &user.TotalSubmissions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", method, err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT id, username, email, joined_at, total_solved, total_submissions
	          FROM users ORDER BY username`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.List: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.JoinedAt, &u.TotalSolved, &u.TotalSubmissions); err != nil {
			return nil, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.List rows.Err: %w", err)
	}
	return users, nil
}

func (r *pgUserRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	query := `DELETE FROM users WHERE id = $1`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		return fmt.Errorf("pgUserRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) IncrementSubmissionCount(ctx context.Context, tx *sql.Tx, userID string) error {
	query := `UPDATE users SET total_submissions = total_submissions + 1 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.IncrementSubmissionCount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) MarkFirstSolve(ctx context.Context, tx *sql.Tx, userID, problemID string) (bool, error) {
	// Atomic check-then-increment: the subquery and the update are one
	// statement, covered by the caller's transaction.
	query := `UPDATE users SET total_solved = total_solved + 1
	          WHERE id = $1
	            AND (SELECT COUNT(*) FROM submissions
	                  WHERE user_id = $2 AND problem_id = $3 AND verdict = $4) = 1`
	res, err := tx.ExecContext(ctx, query, userID, userID, problemID, model.VerdictAccepted)
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.MarkFirstSolve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.MarkFirstSolve rows: %w", err)
	}
	return n == 1, nil
}
