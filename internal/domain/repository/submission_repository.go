package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cptracker/internal/common"
	"cptracker/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type SubmissionRepository interface {
	// Create inserts a submission with its pre-assigned attempt_no. A unique
	// index on (user_id, problem_id, attempt_no) turns a lost numbering race
	// into ErrConflict; the caller retries the whole transaction.
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)

	// MaxAttemptNo returns the highest attempt_no for the pair, 0 when the
	// user has never submitted to the problem. Read inside the insert
	// transaction.
	MaxAttemptNo(ctx context.Context, tx *sql.Tx, userID, problemID string) (int, error)

	UpdateVerdict(ctx context.Context, tx *sql.Tx, id, verdict string, executionTimeMs *int) error
	Delete(ctx context.Context, tx *sql.Tx, id string) error

	ListByUser(ctx context.Context, userID string) ([]model.Submission, error)
	ListByPlatform(ctx context.Context, platformID string) ([]model.Submission, error)
	ListRecent(ctx context.Context, limit int) ([]model.Submission, error)
	SubmittedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, verdict, language, attempt_no, execution_time_ms, notes, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := tx.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.Verdict, sub.Language,
		sub.AttemptNo, sub.ExecutionTimeMs, sub.Notes, sub.SubmittedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // attempt_no collision, numbering race lost
				return fmt.Errorf("attempt number already taken for this user/problem: %w", common.ErrConflict)
			case "23503": // user or problem vanished under us
				return fmt.Errorf("submission references a missing user or problem: %w", common.ErrValidation)
			}
		}
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.verdict, s.language, s.attempt_no,
	                 s.execution_time_ms, s.notes, s.submitted_at, u.username, p.title
	          FROM submissions s
	          JOIN users u ON u.id = s.user_id
	          JOIN problems p ON p.id = s.problem_id
	          WHERE s.id = $1`
	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Verdict, &sub.Language, &sub.AttemptNo,
		&sub.ExecutionTimeMs, &sub.Notes, &sub.SubmittedAt, &sub.Username, &sub.ProblemTitle,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) MaxAttemptNo(ctx context.Context, tx *sql.Tx, userID, problemID string) (int, error) {
	query := `SELECT COALESCE(MAX(attempt_no), 0) FROM submissions WHERE user_id = $1 AND problem_id = $2`
	var maxNo int
	if err := tx.QueryRowContext(ctx, query, userID, problemID).Scan(&maxNo); err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.MaxAttemptNo: %w", err)
	}
	return maxNo, nil
}

func (r *pgSubmissionRepository) UpdateVerdict(ctx context.Context, tx *sql.Tx, id, verdict string, executionTimeMs *int) error {
	query := `UPDATE submissions SET verdict = $1, execution_time_ms = COALESCE($2, execution_time_ms) WHERE id = $3`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, verdict, executionTimeMs, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, verdict, executionTimeMs, id)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateVerdict: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgSubmissionRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	query := `DELETE FROM submissions WHERE id = $1`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	query := `SELECT id, user_id, problem_id, verdict, language, attempt_no, execution_time_ms, notes, submitted_at
	          FROM submissions WHERE user_id = $1 ORDER BY submitted_at, attempt_no`
	return r.queryList(ctx, query, userID)
}

func (r *pgSubmissionRepository) ListByPlatform(ctx context.Context, platformID string) ([]model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.verdict, s.language, s.attempt_no, s.execution_time_ms, s.notes, s.submitted_at
	          FROM submissions s
	          JOIN problems p ON p.id = s.problem_id
	          WHERE p.platform_id = $1
	          ORDER BY s.submitted_at, s.attempt_no`
	return r.queryList(ctx, query, platformID)
}

func (r *pgSubmissionRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository list query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Verdict, &s.Language,
			&s.AttemptNo, &s.ExecutionTimeMs, &s.Notes, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository list scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository list rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) ListRecent(ctx context.Context, limit int) ([]model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.verdict, s.language, s.attempt_no,
	                 s.execution_time_ms, s.notes, s.submitted_at, u.username, p.title
	          FROM submissions s
	          JOIN users u ON u.id = s.user_id
	          JOIN problems p ON p.id = s.problem_id
	          ORDER BY s.submitted_at DESC, s.attempt_no DESC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListRecent: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Verdict, &s.Language, &s.AttemptNo,
			&s.ExecutionTimeMs, &s.Notes, &s.SubmittedAt, &s.Username, &s.ProblemTitle); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListRecent scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListRecent rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) SubmittedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	query := `SELECT submitted_at FROM submissions WHERE submitted_at >= $1 ORDER BY submitted_at`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.SubmittedSince: %w", err)
	}
	defer rows.Close()

	times := []time.Time{}
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.SubmittedSince scan: %w", err)
		}
		times = append(times, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.SubmittedSince rows.Err: %w", err)
	}
	return times, nil
}
