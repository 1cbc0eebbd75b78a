package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cptracker/internal/domain/model"
)

type StatsRepository interface {
	// ReplaceUserTagStats wipes and repopulates user_tag_stats in one pass
	// inside the caller's transaction, so readers see either the old or the
	// new contents, never a mix. One row is produced for every (user, tag)
	// pair; zero-attempt pairs get rate 0.
	ReplaceUserTagStats(ctx context.Context, tx *sql.Tx) error

	GetUserTagStats(ctx context.Context, userID string) ([]model.UserTagStat, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	TagSummary(ctx context.Context) ([]model.TagSummary, error)
	LastSubmissionPerUser(ctx context.Context) ([]model.UserLastSubmission, error)

	// UserAcceptRate returns (total, accepted) submission counts for a user.
	UserAcceptRate(ctx context.Context, userID string) (int, int, error)
	Counts(ctx context.Context) (users, problems, submissions, accepted int, err error)
}

type pgStatsRepository struct {
	db *sql.DB
}

func NewPgStatsRepository(db *sql.DB) StatsRepository {
	return &pgStatsRepository{db: db}
}

func (r *pgStatsRepository) ReplaceUserTagStats(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tag_stats`); err != nil {
		return fmt.Errorf("pgStatsRepository.ReplaceUserTagStats delete: %w", err)
	}

	// Set-oriented restatement of the original per-user-per-tag double loop:
	// a single grouped sweep over users x tags.
	query := `
	    INSERT INTO user_tag_stats (user_id, tag_id, attempts, accepted, accepted_rate, computed_at)
	    SELECT u.id, t.id,
	           COUNT(s.id),
	           COALESCE(SUM(CASE WHEN s.verdict = $1 THEN 1 ELSE 0 END), 0),
	           CASE WHEN COUNT(s.id) = 0 THEN 0
	                ELSE CAST(COALESCE(SUM(CASE WHEN s.verdict = $2 THEN 1 ELSE 0 END), 0) AS REAL) / COUNT(s.id)
	           END,
	           CURRENT_TIMESTAMP
	    FROM users u
	    CROSS JOIN tags t
	    LEFT JOIN problem_tags pt ON pt.tag_id = t.id
	    LEFT JOIN submissions s ON s.problem_id = pt.problem_id AND s.user_id = u.id
	    GROUP BY u.id, t.id`
	if _, err := tx.ExecContext(ctx, query, model.VerdictAccepted, model.VerdictAccepted); err != nil {
		return fmt.Errorf("pgStatsRepository.ReplaceUserTagStats insert: %w", err)
	}
	return nil
}

func (r *pgStatsRepository) GetUserTagStats(ctx context.Context, userID string) ([]model.UserTagStat, error) {
	query := `SELECT uts.user_id, uts.tag_id, t.name, uts.attempts, uts.accepted, uts.accepted_rate, uts.computed_at
	          FROM user_tag_stats uts
	          JOIN tags t ON t.id = uts.tag_id
	          WHERE uts.user_id = $1
	          ORDER BY t.name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgStatsRepository.GetUserTagStats: %w", err)
	}
	defer rows.Close()

	stats := []model.UserTagStat{}
	for rows.Next() {
		var s model.UserTagStat
		if err := rows.Scan(&s.UserID, &s.TagID, &s.TagName, &s.Attempts, &s.Accepted, &s.AcceptedRate, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("pgStatsRepository.GetUserTagStats scan: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgStatsRepository.GetUserTagStats rows.Err: %w", err)
	}
	return stats, nil
}

func (r *pgStatsRepository) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	// Ties on total_solved break on average accepted execution time; users
	// with no timed accepted submissions sort last within their tie group.
	query := `
	    SELECT u.id, u.username, u.total_solved, u.total_submissions,
	           (SELECT AVG(CAST(s.execution_time_ms AS REAL))
	              FROM submissions s
	             WHERE s.user_id = u.id AND s.verdict = $1 AND s.execution_time_ms IS NOT NULL) AS avg_accepted_ms
	    FROM users u
	    ORDER BY u.total_solved DESC, avg_accepted_ms ASC NULLS LAST, u.username ASC
	    LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, model.VerdictAccepted, limit)
	if err != nil {
		return nil, fmt.Errorf("pgStatsRepository.Leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		var avg sql.NullFloat64
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalSolved, &e.TotalSubmissions, &avg); err != nil {
			return nil, fmt.Errorf("pgStatsRepository.Leaderboard scan: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			e.AvgAcceptedMs = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgStatsRepository.Leaderboard rows.Err: %w", err)
	}
	return entries, nil
}

func (r *pgStatsRepository) TagSummary(ctx context.Context) ([]model.TagSummary, error) {
	query := `
	    SELECT t.id, t.name,
	           COUNT(DISTINCT pt.problem_id),
	           COUNT(s.id),
	           COALESCE(SUM(CASE WHEN s.verdict = $1 THEN 1 ELSE 0 END), 0)
	    FROM tags t
	    LEFT JOIN problem_tags pt ON pt.tag_id = t.id
	    LEFT JOIN submissions s ON s.problem_id = pt.problem_id
	    GROUP BY t.id, t.name
	    ORDER BY t.name`
	rows, err := r.db.QueryContext(ctx, query, model.VerdictAccepted)
	if err != nil {
		return nil, fmt.Errorf("pgStatsRepository.TagSummary: %w", err)
	}
	defer rows.Close()

	summaries := []model.TagSummary{}
	for rows.Next() {
		var s model.TagSummary
		if err := rows.Scan(&s.TagID, &s.TagName, &s.ProblemCount, &s.Submissions, &s.Accepted); err != nil {
			return nil, fmt.Errorf("pgStatsRepository.TagSummary scan: %w", err)
		}
		if s.Submissions > 0 {
			s.AcceptedRate = float64(s.Accepted) / float64(s.Submissions)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgStatsRepository.TagSummary rows.Err: %w", err)
	}
	return summaries, nil
}

func (r *pgStatsRepository) LastSubmissionPerUser(ctx context.Context) ([]model.UserLastSubmission, error) {
	// Max submitted_at per user; equal timestamps break on attempt_no then
	// submission id so the result is deterministic.
	query := `
	    SELECT s.user_id, u.username, s.id, s.problem_id, p.title, s.verdict, s.attempt_no, s.submitted_at
	    FROM submissions s
	    JOIN users u ON u.id = s.user_id
	    JOIN problems p ON p.id = s.problem_id
	    WHERE NOT EXISTS (
	        SELECT 1 FROM submissions s2
	        WHERE s2.user_id = s.user_id
	          AND (s2.submitted_at > s.submitted_at
	               OR (s2.submitted_at = s.submitted_at AND s2.attempt_no > s.attempt_no)
	               OR (s2.submitted_at = s.submitted_at AND s2.attempt_no = s.attempt_no AND s2.id > s.id))
	    )
	    ORDER BY u.username`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgStatsRepository.LastSubmissionPerUser: %w", err)
	}
	defer rows.Close()

	results := []model.UserLastSubmission{}
	for rows.Next() {
		var ls model.UserLastSubmission
		if err := rows.Scan(&ls.UserID, &ls.Username, &ls.SubmissionID, &ls.ProblemID, &ls.ProblemTitle,
			&ls.Verdict, &ls.AttemptNo, &ls.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgStatsRepository.LastSubmissionPerUser scan: %w", err)
		}
		results = append(results, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgStatsRepository.LastSubmissionPerUser rows.Err: %w", err)
	}
	return results, nil
}

func (r *pgStatsRepository) UserAcceptRate(ctx context.Context, userID string) (int, int, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN verdict = $1 THEN 1 ELSE 0 END), 0)
	          FROM submissions WHERE user_id = $2`
	var total, accepted int
	if err := r.db.QueryRowContext(ctx, query, model.VerdictAccepted, userID).Scan(&total, &accepted); err != nil {
		return 0, 0, fmt.Errorf("pgStatsRepository.UserAcceptRate: %w", err)
	}
	return total, accepted, nil
}

func (r *pgStatsRepository) Counts(ctx context.Context) (int, int, int, int, error) {
	query := `SELECT (SELECT COUNT(*) FROM users),
	                 (SELECT COUNT(*) FROM problems),
	                 (SELECT COUNT(*) FROM submissions),
	                 (SELECT COUNT(*) FROM submissions WHERE verdict = $1)`
	var users, problems, submissions, accepted int
	if err := r.db.QueryRowContext(ctx, query, model.VerdictAccepted).Scan(&users, &problems, &submissions, &accepted); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("pgStatsRepository.Counts: %w", err)
	}
	return users, problems, submissions, accepted, nil
}
