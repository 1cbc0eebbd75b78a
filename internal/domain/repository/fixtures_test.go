package repository_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
)

var baseTime = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func seedUser(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db, `INSERT INTO users (id, username, email, joined_at) VALUES ($1, $2, $3, $4)`,
		id, username, username+"@example.com", baseTime)
	return id
}

func seedPlatform(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db, `INSERT INTO platforms (id, name, base_url) VALUES ($1, $2, $3)`,
		id, name, "https://"+name+".example.com")
	return id
}

func seedProblem(t *testing.T, db *sql.DB, platformID, title, difficulty string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db, `INSERT INTO problems (id, platform_id, title, slug, difficulty, created_at)
	                 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, platformID, title, title, difficulty, baseTime)
	return id
}

func seedTag(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db, `INSERT INTO tags (id, name, slug) VALUES ($1, $2, $3)`, id, name, name)
	return id
}

func linkTag(t *testing.T, db *sql.DB, problemID, tagID string) {
	t.Helper()
	mustExec(t, db, `INSERT INTO problem_tags (problem_id, tag_id) VALUES ($1, $2)`, problemID, tagID)
}

func seedSubmission(t *testing.T, db *sql.DB, userID, problemID, verdict string, attemptNo int, at time.Time, execMs *int) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db, `INSERT INTO submissions (id, user_id, problem_id, verdict, language, attempt_no, execution_time_ms, submitted_at)
	                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, userID, problemID, verdict, "go", attemptNo, execMs, at)
	return id
}

func intPtr(v int) *int { return &v }
