package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"cptracker/internal/app/service"
	"cptracker/internal/domain/model"
	"cptracker/internal/domain/repository"
	"cptracker/internal/platform/cache"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
)

// testEnv wires the real repositories and services over a throwaway sqlite
// database. Production runs the same SQL against PostgreSQL; the queries
// stick to the dialect subset both engines share.
type testEnv struct {
	db             *sql.DB
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
	auditRepo      repository.AuditRepository
	statsRepo      repository.StatsRepository

	submissions *service.SubmissionService
	stats       *service.StatsService
	catalog     *service.CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, nil)
}

func newTestEnvWithCache(t *testing.T, statsCache *cache.StatsCache) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		db.Close()
		t.Fatalf("apply test schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := repository.NewPgUserRepository(db)
	platformRepo := repository.NewPgPlatformRepository(db)
	problemRepo := repository.NewPgProblemRepository(db)
	tagRepo := repository.NewPgTagRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)
	auditRepo := repository.NewPgAuditRepository(db)
	statsRepo := repository.NewPgStatsRepository(db)

	return &testEnv{
		db:             db,
		userRepo:       userRepo,
		submissionRepo: submissionRepo,
		auditRepo:      auditRepo,
		statsRepo:      statsRepo,
		submissions:    service.NewSubmissionService(db, submissionRepo, userRepo, problemRepo, auditRepo, statsCache, 3),
		stats:          service.NewStatsService(db, statsRepo, userRepo, submissionRepo, statsCache, 8),
		catalog:        service.NewCatalogService(db, userRepo, platformRepo, problemRepo, tagRepo, submissionRepo, auditRepo, statsCache),
	}
}

// newTestCache backs a StatsCache with an in-process redis.
func newTestCache(t *testing.T) *cache.StatsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return cache.NewStatsCache(rdb, time.Minute)
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := e.catalog.CreateUser(context.Background(), service.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func (e *testEnv) createPlatform(t *testing.T, name string) *model.Platform {
	t.Helper()
	platform, err := e.catalog.CreatePlatform(context.Background(), service.CreatePlatformRequest{Name: name})
	if err != nil {
		t.Fatalf("create platform %s: %v", name, err)
	}
	return platform
}

func (e *testEnv) createProblem(t *testing.T, platformID, title string, tags ...string) *model.Problem {
	t.Helper()
	problem, err := e.catalog.CreateProblem(context.Background(), service.CreateProblemRequest{
		PlatformID: platformID,
		Title:      title,
		Difficulty: model.DifficultyMedium,
		Tags:       tags,
	})
	if err != nil {
		t.Fatalf("create problem %s: %v", title, err)
	}
	return problem
}

func (e *testEnv) submit(t *testing.T, userID, problemID, verdict string) *model.Submission {
	t.Helper()
	sub, err := e.submissions.CreateSubmission(context.Background(), service.CreateSubmissionRequest{
		UserID:    userID,
		ProblemID: problemID,
		Verdict:   verdict,
		Language:  "go",
	})
	if err != nil {
		t.Fatalf("submit %s/%s %s: %v", userID, problemID, verdict, err)
	}
	return sub
}

func (e *testEnv) findUser(t *testing.T, id string) *model.User {
	t.Helper()
	user, err := e.userRepo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find user %s: %v", id, err)
	}
	return user
}

func (e *testEnv) auditEntries(t *testing.T, op model.AuditOp) []model.AuditEntry {
	t.Helper()
	all, err := e.auditRepo.List(context.Background(), 1000)
	if err != nil {
		t.Fatalf("list audit log: %v", err)
	}
	matched := []model.AuditEntry{}
	for _, entry := range all {
		if entry.Op == op {
			matched = append(matched, entry)
		}
	}
	return matched
}

const testSchema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    joined_at TIMESTAMP NOT NULL,
    total_solved INTEGER NOT NULL DEFAULT 0,
    total_submissions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE platforms (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    base_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE problems (
    id TEXT PRIMARY KEY,
    platform_id TEXT NOT NULL REFERENCES platforms(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    slug TEXT NOT NULL,
    difficulty TEXT NOT NULL CHECK (difficulty IN ('Easy', 'Medium', 'Hard')),
    problem_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE tags (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL
);

CREATE TABLE problem_tags (
    problem_id TEXT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (problem_id, tag_id)
);

CREATE TABLE submissions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    problem_id TEXT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    verdict TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    attempt_no INTEGER NOT NULL,
    execution_time_ms INTEGER,
    notes TEXT,
    submitted_at TIMESTAMP NOT NULL,
    UNIQUE (user_id, problem_id, attempt_no)
);

CREATE TABLE audit_log (
    id TEXT PRIMARY KEY,
    table_name TEXT NOT NULL,
    op TEXT NOT NULL,
    row_id TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '{}',
    changed_at TIMESTAMP NOT NULL
);

CREATE TABLE user_tag_stats (
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    attempts INTEGER NOT NULL DEFAULT 0,
    accepted INTEGER NOT NULL DEFAULT 0,
    accepted_rate REAL NOT NULL DEFAULT 0,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, tag_id)
);
`
