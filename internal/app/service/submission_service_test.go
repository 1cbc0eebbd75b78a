package service_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"cptracker/internal/app/service"
	"cptracker/internal/common"
	"cptracker/internal/domain/model"
	"cptracker/internal/domain/repository"

	"github.com/google/uuid"
)

func TestCreateSubmissionAssignsSequentialAttempts(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "codeforces")
	problem := env.createProblem(t, platform.ID, "watermelon")
	other := env.createProblem(t, platform.ID, "theatre-square")

	for want := 1; want <= 3; want++ {
		sub := env.submit(t, user.ID, problem.ID, "Wrong Answer")
		if sub.AttemptNo != want {
			t.Errorf("attempt_no = %d, want %d", sub.AttemptNo, want)
		}
	}

	// Numbering is per (user, problem) pair.
	if sub := env.submit(t, user.ID, other.ID, "Wrong Answer"); sub.AttemptNo != 1 {
		t.Errorf("fresh pair attempt_no = %d, want 1", sub.AttemptNo)
	}
	bob := env.createUser(t, "bob")
	if sub := env.submit(t, bob.ID, problem.ID, "Wrong Answer"); sub.AttemptNo != 1 {
		t.Errorf("other user attempt_no = %d, want 1", sub.AttemptNo)
	}
}

func TestCreateSubmissionMaintainsCounters(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")

	env.submit(t, user.ID, problem.ID, "Wrong Answer")
	got := env.findUser(t, user.ID)
	if got.TotalSubmissions != 1 || got.TotalSolved != 0 {
		t.Errorf("after WA: submissions=%d solved=%d, want 1/0", got.TotalSubmissions, got.TotalSolved)
	}

	env.submit(t, user.ID, problem.ID, model.VerdictAccepted)
	got = env.findUser(t, user.ID)
	if got.TotalSubmissions != 2 || got.TotalSolved != 1 {
		t.Errorf("after first solve: submissions=%d solved=%d, want 2/1", got.TotalSubmissions, got.TotalSolved)
	}

	// Solving the same problem again bumps submissions only.
	env.submit(t, user.ID, problem.ID, model.VerdictAccepted)
	got = env.findUser(t, user.ID)
	if got.TotalSubmissions != 3 || got.TotalSolved != 1 {
		t.Errorf("after repeat solve: submissions=%d solved=%d, want 3/1", got.TotalSubmissions, got.TotalSolved)
	}
}

func TestCreateSubmissionValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")
	ctx := context.Background()

	cases := []struct {
		name string
		req  service.CreateSubmissionRequest
	}{
		{"empty verdict", service.CreateSubmissionRequest{UserID: user.ID, ProblemID: problem.ID, Verdict: "  "}},
		{"unknown user", service.CreateSubmissionRequest{UserID: uuid.NewString(), ProblemID: problem.ID, Verdict: "Accepted"}},
		{"unknown problem", service.CreateSubmissionRequest{UserID: user.ID, ProblemID: uuid.NewString(), Verdict: "Accepted"}},
	}
	for _, tc := range cases {
		if _, err := env.submissions.CreateSubmission(ctx, tc.req); !errors.Is(err, common.ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", tc.name, err)
		}
	}

	// Nothing was counted for the rejected requests.
	if got := env.findUser(t, user.ID); got.TotalSubmissions != 0 {
		t.Errorf("rejected requests moved total_submissions to %d", got.TotalSubmissions)
	}
}

func TestCreateSubmissionWritesAuditRow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")

	sub := env.submit(t, user.ID, problem.ID, model.VerdictAccepted)

	inserts := env.auditEntries(t, model.AuditOpInsert)
	if len(inserts) != 1 {
		t.Fatalf("got %d insert audit rows, want 1", len(inserts))
	}
	entry := inserts[0]
	if entry.TableName != "submissions" || entry.RowID != sub.ID {
		t.Errorf("audit entry: %+v", entry)
	}
	var detail map[string]interface{}
	if err := json.Unmarshal(entry.Detail, &detail); err != nil {
		t.Fatalf("audit detail not JSON: %v", err)
	}
	if detail["verdict"] != model.VerdictAccepted || detail["attempt_no"] != float64(1) {
		t.Errorf("audit detail: %+v", detail)
	}
}

// flakySubmissionRepo fails Create a fixed number of times with ErrConflict,
// simulating lost attempt-number races.
type flakySubmissionRepo struct {
	repository.SubmissionRepository
	mu       sync.Mutex
	failures int
}

func (f *flakySubmissionRepo) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return common.ErrConflict
	}
	return f.SubmissionRepository.Create(ctx, tx, sub)
}

func TestCreateSubmissionRetriesAfterConflict(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")

	flaky := &flakySubmissionRepo{SubmissionRepository: env.submissionRepo, failures: 2}
	problemRepo := repository.NewPgProblemRepository(env.db)
	svc := service.NewSubmissionService(env.db, flaky, env.userRepo, problemRepo, env.auditRepo, nil, 3)

	sub, err := svc.CreateSubmission(context.Background(), service.CreateSubmissionRequest{
		UserID:    user.ID,
		ProblemID: problem.ID,
		Verdict:   model.VerdictAccepted,
	})
	if err != nil {
		t.Fatalf("CreateSubmission should survive two lost races: %v", err)
	}
	if sub.AttemptNo != 1 {
		t.Errorf("attempt_no = %d, want 1", sub.AttemptNo)
	}

	// The rolled-back attempts must not have leaked counter updates.
	if got := env.findUser(t, user.ID); got.TotalSubmissions != 1 || got.TotalSolved != 1 {
		t.Errorf("counters after retries: submissions=%d solved=%d, want 1/1", got.TotalSubmissions, got.TotalSolved)
	}
}

func TestCreateSubmissionConflictBudgetExhausted(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")

	flaky := &flakySubmissionRepo{SubmissionRepository: env.submissionRepo, failures: 100}
	problemRepo := repository.NewPgProblemRepository(env.db)
	svc := service.NewSubmissionService(env.db, flaky, env.userRepo, problemRepo, env.auditRepo, nil, 3)

	_, err := svc.CreateSubmission(context.Background(), service.CreateSubmissionRequest{
		UserID:    user.ID,
		ProblemID: problem.ID,
		Verdict:   model.VerdictAccepted,
	})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("exhausted retry budget: got %v, want ErrConflict", err)
	}
	if got := env.findUser(t, user.ID); got.TotalSubmissions != 0 {
		t.Errorf("failed insert leaked counters: %d", got.TotalSubmissions)
	}
}

func TestConcurrentSubmissionsGetDistinctAttemptNumbers(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "codeforces")
	problem := env.createProblem(t, platform.ID, "watermelon")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.submissions.CreateSubmission(context.Background(), service.CreateSubmissionRequest{
				UserID:    user.ID,
				ProblemID: problem.ID,
				Verdict:   "Wrong Answer",
				Language:  "go",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent CreateSubmission: %v", err)
		}
	}

	subs, err := env.submissionRepo.ListByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(subs) != workers {
		t.Fatalf("got %d submissions, want %d", len(subs), workers)
	}
	seen := map[int]bool{}
	for _, sub := range subs {
		if sub.AttemptNo < 1 || sub.AttemptNo > workers || seen[sub.AttemptNo] {
			t.Fatalf("attempt numbers not a gap-free 1..%d set: %v", workers, sub.AttemptNo)
		}
		seen[sub.AttemptNo] = true
	}

	if got := env.findUser(t, user.ID); got.TotalSubmissions != workers {
		t.Errorf("total_submissions = %d, want %d", got.TotalSubmissions, workers)
	}
}

func TestUpdateVerdictDoesNotTouchCounters(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")
	sub := env.submit(t, user.ID, problem.ID, "Wrong Answer")
	ctx := context.Background()

	updated, err := env.submissions.UpdateVerdict(ctx, sub.ID, service.UpdateVerdictRequest{Verdict: model.VerdictAccepted})
	if err != nil {
		t.Fatalf("UpdateVerdict: %v", err)
	}
	if updated.Verdict != model.VerdictAccepted || updated.AttemptNo != sub.AttemptNo {
		t.Errorf("updated submission: %+v", updated)
	}

	// Counters are insert-only; the correction does not move them.
	if got := env.findUser(t, user.ID); got.TotalSubmissions != 1 || got.TotalSolved != 0 {
		t.Errorf("counters after verdict correction: submissions=%d solved=%d, want 1/0", got.TotalSubmissions, got.TotalSolved)
	}

	updates := env.auditEntries(t, model.AuditOpUpdate)
	if len(updates) != 1 || updates[0].RowID != sub.ID {
		t.Fatalf("update audit rows: %+v", updates)
	}
	var detail map[string]interface{}
	if err := json.Unmarshal(updates[0].Detail, &detail); err != nil {
		t.Fatalf("audit detail not JSON: %v", err)
	}
	if detail["old_verdict"] != "Wrong Answer" || detail["new_verdict"] != model.VerdictAccepted {
		t.Errorf("audit detail: %+v", detail)
	}

	if _, err := env.submissions.UpdateVerdict(ctx, sub.ID, service.UpdateVerdictRequest{Verdict: " "}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("blank verdict: got %v, want ErrValidation", err)
	}
	if _, err := env.submissions.UpdateVerdict(ctx, uuid.NewString(), service.UpdateVerdictRequest{Verdict: "Accepted"}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("unknown submission: got %v, want ErrNotFound", err)
	}
}

func TestDeleteSubmissionAudits(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	platform := env.createPlatform(t, "leetcode")
	problem := env.createProblem(t, platform.ID, "two-sum")
	sub := env.submit(t, user.ID, problem.ID, model.VerdictAccepted)
	ctx := context.Background()

	if err := env.submissions.DeleteSubmission(ctx, sub.ID); err != nil {
		t.Fatalf("DeleteSubmission: %v", err)
	}
	if _, err := env.submissions.GetSubmission(ctx, sub.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("submission still findable: %v", err)
	}

	deletes := env.auditEntries(t, model.AuditOpDelete)
	if len(deletes) != 1 || deletes[0].RowID != sub.ID {
		t.Fatalf("delete audit rows: %+v", deletes)
	}
	var detail map[string]interface{}
	if err := json.Unmarshal(deletes[0].Detail, &detail); err != nil {
		t.Fatalf("audit detail not JSON: %v", err)
	}
	if detail["attempt_no"] != float64(1) || detail["verdict"] != model.VerdictAccepted {
		t.Errorf("audit detail: %+v", detail)
	}

	// Counters are not rewound on delete.
	if got := env.findUser(t, user.ID); got.TotalSubmissions != 1 || got.TotalSolved != 1 {
		t.Errorf("counters after delete: submissions=%d solved=%d, want 1/1", got.TotalSubmissions, got.TotalSolved)
	}

	if err := env.submissions.DeleteSubmission(ctx, sub.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
