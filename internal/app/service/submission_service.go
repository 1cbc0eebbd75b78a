package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cptracker/internal/common"
	"cptracker/internal/domain/model"
	"cptracker/internal/domain/repository"
	"cptracker/internal/platform/cache"

	"github.com/google/uuid"
)

const submissionsTable = "submissions"

// SubmissionService owns the submission write path. The reactive rules the
// original schema expressed as triggers run here as ordinary calls:
// attempt numbering and counter maintenance inside the insert transaction,
// the audit append after commit.
//
// Counters are maintained on insert only. Correcting a verdict through
// UpdateVerdict does not retroactively adjust total_solved or
// total_submissions; RecomputeTagStats and the scan-based queries remain
// the ground truth when history is edited.
type SubmissionService struct {
	db             *sql.DB
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	problemRepo    repository.ProblemRepository
	auditRepo      repository.AuditRepository
	statsCache     *cache.StatsCache
	maxRetries     int
}

func NewSubmissionService(
	db *sql.DB,
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	problemRepo repository.ProblemRepository,
	auditRepo repository.AuditRepository,
	statsCache *cache.StatsCache,
	maxRetries int,
) *SubmissionService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &SubmissionService{
		db:             db,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		problemRepo:    problemRepo,
		auditRepo:      auditRepo,
		statsCache:     statsCache,
		maxRetries:     maxRetries,
	}
}

type CreateSubmissionRequest struct {
	UserID          string  `json:"user_id"`
	ProblemID       string  `json:"problem_id"`
	Verdict         string  `json:"verdict"`
	Language        string  `json:"language"`
	ExecutionTimeMs *int    `json:"execution_time_ms,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// CreateSubmission assigns attempt_no = 1 + max(existing attempt_no for the
// pair) and persists the row together with the counter updates in one
// transaction. A lost numbering race surfaces as ErrConflict from the
// unique index and the whole transaction is retried; ErrConflict escapes
// only once the retry budget is spent.
func (s *SubmissionService) CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*model.Submission, error) {
	if strings.TrimSpace(req.Verdict) == "" {
		return nil, common.Errorf("verdict must not be empty: %w", common.ErrValidation)
	}

	if _, err := s.userRepo.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("user %s does not exist: %w", req.UserID, common.ErrValidation)
		}
		return nil, err
	}
	if _, err := s.problemRepo.FindByID(ctx, req.ProblemID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("problem %s does not exist: %w", req.ProblemID, common.ErrValidation)
		}
		return nil, err
	}

	var sub *model.Submission
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		sub, err = s.insertOnce(ctx, req)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		slog.Debug("attempt number collision, retrying submission insert",
			"user_id", req.UserID, "problem_id", req.ProblemID, "try", attempt+1)
	}
	if err != nil {
		return nil, common.Errorf("submission insert kept losing the numbering race: %w", err)
	}

	s.auditSubmission(ctx, model.AuditOpInsert, sub.ID, map[string]interface{}{
		"user_id":    sub.UserID,
		"problem_id": sub.ProblemID,
		"verdict":    sub.Verdict,
		"language":   sub.Language,
		"attempt_no": sub.AttemptNo,
	})
	s.statsCache.Invalidate(ctx)
	return sub, nil
}

func (s *SubmissionService) insertOnce(ctx context.Context, req CreateSubmissionRequest) (*model.Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	maxNo, err := s.submissionRepo.MaxAttemptNo(ctx, tx, req.UserID, req.ProblemID)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		ProblemID:       req.ProblemID,
		Verdict:         req.Verdict,
		Language:        req.Language,
		AttemptNo:       maxNo + 1,
		ExecutionTimeMs: req.ExecutionTimeMs,
		Notes:           req.Notes,
		SubmittedAt:     time.Now().UTC(),
	}

	if err := s.submissionRepo.Create(ctx, tx, sub); err != nil {
		return nil, err
	}

	// Counter maintenance rule: total_submissions always, total_solved only
	// on the pair's first accepted submission.
	if err := s.userRepo.IncrementSubmissionCount(ctx, tx, req.UserID); err != nil {
		return nil, err
	}
	if sub.Accepted() {
		if _, err := s.userRepo.MarkFirstSolve(ctx, tx, req.UserID, req.ProblemID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit submission transaction: %w", err)
	}
	return sub, nil
}

type UpdateVerdictRequest struct {
	Verdict         string `json:"verdict"`
	ExecutionTimeMs *int   `json:"execution_time_ms,omitempty"`
}

// UpdateVerdict corrects the verdict (and optionally the execution time) of
// an existing submission. attempt_no is immutable and counters are not
// touched; see the type comment.
func (s *SubmissionService) UpdateVerdict(ctx context.Context, id string, req UpdateVerdictRequest) (*model.Submission, error) {
	if strings.TrimSpace(req.Verdict) == "" {
		return nil, common.Errorf("verdict must not be empty: %w", common.ErrValidation)
	}

	existing, err := s.submissionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.submissionRepo.UpdateVerdict(ctx, nil, id, req.Verdict, req.ExecutionTimeMs); err != nil {
		return nil, err
	}

	s.auditSubmission(ctx, model.AuditOpUpdate, id, map[string]interface{}{
		"user_id":     existing.UserID,
		"problem_id":  existing.ProblemID,
		"old_verdict": existing.Verdict,
		"new_verdict": req.Verdict,
	})
	s.statsCache.Invalidate(ctx)

	return s.submissionRepo.FindByID(ctx, id)
}

// DeleteSubmission removes a submission. Counters are not adjusted (the
// cache is insert-only maintained); the deletion is audited.
func (s *SubmissionService) DeleteSubmission(ctx context.Context, id string) error {
	existing, err := s.submissionRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.submissionRepo.Delete(ctx, nil, id); err != nil {
		return err
	}

	s.auditSubmission(ctx, model.AuditOpDelete, id, map[string]interface{}{
		"user_id":    existing.UserID,
		"problem_id": existing.ProblemID,
		"verdict":    existing.Verdict,
		"attempt_no": existing.AttemptNo,
	})
	s.statsCache.Invalidate(ctx)
	return nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	return s.submissionRepo.FindByID(ctx, id)
}

func (s *SubmissionService) ListRecent(ctx context.Context, limit int) ([]model.Submission, error) {
	return s.submissionRepo.ListRecent(ctx, limit)
}

// auditSubmission appends one audit row, best effort: the parent mutation
// has already committed, so a failed append is logged and swallowed.
func (s *SubmissionService) auditSubmission(ctx context.Context, op model.AuditOp, rowID string, detail map[string]interface{}) {
	payload, err := json.Marshal(detail)
	if err != nil {
		slog.Warn("audit payload marshal failed", "op", op, "row_id", rowID, "error", err)
		payload = []byte("{}")
	}
	entry := &model.AuditEntry{
		ID:        uuid.NewString(),
		TableName: submissionsTable,
		Op:        op,
		RowID:     rowID,
		Detail:    payload,
		ChangedAt: time.Now().UTC(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		slog.Warn("audit append failed, mutation kept", "op", op, "row_id", rowID, "error", err)
	}
}
