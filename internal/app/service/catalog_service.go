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
	"github.com/gosimple/slug"
)

// CatalogService covers the administrative surface: users, platforms,
// problems and tags. Deletes ride the schema's cascade chain; every
// submission removed by a cascade still gets its audit row, appended after
// the delete commits.
type CatalogService struct {
	db             *sql.DB
	userRepo       repository.UserRepository
	platformRepo   repository.PlatformRepository
	problemRepo    repository.ProblemRepository
	tagRepo        repository.TagRepository
	submissionRepo repository.SubmissionRepository
	auditRepo      repository.AuditRepository
	statsCache     *cache.StatsCache
}

func NewCatalogService(
	db *sql.DB,
	userRepo repository.UserRepository,
	platformRepo repository.PlatformRepository,
	problemRepo repository.ProblemRepository,
	tagRepo repository.TagRepository,
	submissionRepo repository.SubmissionRepository,
	auditRepo repository.AuditRepository,
	statsCache *cache.StatsCache,
) *CatalogService {
	return &CatalogService{
		db:             db,
		userRepo:       userRepo,
		platformRepo:   platformRepo,
		problemRepo:    problemRepo,
		tagRepo:        tagRepo,
		submissionRepo: submissionRepo,
		auditRepo:      auditRepo,
		statsCache:     statsCache,
	}
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (s *CatalogService) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, common.Errorf("username must not be empty: %w", common.ErrValidation)
	}
	user := &model.User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CatalogService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}

// DeleteUser removes a user; their submissions go with them via cascade
// and each one is audited.
func (s *CatalogService) DeleteUser(ctx context.Context, id string) error {
	doomed, err := s.submissionRepo.ListByUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, nil, id); err != nil {
		return err
	}
	s.auditCascade(ctx, doomed)
	s.statsCache.Invalidate(ctx)
	return nil
}

type CreatePlatformRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

func (s *CatalogService) CreatePlatform(ctx context.Context, req CreatePlatformRequest) (*model.Platform, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, common.Errorf("platform name must not be empty: %w", common.ErrValidation)
	}
	platform := &model.Platform{
		ID:      uuid.NewString(),
		Name:    req.Name,
		BaseURL: req.BaseURL,
	}
	if err := s.platformRepo.Create(ctx, platform); err != nil {
		return nil, err
	}
	return platform, nil
}

func (s *CatalogService) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	return s.platformRepo.List(ctx)
}

// DeletePlatform cascades to the platform's problems, their tag links and
// all submissions against them; every removed submission is audited.
func (s *CatalogService) DeletePlatform(ctx context.Context, id string) error {
	doomed, err := s.submissionRepo.ListByPlatform(ctx, id)
	if err != nil {
		return err
	}
	if err := s.platformRepo.Delete(ctx, nil, id); err != nil {
		return err
	}
	s.auditCascade(ctx, doomed)
	s.statsCache.Invalidate(ctx)
	return nil
}

type CreateProblemRequest struct {
	PlatformID string                  `json:"platform_id"`
	Title      string                  `json:"title"`
	Difficulty model.ProblemDifficulty `json:"difficulty"`
	ProblemURL string                  `json:"problem_url"`
	Tags       []string                `json:"tags"` // Tag names
}

func (s *CatalogService) CreateProblem(ctx context.Context, req CreateProblemRequest) (*model.Problem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, common.Errorf("problem title must not be empty: %w", common.ErrValidation)
	}
	if !req.Difficulty.Valid() {
		return nil, common.Errorf("difficulty must be one of Easy, Medium, Hard: %w", common.ErrValidation)
	}
	if _, err := s.platformRepo.FindByID(ctx, req.PlatformID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("platform %s does not exist: %w", req.PlatformID, common.ErrValidation)
		}
		return nil, err
	}

	problem := &model.Problem{
		ID:         uuid.NewString(),
		PlatformID: req.PlatformID,
		Title:      req.Title,
		Slug:       slug.Make(req.Title),
		Difficulty: req.Difficulty,
		ProblemURL: req.ProblemURL,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.Create(ctx, tx, problem); err != nil {
		return nil, err
	}

	tagIDs, tags, err := s.findOrCreateTags(ctx, tx, req.Tags)
	if err != nil {
		return nil, err
	}
	if err := s.problemRepo.AddTags(ctx, tx, problem.ID, tagIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.Tags = tags
	return problem, nil
}

// findOrCreateTags resolves tag names to rows, creating missing ones,
// all within the caller's transaction.
func (s *CatalogService) findOrCreateTags(ctx context.Context, tx *sql.Tx, names []string) ([]string, []model.Tag, error) {
	var ids []string
	var tags []model.Tag
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tagSlug := slug.Make(name)
		if seen[tagSlug] {
			continue
		}
		seen[tagSlug] = true

		tag, err := s.tagRepo.FindBySlug(ctx, tx, tagSlug)
		if errors.Is(err, common.ErrNotFound) {
			tag = &model.Tag{ID: uuid.NewString(), Name: name, Slug: tagSlug}
			if err := s.tagRepo.Create(ctx, tx, tag); err != nil {
				return nil, nil, err
			}
		} else if err != nil {
			return nil, nil, err
		}
		ids = append(ids, tag.ID)
		tags = append(tags, *tag)
	}
	return ids, tags, nil
}

func (s *CatalogService) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := s.problemRepo.GetTags(ctx, id)
	if err != nil {
		slog.Warn("failed to fetch tags for problem", "problem_id", id, "error", err)
	} else {
		problem.Tags = tags
	}
	return problem, nil
}

func (s *CatalogService) ListProblems(ctx context.Context, difficulty model.ProblemDifficulty, tagSlug, searchTerm string) ([]model.Problem, error) {
	if difficulty != "" && !difficulty.Valid() {
		return nil, common.Errorf("difficulty must be one of Easy, Medium, Hard: %w", common.ErrValidation)
	}

	tagID := ""
	if tagSlug != "" {
		tag, err := s.tagRepo.FindBySlug(ctx, nil, tagSlug)
		if errors.Is(err, common.ErrNotFound) {
			return []model.Problem{}, nil
		} else if err != nil {
			return nil, err
		}
		tagID = tag.ID
	}

	problems, err := s.problemRepo.List(ctx, difficulty, tagID, searchTerm)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		if tags, err := s.problemRepo.GetTags(ctx, problems[i].ID); err == nil {
			problems[i].Tags = tags
		}
	}
	return problems, nil
}

func (s *CatalogService) DeleteProblem(ctx context.Context, id string) error {
	subs, err := s.listSubmissionsForProblem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.problemRepo.Delete(ctx, nil, id); err != nil {
		return err
	}
	s.auditCascade(ctx, subs)
	s.statsCache.Invalidate(ctx)
	return nil
}

func (s *CatalogService) listSubmissionsForProblem(ctx context.Context, problemID string) ([]model.Submission, error) {
	problem, err := s.problemRepo.FindByID(ctx, problemID)
	if err != nil {
		return nil, err
	}
	all, err := s.submissionRepo.ListByPlatform(ctx, problem.PlatformID)
	if err != nil {
		return nil, err
	}
	subs := []model.Submission{}
	for _, sub := range all {
		if sub.ProblemID == problemID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

type CreateTagRequest struct {
	Name string `json:"name"`
}

func (s *CatalogService) CreateTag(ctx context.Context, req CreateTagRequest) (*model.Tag, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, common.Errorf("tag name must not be empty: %w", common.ErrValidation)
	}
	tag := &model.Tag{
		ID:   uuid.NewString(),
		Name: req.Name,
		Slug: slug.Make(req.Name),
	}
	if err := s.tagRepo.Create(ctx, nil, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *CatalogService) ListTags(ctx context.Context) ([]model.Tag, error) {
	return s.tagRepo.List(ctx)
}

// DeleteTag cascades to problem_tags links and user_tag_stats rows only;
// submissions are untouched, so nothing needs auditing.
func (s *CatalogService) DeleteTag(ctx context.Context, id string) error {
	if err := s.tagRepo.Delete(ctx, nil, id); err != nil {
		return err
	}
	s.statsCache.Invalidate(ctx)
	return nil
}

func (s *CatalogService) ListAuditLog(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return s.auditRepo.List(ctx, limit)
}

// auditCascade appends a delete record per cascaded-away submission,
// best effort after the owning delete committed.
func (s *CatalogService) auditCascade(ctx context.Context, doomed []model.Submission) {
	for _, sub := range doomed {
		detail, err := json.Marshal(map[string]interface{}{
			"user_id":    sub.UserID,
			"problem_id": sub.ProblemID,
			"verdict":    sub.Verdict,
			"attempt_no": sub.AttemptNo,
			"cascade":    true,
		})
		if err != nil {
			detail = []byte("{}")
		}
		entry := &model.AuditEntry{
			ID:        uuid.NewString(),
			TableName: submissionsTable,
			Op:        model.AuditOpDelete,
			RowID:     sub.ID,
			Detail:    detail,
			ChangedAt: time.Now().UTC(),
		}
		if err := s.auditRepo.Append(ctx, entry); err != nil {
			slog.Warn("cascade audit append failed", "submission_id", sub.ID, "error", err)
		}
	}
}
