package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cptracker/internal/common"
	"cptracker/internal/domain/model"
	"cptracker/internal/domain/repository"
	"cptracker/internal/platform/cache"
)

// StatsService owns the derived-statistics read side and the tag-stats
// recompute job. user_tag_stats is replace-on-recompute state: it is never
// incrementally mutated, only wiped and rebuilt wholesale.
type StatsService struct {
	db             *sql.DB
	statsRepo      repository.StatsRepository
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
	statsCache     *cache.StatsCache
	trendWeeks     int
}

func NewStatsService(
	db *sql.DB,
	statsRepo repository.StatsRepository,
	userRepo repository.UserRepository,
	submissionRepo repository.SubmissionRepository,
	statsCache *cache.StatsCache,
	trendWeeks int,
) *StatsService {
	if trendWeeks < 1 {
		trendWeeks = 8
	}
	return &StatsService{
		db:             db,
		statsRepo:      statsRepo,
		userRepo:       userRepo,
		submissionRepo: submissionRepo,
		statsCache:     statsCache,
		trendWeeks:     trendWeeks,
	}
}

// RecomputeTagStats rebuilds user_tag_stats from scratch inside one
// transaction. Cancelling ctx (or any mid-pass failure) rolls back and
// leaves the previous contents intact; concurrent readers see either the
// fully-old or fully-new table, never a mix.
func (s *StatsService) RecomputeTagStats(ctx context.Context) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("recompute could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.statsRepo.ReplaceUserTagStats(ctx, tx); err != nil {
		return common.Errorf("recompute failed, previous stats kept: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return common.Errorf("recompute commit failed, previous stats kept: %w", err)
	}

	s.statsCache.Invalidate(ctx)
	slog.Info("user_tag_stats recomputed", "took", time.Since(start))
	return nil
}

func (s *StatsService) GetUserTagStats(ctx context.Context, userID string) ([]model.UserTagStat, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.statsRepo.GetUserTagStats(ctx, userID)
}

func (s *StatsService) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	if s.statsCache.GetJSON(ctx, cache.KeyLeaderboard, &entries) && len(entries) >= limit {
		return entries[:limit], nil
	}

	entries, err := s.statsRepo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	s.statsCache.SetJSON(ctx, cache.KeyLeaderboard, entries)
	return entries, nil
}

func (s *StatsService) GetTagSummary(ctx context.Context) ([]model.TagSummary, error) {
	var summaries []model.TagSummary
	if s.statsCache.GetJSON(ctx, cache.KeyTagSummary, &summaries) {
		return summaries, nil
	}

	summaries, err := s.statsRepo.TagSummary(ctx)
	if err != nil {
		return nil, err
	}
	s.statsCache.SetJSON(ctx, cache.KeyTagSummary, summaries)
	return summaries, nil
}

func (s *StatsService) GetLastSubmissions(ctx context.Context) ([]model.UserLastSubmission, error) {
	return s.statsRepo.LastSubmissionPerUser(ctx)
}

// GetUserAcceptRate returns accepted/total over the user's submissions, or
// nil when the user has none.
func (s *StatsService) GetUserAcceptRate(ctx context.Context, userID string) (*float64, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	total, accepted, err := s.statsRepo.UserAcceptRate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	rate := float64(accepted) / float64(total)
	return &rate, nil
}

func (s *StatsService) GetOverview(ctx context.Context) (*model.Overview, error) {
	users, problems, submissions, accepted, err := s.statsRepo.Counts(ctx)
	if err != nil {
		return nil, err
	}

	overview := &model.Overview{
		Users:       users,
		Problems:    problems,
		Submissions: submissions,
		Accepted:    accepted,
	}
	if submissions > 0 {
		overview.AcceptedRate = float64(accepted) / float64(submissions)
	}

	since := time.Now().UTC().AddDate(0, 0, -7*s.trendWeeks)
	times, err := s.submissionRepo.SubmittedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	overview.WeeklyTrend = bucketByISOWeek(times)
	return overview, nil
}

// bucketByISOWeek groups timestamps into ISO year-week buckets, oldest
// first. Input is already sorted ascending by the query.
func bucketByISOWeek(times []time.Time) []model.WeekBucket {
	buckets := []model.WeekBucket{}
	for _, ts := range times {
		year, week := ts.UTC().ISOWeek()
		label := fmt.Sprintf("%d-W%02d", year, week)
		if n := len(buckets); n > 0 && buckets[n-1].Week == label {
			buckets[n-1].Submissions++
			continue
		}
		buckets = append(buckets, model.WeekBucket{Week: label, Submissions: 1})
	}
	return buckets
}
