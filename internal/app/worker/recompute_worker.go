package worker

import (
	"context"
	"log/slog"
	"time"

	"cptracker/internal/app/service"

	"github.com/go-co-op/gocron"
)

// RecomputeWorker refreshes user_tag_stats on a fixed interval so the
// dashboard's tag tables stay reasonably fresh without anyone pressing the
// admin button. The on-demand recompute endpoint remains the ground truth.
type RecomputeWorker struct {
	scheduler *gocron.Scheduler
	stats     *service.StatsService
	interval  time.Duration
}

func NewRecomputeWorker(stats *service.StatsService, interval time.Duration) *RecomputeWorker {
	return &RecomputeWorker{
		scheduler: gocron.NewScheduler(time.UTC),
		stats:     stats,
		interval:  interval,
	}
}

func (w *RecomputeWorker) Start() {
	w.scheduler.Every(w.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := w.stats.RecomputeTagStats(ctx); err != nil {
			slog.Error("scheduled tag-stats recompute failed", "error", err)
		}
	})
	w.scheduler.StartAsync()
	slog.Info("recompute worker started", "interval", w.interval)
}

func (w *RecomputeWorker) Stop() {
	w.scheduler.Stop()
}
