package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/port"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const retentionJobName = "readings-retention"

// Retention prunes readings older than a number of days on a cron schedule.
// Zero days keeps everything.
type Retention struct {
	repo      port.ReadingRepository
	days      int
	cron      string
	logger    *zap.Logger
	now       func() time.Time
	scheduler quartz.Scheduler
}

func NewRetention(repo port.ReadingRepository, days int, cron string, logger *zap.Logger) *Retention {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retention{
		repo:   repo,
		days:   days,
		cron:   cron,
		logger: logger.With(zap.String("job", retentionJobName)),
		now:    time.Now,
	}
}

// Cutoff is the capture time before which readings are pruned.
func (r *Retention) Cutoff() time.Time {
	return r.now().AddDate(0, 0, -r.days)
}

func (r *Retention) Prune(ctx context.Context) (int64, error) {
	if r.days <= 0 {
		return 0, nil
	}
	cutoff := r.Cutoff()
	deleted, err := r.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("retention prune failed", zap.Error(err))
		return 0, err
	}
	r.logger.Info("retention prune done", zap.Int64("deleted", deleted), zap.Time("before", cutoff))
	return deleted, nil
}

// Start schedules Prune on the cron expression. It does nothing when
// retention is disabled.
func (r *Retention) Start(ctx context.Context) error {
	if r.days <= 0 {
		r.logger.Info("retention disabled")
		return nil
	}
	trigger, err := quartz.NewCronTrigger(r.cron)
	if err != nil {
		return fmt.Errorf("retention cron %q: %w", r.cron, err)
	}

	scheduler := quartz.NewStdScheduler()
	pruneJob := job.NewFunctionJob(func(ctx context.Context) (int64, error) {
		return r.Prune(ctx)
	})
	if err := scheduler.ScheduleJob(quartz.NewJobDetail(pruneJob, quartz.NewJobKey(retentionJobName)), trigger); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}
	scheduler.Start(ctx)
	r.scheduler = scheduler

	r.logger.Info("retention scheduled", zap.String("cron", r.cron), zap.Int("days", r.days))
	return nil
}

func (r *Retention) Stop() {
	if r.scheduler == nil {
		return
	}
	r.scheduler.Stop()
	r.scheduler = nil
}
