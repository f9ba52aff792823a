package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/queue"
	"go.uber.org/zap"
)

const (
	// DefaultBackfillInterval is how often missing content is swept
	DefaultBackfillInterval = 30 * time.Minute
	// DefaultBackfillGrace skips videos young enough that their first jobs may still be queued
	DefaultBackfillGrace = time.Hour
	// DefaultBackfillBatch bounds the videos enqueued per sweep
	DefaultBackfillBatch = 100
)

// PendingLister finds user videos that still lack generated content
type PendingLister interface {
	ListPendingGeneration(ctx context.Context, cutoff time.Time, limit int) ([]models.PendingGeneration, error)
}

// Backfill re-enqueues summary and opening-question jobs for videos whose earlier jobs were lost
type Backfill struct {
	pending  PendingLister
	jobQueue queue.Enqueuer
	grace    time.Duration
	batch    int
	now      func() time.Time
	logger   *zap.Logger
}

// NewBackfill creates a new backfill sweeper
func NewBackfill(pending PendingLister, jobQueue queue.Enqueuer, logger *zap.Logger) *Backfill {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfill{
		pending:  pending,
		jobQueue: jobQueue,
		grace:    DefaultBackfillGrace,
		batch:    DefaultBackfillBatch,
		now:      time.Now,
		logger:   logger,
	}
}

// Start sweeps on every interval tick until ctx is cancelled
func (b *Backfill) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultBackfillInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := b.Sweep(ctx); err != nil {
				b.logger.Warn("backfill_sweep_failed", zap.Error(err))
			}
		}
	}
}

// Sweep enqueues jobs for each pending video and reports how many jobs were published
func (b *Backfill) Sweep(ctx context.Context) (int, error) {
	items, err := b.pending.ListPendingGeneration(ctx, b.now().Add(-b.grace), b.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending videos: %w", err)
	}

	enqueued := 0
	for _, item := range items {
		uv := item.UserVideo
		for _, jobType := range missingJobs(uv) {
			if err := b.createJob(ctx, jobType, item); err != nil {
				b.logger.Warn("failed_to_enqueue_backfill_job",
					zap.Int64("user_video_id", uv.ID),
					zap.String("job_type", string(jobType)),
					zap.Error(err),
				)
				// Continue with other videos
				continue
			}
			enqueued++
		}
	}

	b.logger.Info("backfill_sweep_completed",
		zap.Int("video_count", len(items)),
		zap.Int("jobs_enqueued", enqueued),
	)
	return enqueued, nil
}

func (b *Backfill) createJob(ctx context.Context, jobType queue.JobType, item models.PendingGeneration) error {
	uv := item.UserVideo
	job := queue.NewJob(jobType, uv.UserID, uv.ID, uv.VideoID)
	job.Language = string(item.Language)

	// Expire before the next sweeps would pile up duplicates
	notAfter := b.now().Add(24 * time.Hour)
	job.NotAfter = &notAfter

	if err := b.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue backfill job: %w", err)
	}
	return nil
}

func missingJobs(uv *models.UserVideo) []queue.JobType {
	var jobs []queue.JobType
	if uv.Summary == nil || *uv.Summary == "" {
		jobs = append(jobs, queue.JobTypeGenerateSummary)
	}
	if len(uv.QuickStartQuestions) == 0 {
		jobs = append(jobs, queue.JobTypeGenerateQuickStart)
	}
	return jobs
}
