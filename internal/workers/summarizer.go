package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"go.uber.org/zap"
)

// ErrNoContent marks a video with neither title nor transcript. Such jobs are not retried.
var ErrNoContent = errors.New("video has no content to generate from")

// ContextResolver builds the grounding context for a video
type ContextResolver interface {
	ResolveContext(ctx context.Context, videoID string, language models.Language) (ai.VideoContext, error)
}

// VideoStore loads user videos and stores generated content on them
type VideoStore interface {
	GetByID(ctx context.Context, id int64) (*models.UserVideo, error)
	UpdateSummary(ctx context.Context, id int64, summary string) error
	UpdateQuickStartQuestions(ctx context.Context, id int64, questions []string) error
}

// UsageRecorder appends token usage records
type UsageRecorder interface {
	Record(ctx context.Context, e usage.Entry) (*models.TokenUsage, error)
}

var _ UsageRecorder = (*usage.Ledger)(nil)

// Config tunes the summarizer
type Config struct {
	SummaryWordLimit int
	QuestionLimit    int
}

// Summarizer processes summary and quick-start-question jobs
type Summarizer struct {
	provider ai.Provider
	resolver ContextResolver
	videos   VideoStore
	ledger   UsageRecorder
	jobQueue queue.Enqueuer // for re-enqueueing jobs with delays
	cfg      Config
	logger   *zap.Logger
}

// NewSummarizer creates a new summarizer
func NewSummarizer(
	provider ai.Provider,
	resolver ContextResolver,
	videos VideoStore,
	ledger UsageRecorder,
	jobQueue queue.Enqueuer,
	cfg Config,
	log *zap.Logger,
) *Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.QuestionLimit <= 0 {
		cfg.QuestionLimit = ai.QuickStartQuestionCount
	}
	return &Summarizer{
		provider: provider,
		resolver: resolver,
		videos:   videos,
		ledger:   ledger,
		jobQueue: jobQueue,
		cfg:      cfg,
		logger:   log,
	}
}

// ProcessSummaryJob generates and stores the summary of a user video
func (s *Summarizer) ProcessSummaryJob(ctx context.Context, job *queue.Job) error {
	uv, err := s.load(ctx, job)
	if err != nil {
		return err
	}
	if uv.Summary != nil && strings.TrimSpace(*uv.Summary) != "" {
		s.logger.Info("summary_already_present", zap.Int64("user_video_id", uv.ID))
		return nil
	}

	language := jobLanguage(job)
	vc, err := s.grounding(ctx, uv, language)
	if err != nil {
		return err
	}

	completion, err := s.provider.Complete(ctx, ai.BuildSummaryMessages(language, vc, s.cfg.SummaryWordLimit))
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}
	s.recordUsage(ctx, job, models.OperationSummary, completion)

	summary := strings.TrimSpace(completion.Text())
	if summary == "" {
		return fmt.Errorf("provider returned an empty summary")
	}
	if err := s.videos.UpdateSummary(ctx, uv.ID, summary); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	s.logger.Info("summary_generated",
		zap.Int64("user_video_id", uv.ID),
		zap.String("video_id", logger.SanitizeVideoID(uv.VideoID)),
		zap.Int("length", len(summary)),
	)
	return nil
}

// ProcessQuickStartJob generates and stores the opening questions of a user video
func (s *Summarizer) ProcessQuickStartJob(ctx context.Context, job *queue.Job) error {
	uv, err := s.load(ctx, job)
	if err != nil {
		return err
	}
	if len(uv.QuickStartQuestions) > 0 {
		s.logger.Info("quick_start_questions_already_present", zap.Int64("user_video_id", uv.ID))
		return nil
	}

	language := jobLanguage(job)
	vc, err := s.grounding(ctx, uv, language)
	if err != nil {
		return err
	}

	completion, err := s.provider.Complete(ctx, ai.BuildQuickStartMessages(language, vc, s.cfg.SummaryWordLimit))
	if err != nil {
		return fmt.Errorf("failed to generate quick start questions: %w", err)
	}
	s.recordUsage(ctx, job, models.OperationQuickStartQuestions, completion)

	questions := ai.ParseQuestions(completion.Text(), s.cfg.QuestionLimit)
	if len(questions) == 0 {
		return fmt.Errorf("provider returned no questions")
	}
	if err := s.videos.UpdateQuickStartQuestions(ctx, uv.ID, questions); err != nil {
		return fmt.Errorf("failed to store quick start questions: %w", err)
	}

	s.logger.Info("quick_start_questions_generated",
		zap.Int64("user_video_id", uv.ID),
		zap.Int("count", len(questions)),
	)
	return nil
}

// ProcessJob processes a job based on its type and settles the message
func (s *Summarizer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		s.logger.Warn("job_expired", zap.String("job_id", job.ID.String()), zap.String("job_type", string(job.Type)))
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Error("failed_to_nack_expired_job", zap.Error(nackErr))
		}
		return nil
	}

	// Respect NotBefore when the broker delivered early
	if !job.ShouldProcess() {
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Error("failed_to_nack_deferred_job", zap.Error(nackErr))
		}
		return nil
	}

	ctx = ai.WithUserID(ctx, job.UserID.String())

	var err error
	switch job.Type {
	case queue.JobTypeGenerateSummary:
		err = s.ProcessSummaryJob(ctx, job)
	case queue.JobTypeGenerateQuickStart:
		err = s.ProcessQuickStartJob(ctx, job)
	default:
		if nackErr := msg.Nack(false); nackErr != nil { // unknown job type, send to DLQ
			s.logger.Error("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err != nil {
		return s.handleJobError(ctx, msg, job, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// handleJobError retries with a delay scaled by the error kind, then dead-letters
func (s *Summarizer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int64("user_video_id", job.UserVideoID),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	}

	permanent := errors.Is(err, ErrNoContent) || errors.Is(err, errForeignVideo) || errors.Is(err, youtube.ErrInvalidVideoID)
	// Quota exhaustion is retried on a long delay even when the retry budget is spent
	quota := ai.IsQuotaError(err)
	if permanent || (!job.CanRetry() && !quota) {
		s.logger.Error("job_failed_sending_to_dlq", fields...)
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Error("failed_to_nack_job_to_dlq", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed: %w", err)
	}

	delay := ai.GetRetryDelay(err, job.RetryCount)
	if s.jobQueue == nil {
		s.logger.Warn("job_failed_requeue_without_delay", fields...)
		if nackErr := msg.Nack(!quota); nackErr != nil {
			s.logger.Error("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (no queue for delayed retry): %w", err)
	}

	next := job.NextAttempt(delay)
	if enqueueErr := s.jobQueue.Enqueue(ctx, next); enqueueErr != nil {
		s.logger.Error("failed_to_reenqueue_job", append(fields, zap.NamedError("enqueue_error", enqueueErr))...)
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Error("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job: %w", enqueueErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		s.logger.Error("failed_to_ack_retried_job", zap.Error(ackErr))
	}

	s.logger.Warn("job_retry_scheduled", append(fields, zap.Duration("delay", delay), zap.Bool("quota", quota))...)
	return nil
}

var errForeignVideo = errors.New("user video does not belong to job user")

func (s *Summarizer) load(ctx context.Context, job *queue.Job) (*models.UserVideo, error) {
	if job.UserVideoID == 0 {
		return nil, fmt.Errorf("user_video_id is required: %w", ErrNoContent)
	}
	uv, err := s.videos.GetByID(ctx, job.UserVideoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user video: %w", err)
	}
	if uv.UserID != job.UserID {
		return nil, errForeignVideo
	}
	return uv, nil
}

func (s *Summarizer) grounding(ctx context.Context, uv *models.UserVideo, language models.Language) (ai.VideoContext, error) {
	vc, err := s.resolver.ResolveContext(ctx, uv.VideoID, language)
	if err != nil {
		return ai.VideoContext{}, fmt.Errorf("failed to resolve video context: %w", err)
	}
	if !vc.HasGrounding() {
		return ai.VideoContext{}, ErrNoContent
	}
	return vc, nil
}

// recordUsage is best-effort; a ledger failure never fails the job
func (s *Summarizer) recordUsage(ctx context.Context, job *queue.Job, op models.Operation, completion *ai.Completion) {
	provider, model := completion.Provider, completion.Model
	if provider == "" {
		provider = s.provider.Name()
	}
	if model == "" {
		model = s.provider.Model()
	}
	_, err := s.ledger.Record(ctx, usage.Entry{
		UserID:       job.UserID,
		Provider:     provider,
		Model:        model,
		Operation:    op,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
		VideoID:      job.VideoID,
		UserVideoID:  job.UserVideoID,
		Duration:     completion.Duration,
	})
	if err != nil {
		s.logger.Error("failed_to_record_usage",
			zap.String("operation", string(op)),
			zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			zap.Error(err))
	}
}

func jobLanguage(job *queue.Job) models.Language {
	if l := models.Language(job.Language); l.IsValid() {
		return l
	}
	return models.LanguageEnglish
}
