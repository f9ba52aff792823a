package videos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service manages video submissions and the grounding context built from them
type Service struct {
	videos      database.VideoRepositoryInterface
	userVideos  database.UserVideoRepositoryInterface
	transcripts database.TranscriptRepositoryInterface
	details     youtube.DetailsFetcher
	captions    youtube.TranscriptFetcher
	quota       plan.Checker
	jobs        queue.Enqueuer
	logger      *zap.Logger
}

// Deps groups the collaborators of a Service
type Deps struct {
	Videos      database.VideoRepositoryInterface
	UserVideos  database.UserVideoRepositoryInterface
	Transcripts database.TranscriptRepositoryInterface
	Details     youtube.DetailsFetcher
	Captions    youtube.TranscriptFetcher
	Quota       plan.Checker
	Jobs        queue.Enqueuer // optional
	Logger      *zap.Logger
}

// Detail is a user video with its transcript
type Detail struct {
	*models.UserVideo
	Transcript []models.TranscriptSegment `json:"transcript"`
}

// NewService creates a video service
func NewService(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		videos:      deps.Videos,
		userVideos:  deps.UserVideos,
		transcripts: deps.Transcripts,
		details:     deps.Details,
		captions:    deps.Captions,
		quota:       deps.Quota,
		jobs:        deps.Jobs,
		logger:      log,
	}
}

// Submit registers a video for the user and queues its summary and opening questions.
// Returns youtube.ErrInvalidURL or a *plan.QuotaExceededError for client errors.
func (s *Service) Submit(ctx context.Context, user *models.User, rawURL string) (*models.SubmitVideoResponse, error) {
	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	if _, err := plan.Enforce(ctx, s.quota, user.ID); err != nil {
		return nil, err
	}

	if _, err := s.ensureVideo(ctx, videoID, false); err != nil {
		return nil, err
	}

	uv, created, err := s.userVideos.GetOrCreate(ctx, user.ID, videoID)
	if err != nil {
		return nil, err
	}

	if created || uv.Summary == nil {
		s.enqueueGeneration(ctx, user, uv)
	}

	s.logger.Info("video_submitted",
		zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
		zap.String("video_id", videoID),
		zap.Int64("user_video_id", uv.ID),
		zap.Bool("created", created))

	return &models.SubmitVideoResponse{Success: true, VideoID: videoID, UserVideoID: uv.ID}, nil
}

// ResolveContext gathers title, description and transcript for prompting.
// It never creates video rows: details of an unsubmitted video are used for the
// prompt only. Fetch failures degrade to empty fields; only cancellation and a
// malformed video ID are returned.
func (s *Service) ResolveContext(ctx context.Context, videoID string, language models.Language) (ai.VideoContext, error) {
	if !youtube.ValidVideoID(videoID) {
		return ai.VideoContext{}, youtube.ErrInvalidVideoID
	}

	var (
		video     *models.Video
		stored    bool
		segments  []models.TranscriptSegment
		fromStore bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, ok, err := s.lookupVideo(gctx, videoID)
		if err != nil {
			s.logger.Warn("video_details_unavailable", zap.String("video_id", videoID), zap.Error(err))
		}
		video, stored = v, ok
		return nil
	})
	g.Go(func() error {
		stored, err := s.transcripts.ListByVideo(gctx, videoID)
		if err != nil {
			s.logger.Warn("failed_to_load_transcript", zap.String("video_id", videoID), zap.Error(err))
		}
		if len(stored) > 0 {
			segments, fromStore = stored, true
			return nil
		}
		segments = s.fetchTranscript(gctx, videoID, language)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return ai.VideoContext{}, err
	}

	vc := ai.VideoContext{Transcript: youtube.JoinTranscript(segments)}
	if video != nil {
		vc.Title = video.Title
		vc.Description = video.Description
		// Segments reference the video row, so they are stored only when it exists
		if stored && !fromStore && len(segments) > 0 {
			s.storeTranscript(ctx, video, segments)
		}
	}
	return vc, nil
}

// List returns the user's videos, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error) {
	list, err := s.userVideos.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.UserVideo{}
	}
	return list, nil
}

// Get returns one of the user's videos with its stored transcript
func (s *Service) Get(ctx context.Context, userID uuid.UUID, id int64) (*Detail, error) {
	uv, err := s.userVideos.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	segments, err := s.transcripts.ListByVideo(ctx, uv.VideoID)
	if err != nil {
		s.logger.Warn("failed_to_load_transcript", zap.String("video_id", uv.VideoID), zap.Error(err))
	}
	if segments == nil {
		segments = []models.TranscriptSegment{}
	}
	return &Detail{UserVideo: uv, Transcript: segments}, nil
}

// Owned returns the user video when it belongs to the user
func (s *Service) Owned(ctx context.Context, userID uuid.UUID, id int64) (*models.UserVideo, error) {
	return s.userVideos.GetForUser(ctx, id, userID)
}

// Delete removes the user's video and its conversation
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	return s.userVideos.Delete(ctx, id, userID)
}

// Regenerate refreshes metadata and transcript, then queues new AI output
func (s *Service) Regenerate(ctx context.Context, user *models.User, id int64) (*models.UserVideo, error) {
	uv, err := s.userVideos.GetForUser(ctx, id, user.ID)
	if err != nil {
		return nil, err
	}

	video, err := s.ensureVideo(ctx, uv.VideoID, true)
	if err != nil {
		return nil, err
	}
	uv.Video = video
	if segments := s.fetchTranscript(ctx, uv.VideoID, user.PreferredLanguage); len(segments) > 0 {
		s.storeTranscript(ctx, video, segments)
	}

	s.enqueueGeneration(ctx, user, uv)
	return uv, nil
}

// ensureVideo returns the cached video row, fetching and upserting it when missing, stale or forced.
// A failed fetch keeps the cached row, or upserts a bare one so user videos can reference it.
func (s *Service) ensureVideo(ctx context.Context, videoID string, force bool) (*models.Video, error) {
	cached, cacheErr := s.videos.GetByID(ctx, videoID)
	if cacheErr != nil && !errors.Is(cacheErr, database.ErrNotFound) {
		s.logger.Warn("failed_to_read_cached_video", zap.String("video_id", videoID), zap.Error(cacheErr))
	}
	if !force && cacheErr == nil && strings.TrimSpace(cached.Title) != "" {
		return cached, nil
	}

	video, err := s.details.FetchDetails(ctx, videoID)
	if err != nil {
		s.logger.Warn("failed_to_fetch_video_details", zap.String("video_id", videoID), zap.Error(err))
		if cacheErr == nil {
			return cached, nil
		}
		video = &models.Video{ID: videoID}
	}
	if err := s.videos.Upsert(ctx, video); err != nil {
		return nil, fmt.Errorf("failed to save video: %w", err)
	}
	return video, nil
}

// lookupVideo returns the video without creating a row. A cached row lacking details
// is refreshed in place; an uncached video is fetched and reported as not stored.
func (s *Service) lookupVideo(ctx context.Context, videoID string) (*models.Video, bool, error) {
	cached, cacheErr := s.videos.GetByID(ctx, videoID)
	if cacheErr != nil && !errors.Is(cacheErr, database.ErrNotFound) {
		s.logger.Warn("failed_to_read_cached_video", zap.String("video_id", videoID), zap.Error(cacheErr))
	}
	if cacheErr == nil && strings.TrimSpace(cached.Title) != "" {
		return cached, true, nil
	}

	video, err := s.details.FetchDetails(ctx, videoID)
	if err != nil {
		if cacheErr == nil {
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("failed to fetch video details: %w", err)
	}
	if cacheErr != nil {
		return video, false, nil
	}
	if err := s.videos.Upsert(ctx, video); err != nil {
		s.logger.Warn("failed_to_refresh_video", zap.String("video_id", videoID), zap.Error(err))
	}
	return video, true, nil
}

func (s *Service) fetchTranscript(ctx context.Context, videoID string, language models.Language) []models.TranscriptSegment {
	segments, err := s.captions.FetchTranscript(ctx, videoID, string(language))
	if err != nil {
		s.logger.Warn("failed_to_fetch_transcript", zap.String("video_id", videoID), zap.Error(err))
		return nil
	}
	return segments
}

func (s *Service) storeTranscript(ctx context.Context, video *models.Video, segments []models.TranscriptSegment) {
	youtube.MarkChapterStarts(segments, video.Description)
	if err := s.transcripts.Replace(ctx, video.ID, segments); err != nil {
		s.logger.Warn("failed_to_store_transcript", zap.String("video_id", video.ID), zap.Error(err))
	}
}

func (s *Service) enqueueGeneration(ctx context.Context, user *models.User, uv *models.UserVideo) {
	if s.jobs == nil {
		s.logger.Warn("job_queue_unavailable", zap.Int64("user_video_id", uv.ID))
		return
	}
	for _, jobType := range []queue.JobType{queue.JobTypeGenerateSummary, queue.JobTypeGenerateQuickStart} {
		job := queue.NewJob(jobType, user.ID, uv.ID, uv.VideoID)
		job.Language = string(user.PreferredLanguage)
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed_to_enqueue_job",
				zap.String("job_type", string(jobType)),
				zap.Int64("user_video_id", uv.ID),
				zap.Error(err))
		}
	}
}
