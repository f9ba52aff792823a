package videos

import (
	"context"
	"errors"
	"testing"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/google/uuid"
)

const testVideoID = "dQw4w9WgXcQ"

var allowed = &models.QuotaDecision{CanAdd: true, DailyLimit: 1, CurrentPlan: models.PlanFree}

type fixture struct {
	videos      *mockVideoRepo
	userVideos  *mockUserVideoRepo
	transcripts *mockTranscriptRepo
	details     *mockDetails
	captions    *mockCaptions
	quota       *mockQuota
	jobs        *mockEnqueuer
}

func newFixture() *fixture {
	return &fixture{
		videos: newMockVideoRepo(),
		userVideos: &mockUserVideoRepo{
			getOrCreateFunc: func(ctx context.Context, userID uuid.UUID, videoID string) (*models.UserVideo, bool, error) {
				return &models.UserVideo{ID: 11, UserID: userID, VideoID: videoID}, true, nil
			},
		},
		transcripts: newMockTranscriptRepo(),
		details: &mockDetails{fetchFunc: func(ctx context.Context, videoID string) (*models.Video, error) {
			return &models.Video{ID: videoID, Title: "Fetched", Description: "0:00 Intro\n0:05 Body"}, nil
		}},
		captions: &mockCaptions{fetchFunc: func(ctx context.Context, videoID, language string) ([]models.TranscriptSegment, error) {
			return []models.TranscriptSegment{
				{VideoID: videoID, Start: 0, End: 5, Text: "hello"},
				{VideoID: videoID, Start: 5, End: 10, Text: "world"},
			}, nil
		}},
		quota: &mockQuota{decision: allowed},
		jobs:  &mockEnqueuer{},
	}
}

func (f *fixture) service() *Service {
	return NewService(Deps{
		Videos:      f.videos,
		UserVideos:  f.userVideos,
		Transcripts: f.transcripts,
		Details:     f.details,
		Captions:    f.captions,
		Quota:       f.quota,
		Jobs:        f.jobs,
	})
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "u@example.com", Plan: models.PlanFree, PreferredLanguage: models.LanguageIndonesian}
}

func TestService_Submit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	resp, err := f.service().Submit(context.Background(), testUser(), "https://www.youtube.com/live/"+testVideoID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !resp.Success || resp.VideoID != testVideoID || resp.UserVideoID != 11 {
		t.Errorf("Unexpected response %+v", resp)
	}
	if v, err := f.videos.GetByID(context.Background(), testVideoID); err != nil || v.Title != "Fetched" {
		t.Errorf("Expected fetched video to be cached, got %+v, %v", v, err)
	}
	if len(f.jobs.jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(f.jobs.jobs))
	}
	if f.jobs.jobs[0].Type != queue.JobTypeGenerateSummary || f.jobs.jobs[1].Type != queue.JobTypeGenerateQuickStart {
		t.Errorf("Unexpected job types %s, %s", f.jobs.jobs[0].Type, f.jobs.jobs[1].Type)
	}
	if f.jobs.jobs[0].Language != "id" || f.jobs.jobs[0].UserVideoID != 11 {
		t.Errorf("Unexpected job %+v", f.jobs.jobs[0])
	}
}

func TestService_Submit_InvalidURL(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service().Submit(context.Background(), testUser(), "https://example.com/nope")
	if !errors.Is(err, youtube.ErrInvalidURL) {
		t.Errorf("Expected ErrInvalidURL, got %v", err)
	}
}

func TestService_Submit_QuotaExceeded(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.quota.decision = &models.QuotaDecision{
		CanAdd: false, Reason: models.ReasonDailyLimitReached, VideosUsedToday: 1, DailyLimit: 1, CurrentPlan: models.PlanFree,
	}
	_, err := f.service().Submit(context.Background(), testUser(), "https://youtu.be/"+testVideoID)
	qe, ok := plan.AsQuotaExceeded(err)
	if !ok {
		t.Fatalf("Expected quota error, got %v", err)
	}
	if qe.Decision.VideosUsedToday != 1 {
		t.Errorf("Unexpected decision %+v", qe.Decision)
	}
	if len(f.jobs.jobs) != 0 {
		t.Error("No jobs should be queued when quota is exceeded")
	}
}

func TestService_Submit_DetailsFailureStillCreates(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.details.fetchFunc = func(context.Context, string) (*models.Video, error) {
		return nil, errors.New("quota exhausted")
	}
	resp, err := f.service().Submit(context.Background(), testUser(), "https://youtu.be/"+testVideoID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.VideoID != testVideoID {
		t.Errorf("Unexpected response %+v", resp)
	}
	if _, err := f.videos.GetByID(context.Background(), testVideoID); err != nil {
		t.Errorf("Expected a bare video row, got %v", err)
	}
}

func TestService_Submit_ExistingWithSummarySkipsJobs(t *testing.T) {
	t.Parallel()

	f := newFixture()
	summary := "done"
	f.userVideos.getOrCreateFunc = func(ctx context.Context, userID uuid.UUID, videoID string) (*models.UserVideo, bool, error) {
		return &models.UserVideo{ID: 3, UserID: userID, VideoID: videoID, Summary: &summary}, false, nil
	}
	if _, err := f.service().Submit(context.Background(), testUser(), "https://youtu.be/"+testVideoID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(f.jobs.jobs) != 0 {
		t.Errorf("Expected no jobs, got %d", len(f.jobs.jobs))
	}
}

func TestService_Submit_EnqueueFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.jobs.err = errors.New("broker down")
	if _, err := f.service().Submit(context.Background(), testUser(), "https://youtu.be/"+testVideoID); err != nil {
		t.Fatalf("Submit should succeed when enqueue fails: %v", err)
	}
}

func TestService_ResolveContext(t *testing.T) {
	t.Parallel()

	submitted := func() *mockVideoRepo {
		return newMockVideoRepo(&models.Video{ID: testVideoID, Title: "Cached", Description: "0:00 Intro\n0:05 Body"})
	}
	detailsDown := func(context.Context, string) (*models.Video, error) {
		return nil, errors.New("api down")
	}

	tests := []struct {
		name           string
		setup          func(f *fixture)
		wantTitle      string
		wantTranscript string
		wantStored     bool
		wantRows       int
	}{
		{
			name:           "unsubmitted video is fetched but not stored",
			setup:          func(f *fixture) {},
			wantTitle:      "Fetched",
			wantTranscript: "hello world",
		},
		{
			name:           "submitted video stores fetched transcript",
			setup:          func(f *fixture) { f.videos = submitted() },
			wantTitle:      "Cached",
			wantTranscript: "hello world",
			wantStored:     true,
			wantRows:       1,
		},
		{
			name: "prefers cached rows",
			setup: func(f *fixture) {
				f.videos = submitted()
				f.transcripts.stored[testVideoID] = []models.TranscriptSegment{{Text: "stored"}}
				f.details.fetchFunc = func(context.Context, string) (*models.Video, error) {
					return nil, errors.New("must not fetch")
				}
			},
			wantTitle:      "Cached",
			wantTranscript: "stored",
			wantRows:       1,
		},
		{
			name: "cached row with empty title is refreshed",
			setup: func(f *fixture) {
				f.videos = newMockVideoRepo(&models.Video{ID: testVideoID})
			},
			wantTitle:      "Fetched",
			wantTranscript: "hello world",
			wantStored:     true,
			wantRows:       1,
		},
		{
			name: "transcript failure falls back to empty",
			setup: func(f *fixture) {
				f.videos = submitted()
				f.captions.fetchFunc = func(context.Context, string, string) ([]models.TranscriptSegment, error) {
					return nil, youtube.ErrTranscriptUnavailable
				}
			},
			wantTitle:      "Cached",
			wantTranscript: "",
			wantRows:       1,
		},
		{
			name:           "details failure on unsubmitted video creates no row",
			setup:          func(f *fixture) { f.details.fetchFunc = detailsDown },
			wantTitle:      "",
			wantTranscript: "hello world",
		},
		{
			name: "details failure keeps bare cached row",
			setup: func(f *fixture) {
				f.videos = newMockVideoRepo(&models.Video{ID: testVideoID})
				f.details.fetchFunc = detailsDown
			},
			wantTitle:      "",
			wantTranscript: "hello world",
			wantStored:     true,
			wantRows:       1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			tt.setup(f)

			vc, err := f.service().ResolveContext(context.Background(), testVideoID, models.LanguageEnglish)
			if err != nil {
				t.Fatalf("ResolveContext: %v", err)
			}
			if vc.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", vc.Title, tt.wantTitle)
			}
			if vc.Transcript != tt.wantTranscript {
				t.Errorf("Transcript = %q, want %q", vc.Transcript, tt.wantTranscript)
			}
			if stored := f.transcripts.replaced > 0; stored != tt.wantStored {
				t.Errorf("stored = %v, want %v", stored, tt.wantStored)
			}
			if rows := f.videos.count(); rows != tt.wantRows {
				t.Errorf("video rows = %d, want %d", rows, tt.wantRows)
			}
		})
	}
}

func TestService_ResolveContext_InvalidVideoID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.details.fetchFunc = func(context.Context, string) (*models.Video, error) {
		t.Error("details must not be fetched for a malformed ID")
		return nil, errors.New("unexpected fetch")
	}
	f.captions.fetchFunc = func(context.Context, string, string) ([]models.TranscriptSegment, error) {
		t.Error("captions must not be fetched for a malformed ID")
		return nil, errors.New("unexpected fetch")
	}

	_, err := f.service().ResolveContext(context.Background(), "../not-a-video", models.LanguageEnglish)
	if !errors.Is(err, youtube.ErrInvalidVideoID) {
		t.Errorf("Expected ErrInvalidVideoID, got %v", err)
	}
	if rows := f.videos.count(); rows != 0 {
		t.Errorf("Expected no video rows, got %d", rows)
	}
}

func TestService_ResolveContext_MarksChapters(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.videos = newMockVideoRepo(&models.Video{ID: testVideoID, Title: "Cached", Description: "0:00 Intro\n0:05 Body"})
	if _, err := f.service().ResolveContext(context.Background(), testVideoID, models.LanguageEnglish); err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	stored := f.transcripts.stored[testVideoID]
	if len(stored) != 2 || !stored[0].IsChapterStart || !stored[1].IsChapterStart {
		t.Errorf("Expected both segments marked as chapter starts, got %+v", stored)
	}
}

func TestService_ResolveContext_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.service().ResolveContext(ctx, testVideoID, models.LanguageEnglish); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestService_Get(t *testing.T) {
	t.Parallel()

	f := newFixture()
	owner := uuid.New()
	f.userVideos.getForUserFunc = func(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error) {
		if userID != owner {
			return nil, database.ErrNotFound
		}
		return &models.UserVideo{ID: id, UserID: owner, VideoID: testVideoID}, nil
	}

	detail, err := f.service().Get(context.Background(), owner, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.ID != 5 || detail.Transcript == nil {
		t.Errorf("Unexpected detail %+v", detail)
	}

	if _, err := f.service().Get(context.Background(), uuid.New(), 5); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another user, got %v", err)
	}
}

func TestService_Regenerate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.videos = newMockVideoRepo(&models.Video{ID: testVideoID, Title: "Old"})
	user := testUser()
	f.userVideos.getForUserFunc = func(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error) {
		return &models.UserVideo{ID: id, UserID: userID, VideoID: testVideoID}, nil
	}

	uv, err := f.service().Regenerate(context.Background(), user, 8)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if uv.Video == nil || uv.Video.Title != "Fetched" {
		t.Errorf("Expected refreshed metadata, got %+v", uv.Video)
	}
	if f.transcripts.replaced != 1 {
		t.Errorf("Expected transcript refresh, got %d replaces", f.transcripts.replaced)
	}
	if len(f.jobs.jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(f.jobs.jobs))
	}
}

func TestService_Regenerate_KeepsCachedOnFetchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.videos = newMockVideoRepo(&models.Video{ID: testVideoID, Title: "Old"})
	f.details.fetchFunc = func(context.Context, string) (*models.Video, error) {
		return nil, errors.New("api down")
	}
	f.userVideos.getForUserFunc = func(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error) {
		return &models.UserVideo{ID: id, UserID: userID, VideoID: testVideoID}, nil
	}

	uv, err := f.service().Regenerate(context.Background(), testUser(), 8)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if uv.Video.Title != "Old" {
		t.Errorf("Expected cached title to survive, got %q", uv.Video.Title)
	}
}

func TestService_List_NeverNil(t *testing.T) {
	t.Parallel()

	f := newFixture()
	list, err := f.service().List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil {
		t.Error("Expected empty slice, got nil")
	}
}
