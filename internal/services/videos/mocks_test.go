package videos

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/google/uuid"
)

type mockVideoRepo struct {
	mu     sync.Mutex
	videos map[string]*models.Video
	getErr error
	upErr  error
}

var _ database.VideoRepositoryInterface = (*mockVideoRepo)(nil)

func newMockVideoRepo(videos ...*models.Video) *mockVideoRepo {
	m := &mockVideoRepo{videos: map[string]*models.Video{}}
	for _, v := range videos {
		m.videos[v.ID] = v
	}
	return m
}

func (m *mockVideoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.videos[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVideoRepo) Upsert(ctx context.Context, video *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upErr != nil {
		return m.upErr
	}
	cp := *video
	m.videos[video.ID] = &cp
	return nil
}

func (m *mockVideoRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.videos)
}

type mockUserVideoRepo struct {
	getOrCreateFunc func(ctx context.Context, userID uuid.UUID, videoID string) (*models.UserVideo, bool, error)
	getForUserFunc  func(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error)
	listFunc        func(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error)
	deleteFunc      func(ctx context.Context, id int64, userID uuid.UUID) error
}

var _ database.UserVideoRepositoryInterface = (*mockUserVideoRepo)(nil)

func (m *mockUserVideoRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, videoID string) (*models.UserVideo, bool, error) {
	return m.getOrCreateFunc(ctx, userID, videoID)
}

func (m *mockUserVideoRepo) GetByID(ctx context.Context, id int64) (*models.UserVideo, error) {
	return nil, database.ErrNotFound
}

func (m *mockUserVideoRepo) GetForUser(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error) {
	if m.getForUserFunc == nil {
		return nil, database.ErrNotFound
	}
	return m.getForUserFunc(ctx, id, userID)
}

func (m *mockUserVideoRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error) {
	if m.listFunc == nil {
		return nil, nil
	}
	return m.listFunc(ctx, userID)
}

func (m *mockUserVideoRepo) Delete(ctx context.Context, id int64, userID uuid.UUID) error {
	if m.deleteFunc == nil {
		return nil
	}
	return m.deleteFunc(ctx, id, userID)
}

func (m *mockUserVideoRepo) UpdateSummary(ctx context.Context, id int64, summary string) error {
	return nil
}

func (m *mockUserVideoRepo) UpdateQuickStartQuestions(ctx context.Context, id int64, questions []string) error {
	return nil
}

func (m *mockUserVideoRepo) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return 0, nil
}

func (m *mockUserVideoRepo) ListPendingGeneration(ctx context.Context, cutoff time.Time, limit int) ([]models.PendingGeneration, error) {
	return nil, nil
}

type mockTranscriptRepo struct {
	mu       sync.Mutex
	stored   map[string][]models.TranscriptSegment
	listErr  error
	replaced int
}

var _ database.TranscriptRepositoryInterface = (*mockTranscriptRepo)(nil)

func newMockTranscriptRepo() *mockTranscriptRepo {
	return &mockTranscriptRepo{stored: map[string][]models.TranscriptSegment{}}
}

func (m *mockTranscriptRepo) ListByVideo(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.stored[videoID], nil
}

func (m *mockTranscriptRepo) Replace(ctx context.Context, videoID string, segments []models.TranscriptSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced++
	m.stored[videoID] = append([]models.TranscriptSegment(nil), segments...)
	return nil
}

type mockDetails struct {
	fetchFunc func(ctx context.Context, videoID string) (*models.Video, error)
}

var _ youtube.DetailsFetcher = (*mockDetails)(nil)

func (m *mockDetails) FetchDetails(ctx context.Context, videoID string) (*models.Video, error) {
	return m.fetchFunc(ctx, videoID)
}

type mockCaptions struct {
	fetchFunc func(ctx context.Context, videoID, language string) ([]models.TranscriptSegment, error)
}

var _ youtube.TranscriptFetcher = (*mockCaptions)(nil)

func (m *mockCaptions) FetchTranscript(ctx context.Context, videoID, language string) ([]models.TranscriptSegment, error) {
	return m.fetchFunc(ctx, videoID, language)
}

type mockQuota struct {
	decision *models.QuotaDecision
	err      error
}

var _ plan.Checker = (*mockQuota)(nil)

func (m *mockQuota) CanAddVideo(ctx context.Context, userID uuid.UUID) (*models.QuotaDecision, error) {
	return m.decision, m.err
}

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

var _ queue.Enqueuer = (*mockEnqueuer)(nil)

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return m.err
}
