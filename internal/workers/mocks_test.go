package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/google/uuid"
)

type mockProvider struct {
	completeFunc func(ctx context.Context, messages []ai.ChatMessage) (*ai.Completion, error)
	calls        [][]ai.ChatMessage
}

var _ ai.Provider = (*mockProvider)(nil)

func (m *mockProvider) Name() string  { return "google" }
func (m *mockProvider) Model() string { return "gemini-2.0-flash-001" }

func (m *mockProvider) Complete(ctx context.Context, messages []ai.ChatMessage) (*ai.Completion, error) {
	m.calls = append(m.calls, messages)
	if m.completeFunc != nil {
		return m.completeFunc(ctx, messages)
	}
	return &ai.Completion{Steps: []ai.Step{{Text: "A summary."}}, Usage: ai.Usage{PromptTokens: 100, CompletionTokens: 20}}, nil
}

func (m *mockProvider) StreamCompletion(ctx context.Context, messages []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
	return nil, errors.New("not implemented")
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, videoID string, language models.Language) (ai.VideoContext, error)
}

var _ ContextResolver = (*mockResolver)(nil)

func (m *mockResolver) ResolveContext(ctx context.Context, videoID string, language models.Language) (ai.VideoContext, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, videoID, language)
	}
	return ai.VideoContext{Title: "Go Concurrency", Transcript: "channels and goroutines"}, nil
}

type mockVideoStore struct {
	video     *models.UserVideo
	getErr    error
	summary   string
	questions []string
}

var _ VideoStore = (*mockVideoStore)(nil)

func (m *mockVideoStore) GetByID(ctx context.Context, id int64) (*models.UserVideo, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.video == nil || m.video.ID != id {
		return nil, database.ErrNotFound
	}
	cp := *m.video
	return &cp, nil
}

func (m *mockVideoStore) UpdateSummary(ctx context.Context, id int64, summary string) error {
	m.summary = summary
	return nil
}

func (m *mockVideoStore) UpdateQuickStartQuestions(ctx context.Context, id int64, questions []string) error {
	m.questions = questions
	return nil
}

type mockRecorder struct {
	entries []usage.Entry
	err     error
}

var _ UsageRecorder = (*mockRecorder)(nil)

func (m *mockRecorder) Record(ctx context.Context, e usage.Entry) (*models.TokenUsage, error) {
	m.entries = append(m.entries, e)
	if m.err != nil {
		return nil, m.err
	}
	return &models.TokenUsage{}, nil
}

type mockQueue struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	enqueueErr error
}

var _ queue.Enqueuer = (*mockQueue)(nil)

func (m *mockQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// mockMessage records how the worker settled a delivery
type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

var _ queue.MessageInterface = (*mockMessage)(nil)

func (m *mockMessage) Ack() error { m.acked = true; return nil }

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job { return m.job }

type mockPending struct {
	items  []models.PendingGeneration
	err    error
	cutoff time.Time
	limit  int
}

var _ PendingLister = (*mockPending)(nil)

func (m *mockPending) ListPendingGeneration(ctx context.Context, cutoff time.Time, limit int) ([]models.PendingGeneration, error) {
	m.cutoff, m.limit = cutoff, limit
	return m.items, m.err
}

func testUserVideo(userID uuid.UUID) *models.UserVideo {
	return &models.UserVideo{ID: 42, UserID: userID, VideoID: "dQw4w9WgXcQ", QuickStartQuestions: []string{}}
}
