package handlers

import (
	"context"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/chat"
	"github.com/benvon/tubecompanion/internal/services/videos"
	"github.com/google/uuid"
)

type mockChat struct {
	PrepareFunc func(ctx context.Context, user *models.User, req *models.ChatRequest) (*chat.Turn, error)
	StreamFunc  func(ctx context.Context, turn *chat.Turn, onDelta func(string)) (*ai.Completion, error)
}

var _ ChatOrchestrator = (*mockChat)(nil)

func (m *mockChat) Prepare(ctx context.Context, user *models.User, req *models.ChatRequest) (*chat.Turn, error) {
	return m.PrepareFunc(ctx, user, req)
}

func (m *mockChat) Stream(ctx context.Context, turn *chat.Turn, onDelta func(string)) (*ai.Completion, error) {
	return m.StreamFunc(ctx, turn, onDelta)
}

type mockVideos struct {
	SubmitFunc     func(ctx context.Context, user *models.User, rawURL string) (*models.SubmitVideoResponse, error)
	ListFunc       func(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error)
	GetFunc        func(ctx context.Context, userID uuid.UUID, id int64) (*videos.Detail, error)
	OwnedFunc      func(ctx context.Context, userID uuid.UUID, id int64) (*models.UserVideo, error)
	DeleteFunc     func(ctx context.Context, userID uuid.UUID, id int64) error
	RegenerateFunc func(ctx context.Context, user *models.User, id int64) (*models.UserVideo, error)
}

var _ VideoService = (*mockVideos)(nil)

func (m *mockVideos) Submit(ctx context.Context, user *models.User, rawURL string) (*models.SubmitVideoResponse, error) {
	return m.SubmitFunc(ctx, user, rawURL)
}

func (m *mockVideos) List(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error) {
	return m.ListFunc(ctx, userID)
}

func (m *mockVideos) Get(ctx context.Context, userID uuid.UUID, id int64) (*videos.Detail, error) {
	return m.GetFunc(ctx, userID, id)
}

func (m *mockVideos) Owned(ctx context.Context, userID uuid.UUID, id int64) (*models.UserVideo, error) {
	return m.OwnedFunc(ctx, userID, id)
}

func (m *mockVideos) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	return m.DeleteFunc(ctx, userID, id)
}

func (m *mockVideos) Regenerate(ctx context.Context, user *models.User, id int64) (*models.UserVideo, error) {
	return m.RegenerateFunc(ctx, user, id)
}

type mockMessages struct {
	AppendFunc          func(ctx context.Context, userVideoID int64, role models.MessageRole, content string, timestamp int64) (*models.Message, error)
	ListByUserVideoFunc func(ctx context.Context, userVideoID int64) ([]*models.Message, error)
	ClearFunc           func(ctx context.Context, userVideoID int64) (int64, error)
}

var _ database.MessageRepositoryInterface = (*mockMessages)(nil)

func (m *mockMessages) Append(ctx context.Context, userVideoID int64, role models.MessageRole, content string, timestamp int64) (*models.Message, error) {
	return m.AppendFunc(ctx, userVideoID, role, content, timestamp)
}

func (m *mockMessages) ListByUserVideo(ctx context.Context, userVideoID int64) ([]*models.Message, error) {
	return m.ListByUserVideoFunc(ctx, userVideoID)
}

func (m *mockMessages) Clear(ctx context.Context, userVideoID int64) (int64, error) {
	return m.ClearFunc(ctx, userVideoID)
}

type mockPolicy struct {
	GetUserUsageStatsFunc func(ctx context.Context, userID uuid.UUID) (*models.UsageStats, error)
	CanPurchasePlanFunc   func(ctx context.Context, userID uuid.UUID, requested models.Plan) (*models.PurchaseEligibility, error)
}

var _ PlanPolicy = (*mockPolicy)(nil)

func (m *mockPolicy) GetUserUsageStats(ctx context.Context, userID uuid.UUID) (*models.UsageStats, error) {
	return m.GetUserUsageStatsFunc(ctx, userID)
}

func (m *mockPolicy) CanPurchasePlan(ctx context.Context, userID uuid.UUID, requested models.Plan) (*models.PurchaseEligibility, error) {
	return m.CanPurchasePlanFunc(ctx, userID, requested)
}

type mockFeedback struct {
	CreateFunc func(ctx context.Context, fb *models.Feedback) error
	ListFunc   func(ctx context.Context, limit, offset int) ([]*models.Feedback, error)
}

var _ database.FeedbackRepositoryInterface = (*mockFeedback)(nil)

func (m *mockFeedback) Create(ctx context.Context, fb *models.Feedback) error {
	return m.CreateFunc(ctx, fb)
}

func (m *mockFeedback) List(ctx context.Context, limit, offset int) ([]*models.Feedback, error) {
	return m.ListFunc(ctx, limit, offset)
}

type mockReporter struct {
	AggregateByDateRangeFunc func(ctx context.Context, from, to time.Time) ([]models.DailyUsage, error)
	AggregateByModelFunc     func(ctx context.Context, from, to time.Time) ([]models.ModelUsage, error)
	AggregateByOperationFunc func(ctx context.Context, from, to time.Time) ([]models.OperationUsage, error)
	TopUsersFunc             func(ctx context.Context, limit int, from, to time.Time) ([]models.UserUsage, error)
}

var _ UsageReporter = (*mockReporter)(nil)

func (m *mockReporter) AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyUsage, error) {
	return m.AggregateByDateRangeFunc(ctx, from, to)
}

func (m *mockReporter) AggregateByModel(ctx context.Context, from, to time.Time) ([]models.ModelUsage, error) {
	return m.AggregateByModelFunc(ctx, from, to)
}

func (m *mockReporter) AggregateByOperation(ctx context.Context, from, to time.Time) ([]models.OperationUsage, error) {
	return m.AggregateByOperationFunc(ctx, from, to)
}

func (m *mockReporter) TopUsers(ctx context.Context, limit int, from, to time.Time) ([]models.UserUsage, error) {
	return m.TopUsersFunc(ctx, limit, from, to)
}

type mockAccounts struct {
	UpsertFromClaimsFunc func(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
	UpdateLanguageFunc   func(ctx context.Context, id uuid.UUID, language models.Language) error
}

var _ AccountStore = (*mockAccounts)(nil)

func (m *mockAccounts) UpsertFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error) {
	return m.UpsertFromClaimsFunc(ctx, claims)
}

func (m *mockAccounts) UpdateLanguage(ctx context.Context, id uuid.UUID, language models.Language) error {
	return m.UpdateLanguageFunc(ctx, id, language)
}
