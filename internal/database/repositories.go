package database

import (
	"context"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
)

// UserRepositoryInterface defines user lookups used by auth and plan checks
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
	UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan) error
	UpdateLanguage(ctx context.Context, id uuid.UUID, language models.Language) error
}

// VideoRepositoryInterface defines the video metadata cache
type VideoRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
	Upsert(ctx context.Context, video *models.Video) error
}

// UserVideoRepositoryInterface defines user-video association operations
type UserVideoRepositoryInterface interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, videoID string) (*models.UserVideo, bool, error)
	GetByID(ctx context.Context, id int64) (*models.UserVideo, error)
	GetForUser(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error)
	Delete(ctx context.Context, id int64, userID uuid.UUID) error
	UpdateSummary(ctx context.Context, id int64, summary string) error
	UpdateQuickStartQuestions(ctx context.Context, id int64, questions []string) error
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	ListPendingGeneration(ctx context.Context, cutoff time.Time, limit int) ([]models.PendingGeneration, error)
}

// TranscriptRepositoryInterface defines transcript segment storage
type TranscriptRepositoryInterface interface {
	ListByVideo(ctx context.Context, videoID string) ([]models.TranscriptSegment, error)
	Replace(ctx context.Context, videoID string, segments []models.TranscriptSegment) error
}

// MessageRepositoryInterface defines the conversation store
type MessageRepositoryInterface interface {
	Append(ctx context.Context, userVideoID int64, role models.MessageRole, content string, timestamp int64) (*models.Message, error)
	ListByUserVideo(ctx context.Context, userVideoID int64) ([]*models.Message, error)
	Clear(ctx context.Context, userVideoID int64) (int64, error)
}

// TokenUsageRepositoryInterface defines the usage ledger store
type TokenUsageRepositoryInterface interface {
	Create(ctx context.Context, usage *models.TokenUsage) error
	AggregateByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.UsageTotals, error)
	AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyUsage, error)
	AggregateByModel(ctx context.Context, from, to time.Time) ([]models.ModelUsage, error)
	AggregateByOperation(ctx context.Context, from, to time.Time) ([]models.OperationUsage, error)
	TopUsers(ctx context.Context, limit int, from, to time.Time) ([]models.UserUsage, error)
}

// FeedbackRepositoryInterface defines feedback storage
type FeedbackRepositoryInterface interface {
	Create(ctx context.Context, fb *models.Feedback) error
	List(ctx context.Context, limit, offset int) ([]*models.Feedback, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface       = (*UserRepository)(nil)
	_ VideoRepositoryInterface      = (*VideoRepository)(nil)
	_ UserVideoRepositoryInterface  = (*UserVideoRepository)(nil)
	_ TranscriptRepositoryInterface = (*TranscriptRepository)(nil)
	_ MessageRepositoryInterface    = (*MessageRepository)(nil)
	_ TokenUsageRepositoryInterface = (*TokenUsageRepository)(nil)
	_ FeedbackRepositoryInterface   = (*FeedbackRepository)(nil)
)
