package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnlimitedDailyLimit is reported as the daily limit of unlimited tiers
const UnlimitedDailyLimit = -1

// UserReader loads the user's current plan
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// VideoCounter counts video submissions since a point in time
type VideoCounter interface {
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Policy derives quota decisions from users and their video submissions.
// There is no lock: two concurrent submissions can both pass the check.
type Policy struct {
	users     UserReader
	counter   VideoCounter
	freeLimit int
	now       func() time.Time
	location  *time.Location
	logger    *zap.Logger
}

// Option configures a Policy
type Option func(*Policy)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithLocation sets the time zone whose midnight resets the quota
func WithLocation(loc *time.Location) Option {
	return func(p *Policy) { p.location = loc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

// NewPolicy creates a plan policy with the given free tier daily cap
func NewPolicy(users UserReader, counter VideoCounter, freeDailyLimit int, opts ...Option) *Policy {
	p := &Policy{
		users:     users,
		counter:   counter,
		freeLimit: freeDailyLimit,
		now:       time.Now,
		location:  time.Local,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DailyLimit returns the cap for a tier, UnlimitedDailyLimit for unlimited tiers
func (p *Policy) DailyLimit(plan models.Plan) int {
	if plan.Unlimited() {
		return UnlimitedDailyLimit
	}
	return p.freeLimit
}

// StartOfDay returns local midnight for the current day
func (p *Policy) StartOfDay() time.Time {
	t := p.now().In(p.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.location)
}

// CanAddVideo decides whether the user may start more AI work today
func (p *Policy) CanAddVideo(ctx context.Context, userID uuid.UUID) (*models.QuotaDecision, error) {
	stats, err := p.GetUserUsageStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := &models.QuotaDecision{
		CanAdd:          true,
		VideosUsedToday: stats.VideosUsedToday,
		DailyLimit:      stats.DailyLimit,
		CurrentPlan:     stats.CurrentPlan,
	}
	if !stats.Unlimited && stats.VideosUsedToday >= stats.DailyLimit {
		decision.CanAdd = false
		decision.Reason = models.ReasonDailyLimitReached
	}
	return decision, nil
}

// GetUserUsageStats returns the quota projection for display
func (p *Policy) GetUserUsageStats(ctx context.Context, userID uuid.UUID) (*models.UsageStats, error) {
	current, err := p.currentPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.UsageStats{
		CurrentPlan: current,
		Unlimited:   current.Unlimited(),
		DailyLimit:  p.DailyLimit(current),
	}

	used, err := p.counter.CountCreatedSince(ctx, userID, p.StartOfDay())
	if err != nil {
		if !stats.Unlimited {
			return nil, fmt.Errorf("failed to count today's videos: %w", err)
		}
		p.logger.Warn("failed_to_count_videos_for_unlimited_user",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		used = 0
	}
	stats.VideosUsedToday = used
	return stats, nil
}

// CanPurchasePlan rejects the free tier, the current tier and downgrades
func (p *Policy) CanPurchasePlan(ctx context.Context, userID uuid.UUID, requested models.Plan) (*models.PurchaseEligibility, error) {
	current, err := p.currentPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &models.PurchaseEligibility{
		Eligible:      true,
		CurrentPlan:   current,
		RequestedPlan: requested,
	}
	switch {
	case !requested.IsValid() || requested == models.PlanFree:
		result.Eligible = false
		result.Reason = models.ReasonInvalidPlan
	case requested == current:
		result.Eligible = false
		result.Reason = models.ReasonAlreadySubscribed
	case requested.Rank() < current.Rank():
		result.Eligible = false
		result.Reason = models.ReasonDowngradeNotAllowed
	}
	return result, nil
}

// currentPlan treats unknown stored tiers as free
func (p *Policy) currentPlan(ctx context.Context, userID uuid.UUID) (models.Plan, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user plan: %w", err)
	}
	if !user.Plan.IsValid() {
		return models.PlanFree, nil
	}
	return user.Plan, nil
}
