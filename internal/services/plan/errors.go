package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
)

// QuotaExceededError carries the denying decision so handlers can render it
type QuotaExceededError struct {
	Decision *models.QuotaDecision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s (%d/%d on %s plan)",
		e.Decision.Reason, e.Decision.VideosUsedToday, e.Decision.DailyLimit, e.Decision.CurrentPlan)
}

// AsQuotaExceeded extracts a QuotaExceededError from err
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// Checker is the quota check used before starting AI work
type Checker interface {
	CanAddVideo(ctx context.Context, userID uuid.UUID) (*models.QuotaDecision, error)
}

var _ Checker = (*Policy)(nil)

// Enforce returns a QuotaExceededError when the check denies the user
func Enforce(ctx context.Context, checker Checker, userID uuid.UUID) (*models.QuotaDecision, error) {
	decision, err := checker.CanAddVideo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !decision.CanAdd {
		return decision, &QuotaExceededError{Decision: decision}
	}
	return decision, nil
}
