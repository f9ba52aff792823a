package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry describes a completed AI call before it is valued
type Entry struct {
	UserID       uuid.UUID
	Provider     string
	Model        string
	Operation    models.Operation
	InputTokens  int
	OutputTokens int
	VideoID      string
	UserVideoID  int64
	Duration     time.Duration
}

// Ledger records token usage and answers aggregate queries
type Ledger struct {
	store  database.TokenUsageRepositoryInterface
	costs  *CostModel
	logger *zap.Logger
}

// NewLedger creates a usage ledger
func NewLedger(store database.TokenUsageRepositoryInterface, costs *CostModel, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, costs: costs, logger: logger}
}

// Record values the entry and appends it. Callers treat failures as non-fatal.
func (l *Ledger) Record(ctx context.Context, e Entry) (*models.TokenUsage, error) {
	if !e.Operation.IsValid() {
		return nil, fmt.Errorf("invalid operation %q", e.Operation)
	}
	in, out := max(e.InputTokens, 0), max(e.OutputTokens, 0)
	cost := l.costs.Cost(e.Provider, e.Model, in, out)

	record := &models.TokenUsage{
		UserID:       e.UserID,
		Model:        e.Model,
		Provider:     e.Provider,
		Operation:    e.Operation,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		InputCost:    cost.InputCost,
		OutputCost:   cost.OutputCost,
		TotalCost:    cost.TotalCost,
	}
	if e.VideoID != "" {
		videoID := e.VideoID
		record.VideoID = &videoID
	}
	if e.UserVideoID > 0 {
		userVideoID := e.UserVideoID
		record.UserVideoID = &userVideoID
	}
	if e.Duration > 0 {
		ms := e.Duration.Milliseconds()
		record.DurationMS = &ms
	}

	if err := l.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record token usage: %w", err)
	}

	l.logger.Debug("token_usage_recorded",
		zap.String("user_id", e.UserID.String()),
		zap.String("operation", string(e.Operation)),
		zap.Int("total_tokens", record.TotalTokens),
		zap.String("total_cost", record.TotalCost.StringFixed(CostPrecision)),
	)
	return record, nil
}

// AggregateByUser sums one user's usage in [from, to)
func (l *Ledger) AggregateByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.UsageTotals, error) {
	return l.store.AggregateByUser(ctx, userID, from, to)
}

// AggregateByDateRange sums usage per day in [from, to)
func (l *Ledger) AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyUsage, error) {
	return l.store.AggregateByDateRange(ctx, from, to)
}

// AggregateByModel sums usage per provider and model in [from, to)
func (l *Ledger) AggregateByModel(ctx context.Context, from, to time.Time) ([]models.ModelUsage, error) {
	return l.store.AggregateByModel(ctx, from, to)
}

// AggregateByOperation sums usage per operation in [from, to)
func (l *Ledger) AggregateByOperation(ctx context.Context, from, to time.Time) ([]models.OperationUsage, error) {
	return l.store.AggregateByOperation(ctx, from, to)
}

// TopUsers lists the most expensive users in [from, to)
func (l *Ledger) TopUsers(ctx context.Context, limit int, from, to time.Time) ([]models.UserUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	return l.store.TopUsers(ctx, limit, from, to)
}
