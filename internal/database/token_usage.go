package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
)

// TokenUsageRepository is the append-only token usage ledger
type TokenUsageRepository struct {
	db *DB
}

// NewTokenUsageRepository creates a new token usage repository
func NewTokenUsageRepository(db *DB) *TokenUsageRepository {
	return &TokenUsageRepository{db: db}
}

// totalsSelect is shared by every aggregation
const totalsSelect = `
	COUNT(*),
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COALESCE(SUM(total_tokens), 0),
	COALESCE(SUM(input_cost), 0),
	COALESCE(SUM(output_cost), 0),
	COALESCE(SUM(total_cost), 0)`

func totalsDest(t *models.UsageTotals) []any {
	return []any{
		&t.Requests,
		&t.InputTokens,
		&t.OutputTokens,
		&t.TotalTokens,
		&t.InputCost,
		&t.OutputCost,
		&t.TotalCost,
	}
}

// Create appends one usage record. Records are never updated.
func (r *TokenUsageRepository) Create(ctx context.Context, u *models.TokenUsage) error {
	query := `
		INSERT INTO token_usage (
			user_id, model, provider, operation,
			input_tokens, output_tokens, total_tokens,
			input_cost, output_cost, total_cost,
			video_id, user_video_id, duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		u.UserID,
		u.Model,
		u.Provider,
		u.Operation,
		u.InputTokens,
		u.OutputTokens,
		u.TotalTokens,
		u.InputCost,
		u.OutputCost,
		u.TotalCost,
		u.VideoID,
		u.UserVideoID,
		u.DurationMS,
		time.Now(),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create token usage: %w", err)
	}
	return nil
}

// AggregateByUser sums one user's usage in [from, to)
func (r *TokenUsageRepository) AggregateByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.UsageTotals, error) {
	totals := &models.UsageTotals{}
	query := `SELECT ` + totalsSelect + ` FROM token_usage WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`
	if err := r.db.QueryRowContext(ctx, query, userID, from, to).Scan(totalsDest(totals)...); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by user: %w", err)
	}
	return totals, nil
}

// AggregateByDateRange sums usage per calendar day in [from, to)
func (r *TokenUsageRepository) AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyUsage, error) {
	query := `
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day,` + totalsSelect + `
		FROM token_usage
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day ASC
	`
	var out []models.DailyUsage
	err := r.collect(ctx, query, []any{from, to}, func(rows *sql.Rows) error {
		var d models.DailyUsage
		if err := rows.Scan(append([]any{&d.Date}, totalsDest(&d.UsageTotals)...)...); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by date: %w", err)
	}
	return out, nil
}

// AggregateByModel sums usage per provider and model, most expensive first
func (r *TokenUsageRepository) AggregateByModel(ctx context.Context, from, to time.Time) ([]models.ModelUsage, error) {
	query := `
		SELECT provider, model,` + totalsSelect + `
		FROM token_usage
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY provider, model
		ORDER BY COALESCE(SUM(total_cost), 0) DESC, provider, model
	`
	var out []models.ModelUsage
	err := r.collect(ctx, query, []any{from, to}, func(rows *sql.Rows) error {
		var m models.ModelUsage
		if err := rows.Scan(append([]any{&m.Provider, &m.Model}, totalsDest(&m.UsageTotals)...)...); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by model: %w", err)
	}
	return out, nil
}

// AggregateByOperation sums usage per operation kind, most expensive first
func (r *TokenUsageRepository) AggregateByOperation(ctx context.Context, from, to time.Time) ([]models.OperationUsage, error) {
	query := `
		SELECT operation,` + totalsSelect + `
		FROM token_usage
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY operation
		ORDER BY COALESCE(SUM(total_cost), 0) DESC, operation
	`
	var out []models.OperationUsage
	err := r.collect(ctx, query, []any{from, to}, func(rows *sql.Rows) error {
		var o models.OperationUsage
		if err := rows.Scan(append([]any{&o.Operation}, totalsDest(&o.UsageTotals)...)...); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by operation: %w", err)
	}
	return out, nil
}

// TopUsers returns the users with the highest total cost in [from, to)
func (r *TokenUsageRepository) TopUsers(ctx context.Context, limit int, from, to time.Time) ([]models.UserUsage, error) {
	query := `
		SELECT t.user_id, u.email,` + totalsSelect + `
		FROM token_usage t
		JOIN users u ON u.id = t.user_id
		WHERE t.created_at >= $1 AND t.created_at < $2
		GROUP BY t.user_id, u.email
		ORDER BY COALESCE(SUM(total_cost), 0) DESC, u.email
		LIMIT $3
	`
	var out []models.UserUsage
	err := r.collect(ctx, query, []any{from, to, limit}, func(rows *sql.Rows) error {
		var u models.UserUsage
		if err := rows.Scan(append([]any{&u.UserID, &u.Email}, totalsDest(&u.UsageTotals)...)...); err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list top users: %w", err)
	}
	return out, nil
}

func (r *TokenUsageRepository) collect(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
