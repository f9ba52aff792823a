package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
)

// FeedbackRepository stores user feedback
type FeedbackRepository struct {
	db *DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create stores a feedback entry
func (r *FeedbackRepository) Create(ctx context.Context, fb *models.Feedback) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO feedback (user_id, rating, message, created_at) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		fb.UserID, fb.Rating, fb.Message, time.Now(),
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// List returns feedback newest first
func (r *FeedbackRepository) List(ctx context.Context, limit, offset int) ([]*models.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, rating, message, created_at
		FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Feedback
	for rows.Next() {
		fb := &models.Feedback{}
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Rating, &fb.Message, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return out, nil
}
