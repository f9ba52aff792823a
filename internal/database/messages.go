package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
)

// MessageRepository is the append-only conversation log scoped by user video
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores one conversation turn
func (r *MessageRepository) Append(ctx context.Context, userVideoID int64, role models.MessageRole, content string, timestamp int64) (*models.Message, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid message role %q", role)
	}

	msg := &models.Message{
		UserVideoID: userVideoID,
		Role:        role,
		Content:     content,
		Timestamp:   timestamp,
	}
	query := `
		INSERT INTO messages (user_video_id, role, content, logical_ts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, userVideoID, role, content, timestamp, time.Now()).
		Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// ListByUserVideo returns the conversation ordered by logical timestamp, then insertion order
func (r *MessageRepository) ListByUserVideo(ctx context.Context, userVideoID int64) ([]*models.Message, error) {
	query := `
		SELECT id, user_video_id, role, content, logical_ts, created_at, updated_at
		FROM messages
		WHERE user_video_id = $1
		ORDER BY logical_ts ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userVideoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.UserVideoID, &m.Role, &m.Content, &m.Timestamp, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// Clear hard-deletes every message of a user video and returns the number removed
func (r *MessageRepository) Clear(ctx context.Context, userVideoID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE user_video_id = $1`, userVideoID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
