package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UserVideoRepository handles user-video associations
type UserVideoRepository struct {
	db *DB
}

// NewUserVideoRepository creates a new user-video repository
func NewUserVideoRepository(db *DB) *UserVideoRepository {
	return &UserVideoRepository{db: db}
}

const userVideoColumns = `uv.id, uv.user_id, uv.video_id, uv.summary, uv.quick_start_questions, uv.created_at, uv.updated_at`

func scanUserVideo(row rowScanner, extra ...any) (*models.UserVideo, error) {
	uv := &models.UserVideo{}
	var questions pq.StringArray
	dest := append([]any{
		&uv.ID,
		&uv.UserID,
		&uv.VideoID,
		&uv.Summary,
		&questions,
		&uv.CreatedAt,
		&uv.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	uv.QuickStartQuestions = []string(questions)
	if uv.QuickStartQuestions == nil {
		uv.QuickStartQuestions = []string{}
	}
	return uv, nil
}

// GetOrCreate returns the user's association with the video, creating it on first submission.
// created reports whether a new row was inserted.
func (r *UserVideoRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, videoID string) (*models.UserVideo, bool, error) {
	now := time.Now()
	insert := `
		INSERT INTO user_videos AS uv (user_id, video_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id, video_id) DO NOTHING
		RETURNING ` + userVideoColumns

	uv, err := scanUserVideo(r.db.QueryRowContext(ctx, insert, userID, videoID, now))
	if err == nil {
		return uv, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create user video: %w", err)
	}

	query := `SELECT ` + userVideoColumns + ` FROM user_videos uv WHERE uv.user_id = $1 AND uv.video_id = $2`
	uv, err = scanUserVideo(r.db.QueryRowContext(ctx, query, userID, videoID))
	if err != nil {
		return nil, false, notFound(err, "user video")
	}
	return uv, false, nil
}

// GetByID retrieves a user video without ownership checks
func (r *UserVideoRepository) GetByID(ctx context.Context, id int64) (*models.UserVideo, error) {
	query := `SELECT ` + userVideoColumns + ` FROM user_videos uv WHERE uv.id = $1`
	uv, err := scanUserVideo(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "user video")
	}
	return uv, nil
}

// GetForUser retrieves a user video with its video metadata, scoped to the owner
func (r *UserVideoRepository) GetForUser(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error) {
	query := `
		SELECT ` + userVideoColumns + `, v.title, v.description, v.channel_title, v.published_at, v.thumbnail_url
		FROM user_videos uv
		JOIN videos v ON v.id = uv.video_id
		WHERE uv.id = $1 AND uv.user_id = $2
	`
	video := &models.Video{}
	uv, err := scanUserVideo(r.db.QueryRowContext(ctx, query, id, userID),
		&video.Title, &video.Description, &video.ChannelTitle, &video.PublishedAt, &video.ThumbnailURL)
	if err != nil {
		return nil, notFound(err, "user video")
	}
	video.ID = uv.VideoID
	uv.Video = video
	return uv, nil
}

// ListByUser lists a user's videos, newest first
func (r *UserVideoRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error) {
	query := `
		SELECT ` + userVideoColumns + `, v.title, v.channel_title, v.thumbnail_url
		FROM user_videos uv
		JOIN videos v ON v.id = uv.video_id
		WHERE uv.user_id = $1
		ORDER BY uv.created_at DESC, uv.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.UserVideo
	for rows.Next() {
		video := &models.Video{}
		uv, err := scanUserVideo(rows, &video.Title, &video.ChannelTitle, &video.ThumbnailURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user video: %w", err)
		}
		video.ID = uv.VideoID
		uv.Video = video
		out = append(out, uv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user videos: %w", err)
	}
	return out, nil
}

// Delete removes a user video and, by cascade, its messages
func (r *UserVideoRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_videos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user video: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user video: %w", ErrNotFound)
	}
	return nil
}

// UpdateSummary stores the generated summary
func (r *UserVideoRepository) UpdateSummary(ctx context.Context, id int64, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_videos SET summary = $1, updated_at = $2 WHERE id = $3`,
		summary, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	return nil
}

// UpdateQuickStartQuestions stores the generated opening questions
func (r *UserVideoRepository) UpdateQuickStartQuestions(ctx context.Context, id int64, questions []string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_videos SET quick_start_questions = $1, updated_at = $2 WHERE id = $3`,
		pq.Array(questions), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update quick start questions: %w", err)
	}
	return nil
}

// CountCreatedSince counts the user's video associations created at or after since
func (r *UserVideoRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_videos WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user videos: %w", err)
	}
	return count, nil
}

// ListPendingGeneration returns videos created before cutoff that still lack a summary or
// opening questions, oldest first, with the owner's preferred language
func (r *UserVideoRepository) ListPendingGeneration(ctx context.Context, cutoff time.Time, limit int) ([]models.PendingGeneration, error) {
	query := `
		SELECT ` + userVideoColumns + `, u.preferred_language
		FROM user_videos uv
		JOIN users u ON u.id = uv.user_id
		WHERE uv.created_at < $1
		  AND (uv.summary IS NULL OR cardinality(uv.quick_start_questions) = 0)
		ORDER BY uv.created_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending user videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []models.PendingGeneration
	for rows.Next() {
		var language models.Language
		uv, err := scanUserVideo(rows, &language)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending user video: %w", err)
		}
		out = append(out, models.PendingGeneration{UserVideo: uv, Language: language})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending user videos: %w", err)
	}
	return out, nil
}
