package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
)

// VideoRepository stores canonical video metadata keyed by external ID
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// GetByID retrieves a cached video
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	video := &models.Video{}
	query := `
		SELECT id, title, description, channel_title, published_at, thumbnail_url, created_at, updated_at
		FROM videos
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&video.ID,
		&video.Title,
		&video.Description,
		&video.ChannelTitle,
		&video.PublishedAt,
		&video.ThumbnailURL,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "video")
	}
	return video, nil
}

// Upsert inserts the video or refreshes its metadata. Repeated calls never duplicate rows.
func (r *VideoRepository) Upsert(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, title, description, channel_title, published_at, thumbnail_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    channel_title = EXCLUDED.channel_title,
		    published_at = EXCLUDED.published_at,
		    thumbnail_url = EXCLUDED.thumbnail_url,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		video.ID,
		video.Title,
		video.Description,
		video.ChannelTitle,
		video.PublishedAt,
		video.ThumbnailURL,
		time.Now(),
	).Scan(&video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}
	return nil
}
