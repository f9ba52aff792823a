package database

import (
	"context"
	"fmt"

	"github.com/benvon/tubecompanion/internal/models"
)

// TranscriptRepository stores transcript segments per video
type TranscriptRepository struct {
	db *DB
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db *DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// ListByVideo returns the segments of a video ordered by start offset
func (r *TranscriptRepository) ListByVideo(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	query := `
		SELECT id, video_id, start_seconds, end_seconds, text, is_chapter_start
		FROM transcript_segments
		WHERE video_id = $1
		ORDER BY start_seconds ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript segments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var segments []models.TranscriptSegment
	for rows.Next() {
		var s models.TranscriptSegment
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Start, &s.End, &s.Text, &s.IsChapterStart); err != nil {
			return nil, fmt.Errorf("failed to scan transcript segment: %w", err)
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcript segments: %w", err)
	}
	return segments, nil
}

// Replace swaps the stored transcript of a video in one transaction
func (r *TranscriptRepository) Replace(ctx context.Context, videoID string, segments []models.TranscriptSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_segments WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("failed to clear transcript segments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcript_segments (video_id, start_seconds, end_seconds, text, is_chapter_start)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transcript insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, s := range segments {
		text := s.Text
		if len([]rune(text)) > models.MaxSegmentTextLength {
			text = string([]rune(text)[:models.MaxSegmentTextLength])
		}
		if _, err := stmt.ExecContext(ctx, videoID, s.Start, s.End, text, s.IsChapterStart); err != nil {
			return fmt.Errorf("failed to insert transcript segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}
	return nil
}
