package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is canonical metadata for a YouTube video, keyed by its external ID
type Video struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	ChannelTitle string     `json:"channelTitle,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserVideo is a user's engagement with a video and scopes its chat history
type UserVideo struct {
	ID                  int64     `json:"id"`
	UserID              uuid.UUID `json:"userId"`
	VideoID             string    `json:"videoId"`
	Summary             *string   `json:"summary,omitempty"`
	QuickStartQuestions []string  `json:"quickStartQuestions"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	Video               *Video    `json:"video,omitempty"`
}

// PendingGeneration is a user video whose AI content has not been generated yet
type PendingGeneration struct {
	UserVideo *UserVideo
	Language  Language
}

// TranscriptSegment is one utterance window of a transcript
type TranscriptSegment struct {
	ID             int64   `json:"id,omitempty"`
	VideoID        string  `json:"videoId"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	IsChapterStart bool    `json:"isChapterStart"`
}

// MaxSegmentTextLength bounds stored segment text
const MaxSegmentTextLength = 2000

// SubmitVideoRequest is the body of POST /videos
type SubmitVideoRequest struct {
	VideoURL string `json:"videoUrl" validate:"required,max=2048"`
}

// SubmitVideoResponse is returned after a successful submission
type SubmitVideoResponse struct {
	Success     bool   `json:"success"`
	VideoID     string `json:"videoId"`
	UserVideoID int64  `json:"userVideoId"`
}

// ErrorsResponse is the error body of the video submission endpoint
type ErrorsResponse struct {
	Errors []string `json:"errors"`
}
