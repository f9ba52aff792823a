package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeGenerateSummary generates the AI summary of a user video
	JobTypeGenerateSummary JobType = "generate_summary"
	// JobTypeGenerateQuickStart generates the opening questions of a user video
	JobTypeGenerateQuickStart JobType = "generate_quick_start_questions"
)

// Job is a unit of background AI work for one user video
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Type        JobType    `json:"type"`
	UserID      uuid.UUID  `json:"user_id"`
	UserVideoID int64      `json:"user_video_id"`
	VideoID     string     `json:"video_id"`
	Language    string     `json:"language,omitempty"`
	NotBefore   *time.Time `json:"not_before,omitempty"` // nil = immediate
	NotAfter    *time.Time `json:"not_after,omitempty"`  // nil = no expiration
	CreatedAt   time.Time  `json:"created_at"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// NewJob creates a job with the default retry budget
func NewJob(jobType JobType, userID uuid.UUID, userVideoID int64, videoID string) *Job {
	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		UserID:      userID,
		UserVideoID: userVideoID,
		VideoID:     videoID,
		CreatedAt:   time.Now(),
		MaxRetries:  3,
	}
}

// ShouldProcess reports whether the job is inside its processing window
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired reports whether NotAfter has passed
func (j *Job) IsExpired() bool {
	return j.NotAfter != nil && time.Now().After(*j.NotAfter)
}

// CanRetry reports whether retries remain
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// NextAttempt returns a copy scheduled after delay with the retry count bumped
func (j *Job) NextAttempt(delay time.Duration) *Job {
	next := *j
	next.RetryCount++
	notBefore := time.Now().Add(delay)
	next.NotBefore = &notBefore
	return &next
}
