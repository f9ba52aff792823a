package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	job := NewJob(JobTypeGenerateSummary, userID, 42, "dQw4w9WgXcQ")

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeGenerateSummary {
		t.Errorf("Expected job type %s, got %s", JobTypeGenerateSummary, job.Type)
	}
	if job.UserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, job.UserID)
	}
	if job.UserVideoID != 42 || job.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("Unexpected video fields %d/%s", job.UserVideoID, job.VideoID)
	}
	if job.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", job.RetryCount)
	}
	if job.MaxRetries != 3 {
		t.Errorf("Expected max retries 3, got %d", job.MaxRetries)
	}
	if job.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{name: "no time constraints", want: true},
		{name: "not before in past", notBefore: timePtr(now.Add(-time.Hour)), want: true},
		{name: "not before in future", notBefore: timePtr(now.Add(time.Hour)), want: false},
		{name: "not after in future", notAfter: timePtr(now.Add(time.Hour)), want: true},
		{name: "not after in past", notAfter: timePtr(now.Add(-time.Hour)), want: false},
		{
			name:      "inside window",
			notBefore: timePtr(now.Add(-time.Hour)),
			notAfter:  timePtr(now.Add(time.Hour)),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := NewJob(JobTypeGenerateQuickStart, uuid.New(), 1, "abc")
			job.NotBefore = tt.notBefore
			job.NotAfter = tt.notAfter
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeGenerateSummary, uuid.New(), 1, "abc")
	if job.IsExpired() {
		t.Error("Job without NotAfter should not be expired")
	}
	job.NotAfter = timePtr(time.Now().Add(-time.Minute))
	if !job.IsExpired() {
		t.Error("Job past NotAfter should be expired")
	}
}

func TestJob_CanRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{name: "fresh job", retryCount: 0, maxRetries: 3, want: true},
		{name: "one left", retryCount: 2, maxRetries: 3, want: true},
		{name: "exhausted", retryCount: 3, maxRetries: 3, want: false},
		{name: "no retries", retryCount: 0, maxRetries: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := &Job{RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
			if got := job.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_NextAttempt(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeGenerateSummary, uuid.New(), 7, "abc")
	before := time.Now()
	next := job.NextAttempt(30 * time.Second)

	if next == job {
		t.Fatal("NextAttempt should return a copy")
	}
	if job.RetryCount != 0 || job.NotBefore != nil {
		t.Error("Original job should be unchanged")
	}
	if next.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", next.RetryCount)
	}
	if next.ID != job.ID || next.UserVideoID != job.UserVideoID {
		t.Error("Expected identity fields to carry over")
	}
	if next.NotBefore == nil || next.NotBefore.Before(before.Add(30*time.Second)) {
		t.Errorf("Expected NotBefore at least 30s ahead, got %v", next.NotBefore)
	}
}

func TestJob_JSONFieldNames(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeGenerateQuickStart, uuid.New(), 9, "abc")
	job.Language = "id"
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "type", "user_id", "user_video_id", "video_id", "language", "max_retries"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in %s", key, body)
		}
	}
	if _, ok := raw["not_before"]; ok {
		t.Error("Expected not_before to be omitted when nil")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
