package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a rating left by a user
type Feedback struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Rating    int       `json:"rating"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateFeedbackRequest is the body of POST /feedback
type CreateFeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Message string `json:"message" validate:"max=4000"`
}
