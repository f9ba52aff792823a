package models

import "time"

// MessageRole is the author of a conversation turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// IsValid reports whether the role may be stored
func (r MessageRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one stored turn of a conversation
type Message struct {
	ID          int64       `json:"id"`
	UserVideoID int64       `json:"userVideoId"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Timestamp   int64       `json:"timestamp"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ChatTurn is a message as sent by the client
type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"max=32000"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Messages    []ChatTurn `json:"messages" validate:"required,min=1,max=200,dive"`
	VideoID     string     `json:"videoId" validate:"required,video_id"`
	UserVideoID int64      `json:"userVideoId" validate:"gte=0"`
	Language    Language   `json:"language,omitempty" validate:"omitempty,language"`
}
