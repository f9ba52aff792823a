package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated account
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	ProviderID        *string   `json:"providerId,omitempty"`
	Name              *string   `json:"name,omitempty"`
	Plan              Plan      `json:"plan"`
	PreferredLanguage Language  `json:"preferredLanguage"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Language is a supported response language
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageIndonesian Language = "id"
)

// IsValid reports whether the language is supported
func (l Language) IsValid() bool {
	return l == LanguageEnglish || l == LanguageIndonesian
}

// DisplayName returns the name used when instructing the model
func (l Language) DisplayName() string {
	switch l {
	case LanguageIndonesian:
		return "Indonesian (Bahasa Indonesia)"
	default:
		return "English"
	}
}

// UpdateUserRequest is the body accepted by PATCH /auth/me
type UpdateUserRequest struct {
	PreferredLanguage Language `json:"preferredLanguage" validate:"required,language"`
}
