package ai

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ChatMessage is one message sent to a completion provider
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Step is one generated response segment
type Step struct {
	Text string `json:"text"`
}

// Usage is the token count reported by the provider
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Completion is the final result of a completion call
type Completion struct {
	Steps    []Step
	Usage    Usage
	Provider string
	Model    string
	Duration time.Duration
}

// Text joins the text of every step
func (c *Completion) Text() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, len(c.Steps))
	for _, s := range c.Steps {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "")
}

// Provider is a text completion backend
type Provider interface {
	// Name is the provider identifier used for pricing, e.g. "google"
	Name() string
	// Model is the model identifier used for pricing
	Model() string
	// Complete runs a non-streaming completion
	Complete(ctx context.Context, messages []ChatMessage) (*Completion, error)
	// StreamCompletion calls onDelta for each text fragment as it arrives and returns
	// the completion once the provider finishes. On a mid-stream error the partial
	// completion is returned alongside the error.
	StreamCompletion(ctx context.Context, messages []ChatMessage, onDelta func(delta string)) (*Completion, error)
}

// ProviderFactory creates a provider from string settings
type ProviderFactory func(config map[string]string, logger *zap.Logger) (Provider, error)

// ProviderRegistry stores available providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider builds a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string, logger *zap.Logger) (Provider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return factory(config, logger)
}

// ErrProviderNotFound is returned when a provider is not registered
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
