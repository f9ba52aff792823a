package ai

import (
	"errors"
	"testing"
)

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	registry := NewProviderRegistry()
	RegisterOpenAI(registry)

	tests := []struct {
		name      string
		provider  string
		config    map[string]string
		wantErr   bool
		wantName  string
		wantModel string
	}{
		{name: "google defaults", provider: "google", config: map[string]string{"api_key": "k"}, wantName: "google", wantModel: DefaultGoogleModel},
		{name: "openai with model", provider: "openai", config: map[string]string{"api_key": "k", "model": "gpt-4o"}, wantName: "openai", wantModel: "gpt-4o"},
		{name: "missing key", provider: "openai", config: map[string]string{}, wantErr: true},
		{name: "unknown provider", provider: "mystery", config: map[string]string{"api_key": "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := registry.GetProvider(tt.provider, tt.config, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("GetProvider() error = %v", err)
			}
			if p.Name() != tt.wantName || p.Model() != tt.wantModel {
				t.Errorf("got %s/%s, want %s/%s", p.Name(), p.Model(), tt.wantName, tt.wantModel)
			}
		})
	}

	_, err := registry.GetProvider("mystery", nil, nil)
	var notFound *ErrProviderNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ErrProviderNotFound, got %v", err)
	}
}

func TestCompletionText(t *testing.T) {
	t.Parallel()

	c := &Completion{Steps: []Step{{Text: "Hello, "}, {Text: "world"}}}
	if c.Text() != "Hello, world" {
		t.Errorf("Text() = %q", c.Text())
	}
	var nilCompletion *Completion
	if nilCompletion.Text() != "" {
		t.Error("nil completion should have empty text")
	}
}
