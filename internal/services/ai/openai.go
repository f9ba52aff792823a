package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model for the openai provider
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultGoogleModel is the default model for the google provider
	DefaultGoogleModel = "gemini-2.0-flash-001"
	// DefaultGoogleBaseURL is Gemini's OpenAI compatible endpoint
	DefaultGoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// DefaultTimeout bounds non-streaming calls. Streaming calls rely on the context deadline.
	DefaultTimeout = 60 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider talks to any OpenAI compatible chat completions API
type OpenAIProvider struct {
	client    openai.Client
	name      string
	model     string
	timeout   time.Duration
	logger    *zap.Logger
	debugMode bool
}

// OpenAIConfig configures an OpenAIProvider
type OpenAIConfig struct {
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	Logger    *zap.Logger
	DebugMode bool
}

// NewOpenAIProvider creates a provider for an OpenAI compatible endpoint
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// No client timeout: it would cut long streams. Complete applies DefaultTimeout itself.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{}),
		option.WithMaxRetries(1),
	)

	if cfg.DebugMode {
		cfg.Logger.Debug("llm_provider_created",
			zap.String("provider", cfg.Name),
			zap.String("model", cfg.Model),
			zap.String("base_url", cfg.BaseURL),
			zap.String("api_key", SanitizeAPIKey(cfg.APIKey)),
		)
	}

	return &OpenAIProvider{
		client:    client,
		name:      cfg.Name,
		model:     cfg.Model,
		timeout:   DefaultTimeout,
		logger:    cfg.Logger,
		debugMode: cfg.DebugMode,
	}
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the model identifier
func (p *OpenAIProvider) Model() string { return p.model }

// Complete runs a non-streaming completion
func (p *OpenAIProvider) Complete(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logRequest(ctx, "complete", messages)

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: toOpenAIMessages(messages),
	})
	latency := time.Since(start)
	if err != nil {
		p.logError(ctx, "complete", err, latency)
		return nil, fmt.Errorf("failed to complete: %w", wrapAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	completion := &Completion{
		Steps: []Step{{Text: resp.Choices[0].Message.Content}},
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
		Provider: p.name,
		Model:    p.model,
		Duration: latency,
	}
	p.logResponse(ctx, "complete", completion)
	return completion, nil
}

// StreamCompletion streams deltas to onDelta and returns the completion when the stream ends
func (p *OpenAIProvider) StreamCompletion(ctx context.Context, messages []ChatMessage, onDelta func(delta string)) (*Completion, error) {
	p.logRequest(ctx, "stream", messages)

	start := time.Now()
	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: toOpenAIMessages(messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	})
	defer func() {
		_ = stream.Close()
	}()

	var text strings.Builder
	var usage Usage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
			}
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			text.WriteString(choice.Delta.Content)
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}
	}

	completion := &Completion{
		Steps:    []Step{{Text: text.String()}},
		Usage:    usage,
		Provider: p.name,
		Model:    p.model,
		Duration: time.Since(start),
	}
	if err := stream.Err(); err != nil {
		p.logError(ctx, "stream", err, completion.Duration)
		return completion, fmt.Errorf("failed to stream completion: %w", wrapAPIError(err))
	}

	p.logResponse(ctx, "stream", completion)
	return completion, nil
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func (p *OpenAIProvider) logRequest(ctx context.Context, operation string, messages []ChatMessage) {
	if !p.debugMode {
		return
	}
	previews := make([]string, 0, len(messages))
	for _, msg := range messages {
		previews = append(previews, SanitizePrompt(msg.Content, false))
	}
	p.logger.Debug("llm_api_request",
		zap.String("operation", operation),
		zap.String("provider", p.name),
		zap.String("model", p.model),
		zap.Int("message_count", len(messages)),
		zap.Strings("message_previews", previews),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
	)
}

func (p *OpenAIProvider) logResponse(ctx context.Context, operation string, c *Completion) {
	if !p.debugMode {
		return
	}
	p.logger.Debug("llm_api_response",
		zap.String("operation", operation),
		zap.String("provider", p.name),
		zap.String("model", p.model),
		zap.String("response_preview", SanitizeResponse(c.Text(), true)),
		zap.Int("prompt_tokens", c.Usage.PromptTokens),
		zap.Int("completion_tokens", c.Usage.CompletionTokens),
		zap.String("request_id", ExtractRequestID(ctx)),
		zap.Int64("latency_ms", c.Duration.Milliseconds()),
	)
}

func (p *OpenAIProvider) logError(ctx context.Context, operation string, err error, latency time.Duration) {
	p.logger.Warn("llm_api_error",
		zap.String("operation", operation),
		zap.String("provider", p.name),
		zap.String("model", p.model),
		zap.Error(err),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
}

// RegisterOpenAI registers the "openai" and "google" providers.
// Both use the chat completions wire format; google targets Gemini's compatible endpoint.
func RegisterOpenAI(registry *ProviderRegistry) {
	register := func(name, defaultBaseURL, defaultModel string) {
		registry.Register(name, func(config map[string]string, logger *zap.Logger) (Provider, error) {
			apiKey := config["api_key"]
			if apiKey == "" {
				return nil, fmt.Errorf("%s api_key is required", name)
			}
			baseURL := config["base_url"]
			if baseURL == "" {
				baseURL = defaultBaseURL
			}
			model := config["model"]
			if model == "" {
				model = defaultModel
			}
			return NewOpenAIProvider(OpenAIConfig{
				Name:      name,
				APIKey:    apiKey,
				BaseURL:   baseURL,
				Model:     model,
				Logger:    logger,
				DebugMode: config["debug"] == "true",
			}), nil
		})
	}
	register("openai", DefaultOpenAIBaseURL, DefaultOpenAIModel)
	register("google", DefaultGoogleBaseURL, DefaultGoogleModel)
}
