package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/request"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultStreamTimeout bounds a provider stream once it is detached from the request
	DefaultStreamTimeout = 2 * time.Minute
	finalizeTimeout      = 15 * time.Second
	tracerName           = "github.com/benvon/tubecompanion/internal/services/chat"
)

// ContextResolver builds the grounding context for a video
type ContextResolver interface {
	ResolveContext(ctx context.Context, videoID string, language models.Language) (ai.VideoContext, error)
}

// OwnedVideos checks that a user video belongs to the caller
type OwnedVideos interface {
	GetForUser(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error)
}

// MessageAppender persists conversation messages
type MessageAppender interface {
	Append(ctx context.Context, userVideoID int64, role models.MessageRole, content string, timestamp int64) (*models.Message, error)
}

// UsageRecorder appends token usage records
type UsageRecorder interface {
	Record(ctx context.Context, e usage.Entry) (*models.TokenUsage, error)
}

var _ UsageRecorder = (*usage.Ledger)(nil)

// ErrVideoMismatch is returned when the user video refers to a different video than the request
var ErrVideoMismatch = errors.New("user video does not match video")

// Config tunes the orchestrator
type Config struct {
	TranscriptCharLimit int
	StreamTimeout       time.Duration
}

// Orchestrator runs one chat turn from quota check to usage recording
type Orchestrator struct {
	quota    plan.Checker
	owned    OwnedVideos
	resolver ContextResolver
	messages MessageAppender
	provider ai.Provider
	ledger   UsageRecorder
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

// Turn is a chat request that passed the quota and ownership checks and is ready to stream
type Turn struct {
	UserID      uuid.UUID
	VideoID     string
	UserVideoID int64
	Language    models.Language
	Messages    []ai.ChatMessage
	Grounded    bool
}

// NewOrchestrator creates a chat orchestrator
func NewOrchestrator(
	quota plan.Checker,
	owned OwnedVideos,
	resolver ContextResolver,
	messages MessageAppender,
	provider ai.Provider,
	ledger UsageRecorder,
	cfg Config,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TranscriptCharLimit <= 0 {
		cfg.TranscriptCharLimit = ai.ChatTranscriptCharLimit
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	return &Orchestrator{
		quota:    quota,
		owned:    owned,
		resolver: resolver,
		messages: messages,
		provider: provider,
		ledger:   ledger,
		cfg:      cfg,
		now:      time.Now,
		logger:   log,
	}
}

// Prepare checks quota and ownership, resolves the video context, stores the
// user's message and assembles the provider messages.
// Errors are a *plan.QuotaExceededError, database.ErrNotFound for a foreign
// user video, ErrVideoMismatch, youtube.ErrInvalidVideoID, or an internal failure.
func (o *Orchestrator) Prepare(ctx context.Context, user *models.User, req *models.ChatRequest) (*Turn, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "chat.prepare")
	defer span.End()
	span.SetAttributes(attribute.String("video.id", req.VideoID))

	if _, err := plan.Enforce(ctx, o.quota, user.ID); err != nil {
		span.SetStatus(codes.Error, "quota")
		return nil, err
	}

	if req.UserVideoID > 0 {
		uv, err := o.owned.GetForUser(ctx, req.UserVideoID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user video %d: %w", req.UserVideoID, err)
		}
		if uv.VideoID != req.VideoID {
			return nil, ErrVideoMismatch
		}
	}

	language := req.Language
	if !language.IsValid() {
		language = user.PreferredLanguage
	}

	videoCtx, err := o.resolver.ResolveContext(ctx, req.VideoID, language)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve video context: %w", err)
	}

	turn := &Turn{
		UserID:      user.ID,
		VideoID:     req.VideoID,
		UserVideoID: req.UserVideoID,
		Language:    language,
		Grounded:    videoCtx.HasGrounding(),
	}

	o.persistLastUserMessage(ctx, turn, req.Messages)

	turn.Messages = make([]ai.ChatMessage, 0, len(req.Messages)+1)
	if turn.Grounded {
		turn.Messages = append(turn.Messages, ai.ChatMessage{
			Role:    "system",
			Content: ai.BuildSystemPromptWithLimit(language, videoCtx, o.cfg.TranscriptCharLimit),
		})
	}
	for _, m := range req.Messages {
		turn.Messages = append(turn.Messages, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}

	span.SetAttributes(attribute.Bool("chat.grounded", turn.Grounded), attribute.Int("chat.messages", len(turn.Messages)))
	return turn, nil
}

// Stream calls the provider and forwards each delta to onDelta. The provider call
// is detached from ctx so a client disconnect does not abort it; finalization
// runs once the provider has finished.
func (o *Orchestrator) Stream(ctx context.Context, turn *Turn, onDelta func(delta string)) (*ai.Completion, error) {
	detached := context.WithoutCancel(ctx)
	detached = ai.WithRequestID(ai.WithUserID(detached, turn.UserID.String()), request.RequestIDFromContext(ctx))
	streamCtx, cancel := context.WithTimeout(detached, o.cfg.StreamTimeout)
	defer cancel()

	streamCtx, span := otel.Tracer(tracerName).Start(streamCtx, "chat.stream")
	defer span.End()

	completion, err := o.provider.StreamCompletion(streamCtx, turn.Messages, onDelta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider stream failed")
		o.logger.Error("chat_stream_failed",
			zap.String("user_id", logger.SanitizeUserID(turn.UserID.String())),
			zap.String("video_id", turn.VideoID),
			zap.Error(err))
		return completion, err
	}

	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", completion.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", completion.Usage.CompletionTokens),
	)

	o.finalize(detached, turn, completion)
	return completion, nil
}

// finalize stores the assistant reply and records usage. The two writes are
// independent: either may fail without affecting the other.
func (o *Orchestrator) finalize(ctx context.Context, turn *Turn, completion *ai.Completion) {
	ctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()

	var wg sync.WaitGroup
	if turn.UserVideoID > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.persistAssistantSteps(ctx, turn, completion)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.ledger.Record(ctx, usage.Entry{
			UserID:       turn.UserID,
			Provider:     completion.Provider,
			Model:        completion.Model,
			Operation:    models.OperationChat,
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			VideoID:      turn.VideoID,
			UserVideoID:  turn.UserVideoID,
			Duration:     completion.Duration,
		})
		if err != nil {
			o.logger.Error("failed_to_record_chat_usage",
				zap.String("user_id", logger.SanitizeUserID(turn.UserID.String())),
				zap.Error(err))
		}
	}()

	wg.Wait()
}

func (o *Orchestrator) persistLastUserMessage(ctx context.Context, turn *Turn, msgs []models.ChatTurn) {
	if turn.UserVideoID <= 0 {
		return
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != string(models.RoleUser) {
			continue
		}
		if _, err := o.messages.Append(ctx, turn.UserVideoID, models.RoleUser, msgs[i].Content, o.now().Unix()); err != nil {
			o.logger.Error("failed_to_store_user_message",
				zap.Int64("user_video_id", turn.UserVideoID),
				zap.Error(err))
		}
		return
	}
}

func (o *Orchestrator) persistAssistantSteps(ctx context.Context, turn *Turn, completion *ai.Completion) {
	ts := o.now().Unix()
	for _, step := range completion.Steps {
		if step.Text == "" {
			continue
		}
		if _, err := o.messages.Append(ctx, turn.UserVideoID, models.RoleAssistant, step.Text, ts); err != nil {
			o.logger.Error("failed_to_store_assistant_message",
				zap.Int64("user_video_id", turn.UserVideoID),
				zap.Error(err))
		}
	}
}
