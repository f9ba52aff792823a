package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockQuota struct {
	decision *models.QuotaDecision
}

var _ plan.Checker = (*mockQuota)(nil)

func (m *mockQuota) CanAddVideo(ctx context.Context, userID uuid.UUID) (*models.QuotaDecision, error) {
	return m.decision, nil
}

type mockOwned struct {
	owner   uuid.UUID
	videoID string
}

var _ OwnedVideos = (*mockOwned)(nil)

func (m *mockOwned) GetForUser(ctx context.Context, id int64, userID uuid.UUID) (*models.UserVideo, error) {
	if userID != m.owner {
		return nil, database.ErrNotFound
	}
	return &models.UserVideo{ID: id, UserID: userID, VideoID: m.videoID}, nil
}

type mockResolver struct {
	video  ai.VideoContext
	err    error
	called bool
}

var _ ContextResolver = (*mockResolver)(nil)

func (m *mockResolver) ResolveContext(ctx context.Context, videoID string, language models.Language) (ai.VideoContext, error) {
	m.called = true
	return m.video, m.err
}

type storedMessage struct {
	userVideoID int64
	role        models.MessageRole
	content     string
	timestamp   int64
}

type mockMessages struct {
	mu          sync.Mutex
	stored      []storedMessage
	failRole    models.MessageRole
	failContent string
}

var _ MessageAppender = (*mockMessages)(nil)

func (m *mockMessages) Append(ctx context.Context, userVideoID int64, role models.MessageRole, content string, timestamp int64) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if role == m.failRole || (m.failContent != "" && content == m.failContent) {
		return nil, errors.New("insert failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, storedMessage{userVideoID, role, content, timestamp})
	return &models.Message{UserVideoID: userVideoID, Role: role, Content: content, Timestamp: timestamp}, nil
}

func (m *mockMessages) byRole(role models.MessageRole) []storedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storedMessage
	for _, s := range m.stored {
		if s.role == role {
			out = append(out, s)
		}
	}
	return out
}

type mockRecorder struct {
	mu      sync.Mutex
	entries []usage.Entry
	err     error
}

var _ UsageRecorder = (*mockRecorder)(nil)

func (m *mockRecorder) Record(ctx context.Context, e usage.Entry) (*models.TokenUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return &models.TokenUsage{}, m.err
}

type mockProvider struct {
	streamFunc func(ctx context.Context, messages []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error)
}

var _ ai.Provider = (*mockProvider)(nil)

func (m *mockProvider) Name() string  { return "google" }
func (m *mockProvider) Model() string { return "gemini-2.0-flash-001" }

func (m *mockProvider) Complete(ctx context.Context, messages []ai.ChatMessage) (*ai.Completion, error) {
	return nil, errors.New("not used")
}

func (m *mockProvider) StreamCompletion(ctx context.Context, messages []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
	return m.streamFunc(ctx, messages, onDelta)
}

func replyProvider(deltas ...string) *mockProvider {
	return &mockProvider{streamFunc: func(ctx context.Context, messages []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
		var b strings.Builder
		for _, d := range deltas {
			onDelta(d)
			b.WriteString(d)
		}
		return &ai.Completion{
			Steps:    []ai.Step{{Text: b.String()}},
			Usage:    ai.Usage{PromptTokens: 100, CompletionTokens: 50},
			Provider: "google",
			Model:    "gemini-2.0-flash-001",
		}, nil
	}}
}

type harness struct {
	user     *models.User
	quota    *mockQuota
	owned    *mockOwned
	resolver *mockResolver
	messages *mockMessages
	recorder *mockRecorder
	provider *mockProvider
	logs     *observer.ObservedLogs
}

func newHarness() *harness {
	user := &models.User{ID: uuid.New(), Plan: models.PlanFree, PreferredLanguage: models.LanguageIndonesian}
	return &harness{
		user:     user,
		quota:    &mockQuota{decision: &models.QuotaDecision{CanAdd: true, DailyLimit: 1, CurrentPlan: models.PlanFree}},
		owned:    &mockOwned{owner: user.ID, videoID: testVideoID},
		resolver: &mockResolver{video: ai.VideoContext{Title: "Go Channels", Transcript: "today we talk about channels"}},
		messages: &mockMessages{},
		recorder: &mockRecorder{},
		provider: replyProvider("Hel", "lo"),
	}
}

func (h *harness) orchestrator() *Orchestrator {
	core, logs := observer.New(zap.InfoLevel)
	h.logs = logs
	o := NewOrchestrator(h.quota, h.owned, h.resolver, h.messages, h.provider, h.recorder, Config{}, zap.New(core))
	o.now = func() time.Time { return time.Unix(1700000000, 0) }
	return o
}

const testVideoID = "dQw4w9WgXcQ"

func chatRequest(userVideoID int64) *models.ChatRequest {
	return &models.ChatRequest{
		Messages: []models.ChatTurn{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
			{Role: "user", Content: "what are channels?"},
		},
		VideoID:     testVideoID,
		UserVideoID: userVideoID,
	}
}

func TestOrchestrator_Prepare_QuotaDenied(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.quota.decision = &models.QuotaDecision{
		CanAdd: false, Reason: models.ReasonDailyLimitReached, VideosUsedToday: 1, DailyLimit: 1, CurrentPlan: models.PlanFree,
	}

	_, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(7))
	qe, ok := plan.AsQuotaExceeded(err)
	if !ok {
		t.Fatalf("Expected quota error, got %v", err)
	}
	if qe.Decision.Reason != models.ReasonDailyLimitReached {
		t.Errorf("Unexpected reason %s", qe.Decision.Reason)
	}
	if h.resolver.called {
		t.Error("Context must not be resolved after a quota denial")
	}
	if len(h.messages.stored) != 0 {
		t.Error("No message should be stored after a quota denial")
	}
}

func TestOrchestrator_Prepare_ForeignUserVideo(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.owned.owner = uuid.New()

	_, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(7))
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOrchestrator_Prepare_UserVideoForOtherVideo(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.owned.videoID = "otherVideo1"

	_, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(7))
	if !errors.Is(err, ErrVideoMismatch) {
		t.Fatalf("Expected ErrVideoMismatch, got %v", err)
	}
	if h.resolver.called {
		t.Error("Context must not be resolved for a mismatched user video")
	}
	if len(h.messages.stored) != 0 {
		t.Error("No message should be stored for a mismatched user video")
	}
}

func TestOrchestrator_Prepare_SystemPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		video          ai.VideoContext
		wantSystem     bool
		wantTranscript bool
	}{
		{
			name:           "title and transcript",
			video:          ai.VideoContext{Title: "Go Channels", Transcript: "channels are pipes"},
			wantSystem:     true,
			wantTranscript: true,
		},
		{
			name:       "title only omits transcript line",
			video:      ai.VideoContext{Title: "Go Channels"},
			wantSystem: true,
		},
		{
			name:           "transcript only",
			video:          ai.VideoContext{Transcript: "channels are pipes"},
			wantSystem:     true,
			wantTranscript: true,
		},
		{
			name:       "description alone is not grounding",
			video:      ai.VideoContext{Description: "a video"},
			wantSystem: false,
		},
		{
			name:       "nothing",
			wantSystem: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			h.resolver.video = tt.video

			turn, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(7))
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}

			hasSystem := turn.Messages[0].Role == "system"
			if hasSystem != tt.wantSystem || turn.Grounded != tt.wantSystem {
				t.Fatalf("system prompt present = %v, grounded = %v, want %v", hasSystem, turn.Grounded, tt.wantSystem)
			}
			wantLen := 3
			if tt.wantSystem {
				wantLen = 4
				hasTranscript := strings.Contains(turn.Messages[0].Content, "Video Transcript (partial):")
				if hasTranscript != tt.wantTranscript {
					t.Errorf("transcript line present = %v, want %v", hasTranscript, tt.wantTranscript)
				}
			}
			if len(turn.Messages) != wantLen {
				t.Errorf("Expected %d messages, got %d", wantLen, len(turn.Messages))
			}
			last := turn.Messages[len(turn.Messages)-1]
			if last.Role != "user" || last.Content != "what are channels?" {
				t.Errorf("Conversation order not preserved, last = %+v", last)
			}
		})
	}
}

func TestOrchestrator_Prepare_LanguageFallback(t *testing.T) {
	t.Parallel()

	h := newHarness()
	turn, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(0))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if turn.Language != models.LanguageIndonesian {
		t.Errorf("Expected preferred language fallback, got %s", turn.Language)
	}
	if !strings.Contains(turn.Messages[0].Content, "Indonesian") {
		t.Error("Expected the system prompt to name the preferred language")
	}

	req := chatRequest(0)
	req.Language = models.LanguageEnglish
	turn, err = h.orchestrator().Prepare(context.Background(), h.user, req)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if turn.Language != models.LanguageEnglish {
		t.Errorf("Expected request language, got %s", turn.Language)
	}
}

func TestOrchestrator_Prepare_PersistsLastUserMessage(t *testing.T) {
	t.Parallel()

	h := newHarness()
	if _, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(7)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	stored := h.messages.byRole(models.RoleUser)
	if len(stored) != 1 {
		t.Fatalf("Expected exactly the last user message, got %d", len(stored))
	}
	if stored[0].content != "what are channels?" || stored[0].userVideoID != 7 || stored[0].timestamp != 1700000000 {
		t.Errorf("Unexpected stored message %+v", stored[0])
	}
}

func TestOrchestrator_Prepare_PersistFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.messages.failRole = models.RoleUser
	o := h.orchestrator()
	if _, err := o.Prepare(context.Background(), h.user, chatRequest(7)); err != nil {
		t.Fatalf("Prepare should not fail on a storage error: %v", err)
	}
	if h.logs.FilterMessage("failed_to_store_user_message").Len() != 1 {
		t.Error("Expected the storage failure to be logged")
	}
}

func TestOrchestrator_Prepare_NoUserVideoSkipsPersistence(t *testing.T) {
	t.Parallel()

	h := newHarness()
	if _, err := h.orchestrator().Prepare(context.Background(), h.user, chatRequest(0)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(h.messages.stored) != 0 {
		t.Errorf("Expected nothing stored without a user video, got %d", len(h.messages.stored))
	}
}

func TestOrchestrator_Stream(t *testing.T) {
	t.Parallel()

	h := newHarness()
	o := h.orchestrator()
	turn, err := o.Prepare(context.Background(), h.user, chatRequest(7))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var deltas []string
	completion, err := o.Stream(context.Background(), turn, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Errorf("Expected deltas forwarded in order, got %v", deltas)
	}
	if completion.Text() != "Hello" {
		t.Errorf("Unexpected completion %q", completion.Text())
	}

	assistant := h.messages.byRole(models.RoleAssistant)
	if len(assistant) != 1 || assistant[0].content != "Hello" {
		t.Errorf("Expected one assistant message, got %+v", assistant)
	}

	if len(h.recorder.entries) != 1 {
		t.Fatalf("Expected one usage entry, got %d", len(h.recorder.entries))
	}
	e := h.recorder.entries[0]
	if e.Operation != models.OperationChat || e.InputTokens != 100 || e.OutputTokens != 50 {
		t.Errorf("Unexpected usage entry %+v", e)
	}
	if e.UserID != h.user.ID || e.UserVideoID != 7 || e.Provider != "google" {
		t.Errorf("Unexpected usage attribution %+v", e)
	}
}

func TestOrchestrator_Stream_UsageIsPriced(t *testing.T) {
	t.Parallel()

	h := newHarness()
	prices := usage.PriceTable{}
	prices.Set("google", "gemini-2.0-flash-001", usage.Price{
		Input:  mustDecimal(t, "0.10"),
		Output: mustDecimal(t, "0.10"),
	})
	costs := usage.NewCostModel(prices, nil)

	o := h.orchestrator()
	turn, err := o.Prepare(context.Background(), h.user, chatRequest(7))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := o.Stream(context.Background(), turn, func(string) {}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	e := h.recorder.entries[0]
	cost := costs.Cost(e.Provider, e.Model, e.InputTokens, e.OutputTokens)
	if !cost.InputCost.Equal(mustDecimal(t, "0.00001")) ||
		!cost.OutputCost.Equal(mustDecimal(t, "0.000005")) ||
		!cost.TotalCost.Equal(mustDecimal(t, "0.000015")) {
		t.Errorf("Unexpected cost %s + %s = %s", cost.InputCost, cost.OutputCost, cost.TotalCost)
	}
}

func TestOrchestrator_Stream_FinalizationIsolation(t *testing.T) {
	t.Parallel()

	t.Run("message store failure still records usage", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		h.messages.failRole = models.RoleAssistant
		o := h.orchestrator()
		turn, _ := o.Prepare(context.Background(), h.user, chatRequest(7))

		if _, err := o.Stream(context.Background(), turn, func(string) {}); err != nil {
			t.Fatalf("Stream: %v", err)
		}
		if len(h.recorder.entries) != 1 {
			t.Error("Expected usage to be recorded")
		}
		if h.logs.FilterMessage("failed_to_store_assistant_message").Len() != 1 {
			t.Error("Expected the message failure to be logged")
		}
	})

	t.Run("usage failure still stores message", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		h.recorder.err = errors.New("ledger down")
		o := h.orchestrator()
		turn, _ := o.Prepare(context.Background(), h.user, chatRequest(7))

		if _, err := o.Stream(context.Background(), turn, func(string) {}); err != nil {
			t.Fatalf("Stream: %v", err)
		}
		if len(h.messages.byRole(models.RoleAssistant)) != 1 {
			t.Error("Expected assistant message to be stored")
		}
		if h.logs.FilterMessage("failed_to_record_chat_usage").Len() != 1 {
			t.Error("Expected the usage failure to be logged")
		}
	})
}

func TestOrchestrator_Stream_MultipleSteps(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.provider = &mockProvider{streamFunc: func(ctx context.Context, _ []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
		return &ai.Completion{Steps: []ai.Step{{Text: "one"}, {Text: ""}, {Text: "two"}}}, nil
	}}
	o := h.orchestrator()
	turn, _ := o.Prepare(context.Background(), h.user, chatRequest(7))
	if _, err := o.Stream(context.Background(), turn, func(string) {}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	assistant := h.messages.byRole(models.RoleAssistant)
	if len(assistant) != 2 || assistant[0].content != "one" || assistant[1].content != "two" {
		t.Errorf("Expected one message per non-empty step, got %+v", assistant)
	}
}

func TestOrchestrator_Stream_StepFailureKeepsLaterSteps(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.messages.failContent = "one"
	h.provider = &mockProvider{streamFunc: func(ctx context.Context, _ []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
		return &ai.Completion{Steps: []ai.Step{{Text: "one"}, {Text: "two"}, {Text: "three"}}}, nil
	}}
	o := h.orchestrator()
	turn, err := o.Prepare(context.Background(), h.user, chatRequest(7))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := o.Stream(context.Background(), turn, func(string) {}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	assistant := h.messages.byRole(models.RoleAssistant)
	if len(assistant) != 2 || assistant[0].content != "two" || assistant[1].content != "three" {
		t.Errorf("Expected the steps after the failed one to be stored, got %+v", assistant)
	}
	if h.logs.FilterMessage("failed_to_store_assistant_message").Len() != 1 {
		t.Error("Expected the failed step to be logged once")
	}
}

func TestOrchestrator_Stream_ClientGone(t *testing.T) {
	t.Parallel()

	h := newHarness()
	var providerCtxErr error
	h.provider = &mockProvider{streamFunc: func(ctx context.Context, _ []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
		providerCtxErr = ctx.Err()
		onDelta("partial")
		return &ai.Completion{Steps: []ai.Step{{Text: "partial"}}, Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 2}}, nil
	}}
	o := h.orchestrator()
	turn, _ := o.Prepare(context.Background(), h.user, chatRequest(7))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Stream(ctx, turn, func(string) {}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if providerCtxErr != nil {
		t.Errorf("Provider context should outlive the request, got %v", providerCtxErr)
	}
	if len(h.recorder.entries) != 1 || len(h.messages.byRole(models.RoleAssistant)) != 1 {
		t.Error("Expected finalization to run after the client left")
	}
}

func TestOrchestrator_Stream_ProviderError(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.provider = &mockProvider{streamFunc: func(ctx context.Context, _ []ai.ChatMessage, onDelta func(string)) (*ai.Completion, error) {
		onDelta("par")
		return &ai.Completion{Steps: []ai.Step{{Text: "par"}}}, errors.New("stream reset")
	}}
	o := h.orchestrator()
	turn, _ := o.Prepare(context.Background(), h.user, chatRequest(7))

	if _, err := o.Stream(context.Background(), turn, func(string) {}); err == nil {
		t.Fatal("Expected provider error")
	}
	if len(h.recorder.entries) != 0 {
		t.Error("No usage should be recorded for a failed stream")
	}
	if len(h.messages.byRole(models.RoleAssistant)) != 0 {
		t.Error("No assistant message should be stored for a failed stream")
	}
}

func TestOrchestrator_Stream_NoUserVideoRecordsUsageOnly(t *testing.T) {
	t.Parallel()

	h := newHarness()
	o := h.orchestrator()
	turn, _ := o.Prepare(context.Background(), h.user, chatRequest(0))
	if _, err := o.Stream(context.Background(), turn, func(string) {}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(h.messages.stored) != 0 {
		t.Error("Expected no messages without a user video")
	}
	if len(h.recorder.entries) != 1 {
		t.Error("Expected usage to be recorded")
	}
}
