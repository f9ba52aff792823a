package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/tubecompanion/internal/database"
	logpkg "github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/middleware"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/chat"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ChatOrchestrator prepares and streams one chat turn
type ChatOrchestrator interface {
	Prepare(ctx context.Context, user *models.User, req *models.ChatRequest) (*chat.Turn, error)
	Stream(ctx context.Context, turn *chat.Turn, onDelta func(delta string)) (*ai.Completion, error)
}

var _ ChatOrchestrator = (*chat.Orchestrator)(nil)

// QuotaExceededResponse is the 429 body shared by chat and video submission
type QuotaExceededResponse struct {
	Error           string             `json:"error"`
	Reason          models.QuotaReason `json:"reason"`
	VideosUsedToday int                `json:"videosUsedToday"`
	DailyLimit      int                `json:"dailyLimit"`
	CurrentPlan     models.Plan        `json:"currentPlan"`
}

// ChatHandler streams grounded chat replies over SSE
type ChatHandler struct {
	chat   ChatOrchestrator
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(orchestrator ChatOrchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: orchestrator, logger: logger}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)
}

// Chat answers with a text/event-stream of content deltas. Each frame's data is a
// JSON string; the stream ends with "data: [DONE]" or a terminal "event: error".
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req models.ChatRequest
	if problems := decodeAndValidate(r, &req); problems != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", strings.Join(problems, "; "))
		return
	}

	ctx := r.Context()
	turn, err := h.chat.Prepare(ctx, user, &req)
	if err != nil {
		h.respondPrepareError(w, user, err)
		return
	}

	sse := newSSEWriter(ctx, w)
	sse.start()

	disconnected := false
	_, err = h.chat.Stream(ctx, turn, func(delta string) {
		if sse.gone() {
			if !disconnected {
				disconnected = true
				h.logger.Info("chat_client_disconnected",
					zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
					zap.String("video_id", logpkg.SanitizeVideoID(turn.VideoID)))
			}
			return
		}
		sse.data(delta)
	})
	if err != nil {
		sse.event("error", map[string]string{"error": "The assistant could not complete the response"})
		return
	}
	sse.done()
}

func (h *ChatHandler) respondPrepareError(w http.ResponseWriter, user *models.User, err error) {
	if qe, ok := plan.AsQuotaExceeded(err); ok {
		respondQuotaExceeded(w, qe)
		return
	}
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Video not found")
		return
	}
	if errors.Is(err, chat.ErrVideoMismatch) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "videoId does not match userVideoId")
		return
	}
	if errors.Is(err, youtube.ErrInvalidVideoID) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "videoId is not a valid video ID")
		return
	}
	h.logger.Error("failed_to_prepare_chat",
		zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
		zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to prepare chat")
}

func respondQuotaExceeded(w http.ResponseWriter, qe *plan.QuotaExceededError) {
	d := qe.Decision
	respondRaw(w, http.StatusTooManyRequests, QuotaExceededResponse{
		Error:           "Daily video limit reached",
		Reason:          d.Reason,
		VideosUsedToday: d.VideosUsedToday,
		DailyLimit:      d.DailyLimit,
		CurrentPlan:     d.CurrentPlan,
	})
}
