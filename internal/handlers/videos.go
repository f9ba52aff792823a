package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benvon/tubecompanion/internal/database"
	logpkg "github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/middleware"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/videos"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// VideoService is the video workflow used by VideoHandler
type VideoService interface {
	Submit(ctx context.Context, user *models.User, rawURL string) (*models.SubmitVideoResponse, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.UserVideo, error)
	Get(ctx context.Context, userID uuid.UUID, id int64) (*videos.Detail, error)
	Owned(ctx context.Context, userID uuid.UUID, id int64) (*models.UserVideo, error)
	Delete(ctx context.Context, userID uuid.UUID, id int64) error
	Regenerate(ctx context.Context, user *models.User, id int64) (*models.UserVideo, error)
}

var _ VideoService = (*videos.Service)(nil)

// VideoHandler handles video submission and per-video conversations
type VideoHandler struct {
	videos   VideoService
	messages database.MessageRepositoryInterface
	logger   *zap.Logger
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(svc VideoService, messages database.MessageRepositoryInterface, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{videos: svc, messages: messages, logger: logger}
}

// RegisterRoutes registers video routes on the given router
// The router should already have the /videos prefix
func (h *VideoHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.SubmitVideo).Methods(http.MethodPost)
	r.HandleFunc("", h.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/{id:[0-9]+}", h.GetVideo).Methods(http.MethodGet)
	r.HandleFunc("/{id:[0-9]+}", h.DeleteVideo).Methods(http.MethodDelete)
	r.HandleFunc("/{id:[0-9]+}/regenerate", h.RegenerateVideo).Methods(http.MethodPost)
	r.HandleFunc("/{id:[0-9]+}/messages", h.ListMessages).Methods(http.MethodGet)
	r.HandleFunc("/{id:[0-9]+}/messages", h.ClearMessages).Methods(http.MethodDelete)
}

// SubmitVideo registers a YouTube URL for the caller. Responses use the
// {success, videoId, userVideoId} / {errors: []} shapes.
func (h *VideoHandler) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondRaw(w, http.StatusUnauthorized, models.ErrorsResponse{Errors: []string{"Unauthorized"}})
		return
	}

	var req models.SubmitVideoRequest
	if problems := decodeAndValidate(r, &req); problems != nil {
		respondRaw(w, http.StatusBadRequest, models.ErrorsResponse{Errors: problems})
		return
	}

	resp, err := h.videos.Submit(r.Context(), user, req.VideoURL)
	if err != nil {
		if errors.Is(err, youtube.ErrInvalidURL) {
			respondRaw(w, http.StatusBadRequest, models.ErrorsResponse{Errors: []string{"Invalid YouTube URL"}})
			return
		}
		if qe, ok := plan.AsQuotaExceeded(err); ok {
			d := qe.Decision
			respondRaw(w, http.StatusTooManyRequests, models.ErrorsResponse{Errors: []string{
				fmt.Sprintf("Daily video limit reached (%d/%d on the %s plan)", d.VideosUsedToday, d.DailyLimit, d.CurrentPlan),
			}})
			return
		}
		h.logger.Error("failed_to_submit_video",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
			zap.String("video_url", logpkg.SanitizeURL(req.VideoURL)),
			zap.Error(err))
		respondRaw(w, http.StatusInternalServerError, models.ErrorsResponse{Errors: []string{"Failed to process video"}})
		return
	}

	respondRaw(w, http.StatusOK, resp)
}

// ListVideos lists the caller's videos, newest first
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := h.videos.List(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_list_videos", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list videos")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetVideo returns a video with summary, opening questions and transcript
func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	detail, err := h.videos.Get(r.Context(), user.ID, id)
	if err != nil {
		h.respondLookupError(w, "failed_to_get_video", err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// DeleteVideo removes the video and its conversation
func (h *VideoHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	if err := h.videos.Delete(r.Context(), user.ID, id); err != nil {
		h.respondLookupError(w, "failed_to_delete_video", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegenerateVideo refreshes metadata and transcript and queues new AI output
func (h *VideoHandler) RegenerateVideo(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	uv, err := h.videos.Regenerate(r.Context(), user, id)
	if err != nil {
		h.respondLookupError(w, "failed_to_regenerate_video", err)
		return
	}
	respondJSON(w, http.StatusAccepted, uv)
}

// ListMessages returns the stored conversation in logical order
func (h *VideoHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.videos.Owned(ctx, user.ID, id); err != nil {
		h.respondLookupError(w, "failed_to_get_video", err)
		return
	}
	msgs, err := h.messages.ListByUserVideo(ctx, id)
	if err != nil {
		h.logger.Error("failed_to_list_messages", zap.Int64("user_video_id", id), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

// ClearMessages deletes the conversation for one video
func (h *VideoHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.videos.Owned(ctx, user.ID, id); err != nil {
		h.respondLookupError(w, "failed_to_get_video", err)
		return
	}
	deleted, err := h.messages.Clear(ctx, id)
	if err != nil {
		h.logger.Error("failed_to_clear_messages", zap.Int64("user_video_id", id), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to clear messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *VideoHandler) userAndID(w http.ResponseWriter, r *http.Request) (*models.User, int64, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return nil, 0, false
	}
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return nil, 0, false
	}
	return user, id, true
}

func (h *VideoHandler) respondLookupError(w http.ResponseWriter, event string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Video not found")
		return
	}
	h.logger.Error(event, zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process request")
}

// requireUser writes a 401 when the request carries no user
func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, false
	}
	return user, true
}
