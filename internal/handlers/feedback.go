package handlers

import (
	"net/http"
	"strings"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// FeedbackHandler collects user ratings
type FeedbackHandler struct {
	repo   database.FeedbackRepositoryInterface
	logger *zap.Logger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(repo database.FeedbackRepositoryInterface, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{repo: repo, logger: logger}
}

// RegisterRoutes registers feedback routes
func (h *FeedbackHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/feedback", h.CreateFeedback).Methods(http.MethodPost)
}

// CreateFeedback stores a rating with an optional message
func (h *FeedbackHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.CreateFeedbackRequest
	if problems := decodeAndValidate(r, &req); problems != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", strings.Join(problems, "; "))
		return
	}

	fb := &models.Feedback{
		UserID:  user.ID,
		Rating:  req.Rating,
		Message: validation.SanitizeText(req.Message),
	}
	if err := h.repo.Create(r.Context(), fb); err != nil {
		h.logger.Error("failed_to_store_feedback", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to store feedback")
		return
	}
	respondJSON(w, http.StatusCreated, fb)
}
