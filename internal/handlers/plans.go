package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PlanPolicy answers quota and purchase questions for a user
type PlanPolicy interface {
	GetUserUsageStats(ctx context.Context, userID uuid.UUID) (*models.UsageStats, error)
	CanPurchasePlan(ctx context.Context, userID uuid.UUID, requested models.Plan) (*models.PurchaseEligibility, error)
}

var _ PlanPolicy = (*plan.Policy)(nil)

// PlanHandler serves the caller's quota usage and plan eligibility
type PlanHandler struct {
	policy PlanPolicy
	logger *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(policy PlanPolicy, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{policy: policy, logger: logger}
}

// RegisterRoutes registers usage and plan routes
func (h *PlanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/usage", h.GetUsage).Methods(http.MethodGet)
	r.HandleFunc("/plans/eligibility", h.GetEligibility).Methods(http.MethodGet)
}

// GetUsage returns {currentPlan, unlimited, videosUsedToday, dailyLimit}
func (h *PlanHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.policy.GetUserUsageStats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_get_usage_stats", zap.Error(err))
		respondRaw(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load usage"})
		return
	}
	respondRaw(w, http.StatusOK, stats)
}

// GetEligibility reports whether the caller may buy ?plan=
func (h *PlanHandler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	requested := r.URL.Query().Get("plan")
	if err := validation.ValidatePlan(requested); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	eligibility, err := h.policy.CanPurchasePlan(r.Context(), user.ID, models.Plan(requested))
	if err != nil {
		h.logger.Error("failed_to_check_plan_eligibility", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to check eligibility")
		return
	}
	respondJSON(w, http.StatusOK, eligibility)
}
