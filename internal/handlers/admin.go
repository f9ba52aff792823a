package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultTopUsers    = 10
	maxTopUsers        = 100
	defaultFeedbackLen = 50
	maxFeedbackLen     = 500
)

// UsageReporter aggregates the token usage ledger
type UsageReporter interface {
	AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyUsage, error)
	AggregateByModel(ctx context.Context, from, to time.Time) ([]models.ModelUsage, error)
	AggregateByOperation(ctx context.Context, from, to time.Time) ([]models.OperationUsage, error)
	TopUsers(ctx context.Context, limit int, from, to time.Time) ([]models.UserUsage, error)
}

var _ UsageReporter = (*usage.Ledger)(nil)

// UsageSummary is the admin overview of a period
type UsageSummary struct {
	From       time.Time               `json:"from"`
	To         time.Time               `json:"to"`
	Totals     models.UsageTotals      `json:"totals"`
	Operations []models.OperationUsage `json:"operations"`
	Models     []models.ModelUsage     `json:"models"`
}

// AdminHandler serves usage analytics and feedback to administrators
type AdminHandler struct {
	usage    UsageReporter
	feedback database.FeedbackRepositoryInterface
	now      func() time.Time
	logger   *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reporter UsageReporter, feedback database.FeedbackRepositoryInterface, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{usage: reporter, feedback: feedback, now: time.Now, logger: logger}
}

// RegisterRoutes registers admin routes
// The router should already have the /admin prefix and the admin guard
func (h *AdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/usage/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/usage/daily", h.Daily).Methods(http.MethodGet)
	r.HandleFunc("/usage/models", h.Models).Methods(http.MethodGet)
	r.HandleFunc("/usage/operations", h.Operations).Methods(http.MethodGet)
	r.HandleFunc("/usage/top-users", h.TopUsers).Methods(http.MethodGet)
	r.HandleFunc("/feedback", h.ListFeedback).Methods(http.MethodGet)
}

// Summary returns period totals with per-operation and per-model breakdowns
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	ops, err := h.usage.AggregateByOperation(ctx, from, to)
	if err != nil {
		h.fail(w, "failed_to_aggregate_usage", err)
		return
	}
	byModel, err := h.usage.AggregateByModel(ctx, from, to)
	if err != nil {
		h.fail(w, "failed_to_aggregate_usage", err)
		return
	}

	summary := UsageSummary{From: from, To: to, Operations: nonNil(ops), Models: nonNil(byModel)}
	for _, op := range ops {
		summary.Totals.Add(op.UsageTotals)
	}
	respondJSON(w, http.StatusOK, summary)
}

// Daily returns per-day totals
func (h *AdminHandler) Daily(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.usage.AggregateByDateRange(r.Context(), from, to)
	if err != nil {
		h.fail(w, "failed_to_aggregate_usage", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

// Models returns totals per provider and model
func (h *AdminHandler) Models(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.usage.AggregateByModel(r.Context(), from, to)
	if err != nil {
		h.fail(w, "failed_to_aggregate_usage", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

// Operations returns totals per operation
func (h *AdminHandler) Operations(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.usage.AggregateByOperation(r.Context(), from, to)
	if err != nil {
		h.fail(w, "failed_to_aggregate_usage", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

// TopUsers returns the most expensive users, ?limit= up to 100
func (h *AdminHandler) TopUsers(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultTopUsers, maxTopUsers)
	rows, err := h.usage.TopUsers(r.Context(), limit, from, to)
	if err != nil {
		h.fail(w, "failed_to_aggregate_usage", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

// ListFeedback pages through feedback, newest first
func (h *AdminHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultFeedbackLen, maxFeedbackLen)
	offset := queryInt(r, "offset", 0, 1<<30)
	rows, err := h.feedback.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, "failed_to_list_feedback", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

func (h *AdminHandler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, to, err := parseRange(r, h.now())
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *AdminHandler) fail(w http.ResponseWriter, event string, err error) {
	h.logger.Error(event, zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load report")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
