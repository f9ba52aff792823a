package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestPlanHandler_GetUsage(t *testing.T) {
	t.Parallel()

	h := NewPlanHandler(&mockPolicy{
		GetUserUsageStatsFunc: func(ctx context.Context, userID uuid.UUID) (*models.UsageStats, error) {
			return &models.UsageStats{CurrentPlan: models.PlanFree, VideosUsedToday: 1, DailyLimit: 1}, nil
		},
	}, zap.NewNop())

	rr := serve("", h.RegisterRoutes, newTestRequest(http.MethodGet, "/usage", nil, testUser()))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"currentPlan", "unlimited", "videosUsedToday", "dailyLimit"} {
		if _, ok := body[key]; !ok {
			t.Errorf("usage body missing %q: %v", key, body)
		}
	}
	if _, wrapped := body["success"]; wrapped {
		t.Error("usage body must not use the envelope")
	}
}

func TestPlanHandler_GetEligibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		policyErr  error
		wantStatus int
	}{
		{name: "missing plan", query: "", wantStatus: http.StatusBadRequest},
		{name: "unknown plan", query: "?plan=lifetime", wantStatus: http.StatusBadRequest},
		{name: "policy failure", query: "?plan=yearly", policyErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
		{name: "ok", query: "?plan=yearly", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewPlanHandler(&mockPolicy{
				CanPurchasePlanFunc: func(ctx context.Context, userID uuid.UUID, requested models.Plan) (*models.PurchaseEligibility, error) {
					if tt.policyErr != nil {
						return nil, tt.policyErr
					}
					return &models.PurchaseEligibility{Eligible: true, CurrentPlan: models.PlanFree, RequestedPlan: requested}, nil
				},
			}, zap.NewNop())

			rr := serve("", h.RegisterRoutes, newTestRequest(http.MethodGet, "/plans/eligibility"+tt.query, nil, testUser()))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var e models.PurchaseEligibility
				decodeEnvelope(t, rr, &e)
				if !e.Eligible || e.RequestedPlan != models.PlanYearly {
					t.Errorf("unexpected eligibility %+v", e)
				}
			}
		})
	}
}

func TestFeedbackHandler_CreateFeedback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{name: "valid", body: map[string]any{"rating": 5, "message": "  great\x00 app  "}, wantStatus: http.StatusCreated},
		{name: "rating too high", body: map[string]any{"rating": 9}, wantStatus: http.StatusBadRequest},
		{name: "rating missing", body: map[string]any{"message": "meh"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stored *models.Feedback
			h := NewFeedbackHandler(&mockFeedback{
				CreateFunc: func(ctx context.Context, fb *models.Feedback) error {
					stored = fb
					fb.ID = 1
					return nil
				},
			}, zap.NewNop())

			user := testUser()
			rr := serve("", h.RegisterRoutes, newTestRequest(http.MethodPost, "/feedback", tt.body, user))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusCreated {
				if stored != nil {
					t.Error("invalid feedback must not be stored")
				}
				return
			}
			if stored.UserID != user.ID || stored.Message != "great app" {
				t.Errorf("unexpected stored feedback %+v", stored)
			}
		})
	}
}
