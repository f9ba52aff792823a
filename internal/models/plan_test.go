package models

import "testing"

func TestPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		plan      Plan
		valid     bool
		unlimited bool
		rank      int
	}{
		{plan: PlanFree, valid: true, unlimited: false, rank: 1},
		{plan: PlanMonthly, valid: true, unlimited: true, rank: 2},
		{plan: PlanYearly, valid: true, unlimited: true, rank: 3},
		{plan: Plan("lifetime"), valid: false, unlimited: false, rank: 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			t.Parallel()
			if got := tt.plan.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.plan.Unlimited(); got != tt.unlimited {
				t.Errorf("Unlimited() = %v, want %v", got, tt.unlimited)
			}
			if got := tt.plan.Rank(); got != tt.rank {
				t.Errorf("Rank() = %d, want %d", got, tt.rank)
			}
		})
	}
}

func TestLanguageDisplayName(t *testing.T) {
	t.Parallel()

	if LanguageIndonesian.DisplayName() != "Indonesian (Bahasa Indonesia)" {
		t.Errorf("unexpected name %q", LanguageIndonesian.DisplayName())
	}
	if Language("").DisplayName() != "English" {
		t.Error("expected English fallback")
	}
	if Language("fr").IsValid() {
		t.Error("expected fr to be unsupported")
	}
}
