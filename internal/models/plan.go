package models

// Plan is a subscription tier
type Plan string

const (
	PlanFree    Plan = "free"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// IsValid reports whether p is a known tier
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanMonthly || p == PlanYearly
}

// Unlimited reports whether the tier has no daily video cap
func (p Plan) Unlimited() bool {
	return p == PlanMonthly || p == PlanYearly
}

// Rank orders tiers for upgrade checks. Unknown tiers rank below free.
func (p Plan) Rank() int {
	switch p {
	case PlanFree:
		return 1
	case PlanMonthly:
		return 2
	case PlanYearly:
		return 3
	default:
		return 0
	}
}

// QuotaReason is a machine readable quota denial code
type QuotaReason string

const (
	ReasonDailyLimitReached QuotaReason = "daily_limit_reached"
)

// QuotaDecision is the result of a daily quota check
type QuotaDecision struct {
	CanAdd          bool        `json:"canAdd"`
	Reason          QuotaReason `json:"reason,omitempty"`
	VideosUsedToday int         `json:"videosUsedToday"`
	DailyLimit      int         `json:"dailyLimit"`
	CurrentPlan     Plan        `json:"currentPlan"`
}

// UsageStats is the per-user quota projection shown in the UI
type UsageStats struct {
	CurrentPlan     Plan `json:"currentPlan"`
	Unlimited       bool `json:"unlimited"`
	VideosUsedToday int  `json:"videosUsedToday"`
	DailyLimit      int  `json:"dailyLimit"`
}

// PurchaseReason explains why a plan purchase is not allowed
type PurchaseReason string

const (
	ReasonInvalidPlan         PurchaseReason = "invalid_plan"
	ReasonAlreadySubscribed   PurchaseReason = "already_subscribed"
	ReasonDowngradeNotAllowed PurchaseReason = "downgrade_not_allowed"
)

// PurchaseEligibility is the result of a plan purchase check
type PurchaseEligibility struct {
	Eligible      bool           `json:"eligible"`
	Reason        PurchaseReason `json:"reason,omitempty"`
	CurrentPlan   Plan           `json:"currentPlan"`
	RequestedPlan Plan           `json:"requestedPlan"`
}
