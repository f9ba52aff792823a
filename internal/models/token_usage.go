package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation is the kind of AI call being accounted
type Operation string

const (
	OperationChat                Operation = "chat"
	OperationSummary             Operation = "summary"
	OperationQuickStartQuestions Operation = "quick_start_questions"
)

// IsValid reports whether the operation is known
func (o Operation) IsValid() bool {
	return o == OperationChat || o == OperationSummary || o == OperationQuickStartQuestions
}

// TokenUsage is one immutable ledger row for a completed AI call
type TokenUsage struct {
	ID           int64           `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	Model        string          `json:"model"`
	Provider     string          `json:"provider"`
	Operation    Operation       `json:"operation"`
	InputTokens  int             `json:"inputTokens"`
	OutputTokens int             `json:"outputTokens"`
	TotalTokens  int             `json:"totalTokens"`
	InputCost    decimal.Decimal `json:"inputCost"`
	OutputCost   decimal.Decimal `json:"outputCost"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	VideoID      *string         `json:"videoId,omitempty"`
	UserVideoID  *int64          `json:"userVideoId,omitempty"`
	DurationMS   *int64          `json:"durationMs,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// UsageTotals are summed token and cost figures
type UsageTotals struct {
	Requests     int64           `json:"requests"`
	InputTokens  int64           `json:"inputTokens"`
	OutputTokens int64           `json:"outputTokens"`
	TotalTokens  int64           `json:"totalTokens"`
	InputCost    decimal.Decimal `json:"inputCost"`
	OutputCost   decimal.Decimal `json:"outputCost"`
	TotalCost    decimal.Decimal `json:"totalCost"`
}

// Add accumulates o into t
func (t *UsageTotals) Add(o UsageTotals) {
	t.Requests += o.Requests
	t.InputTokens += o.InputTokens
	t.OutputTokens += o.OutputTokens
	t.TotalTokens += o.TotalTokens
	t.InputCost = t.InputCost.Add(o.InputCost)
	t.OutputCost = t.OutputCost.Add(o.OutputCost)
	t.TotalCost = t.TotalCost.Add(o.TotalCost)
}

// DailyUsage is usage grouped by calendar day
type DailyUsage struct {
	Date string `json:"date"`
	UsageTotals
}

// ModelUsage is usage grouped by provider and model
type ModelUsage struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	UsageTotals
}

// OperationUsage is usage grouped by operation kind
type OperationUsage struct {
	Operation Operation `json:"operation"`
	UsageTotals
}

// UserUsage is usage grouped by user
type UserUsage struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	UsageTotals
}
