package models

import "github.com/pkg/errors"

type BillingType string

const (
	FixedBilling  BillingType = "fixed"
	HourlyBilling BillingType = "hourly"
	MixedBilling  BillingType = "mixed"
)

// TaskBreakdown is one estimated-vs-actual row of a project snapshot.
type TaskBreakdown struct {
	Name           string  `json:"name"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
}

// Overrun reports whether actual hours exceed the estimate by more than 20%.
func (t TaskBreakdown) Overrun() bool {
	return t.ActualHours > t.EstimatedHours*1.2
}

// ProjectAnalysisInput is a transient project snapshot fed to the
// profitability analyzer and the alert detector. Not persisted.
type ProjectAnalysisInput struct {
	Name            string          `json:"name"`
	EstimatedHours  float64         `json:"estimated_hours"`
	ActualHours     float64         `json:"actual_hours"`
	HourlyRate      float64         `json:"hourly_rate"`
	EstimatedBudget float64         `json:"estimated_budget"`
	InvoicedAmount  float64         `json:"invoiced_amount"`
	BillingType     BillingType     `json:"billing_type"`
	Tasks           []TaskBreakdown `json:"tasks"`
	Completed       bool            `json:"completed"`
}

type RiskLevel string

const (
	LowRisk    RiskLevel = "low"
	MediumRisk RiskLevel = "medium"
	HighRisk   RiskLevel = "high"
)

type Profitability string

const (
	PositiveProfitability Profitability = "positive"
	NeutralProfitability  Profitability = "neutral"
	NegativeProfitability Profitability = "negative"
)

// ProfitabilityResult is the verdict for a project, produced either by the
// AI path or by the deterministic fallback. Both paths satisfy Validate, so
// downstream consumers never branch on the source.
type ProfitabilityResult struct {
	Profitability       Profitability `json:"profitability"`
	ProfitOrLoss        float64       `json:"profit_or_loss"`
	EffectiveHourlyRate float64       `json:"effective_hourly_rate"`
	MainCauses          []string      `json:"main_causes"`
	Recommendations     []string      `json:"recommendations"`
	RiskLevel           RiskLevel     `json:"risk_level"`
	Summary             string        `json:"summary"`
}

// Validate checks the result against the schema both producer paths must
// satisfy. Any mismatch is treated as a transient failure by callers.
func (r ProfitabilityResult) Validate() error {
	switch r.Profitability {
	case PositiveProfitability, NeutralProfitability, NegativeProfitability:
	default:
		return errors.Errorf("invalid profitability %q", r.Profitability)
	}
	switch r.RiskLevel {
	case LowRisk, MediumRisk, HighRisk:
	default:
		return errors.Errorf("invalid risk_level %q", r.RiskLevel)
	}
	if len(r.MainCauses) == 0 {
		return errors.New("main_causes must not be empty")
	}
	if len(r.Recommendations) == 0 {
		return errors.New("recommendations must not be empty")
	}
	if r.Summary == "" {
		return errors.New("summary must not be empty")
	}
	return nil
}

// AlertResult is the in-flight budget/time overrun verdict for a project.
type AlertResult struct {
	Risk           RiskLevel `json:"risk"`
	Reason         string    `json:"reason"`
	Recommendation string    `json:"recommendation"`
	TasksAtRisk    []string  `json:"tasks_at_risk"`
	EstimatedLoss  *float64  `json:"estimated_loss,omitempty"`
}

// Validate checks the result against the shared alert schema.
func (r AlertResult) Validate() error {
	switch r.Risk {
	case LowRisk, MediumRisk, HighRisk:
	default:
		return errors.Errorf("invalid risk %q", r.Risk)
	}
	if r.Reason == "" {
		return errors.New("reason must not be empty")
	}
	if r.Recommendation == "" {
		return errors.New("recommendation must not be empty")
	}
	if r.TasksAtRisk == nil {
		return errors.New("tasks_at_risk must be present")
	}
	return nil
}
