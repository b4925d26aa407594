package models

import "time"

type DecisionKind string

const (
	ProfitabilityDecision DecisionKind = "profitability"
	AlertDecision         DecisionKind = "alerts"
	GenerationDecision    DecisionKind = "generation"
)

type DecisionSource string

const (
	AISource       DecisionSource = "ai"
	FallbackSource DecisionSource = "fallback"
)

// DecisionLog tracks analyzer and generator outcomes for auditing.
type DecisionLog struct {
	ID       string         `json:"id" db:"id"`
	Kind     DecisionKind   `json:"kind" db:"kind"`
	RefID    string         `json:"ref_id" db:"ref_id"` // Project name or task ID the decision concerns
	Source   DecisionSource `json:"source" db:"source"` // Whether the AI path or the deterministic fallback produced the result
	Message  string         `json:"message,omitempty" db:"message"`
	LoggedAt time.Time      `json:"logged_at" db:"logged_at"`
}
