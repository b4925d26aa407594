package models

import "time"

type ActionStatus string

const (
	PendingActionStatus  ActionStatus = "pending"
	ApprovedActionStatus ActionStatus = "approved"
	RejectedActionStatus ActionStatus = "rejected"
)

// Terminal reports whether the action has reached a final review decision.
func (s ActionStatus) Terminal() bool {
	return s == ApprovedActionStatus || s == RejectedActionStatus
}

// ReviewThreshold is the confidence below which an action is flagged for
// extra reviewer attention. Display concern only; every action requires
// review regardless of score.
const ReviewThreshold = 0.7

// ProposedContent is the drafted communication awaiting review.
type ProposedContent struct {
	Subject string `json:"subject" db:"subject"`
	Body    string `json:"body" db:"body"`
}

// AutomationAction is a drafted communication generated against a due
// follow-up task. Created by the generator with status "pending"; mutated
// only by the approval gate, and only once.
type AutomationAction struct {
	ID              string          `json:"id" db:"id"`
	TaskID          string          `json:"follow_up_task_ref" db:"task_id"` // The task this action answers
	ClientRef       string          `json:"client_ref" db:"client_ref"`      // Denormalized for display
	Proposed        ProposedContent `json:"proposed_content"`
	Confidence      float64         `json:"confidence_score" db:"confidence_score"` // Constrained to [0.0, 1.0]
	Status          ActionStatus    `json:"status" db:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// RequiresReview reports whether the confidence score is below the flagging
// threshold.
func (a AutomationAction) RequiresReview() bool {
	return a.Confidence < ReviewThreshold
}
