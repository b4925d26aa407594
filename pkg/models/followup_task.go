package models

import "time"

type TaskType string

const (
	PaymentReminderTask  TaskType = "payment_reminder"
	ProposalFollowUpTask TaskType = "proposal_follow_up"
	MeetingFollowUpTask  TaskType = "meeting_follow_up"
	ThankYouTask         TaskType = "thank_you"
	CheckInTask          TaskType = "check_in"
	CustomTask           TaskType = "custom"
)

type TaskPriority string

const (
	UrgentPriority TaskPriority = "urgent"
	HighPriority   TaskPriority = "high"
	MediumPriority TaskPriority = "medium"
	LowPriority    TaskPriority = "low"
)

type FollowUpStatus string

const (
	PendingFollowUpStatus    FollowUpStatus = "pending"
	InProgressFollowUpStatus FollowUpStatus = "in_progress"
	CompletedFollowUpStatus  FollowUpStatus = "completed"
	CancelledFollowUpStatus  FollowUpStatus = "cancelled"
	FailedFollowUpStatus     FollowUpStatus = "failed"
)

// Terminal reports whether no further status transitions are permitted.
func (s FollowUpStatus) Terminal() bool {
	return s == CompletedFollowUpStatus || s == CancelledFollowUpStatus || s == FailedFollowUpStatus
}

// FollowUpTask is a scheduled intent to contact a client at a future time.
// Tasks are created by the trigger-rule layer of the consuming application;
// this engine only reads due tasks and writes status transitions.
type FollowUpTask struct {
	ID           string         `json:"id" db:"id"`                       // Stable document identifier (UUID)
	ContactRef   string         `json:"contact_ref" db:"contact_ref"`     // Reference to the external contact record
	Type         TaskType       `json:"task_type" db:"task_type"`         // Purpose of the follow-up
	Priority     TaskPriority   `json:"priority" db:"priority"`           // Display priority
	ScheduledFor time.Time      `json:"scheduled_for" db:"scheduled_for"` // Task is due when now >= ScheduledFor
	Status       FollowUpStatus `json:"status_follow_up" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Due reports whether the task is ready for processing at the given instant.
func (t FollowUpTask) Due(now time.Time) bool {
	return !t.ScheduledFor.After(now)
}
