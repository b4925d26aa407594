package storage

import (
	"time"

	"github.com/bizflow/autopilot/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidState is returned when a guarded status update finds the record
// in a different state than expected. First committer wins; the loser of a
// concurrent transition race observes this error.
var ErrInvalidState = errors.New("invalid state transition")

// Store defines the persistence operations for the automation engine.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Follow-up task operations
	SaveFollowUpTask(t models.FollowUpTask) (string, error)
	GetFollowUpTask(id string) (models.FollowUpTask, error)
	ListFollowUpTasks(status models.FollowUpStatus) ([]models.FollowUpTask, error)
	ListDueFollowUpTasks(now time.Time) ([]models.FollowUpTask, error)
	// UpdateFollowUpStatus transitions a task from one status to another.
	// Returns ErrInvalidState when the task is not currently in `from`.
	UpdateFollowUpStatus(id string, from, to models.FollowUpStatus) error

	// Automation action operations
	SaveAction(a models.AutomationAction) (string, error)
	GetAction(id string) (models.AutomationAction, error)
	ListActions(status models.ActionStatus) ([]models.AutomationAction, error)
	// ActiveActionExists reports whether a non-terminal action already
	// references the given task.
	ActiveActionExists(taskID string) (bool, error)
	// UpdateActionStatus moves a pending action to a terminal status.
	// Returns ErrInvalidState when the action is no longer pending.
	UpdateActionStatus(id string, to models.ActionStatus, rejectionReason string) error

	// Settings operations
	GetSettings() (models.AutomationSettings, error)
	// UpdateSettings flips the global switch if the stored version still
	// matches expectedVersion, returning the updated record.
	UpdateSettings(enabled bool, expectedVersion int64) (models.AutomationSettings, error)

	// Decision log operations
	SaveDecisionLog(l models.DecisionLog) error
	ListDecisionLogs(refID string) ([]models.DecisionLog, error)
}
