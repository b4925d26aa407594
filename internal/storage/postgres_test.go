package storage_test

import (
	"testing"
	"time"

	internal_storage "github.com/bizflow/autopilot/internal/storage"
	"github.com/bizflow/autopilot/internal/testutil"
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	// Helper to create a transactional store
	newTxStore := func(t *testing.T) *internal_storage.PostgresStore {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		txStore, err := store.Begin()
		assert.NoError(t, err)
		t.Cleanup(func() { txStore.Rollback() })
		return txStore.(*internal_storage.PostgresStore)
	}

	newTask := func(scheduledFor time.Time) models.FollowUpTask {
		return models.FollowUpTask{
			ContactRef:   "client-42",
			Type:         models.PaymentReminderTask,
			Priority:     models.HighPriority,
			ScheduledFor: scheduledFor,
			Status:       models.PendingFollowUpStatus,
		}
	}

	t.Run("SaveFollowUpTask", func(t *testing.T) {
		store := newTxStore(t)
		id, err := store.SaveFollowUpTask(newTask(time.Now()))
		assert.NoError(t, err)
		assert.NotEmpty(t, id)

		saved, err := store.GetFollowUpTask(id)
		assert.NoError(t, err)
		assert.Equal(t, "client-42", saved.ContactRef)
		assert.Equal(t, models.PaymentReminderTask, saved.Type)
		assert.Equal(t, models.PendingFollowUpStatus, saved.Status)
	})

	t.Run("GetNonExistingTask", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetFollowUpTask("b6f3f5e0-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListDueFollowUpTasks skips future and terminal tasks", func(t *testing.T) {
		store := newTxStore(t)
		dueID, err := store.SaveFollowUpTask(newTask(time.Now().Add(-time.Hour)))
		assert.NoError(t, err)
		_, err = store.SaveFollowUpTask(newTask(time.Now().Add(time.Hour)))
		assert.NoError(t, err)
		doneID, err := store.SaveFollowUpTask(newTask(time.Now().Add(-time.Hour)))
		assert.NoError(t, err)
		err = store.UpdateFollowUpStatus(doneID, models.PendingFollowUpStatus, models.InProgressFollowUpStatus)
		assert.NoError(t, err)
		err = store.UpdateFollowUpStatus(doneID, models.InProgressFollowUpStatus, models.CompletedFollowUpStatus)
		assert.NoError(t, err)

		due, err := store.ListDueFollowUpTasks(time.Now())
		assert.NoError(t, err)
		assert.Len(t, due, 1)
		assert.Equal(t, dueID, due[0].ID)
	})

	t.Run("UpdateFollowUpStatus rejects a stale transition", func(t *testing.T) {
		store := newTxStore(t)
		id, err := store.SaveFollowUpTask(newTask(time.Now()))
		assert.NoError(t, err)

		err = store.UpdateFollowUpStatus(id, models.PendingFollowUpStatus, models.InProgressFollowUpStatus)
		assert.NoError(t, err)

		// Second claim from the same starting status loses the race.
		err = store.UpdateFollowUpStatus(id, models.PendingFollowUpStatus, models.InProgressFollowUpStatus)
		assert.ErrorIs(t, err, storage.ErrInvalidState)
	})

	t.Run("UpdateFollowUpStatus on missing task", func(t *testing.T) {
		store := newTxStore(t)
		err := store.UpdateFollowUpStatus("b6f3f5e0-0000-0000-0000-000000000000",
			models.PendingFollowUpStatus, models.InProgressFollowUpStatus)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SaveAction and GetAction round-trip proposed content", func(t *testing.T) {
		store := newTxStore(t)
		taskID, err := store.SaveFollowUpTask(newTask(time.Now()))
		assert.NoError(t, err)

		actionID, err := store.SaveAction(models.AutomationAction{
			TaskID:    taskID,
			ClientRef: "client-42",
			Proposed: models.ProposedContent{
				Subject: "Friendly reminder about invoice #12",
				Body:    "Hello, just checking in on the outstanding invoice.",
			},
			Confidence: 0.85,
			Status:     models.PendingActionStatus,
		})
		assert.NoError(t, err)

		saved, err := store.GetAction(actionID)
		assert.NoError(t, err)
		assert.Equal(t, taskID, saved.TaskID)
		assert.Equal(t, "Friendly reminder about invoice #12", saved.Proposed.Subject)
		assert.Equal(t, 0.85, saved.Confidence)
		assert.Equal(t, models.PendingActionStatus, saved.Status)
	})

	t.Run("ActiveActionExists", func(t *testing.T) {
		store := newTxStore(t)
		taskID, err := store.SaveFollowUpTask(newTask(time.Now()))
		assert.NoError(t, err)

		exists, err := store.ActiveActionExists(taskID)
		assert.NoError(t, err)
		assert.False(t, exists)

		actionID, err := store.SaveAction(models.AutomationAction{
			TaskID:     taskID,
			ClientRef:  "client-42",
			Proposed:   models.ProposedContent{Subject: "s", Body: "b"},
			Confidence: 0.9,
			Status:     models.PendingActionStatus,
		})
		assert.NoError(t, err)

		exists, err = store.ActiveActionExists(taskID)
		assert.NoError(t, err)
		assert.True(t, exists)

		err = store.UpdateActionStatus(actionID, models.ApprovedActionStatus, "")
		assert.NoError(t, err)

		exists, err = store.ActiveActionExists(taskID)
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("UpdateActionStatus is terminal", func(t *testing.T) {
		store := newTxStore(t)
		taskID, err := store.SaveFollowUpTask(newTask(time.Now()))
		assert.NoError(t, err)
		actionID, err := store.SaveAction(models.AutomationAction{
			TaskID:     taskID,
			ClientRef:  "client-42",
			Proposed:   models.ProposedContent{Subject: "s", Body: "b"},
			Confidence: 0.9,
			Status:     models.PendingActionStatus,
		})
		assert.NoError(t, err)

		err = store.UpdateActionStatus(actionID, models.RejectedActionStatus, "Not appropriate")
		assert.NoError(t, err)

		err = store.UpdateActionStatus(actionID, models.ApprovedActionStatus, "")
		assert.ErrorIs(t, err, storage.ErrInvalidState)

		saved, err := store.GetAction(actionID)
		assert.NoError(t, err)
		assert.Equal(t, models.RejectedActionStatus, saved.Status)
		assert.Equal(t, "Not appropriate", saved.RejectionReason)
	})

	t.Run("ListActions filters by status", func(t *testing.T) {
		store := newTxStore(t)
		taskID, err := store.SaveFollowUpTask(newTask(time.Now()))
		assert.NoError(t, err)
		pendingID, err := store.SaveAction(models.AutomationAction{
			TaskID: taskID, ClientRef: "client-42",
			Proposed: models.ProposedContent{Subject: "s1", Body: "b1"},
			Status:   models.PendingActionStatus,
		})
		assert.NoError(t, err)
		approvedID, err := store.SaveAction(models.AutomationAction{
			TaskID: taskID, ClientRef: "client-42",
			Proposed: models.ProposedContent{Subject: "s2", Body: "b2"},
			Status:   models.PendingActionStatus,
		})
		assert.NoError(t, err)
		err = store.UpdateActionStatus(approvedID, models.ApprovedActionStatus, "")
		assert.NoError(t, err)

		pending, err := store.ListActions(models.PendingActionStatus)
		assert.NoError(t, err)
		assert.Len(t, pending, 1)
		assert.Equal(t, pendingID, pending[0].ID)

		all, err := store.ListActions("")
		assert.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("Settings are seeded and versioned", func(t *testing.T) {
		store := newTxStore(t)
		settings, err := store.GetSettings()
		assert.NoError(t, err)
		assert.Equal(t, int64(1), settings.ID)
		assert.True(t, settings.Enabled)

		updated, err := store.UpdateSettings(false, settings.Version)
		assert.NoError(t, err)
		assert.False(t, updated.Enabled)
		assert.Equal(t, settings.Version+1, updated.Version)

		// A stale version must not overwrite the newer write.
		_, err = store.UpdateSettings(true, settings.Version)
		assert.ErrorIs(t, err, storage.ErrInvalidState)
	})

	t.Run("DecisionLogs round-trip and filter", func(t *testing.T) {
		store := newTxStore(t)
		err := store.SaveDecisionLog(models.DecisionLog{
			Kind:    models.ProfitabilityDecision,
			RefID:   "website-redesign",
			Source:  models.FallbackSource,
			Message: "profitability=negative risk=high",
		})
		assert.NoError(t, err)
		err = store.SaveDecisionLog(models.DecisionLog{
			Kind:    models.AlertDecision,
			RefID:   "mobile-app",
			Source:  models.AISource,
			Message: "risk=low tasks_at_risk=0",
		})
		assert.NoError(t, err)

		logs, err := store.ListDecisionLogs("website-redesign")
		assert.NoError(t, err)
		assert.Len(t, logs, 1)
		assert.Equal(t, models.FallbackSource, logs[0].Source)

		all, err := store.ListDecisionLogs("")
		assert.NoError(t, err)
		assert.Len(t, all, 2)
	})
}
