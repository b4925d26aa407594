package service

import (
	"context"

	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/pkg/errors"
)

// DefaultRejectionReason is recorded when a reviewer rejects without giving
// a reason.
const DefaultRejectionReason = "Rejected by reviewer"

// Dispatcher is the external send collaborator invoked after approval.
type Dispatcher interface {
	Dispatch(ctx context.Context, action models.AutomationAction) error
}

// ApprovalGate enforces human review before any drafted action is
// dispatched. Transitions are single-shot: pending -> approved or
// pending -> rejected, never reversible. The store serializes concurrent
// transitions; the loser of a race observes storage.ErrInvalidState.
type ApprovalGate struct {
	store      storage.Store
	dispatcher Dispatcher
	logger     Logger
}

func NewApprovalGate(store storage.Store, dispatcher Dispatcher, logger Logger) *ApprovalGate {
	return &ApprovalGate{store: store, dispatcher: dispatcher, logger: logger}
}

// Approve commits the pending -> approved transition and hands the action
// to the dispatcher. A second approve on the same action fails with
// storage.ErrInvalidState rather than silently succeeding, to avoid
// double-sending.
func (g *ApprovalGate) Approve(ctx context.Context, actionID string) (models.AutomationAction, error) {
	if err := g.store.UpdateActionStatus(actionID, models.ApprovedActionStatus, ""); err != nil {
		return models.AutomationAction{}, err
	}
	action, err := g.store.GetAction(actionID)
	if err != nil {
		return models.AutomationAction{}, errors.Wrapf(err, "failed to reload action %s after approval", actionID)
	}

	g.completeTask(action.TaskID)
	g.logger.Infof("Approved action %s for task %s", actionID, action.TaskID)

	if g.dispatcher != nil {
		if err := g.dispatcher.Dispatch(ctx, action); err != nil {
			// The approval already committed; report the dispatch failure
			// without reverting the terminal state.
			g.logger.Errorf("Failed to dispatch action %s: %v", actionID, err)
			return action, errors.Wrapf(err, "action %s approved but dispatch failed", actionID)
		}
	}
	return action, nil
}

// Reject commits the pending -> rejected transition, recording the reason.
func (g *ApprovalGate) Reject(ctx context.Context, actionID, reason string) (models.AutomationAction, error) {
	if reason == "" {
		reason = DefaultRejectionReason
	}
	if err := g.store.UpdateActionStatus(actionID, models.RejectedActionStatus, reason); err != nil {
		return models.AutomationAction{}, err
	}
	action, err := g.store.GetAction(actionID)
	if err != nil {
		return models.AutomationAction{}, errors.Wrapf(err, "failed to reload action %s after rejection", actionID)
	}

	g.cancelTask(action.TaskID)
	g.logger.Infof("Rejected action %s for task %s: %s", actionID, action.TaskID, reason)
	return action, nil
}

// completeTask closes the underlying task after a successful approval.
// Tolerates a task already moved by a concurrent transition.
func (g *ApprovalGate) completeTask(taskID string) {
	err := g.store.UpdateFollowUpStatus(taskID, models.InProgressFollowUpStatus, models.CompletedFollowUpStatus)
	if errors.Is(err, storage.ErrInvalidState) {
		err = g.store.UpdateFollowUpStatus(taskID, models.PendingFollowUpStatus, models.CompletedFollowUpStatus)
	}
	if err != nil && !errors.Is(err, storage.ErrInvalidState) {
		g.logger.Errorf("Failed to complete task %s: %v", taskID, err)
	}
}

// cancelTask closes the underlying task after a rejection; the reviewer
// declined the draft, so the scheduled intent is dropped.
func (g *ApprovalGate) cancelTask(taskID string) {
	err := g.store.UpdateFollowUpStatus(taskID, models.InProgressFollowUpStatus, models.CancelledFollowUpStatus)
	if errors.Is(err, storage.ErrInvalidState) {
		err = g.store.UpdateFollowUpStatus(taskID, models.PendingFollowUpStatus, models.CancelledFollowUpStatus)
	}
	if err != nil && !errors.Is(err, storage.ErrInvalidState) {
		g.logger.Errorf("Failed to cancel task %s: %v", taskID, err)
	}
}
