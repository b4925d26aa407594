package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bizflow/autopilot/pkg/ai"
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for the service layer.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Skip sentinels: preconditions not met, nothing generated, nothing broken.
var (
	ErrAutomationDisabled = errors.New("automation is disabled")
	ErrTaskNotDue         = errors.New("task is not due yet")
	ErrDuplicateAction    = errors.New("task already has a pending action")
)

// GenerationError reports a task whose draft could not be produced or
// persisted even after the fallback. The task has been marked failed.
type GenerationError struct {
	TaskID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for task %s: %v", e.TaskID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

const generatorSystemPrompt = "You draft professional follow-up emails for a freelance/agency business. " +
	"Respond with a single JSON object matching this schema: " +
	`{"subject":string,"body":string,"confidence":number}. ` +
	"Confidence is your own 0.0-1.0 estimate of how appropriate the draft is. No prose, no markdown fences."

// Generator drafts one automation action per due follow-up task. Every
// draft lands in status "pending" for human review; there is no auto-send
// path regardless of confidence.
type Generator struct {
	store  storage.Store
	client ai.Completer
	logger Logger
}

func NewGenerator(store storage.Store, client ai.Completer, logger Logger) *Generator {
	return &Generator{store: store, client: client, logger: logger}
}

// GenerateAction drafts and persists a pending action for the given task.
// Skip sentinels (ErrAutomationDisabled, ErrTaskNotDue, ErrDuplicateAction,
// storage.ErrInvalidState) mean the task was left untouched; a
// *GenerationError means the task has been transitioned to failed.
func (g *Generator) GenerateAction(ctx context.Context, task models.FollowUpTask) (models.AutomationAction, error) {
	settings, err := g.store.GetSettings()
	if err != nil {
		return models.AutomationAction{}, errors.Wrap(err, "failed to read automation settings")
	}
	if !settings.Enabled {
		return models.AutomationAction{}, ErrAutomationDisabled
	}

	if task.Status != models.PendingFollowUpStatus && task.Status != models.InProgressFollowUpStatus {
		return models.AutomationAction{}, errors.Wrapf(storage.ErrInvalidState, "task %s is %s", task.ID, task.Status)
	}
	if !task.Due(time.Now()) {
		return models.AutomationAction{}, ErrTaskNotDue
	}

	exists, err := g.store.ActiveActionExists(task.ID)
	if err != nil {
		return models.AutomationAction{}, errors.Wrapf(err, "failed to check active actions for task %s", task.ID)
	}
	if exists {
		return models.AutomationAction{}, ErrDuplicateAction
	}

	if task.Status == models.PendingFollowUpStatus {
		if err := g.store.UpdateFollowUpStatus(task.ID, models.PendingFollowUpStatus, models.InProgressFollowUpStatus); err != nil {
			// Lost the race against a concurrent run or a manual pause.
			return models.AutomationAction{}, err
		}
	}

	content, confidence, source := g.draft(ctx, task)

	action := models.AutomationAction{
		TaskID:     task.ID,
		ClientRef:  task.ContactRef,
		Proposed:   content,
		Confidence: confidence,
		Status:     models.PendingActionStatus,
	}
	actionID, err := g.store.SaveAction(action)
	if err != nil {
		return models.AutomationAction{}, g.fail(task.ID, errors.Wrap(err, "failed to persist action"))
	}
	action.ID = actionID

	if err := g.store.SaveDecisionLog(models.DecisionLog{
		Kind:    models.GenerationDecision,
		RefID:   task.ID,
		Source:  source,
		Message: fmt.Sprintf("drafted action %s with confidence %.2f", actionID, confidence),
	}); err != nil {
		g.logger.Errorf("Failed to record generation decision for task %s: %v", task.ID, err)
	}

	g.logger.Infof("Drafted action %s for task %s (source=%s, confidence=%.2f)", actionID, task.ID, source, confidence)
	return action, nil
}

// fail marks the task failed and wraps the cause. Best effort: the task must
// not be left silently stuck in in_progress.
func (g *Generator) fail(taskID string, cause error) error {
	if err := g.store.UpdateFollowUpStatus(taskID, models.InProgressFollowUpStatus, models.FailedFollowUpStatus); err != nil {
		g.logger.Errorf("Failed to mark task %s as failed: %v", taskID, err)
	}
	return &GenerationError{TaskID: taskID, Err: cause}
}

type draftResponse struct {
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"`
}

// draft produces the communication content, preferring the LLM and falling
// back to a deterministic template on any failure, including a confidence
// value outside [0,1].
func (g *Generator) draft(ctx context.Context, task models.FollowUpTask) (models.ProposedContent, float64, models.DecisionSource) {
	if g.client != nil {
		model := ai.SelectModel(ai.UseCaseProjectEstimation, ai.RouteOptions{Critical: task.Priority == models.UrgentPriority})
		raw, err := g.client.Complete(ctx, model, generatorSystemPrompt, buildDraftPrompt(task))
		if err == nil {
			var parsed draftResponse
			if parseErr := json.Unmarshal([]byte(raw), &parsed); parseErr == nil {
				if parsed.Subject != "" && parsed.Body != "" && parsed.Confidence >= 0 && parsed.Confidence <= 1 {
					return models.ProposedContent{Subject: parsed.Subject, Body: parsed.Body}, parsed.Confidence, models.AISource
				}
				g.logger.Errorf("Draft response for task %s is out of contract (confidence %.2f)", task.ID, parsed.Confidence)
			} else {
				g.logger.Errorf("Failed to parse draft response for task %s: %v", task.ID, parseErr)
			}
		} else if ai.IsTransient(err) {
			g.logger.Errorf("Draft completion failed for task %s: %v", task.ID, err)
		}
	}

	content := fallbackDraft(task)
	return content, fallbackConfidence, models.FallbackSource
}

// Template drafts score below the review threshold on purpose, so the
// reviewer sees them flagged.
const fallbackConfidence = 0.5

func buildDraftPrompt(task models.FollowUpTask) string {
	return fmt.Sprintf("Draft a %s follow-up for contact %s. Priority: %s. Scheduled for: %s.",
		task.Type, task.ContactRef, task.Priority, task.ScheduledFor.Format(time.RFC3339))
}

func fallbackDraft(task models.FollowUpTask) models.ProposedContent {
	switch task.Type {
	case models.PaymentReminderTask:
		return models.ProposedContent{
			Subject: "Friendly reminder: outstanding invoice",
			Body:    "Hello,\n\nThis is a friendly reminder that one of your invoices is still outstanding. Could you let us know when we can expect the payment?\n\nBest regards",
		}
	case models.ProposalFollowUpTask:
		return models.ProposedContent{
			Subject: "Following up on our proposal",
			Body:    "Hello,\n\nWe wanted to follow up on the proposal we sent over. Do you have any questions we can answer?\n\nBest regards",
		}
	case models.MeetingFollowUpTask:
		return models.ProposedContent{
			Subject: "Thank you for the meeting",
			Body:    "Hello,\n\nThank you for taking the time to meet with us. Here is a quick follow-up on the points we discussed.\n\nBest regards",
		}
	case models.ThankYouTask:
		return models.ProposedContent{
			Subject: "Thank you",
			Body:    "Hello,\n\nThank you for working with us. It has been a pleasure, and we look forward to the next opportunity.\n\nBest regards",
		}
	case models.CheckInTask:
		return models.ProposedContent{
			Subject: "Checking in",
			Body:    "Hello,\n\nIt has been a while since we last spoke, so we wanted to check in and see how things are going on your side.\n\nBest regards",
		}
	default:
		return models.ProposedContent{
			Subject: "Following up",
			Body:    "Hello,\n\nWe wanted to follow up with you. Let us know if there is anything we can help with.\n\nBest regards",
		}
	}
}
