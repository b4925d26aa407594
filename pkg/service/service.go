package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bizflow/autopilot/pkg/ai"
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/pkg/errors"
)

// AutomationService bundles the engine components behind one façade for the
// HTTP and CLI surfaces.
type AutomationService struct {
	store     storage.Store
	logger    Logger
	generator *Generator
	approval  *ApprovalGate
	settings  *SettingsService
	analyzer  *ai.Analyzer
	detector  *ai.Detector
}

// NewAutomationService wires the engine. client may be nil for
// fallback-only operation; dispatcher may be nil when no send collaborator
// is attached.
func NewAutomationService(store storage.Store, client ai.Completer, dispatcher Dispatcher, logger Logger) *AutomationService {
	return &AutomationService{
		store:     store,
		logger:    logger,
		generator: NewGenerator(store, client, logger),
		approval:  NewApprovalGate(store, dispatcher, logger),
		settings:  NewSettingsService(store, logger),
		analyzer:  ai.NewAnalyzer(client, logger),
		detector:  ai.NewDetector(client, logger),
	}
}

// Generator exposes the drafting component, e.g. for the scheduler.
func (s *AutomationService) Generator() *Generator { return s.generator }

// CreateFollowUpTask persists a task scheduled by the external trigger-rule
// layer. This engine never decides when to schedule; it only stores what it
// is handed.
func (s *AutomationService) CreateFollowUpTask(t models.FollowUpTask) (string, error) {
	if t.ContactRef == "" {
		return "", errors.New("contact_ref is required")
	}
	switch t.Type {
	case models.PaymentReminderTask, models.ProposalFollowUpTask, models.MeetingFollowUpTask,
		models.ThankYouTask, models.CheckInTask, models.CustomTask:
	default:
		return "", errors.Errorf("invalid task_type %q", t.Type)
	}
	switch t.Priority {
	case models.UrgentPriority, models.HighPriority, models.MediumPriority, models.LowPriority:
	case "":
		t.Priority = models.MediumPriority
	default:
		return "", errors.Errorf("invalid priority %q", t.Priority)
	}
	if t.ScheduledFor.IsZero() {
		return "", errors.New("scheduled_for is required")
	}
	t.Status = models.PendingFollowUpStatus

	id, err := s.store.SaveFollowUpTask(t)
	if err != nil {
		return "", errors.Wrap(err, "failed to save follow-up task")
	}
	s.logger.Infof("Created follow-up task %s (%s) for contact %s", id, t.Type, t.ContactRef)
	return id, nil
}

// GetFollowUpTask fetches a single task.
func (s *AutomationService) GetFollowUpTask(id string) (models.FollowUpTask, error) {
	return s.store.GetFollowUpTask(id)
}

// ListFollowUpTasks lists tasks, optionally filtered by status.
func (s *AutomationService) ListFollowUpTasks(status models.FollowUpStatus) ([]models.FollowUpTask, error) {
	return s.store.ListFollowUpTasks(status)
}

// CancelFollowUpTask manually pauses a scheduled task. A task already
// picked up by a running generation attempt finishes that attempt; the next
// poll simply skips the cancelled task.
func (s *AutomationService) CancelFollowUpTask(id string) error {
	err := s.store.UpdateFollowUpStatus(id, models.PendingFollowUpStatus, models.CancelledFollowUpStatus)
	if errors.Is(err, storage.ErrInvalidState) {
		err = s.store.UpdateFollowUpStatus(id, models.InProgressFollowUpStatus, models.CancelledFollowUpStatus)
	}
	return err
}

// ListActions lists automation actions, optionally filtered by status.
func (s *AutomationService) ListActions(status models.ActionStatus) ([]models.AutomationAction, error) {
	return s.store.ListActions(status)
}

// GetAction fetches a single action.
func (s *AutomationService) GetAction(id string) (models.AutomationAction, error) {
	return s.store.GetAction(id)
}

// Approve runs the approval gate for the given action.
func (s *AutomationService) Approve(ctx context.Context, actionID string) (models.AutomationAction, error) {
	return s.approval.Approve(ctx, actionID)
}

// Reject runs the rejection path for the given action.
func (s *AutomationService) Reject(ctx context.Context, actionID, reason string) (models.AutomationAction, error) {
	return s.approval.Reject(ctx, actionID, reason)
}

// GetSettings returns the global automation settings.
func (s *AutomationService) GetSettings() (models.AutomationSettings, error) {
	return s.settings.Get()
}

// ToggleAutomation flips the global switch.
func (s *AutomationService) ToggleAutomation(enabled bool) (models.AutomationSettings, error) {
	return s.settings.Toggle(enabled)
}

// AnalyzeProfitability runs the profitability analyzer and records the
// outcome in the decision log.
func (s *AutomationService) AnalyzeProfitability(ctx context.Context, input models.ProjectAnalysisInput, opts ai.RouteOptions) (models.ProfitabilityResult, error) {
	result, source := s.analyzer.AnalyzeProjectProfitability(ctx, input, opts)
	s.logDecision(models.ProfitabilityDecision, input.Name, source,
		fmt.Sprintf("profitability=%s risk=%s", result.Profitability, result.RiskLevel))
	return result, nil
}

// DetectAlerts runs the alert detector and records the outcome in the
// decision log.
func (s *AutomationService) DetectAlerts(ctx context.Context, input models.ProjectAnalysisInput) (models.AlertResult, error) {
	result, source := s.detector.DetectProjectAlerts(ctx, input)
	s.logDecision(models.AlertDecision, input.Name, source,
		fmt.Sprintf("risk=%s tasks_at_risk=%d", result.Risk, len(result.TasksAtRisk)))
	return result, nil
}

// ListDecisionLogs returns the audit trail, optionally filtered by
// reference.
func (s *AutomationService) ListDecisionLogs(refID string) ([]models.DecisionLog, error) {
	return s.store.ListDecisionLogs(refID)
}

func (s *AutomationService) logDecision(kind models.DecisionKind, refID string, source models.DecisionSource, message string) {
	if err := s.store.SaveDecisionLog(models.DecisionLog{
		Kind:     kind,
		RefID:    refID,
		Source:   source,
		Message:  message,
		LoggedAt: time.Now(),
	}); err != nil {
		s.logger.Errorf("Failed to record %s decision for %s: %v", kind, refID, err)
	}
}
