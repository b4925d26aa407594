package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bizflow/autopilot/pkg/models"
)

const alertSystemPrompt = "You are a project controller watching for budget and time overruns. " +
	"Analyze the consumption snapshot and respond with a single JSON object matching this schema: " +
	`{"risk":"low|medium|high","reason":string,"recommendation":string,` +
	`"tasks_at_risk":[string],"estimated_loss":number}. ` +
	"Omit estimated_loss unless the budget is exceeded. No prose, no markdown fences."

// Detector spots in-flight budget/time overrun risk. Same AI-then-fallback
// pattern as Analyzer, always on the fast model tier.
type Detector struct {
	client Completer
	logger Logger
}

func NewDetector(client Completer, logger Logger) *Detector {
	return &Detector{client: client, logger: logger}
}

// DetectProjectAlerts returns the overrun risk verdict for the given
// snapshot. Never fails; malformed or failed AI output falls back to the
// deterministic tiers.
func (d *Detector) DetectProjectAlerts(ctx context.Context, input models.ProjectAnalysisInput) (models.AlertResult, models.DecisionSource) {
	model := SelectModel(UseCaseProjectAlerts, RouteOptions{})

	if d.client != nil {
		raw, err := d.client.Complete(ctx, model, alertSystemPrompt, buildAlertPrompt(input))
		if err == nil {
			var result models.AlertResult
			if parseErr := json.Unmarshal([]byte(raw), &result); parseErr == nil {
				if validateErr := result.Validate(); validateErr == nil {
					return result, models.AISource
				} else {
					d.logger.Errorf("Alert response failed validation for '%s': %v", input.Name, validateErr)
				}
			} else {
				d.logger.Errorf("Failed to parse alert response for '%s': %v", input.Name, parseErr)
			}
		} else if IsTransient(err) {
			d.logger.Errorf("Alert completion failed for '%s': %v", input.Name, err)
		}
	}

	d.logger.Infof("Using fallback alert computation for '%s'", input.Name)
	return fallbackAlerts(input), models.FallbackSource
}

// buildAlertPrompt includes the current consumption percentage and a
// per-task percentage breakdown.
func buildAlertPrompt(input models.ProjectAnalysisInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", input.Name)
	fmt.Fprintf(&b, "Hourly rate: %.2f\n", input.HourlyRate)
	fmt.Fprintf(&b, "Estimated hours: %.1f\n", input.EstimatedHours)
	fmt.Fprintf(&b, "Actual hours: %.1f\n", input.ActualHours)
	fmt.Fprintf(&b, "Consumption: %.0f%%\n", consumptionPercent(input))
	if len(input.Tasks) > 0 {
		b.WriteString("Task consumption:\n")
		for _, t := range input.Tasks {
			if t.EstimatedHours > 0 {
				fmt.Fprintf(&b, "- %s: %.0f%%\n", t.Name, t.ActualHours/t.EstimatedHours*100)
			} else {
				fmt.Fprintf(&b, "- %s: no estimate\n", t.Name)
			}
		}
	}
	return b.String()
}

func consumptionPercent(input models.ProjectAnalysisInput) float64 {
	if input.EstimatedHours <= 0 {
		return 0
	}
	return input.ActualHours / input.EstimatedHours * 100
}

// fallbackAlerts computes the risk tier deterministically.
func fallbackAlerts(input models.ProjectAnalysisInput) models.AlertResult {
	consumption := consumptionPercent(input)

	tasksAtRisk := []string{}
	for _, t := range input.Tasks {
		if t.EstimatedHours > 0 && t.ActualHours/t.EstimatedHours > 0.8 {
			tasksAtRisk = append(tasksAtRisk, t.Name)
		}
	}

	switch {
	case consumption >= 100:
		loss := math.Round((input.ActualHours - input.EstimatedHours) * input.HourlyRate)
		return models.AlertResult{
			Risk:           models.HighRisk,
			Reason:         fmt.Sprintf("Time budget exceeded: %.0f%% of estimated hours consumed", consumption),
			Recommendation: "Alert the client and renegotiate the scope or budget",
			TasksAtRisk:    tasksAtRisk,
			EstimatedLoss:  &loss,
		}
	case consumption >= 80:
		return models.AlertResult{
			Risk:           models.MediumRisk,
			Reason:         fmt.Sprintf("%.0f%% of estimated hours already consumed", consumption),
			Recommendation: "Prioritize the remaining tasks to stay within budget",
			TasksAtRisk:    tasksAtRisk,
		}
	default:
		return models.AlertResult{
			Risk:           models.LowRisk,
			Reason:         "Time consumption is on track",
			Recommendation: "No action needed",
			TasksAtRisk:    tasksAtRisk,
		}
	}
}
