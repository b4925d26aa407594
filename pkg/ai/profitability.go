package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bizflow/autopilot/pkg/models"
)

// Logger defines the logging interface for the AI components.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

const profitabilitySystemPrompt = "You are a financial analyst for a freelance/agency business. " +
	"Analyze the project snapshot and respond with a single JSON object matching this schema: " +
	`{"profitability":"positive|neutral|negative","profit_or_loss":number,` +
	`"effective_hourly_rate":number,"main_causes":[string],"recommendations":[string],` +
	`"risk_level":"low|medium|high","summary":string}. No prose, no markdown fences.`

// Analyzer computes project profitability verdicts, preferring the LLM path
// and falling back to a deterministic formula with an identical schema on
// any failure. A nil client means fallback-only operation.
type Analyzer struct {
	client Completer
	logger Logger
}

func NewAnalyzer(client Completer, logger Logger) *Analyzer {
	return &Analyzer{client: client, logger: logger}
}

// AnalyzeProjectProfitability returns a profitability verdict for the given
// snapshot. It never fails: when the AI path errors or returns malformed
// output, the deterministic fallback produces the result instead.
func (a *Analyzer) AnalyzeProjectProfitability(ctx context.Context, input models.ProjectAnalysisInput, opts RouteOptions) (models.ProfitabilityResult, models.DecisionSource) {
	budget := input.EstimatedBudget
	opts.ProjectBudget = &budget
	model := SelectModel(UseCaseProjectSummary, opts)

	if a.client != nil {
		raw, err := a.client.Complete(ctx, model, profitabilitySystemPrompt, buildProfitabilityPrompt(input))
		if err == nil {
			var result models.ProfitabilityResult
			if parseErr := json.Unmarshal([]byte(raw), &result); parseErr == nil {
				if validateErr := result.Validate(); validateErr == nil {
					return result, models.AISource
				} else {
					a.logger.Errorf("Profitability response failed validation for '%s': %v", input.Name, validateErr)
				}
			} else {
				a.logger.Errorf("Failed to parse profitability response for '%s': %v", input.Name, parseErr)
			}
		} else if IsTransient(err) {
			a.logger.Errorf("Profitability completion failed for '%s': %v", input.Name, err)
		}
	}

	a.logger.Infof("Using fallback profitability computation for '%s'", input.Name)
	return fallbackProfitability(input), models.FallbackSource
}

// buildProfitabilityPrompt enumerates the snapshot for the model, including
// the estimated/actual delta and a per-task breakdown.
func buildProfitabilityPrompt(input models.ProjectAnalysisInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", input.Name)
	fmt.Fprintf(&b, "Billing type: %s\n", input.BillingType)
	fmt.Fprintf(&b, "Hourly rate: %.2f\n", input.HourlyRate)
	fmt.Fprintf(&b, "Estimated budget: %.2f\n", input.EstimatedBudget)
	fmt.Fprintf(&b, "Invoiced amount: %.2f\n", input.InvoicedAmount)
	fmt.Fprintf(&b, "Estimated hours: %.1f\n", input.EstimatedHours)
	fmt.Fprintf(&b, "Actual hours: %.1f\n", input.ActualHours)
	delta := input.ActualHours - input.EstimatedHours
	fmt.Fprintf(&b, "Hours delta: %+.1f", delta)
	if input.EstimatedHours > 0 {
		fmt.Fprintf(&b, " (%+.0f%%)", delta/input.EstimatedHours*100)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Completed: %t\n", input.Completed)
	if len(input.Tasks) > 0 {
		b.WriteString("Task breakdown (estimated vs actual hours):\n")
		for _, t := range input.Tasks {
			fmt.Fprintf(&b, "- %s: %.1fh estimated, %.1fh actual\n", t.Name, t.EstimatedHours, t.ActualHours)
		}
	}
	return b.String()
}

// fallbackProfitability computes the verdict deterministically, producing
// the exact same schema as the AI path.
func fallbackProfitability(input models.ProjectAnalysisInput) models.ProfitabilityResult {
	effectiveRate := input.HourlyRate
	if input.ActualHours > 0 {
		effectiveRate = input.InvoicedAmount / input.ActualHours
	}

	expectedRevenue := input.ActualHours * input.HourlyRate
	profitOrLoss := math.Round(input.InvoicedAmount - expectedRevenue)

	profitability := models.NeutralProfitability
	switch {
	case profitOrLoss > 0:
		profitability = models.PositiveProfitability
	case profitOrLoss < -100:
		profitability = models.NegativeProfitability
	}

	var causes, recommendations []string
	var overrunNames []string
	for _, t := range input.Tasks {
		if t.Overrun() {
			overrunNames = append(overrunNames, t.Name)
		}
	}
	if len(overrunNames) > 0 {
		causes = append(causes, fmt.Sprintf("Tasks over estimate: %s", strings.Join(overrunNames, ", ")))
	}
	if input.EstimatedHours > 0 {
		overrunPercent := (input.ActualHours - input.EstimatedHours) / input.EstimatedHours * 100
		if overrunPercent > 20 {
			causes = append(causes, "Global underestimation of the workload")
			recommendations = append(recommendations, "Add a 20% safety margin to future estimates")
		}
	}
	if len(causes) == 0 {
		causes = append(causes, "Insufficient data to identify causes")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Insufficient data for recommendations")
	}

	riskLevel := models.MediumRisk
	switch profitability {
	case models.NegativeProfitability:
		riskLevel = models.HighRisk
	case models.PositiveProfitability:
		riskLevel = models.LowRisk
	}

	var summary string
	switch {
	case profitOrLoss > 0:
		summary = fmt.Sprintf("The project is profitable with a gain of %.0f.", profitOrLoss)
	case profitOrLoss < 0:
		summary = fmt.Sprintf("The project is running at a loss of %.0f.", -profitOrLoss)
	default:
		summary = "The project is breaking even."
	}

	return models.ProfitabilityResult{
		Profitability:       profitability,
		ProfitOrLoss:        profitOrLoss,
		EffectiveHourlyRate: effectiveRate,
		MainCauses:          causes,
		Recommendations:     recommendations,
		RiskLevel:           riskLevel,
		Summary:             summary,
	}
}
