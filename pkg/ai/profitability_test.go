package ai_test

import (
	"context"
	"testing"

	"github.com/bizflow/autopilot/pkg/ai"
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
	model    ai.ModelConfig
}

func (s *stubCompleter) Complete(ctx context.Context, model ai.ModelConfig, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	s.model = model
	return s.response, s.err
}

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Errorf(format string, args ...interface{}) {}

func overrunProject() models.ProjectAnalysisInput {
	return models.ProjectAnalysisInput{
		Name:           "website-redesign",
		BillingType:    models.HourlyBilling,
		HourlyRate:     50,
		EstimatedHours: 100,
		ActualHours:    120,
		InvoicedAmount: 5000,
	}
}

func TestAnalyzeProjectProfitability(t *testing.T) {
	t.Run("valid AI response wins", func(t *testing.T) {
		stub := &stubCompleter{response: `{
			"profitability": "negative",
			"profit_or_loss": -1000,
			"effective_hourly_rate": 41.67,
			"main_causes": ["Scope creep on the homepage"],
			"recommendations": ["Re-scope the remaining phases"],
			"risk_level": "high",
			"summary": "The project is losing money."
		}`}
		analyzer := ai.NewAnalyzer(stub, nopLogger{})

		result, source := analyzer.AnalyzeProjectProfitability(context.Background(), overrunProject(), ai.RouteOptions{})
		assert.Equal(t, models.AISource, source)
		assert.Equal(t, models.NegativeProfitability, result.Profitability)
		assert.Equal(t, []string{"Scope creep on the homepage"}, result.MainCauses)
	})

	t.Run("completion failure falls back deterministically", func(t *testing.T) {
		stub := &stubCompleter{err: errors.New("service unavailable")}
		analyzer := ai.NewAnalyzer(stub, nopLogger{})

		result, source := analyzer.AnalyzeProjectProfitability(context.Background(), overrunProject(), ai.RouteOptions{})
		assert.Equal(t, models.FallbackSource, source)
		// invoiced 5000 over 120 actual hours
		assert.InDelta(t, 41.67, result.EffectiveHourlyRate, 0.01)
		// 5000 invoiced minus 120h * 50 expected revenue
		assert.Equal(t, float64(-1000), result.ProfitOrLoss)
		assert.Equal(t, models.NegativeProfitability, result.Profitability)
		assert.Equal(t, models.HighRisk, result.RiskLevel)
		assert.NoError(t, result.Validate())
	})

	t.Run("malformed AI output falls back", func(t *testing.T) {
		stub := &stubCompleter{response: "I think the project is doing fine overall!"}
		analyzer := ai.NewAnalyzer(stub, nopLogger{})

		_, source := analyzer.AnalyzeProjectProfitability(context.Background(), overrunProject(), ai.RouteOptions{})
		assert.Equal(t, models.FallbackSource, source)
	})

	t.Run("schema-valid JSON with bad enum falls back", func(t *testing.T) {
		stub := &stubCompleter{response: `{
			"profitability": "excellent",
			"profit_or_loss": 1,
			"effective_hourly_rate": 1,
			"main_causes": ["x"],
			"recommendations": ["y"],
			"risk_level": "high",
			"summary": "z"
		}`}
		analyzer := ai.NewAnalyzer(stub, nopLogger{})

		_, source := analyzer.AnalyzeProjectProfitability(context.Background(), overrunProject(), ai.RouteOptions{})
		assert.Equal(t, models.FallbackSource, source)
	})

	t.Run("nil client is fallback-only", func(t *testing.T) {
		analyzer := ai.NewAnalyzer(nil, nopLogger{})
		result, source := analyzer.AnalyzeProjectProfitability(context.Background(), overrunProject(), ai.RouteOptions{})
		assert.Equal(t, models.FallbackSource, source)
		assert.NoError(t, result.Validate())
	})

	t.Run("project budget routes the summary to the deep tier", func(t *testing.T) {
		stub := &stubCompleter{err: errors.New("down")}
		analyzer := ai.NewAnalyzer(stub, nopLogger{})

		input := overrunProject()
		input.EstimatedBudget = 15000
		analyzer.AnalyzeProjectProfitability(context.Background(), input, ai.RouteOptions{})
		assert.Equal(t, ai.DeepModel(), stub.model)

		input.EstimatedBudget = 500
		analyzer.AnalyzeProjectProfitability(context.Background(), input, ai.RouteOptions{})
		assert.Equal(t, ai.FastModel(), stub.model)
	})
}

func TestFallbackProfitability(t *testing.T) {
	t.Run("profitable project", func(t *testing.T) {
		analyzer := ai.NewAnalyzer(nil, nopLogger{})
		result, _ := analyzer.AnalyzeProjectProfitability(context.Background(), models.ProjectAnalysisInput{
			Name:           "quick-win",
			BillingType:    models.FixedBilling,
			HourlyRate:     50,
			EstimatedHours: 10,
			ActualHours:    8,
			InvoicedAmount: 1000,
		}, ai.RouteOptions{})
		assert.Equal(t, models.PositiveProfitability, result.Profitability)
		assert.Equal(t, float64(600), result.ProfitOrLoss)
		assert.Equal(t, models.LowRisk, result.RiskLevel)
	})

	t.Run("small loss stays neutral", func(t *testing.T) {
		analyzer := ai.NewAnalyzer(nil, nopLogger{})
		result, _ := analyzer.AnalyzeProjectProfitability(context.Background(), models.ProjectAnalysisInput{
			Name:           "close-call",
			BillingType:    models.HourlyBilling,
			HourlyRate:     100,
			EstimatedHours: 10,
			ActualHours:    10,
			InvoicedAmount: 950,
		}, ai.RouteOptions{})
		assert.Equal(t, models.NeutralProfitability, result.Profitability)
		assert.Equal(t, models.MediumRisk, result.RiskLevel)
	})

	t.Run("zero actual hours keeps the nominal rate", func(t *testing.T) {
		analyzer := ai.NewAnalyzer(nil, nopLogger{})
		result, _ := analyzer.AnalyzeProjectProfitability(context.Background(), models.ProjectAnalysisInput{
			Name:        "not-started",
			BillingType: models.HourlyBilling,
			HourlyRate:  75,
		}, ai.RouteOptions{})
		assert.Equal(t, float64(75), result.EffectiveHourlyRate)
		assert.Equal(t, []string{"Insufficient data to identify causes"}, result.MainCauses)
	})

	t.Run("task overruns are named as causes", func(t *testing.T) {
		analyzer := ai.NewAnalyzer(nil, nopLogger{})
		result, _ := analyzer.AnalyzeProjectProfitability(context.Background(), models.ProjectAnalysisInput{
			Name:           "design-sprint",
			BillingType:    models.HourlyBilling,
			HourlyRate:     50,
			EstimatedHours: 20,
			ActualHours:    21,
			InvoicedAmount: 1050,
			Tasks: []models.TaskBreakdown{
				// 13 actual vs 10 estimated is past the 20% overrun mark.
				{Name: "wireframes", EstimatedHours: 10, ActualHours: 13},
				// 11.9 vs 10 is within tolerance.
				{Name: "mockups", EstimatedHours: 10, ActualHours: 11.9},
			},
		}, ai.RouteOptions{})
		assert.Contains(t, result.MainCauses, "Tasks over estimate: wireframes")
	})

	t.Run("global overrun above 20 percent adds the margin recommendation", func(t *testing.T) {
		analyzer := ai.NewAnalyzer(nil, nopLogger{})
		result, _ := analyzer.AnalyzeProjectProfitability(context.Background(), overrunProject(), ai.RouteOptions{})
		assert.NotContains(t, result.Recommendations, "Add a 20% safety margin to future estimates")

		input := overrunProject()
		input.ActualHours = 125
		result, _ = analyzer.AnalyzeProjectProfitability(context.Background(), input, ai.RouteOptions{})
		assert.Contains(t, result.MainCauses, "Global underestimation of the workload")
		assert.Contains(t, result.Recommendations, "Add a 20% safety margin to future estimates")
	})
}
