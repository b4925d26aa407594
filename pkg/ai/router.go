package ai

// UseCase identifies the engine feature requesting a completion.
type UseCase string

const (
	UseCaseProjectAlerts     UseCase = "project-alerts"
	UseCaseProjectSummary    UseCase = "project-summary"
	UseCaseProjectEstimation UseCase = "project-estimation"
)

// ModelConfig is one of the two LLM tiers the engine routes between.
type ModelConfig struct {
	Name        string
	MaxTokens   int
	Temperature float64
}

// RouteOptions carry the context signals that can upgrade a request to the
// deep tier.
type RouteOptions struct {
	Premium       bool
	Critical      bool
	ProjectBudget *float64
}

// Budget at or above which a project summary is considered worth the deeper,
// more expensive model.
const deepBudgetThreshold = 10000

const (
	defaultFastModel = "gpt-4o-mini"
	defaultDeepModel = "gpt-4o"
)

var (
	fastModel = ModelConfig{Name: defaultFastModel, MaxTokens: 1024, Temperature: 0.3}
	deepModel = ModelConfig{Name: defaultDeepModel, MaxTokens: 2048, Temperature: 0.4}
)

// FastModel returns the cheap/fast tier configuration.
func FastModel() ModelConfig { return fastModel }

// DeepModel returns the expensive/deep tier configuration.
func DeepModel() ModelConfig { return deepModel }

// SelectModel picks the model tier for a use case. Pure and deterministic:
// only project-summary requests ever route to the deep tier, and only when
// the caller is premium, the request is critical, or the project budget
// reaches the threshold. Unknown use cases route to the fast tier.
func SelectModel(useCase UseCase, opts RouteOptions) ModelConfig {
	shouldUseDeep := opts.Premium || opts.Critical ||
		(opts.ProjectBudget != nil && *opts.ProjectBudget >= deepBudgetThreshold)
	if useCase == UseCaseProjectSummary && shouldUseDeep {
		return deepModel
	}
	return fastModel
}
