package reasoning

// #region step-kind
// StepKind labels one entry of the reasoning trace.
type StepKind string

const (
	StepSituationAnalysis StepKind = "situation_analysis"
	StepNeedsAssessment   StepKind = "needs_assessment"
	StepInitialResponse   StepKind = "initial_response"
	StepSelfCritique      StepKind = "self_critique"
	StepRefinedResponse   StepKind = "refined_response"
	StepReflection        StepKind = "reflection"
)

// Step is one recorded stage. Traces are append-only in execution order.
type Step struct {
	Kind    StepKind `json:"step"`
	Content string   `json:"content"`
}

// #endregion step-kind

// #region need
// Need is a therapeutic need inferred from the user's message.
type Need string

const (
	NeedEmotionalValidation Need = "emotional_validation"
	NeedInformation         Need = "information"
	NeedCopingStrategies    Need = "coping_strategies"
	NeedCrisisSupport       Need = "crisis_support"
	NeedEmpathyAndSupport   Need = "empathy_and_support"
	NeedGeneralSupport      Need = "general_support"
)

// #endregion need

// #region config
// ReasoningConfig toggles the optional stages.
type ReasoningConfig struct {
	Enabled        bool
	ChainOfThought bool
	SelfCritique   bool
	Reflection     bool
}

// DefaultReasoningConfig enables every stage.
func DefaultReasoningConfig() ReasoningConfig {
	return ReasoningConfig{
		Enabled:        true,
		ChainOfThought: true,
		SelfCritique:   true,
		Reflection:     true,
	}
}

// #endregion config

// #region result
// Result is the outcome of one reasoning pass.
type Result struct {
	Steps         []Step `json:"steps"`
	FinalResponse string `json:"final_response"`
	ReasoningUsed bool   `json:"reasoning_used"`
	Needs         []Need `json:"needs,omitempty"`
}

// #endregion result

// Fallbacks used when no generator is attached or a sub-stage fails.
const (
	FallbackAnalysis = "Unable to analyze - model not available"
	FallbackResponse = "I'm here to support you."
	FallbackCritique = "Response appears appropriate."
)

// Generation budgets per stage. Zero leaves the budget to the provider.
const (
	analysisMaxTokens   = 200
	critiqueMaxTokens   = 150
	refinementMaxTokens = 300
)
