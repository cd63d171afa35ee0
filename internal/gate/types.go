package gate

import "context"

// #region crisis-type
// CrisisType enumerates crisis categories found in user input.
type CrisisType string

const (
	CrisisNone         CrisisType = "none"
	CrisisSuicide      CrisisType = "suicide_risk"
	CrisisSelfHarm     CrisisType = "self_harm_risk"
	CrisisKeywordMatch CrisisType = "crisis_keyword_match"
)

// #endregion crisis-type

// #region safety-signals
// SafetySignals is what a gate check observed. A zero value means the
// check did not run (gate disabled).
type SafetySignals struct {
	CrisisDetected    bool       `json:"crisis_detected"`
	CrisisType        CrisisType `json:"crisis_type,omitempty"`
	ToxicityScore     *float64   `json:"toxicity_score,omitempty"` // nil: no toxicity signal
	MedicalAdviceFlag string     `json:"medical_advice_flag,omitempty"`
}

// Merge returns the union of s and other. Keys set by other win.
func (s SafetySignals) Merge(other SafetySignals) SafetySignals {
	out := s
	if other.CrisisDetected {
		out.CrisisDetected = true
	}
	if other.CrisisType != "" {
		if out.CrisisType == "" || out.CrisisType == CrisisNone {
			out.CrisisType = other.CrisisType
		}
	}
	if other.ToxicityScore != nil {
		v := *other.ToxicityScore
		out.ToxicityScore = &v
	}
	if other.MedicalAdviceFlag != "" {
		out.MedicalAdviceFlag = other.MedicalAdviceFlag
	}
	return out
}

// Toxicity returns the toxicity score, or 0 when absent.
func (s SafetySignals) Toxicity() float64 {
	if s.ToxicityScore == nil {
		return 0
	}
	return *s.ToxicityScore
}

// #endregion safety-signals

// #region gate-config
// GateConfig holds the safety gate's policy inputs.
type GateConfig struct {
	Enabled           bool
	CrisisDetection   bool
	ToxicityThreshold float64
	CrisisKeywords    []string
	EmergencyResponse string
}

// DefaultGateConfig returns the shipped safety policy.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Enabled:           true,
		CrisisDetection:   true,
		ToxicityThreshold: 0.7,
		CrisisKeywords: []string{
			"suicide",
			"kill myself",
			"end my life",
			"self-harm",
			"hurt myself",
			"no reason to live",
			"better off dead",
		},
		EmergencyResponse: DefaultEmergencyResponse,
	}
}

// #endregion gate-config

// #region verdicts
// InputVerdict is the outcome of screening user input.
type InputVerdict struct {
	Admitted bool
	Message  string // set when blocked
	Signals  SafetySignals
}

// OutputVerdict is the outcome of screening generated output.
type OutputVerdict struct {
	Admitted    bool
	Replacement string // set when blocked
	Signals     SafetySignals
}

// #endregion verdicts

// #region policy
// Stage names the side of the turn being screened.
type Stage string

const (
	StageInput  Stage = "input"
	StageOutput Stage = "output"
)

// PolicyInput is what a toxicity policy decides over.
type PolicyInput struct {
	Stage             Stage   `json:"stage"`
	ToxicityScore     float64 `json:"toxicity_score"`
	ToxicityThreshold float64 `json:"toxicity_threshold"`
}

// Policy decides whether a scored text is blocked. Crisis handling is
// not delegated: a crisis always blocks.
type Policy interface {
	Block(ctx context.Context, in PolicyInput) (bool, error)
}

// ThresholdPolicy blocks when the score is strictly above the threshold.
type ThresholdPolicy struct{}

// Block implements Policy.
func (ThresholdPolicy) Block(_ context.Context, in PolicyInput) (bool, error) {
	return in.ToxicityScore > in.ToxicityThreshold, nil
}

// #endregion policy
