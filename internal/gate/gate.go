package gate

import (
	"context"
	"strings"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"go.uber.org/zap"
)

const (
	// InputBlockedMessage is returned when user input is too toxic to admit.
	InputBlockedMessage = "I'm here to provide support in a respectful way. Let's keep our conversation constructive."
	// OutputReplacement substitutes a generated reply that failed screening.
	OutputReplacement = "I apologize, but I need to rephrase my response. How can I better support you?"
	// SafetyPrefix is prepended to replies that read as advice.
	SafetyPrefix = "Please note: I'm an AI assistant, not a licensed therapist. "
)

var (
	medicalRedFlags = []string{
		"diagnose", "diagnosis", "you have", "you are",
		"prescribe", "medication dosage", "stop taking",
	}
	adviceIndicators = []string{"should", "must", "need to", "have to", "recommend"}
)

// #region gate
// Gate screens user input and generated output. It holds no per-turn state.
type Gate struct {
	config GateConfig
	crisis *crisisDetector
	scorer capability.ToxicityScorer
	policy Policy
	logger *zap.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithToxicityScorer attaches a toxicity classifier. Without one the gate
// never blocks on toxicity.
func WithToxicityScorer(s capability.ToxicityScorer) Option {
	return func(g *Gate) { g.scorer = s }
}

// WithPolicy replaces the default threshold policy.
func WithPolicy(p Policy) Option {
	return func(g *Gate) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithLogger sets the gate's logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l.Named("gate")
		}
	}
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig, opts ...Option) *Gate {
	g := &Gate{
		config: config,
		crisis: newCrisisDetector(config.CrisisKeywords),
		policy: ThresholdPolicy{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether screening is active.
func (g *Gate) Enabled() bool {
	return g.config.Enabled
}

// #endregion gate

// #region check-input
// CheckInput screens user text. Crisis detection runs first and, on a
// match, blocks without consulting toxicity.
func (g *Gate) CheckInput(ctx context.Context, text string) InputVerdict {
	if !g.config.Enabled {
		return InputVerdict{Admitted: true}
	}

	var signals SafetySignals
	if g.config.CrisisDetection {
		crisisType := g.crisis.detect(text)
		signals.CrisisType = crisisType
		signals.CrisisDetected = crisisType != CrisisNone
		if signals.CrisisDetected {
			g.logger.Warn("crisis detected", zap.String("crisis_type", string(crisisType)))
			return InputVerdict{
				Admitted: false,
				Message:  g.emergencyResponse(),
				Signals:  signals,
			}
		}
	}

	if score, ok := g.score(ctx, text); ok {
		signals.ToxicityScore = &score
		if g.blocked(ctx, StageInput, score) {
			g.logger.Warn("toxic input blocked", zap.Float64("toxicity", score))
			return InputVerdict{
				Admitted: false,
				Message:  InputBlockedMessage,
				Signals:  signals,
			}
		}
	}

	return InputVerdict{Admitted: true, Signals: signals}
}

// #endregion check-input

// #region check-output
// CheckOutput screens generated text. Medical-authority phrasing is
// flagged for telemetry only; toxicity above policy substitutes a
// re-framing reply.
func (g *Gate) CheckOutput(ctx context.Context, text string) OutputVerdict {
	if !g.config.Enabled {
		return OutputVerdict{Admitted: true}
	}

	var signals SafetySignals
	lower := strings.ToLower(text)
	for _, flag := range medicalRedFlags {
		if strings.Contains(lower, flag) {
			signals.MedicalAdviceFlag = flag
			g.logger.Info("medical advice phrasing flagged", zap.String("flag", flag))
			break
		}
	}

	if score, ok := g.score(ctx, text); ok {
		signals.ToxicityScore = &score
		if g.blocked(ctx, StageOutput, score) {
			g.logger.Warn("toxic output replaced", zap.Float64("toxicity", score))
			return OutputVerdict{
				Admitted:    false,
				Replacement: OutputReplacement,
				Signals:     signals,
			}
		}
	}

	return OutputVerdict{Admitted: true, Signals: signals}
}

// #endregion check-output

// #region prefix
// AddSafetyPrefix prepends the AI-assistant disclaimer to advice-like
// replies. Applying it twice yields the same string.
func AddSafetyPrefix(response string) string {
	if strings.HasPrefix(response, SafetyPrefix) {
		return response
	}
	lower := strings.ToLower(response)
	for _, ind := range adviceIndicators {
		if strings.Contains(lower, ind) {
			return SafetyPrefix + response
		}
	}
	return response
}

// #endregion prefix

// #region helpers
func (g *Gate) emergencyResponse() string {
	if g.config.EmergencyResponse != "" {
		return g.config.EmergencyResponse
	}
	return DefaultEmergencyResponse
}

// score returns the toxicity score, or false when no scorer is attached
// or the scorer failed.
func (g *Gate) score(ctx context.Context, text string) (float64, bool) {
	if g.scorer == nil {
		return 0, false
	}
	s, err := g.scorer.Score(ctx, text)
	if err != nil {
		g.logger.Error("toxicity scoring failed", zap.Error(err))
		return 0, false
	}
	return clamp(s), true
}

func (g *Gate) blocked(ctx context.Context, stage Stage, score float64) bool {
	block, err := g.policy.Block(ctx, PolicyInput{
		Stage:             stage,
		ToxicityScore:     score,
		ToxicityThreshold: g.config.ToxicityThreshold,
	})
	if err != nil {
		g.logger.Error("toxicity policy failed", zap.String("stage", string(stage)), zap.Error(err))
		return false
	}
	return block
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
