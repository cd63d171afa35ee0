package traits

import (
	"strings"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"go.uber.org/zap"
)

// #region indicators
// Indicators are the positive and negative marker phrases for one trait.
type Indicators struct {
	Positive []string
	Negative []string
}

// maxExpected is the hit difference that saturates a score.
const maxExpected = 10

// Score returns 0.5 + (pos-neg)/20 over lower-cased text, clamped to [0,1].
func (ind Indicators) Score(text string) float64 {
	lower := strings.ToLower(text)
	raw := hits(lower, ind.Positive) - hits(lower, ind.Negative)
	return clamp(0.5 + float64(raw)/(2*maxExpected))
}

func hits(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
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

// DefaultIndicators returns the built-in indicator lists.
func DefaultIndicators() map[Trait]Indicators {
	return map[Trait]Indicators{
		Agreeableness: {
			Positive: []string{
				"understand", "agree", "together", "support", "help",
				"care", "kindness", "compassion", "empathy", "warm",
				"appreciate", "thank", "sorry", "apologize", "valid",
			},
			Negative: []string{
				"disagree", "wrong", "shouldn't", "must not", "refuse",
				"reject", "oppose", "conflict", "argue",
			},
		},
		Conscientiousness: {
			Positive: []string{
				"plan", "organize", "structure", "goal", "step", "strategy",
				"careful", "consider", "think about", "prepare", "practice",
				"consistent", "regular", "routine", "schedule", "systematic",
			},
			Negative: []string{"random", "whenever", "spontaneous", "impulsive", "careless"},
		},
		EmotionalStability: {
			Positive: []string{
				"calm", "stable", "peace", "balance", "manage", "cope",
				"resilient", "handle", "steady", "composed", "grounded",
				"center", "breathe", "relax", "regulate",
			},
			Negative: []string{
				"panic", "anxious", "overwhelm", "crisis", "disaster",
				"terrible", "awful", "catastrophe",
			},
		},
		Openness: {
			Positive: []string{
				"explore", "curious", "wonder", "imagine", "creative",
				"new", "different", "perspective", "possibility", "alternative",
				"consider", "think about", "reflect", "insight", "learn",
			},
			Negative: []string{"always", "never", "only way", "must", "rigid", "fixed"},
		},
		Extraversion: {
			Positive: []string{
				"together", "social", "connect", "reach out", "talk to",
				"share", "express", "communicate", "engage", "interact",
				"group", "people", "friends", "others",
			},
			Negative: []string{"alone", "isolate", "withdraw", "avoid", "private", "quiet"},
		},
	}
}

// #endregion indicators

// #region analyzer
// Scorer scores one trait from response text.
type Scorer interface {
	Score(text string) float64
}

// Analyzer scores responses on the configured traits.
type Analyzer struct {
	config  TraitConfig
	scorers map[Trait]Scorer
	logger  *zap.Logger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithScorer replaces the scorer for one trait.
func WithScorer(t Trait, s Scorer) Option {
	return func(a *Analyzer) {
		if s != nil {
			a.scorers[t] = s
		}
	}
}

// WithLogger sets the analyzer's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l.Named("traits")
		}
	}
}

// NewAnalyzer creates an analyzer with the built-in indicator lists.
func NewAnalyzer(config TraitConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		config:  config,
		scorers: make(map[Trait]Scorer, len(AllTraits)),
		logger:  zap.NewNop(),
	}
	for t, ind := range DefaultIndicators() {
		a.scorers[t] = ind
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Debug("trait analyzer ready",
		zap.Bool("enabled", config.Enabled),
		zap.Int("traits", len(config.Traits)),
	)
	return a
}

// Traits returns the configured trait set.
func (a *Analyzer) Traits() []Trait {
	out := make([]Trait, len(a.config.Traits))
	copy(out, a.config.Traits)
	return out
}

// #endregion analyzer

// #region analyze
// Analyze scores one response. Disabled analyzers and unconfigured traits
// read 0.5.
func (a *Analyzer) Analyze(text string) Scores {
	scores := Neutral()
	if !a.config.Enabled {
		return scores
	}
	for _, t := range a.config.Traits {
		if s, ok := a.scorers[t]; ok {
			scores.Set(t, clamp(s.Score(text)))
		}
	}
	return scores
}

// BatchAnalyze returns mean, population std, min and max for each
// configured trait across responses.
func (a *Analyzer) BatchAnalyze(responses []string) map[Trait]eval.Stats {
	all := make([]Scores, len(responses))
	for i, r := range responses {
		all[i] = a.Analyze(r)
	}
	return a.Aggregate(all)
}

// Aggregate summarizes precomputed scores over the configured traits.
func (a *Analyzer) Aggregate(all []Scores) map[Trait]eval.Stats {
	out := make(map[Trait]eval.Stats, len(a.config.Traits))
	values := make([]float64, len(all))
	for _, t := range a.config.Traits {
		if !t.Valid() {
			continue
		}
		for i, s := range all {
			values[i] = s.Get(t)
		}
		out[t] = eval.Summarize(values)
	}
	return out
}

// #endregion analyze

// #region interpret
// Interpret maps every trait score to its band.
func Interpret(s Scores) map[Trait]Band {
	out := make(map[Trait]Band, len(AllTraits))
	for _, t := range AllTraits {
		out[t] = BandFor(s.Get(t))
	}
	return out
}

const (
	profileAgreeable     = "Demonstrates high empathy and supportiveness characteristic of effective therapeutic communication."
	profileConscientious = "Shows structured and organized approach, providing clear guidance and actionable strategies."
	profileStable        = "Maintains calm and balanced tone, modeling emotional regulation."
	profileOpen          = "Encourages exploration of different perspectives and possibilities."
	profileCombined      = "Exhibits expert-like therapeutic behavior combining compassion with professional structure."
	profileModerate      = "Displays moderate therapeutic characteristics."
)

// Profile describes the therapeutic characteristics the scores suggest.
func Profile(s Scores) string {
	var parts []string
	if s.Agreeableness >= 0.6 {
		parts = append(parts, profileAgreeable)
	}
	if s.Conscientiousness >= 0.6 {
		parts = append(parts, profileConscientious)
	}
	if s.EmotionalStability >= 0.6 {
		parts = append(parts, profileStable)
	}
	if s.Openness >= 0.5 {
		parts = append(parts, profileOpen)
	}
	if s.Agreeableness >= 0.6 && s.Conscientiousness >= 0.6 {
		parts = append(parts, profileCombined)
	}
	if len(parts) == 0 {
		return profileModerate
	}
	return strings.Join(parts, " ")
}

// #endregion interpret
