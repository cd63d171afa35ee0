package replay

import (
	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
)

// DriftTolerance is the overall-score change below which a re-scored turn
// counts as unchanged.
const DriftTolerance = 1e-6

// #region types
// Result is the outcome of re-scoring one interaction.
type Result struct {
	TurnID     string        `json:"turn_id"`
	Evaluation eval.Score    `json:"evaluation"`
	Traits     traits.Scores `json:"traits"`
	Crisis     bool          `json:"crisis"`

	// Drift is current overall minus recorded overall. Nil when nothing
	// was recorded.
	Drift *float64 `json:"drift,omitempty"`
}

// Summary aggregates a replay run.
type Summary struct {
	TotalTurns   int                          `json:"total_turns"`
	CrisisTurns  int                          `json:"crisis_turns"`
	Compared     int                          `json:"compared"`
	Improved     int                          `json:"improved"`
	Regressed    int                          `json:"regressed"`
	Evaluation   eval.BatchReport             `json:"evaluation"`
	Traits       map[traits.Trait]eval.Stats  `json:"traits"`
	Bands        map[traits.Trait]traits.Band `json:"bands"`
	MeanDrift    float64                      `json:"mean_drift"`
	TraitProfile string                       `json:"profile"`
}

// #endregion types

// #region rescore
// Rescore runs every interaction through the evaluator and analyzer.
// Nothing is generated; only the stored text is scored.
func Rescore(interactions []Interaction, evaluator *eval.Evaluator, analyzer *traits.Analyzer) []Result {
	results := make([]Result, 0, len(interactions))
	for _, in := range interactions {
		r := Result{
			TurnID:     in.TurnID,
			Evaluation: evaluator.EvaluateSample(eval.Sample{Query: in.Query, Response: in.Response, Signals: in.Signals}),
			Traits:     analyzer.Analyze(in.Response),
			Crisis:     in.Signals != nil && in.Signals.CrisisDetected,
		}
		if in.Recorded != nil {
			d := r.Evaluation.Overall - *in.Recorded
			r.Drift = &d
		}
		results = append(results, r)
	}
	return results
}

// Summarize aggregates results using the evaluator's active metrics and
// the analyzer's traits.
func Summarize(results []Result, evaluator *eval.Evaluator, analyzer *traits.Analyzer) Summary {
	s := Summary{TotalTurns: len(results)}
	scores := make([]eval.Score, len(results))
	traitScores := make([]traits.Scores, len(results))
	var drift float64
	for i, r := range results {
		scores[i] = r.Evaluation
		traitScores[i] = r.Traits
		if r.Crisis {
			s.CrisisTurns++
		}
		if r.Drift == nil {
			continue
		}
		s.Compared++
		drift += *r.Drift
		switch {
		case *r.Drift > DriftTolerance:
			s.Improved++
		case *r.Drift < -DriftTolerance:
			s.Regressed++
		}
	}
	if s.Compared > 0 {
		s.MeanDrift = drift / float64(s.Compared)
	}
	s.Evaluation = evaluator.Aggregate(scores)
	s.Traits = analyzer.Aggregate(traitScores)

	mean := traits.Neutral()
	for t, st := range s.Traits {
		mean.Set(t, st.Mean)
	}
	s.Bands = traits.Interpret(mean)
	s.TraitProfile = traits.Profile(mean)
	return s
}

// #endregion rescore
