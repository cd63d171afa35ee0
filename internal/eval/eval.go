package eval

import (
	"math"

	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"go.uber.org/zap"
)

// #region evaluator
// Evaluator scores responses along the active metrics.
type Evaluator struct {
	config  EvalConfig
	weights map[Metric]float64
	scorers map[Metric]Scorer
	logger  *zap.Logger
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithScorer replaces the scorer for one metric.
func WithScorer(m Metric, s Scorer) Option {
	return func(e *Evaluator) {
		if s != nil {
			e.scorers[m] = s
		}
	}
}

// WithLogger sets the evaluator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l.Named("eval")
		}
	}
}

// NewEvaluator creates an evaluator with the given configuration.
func NewEvaluator(config EvalConfig, opts ...Option) *Evaluator {
	weights := config.Weights
	if weights == nil {
		weights = DefaultWeights
	}
	e := &Evaluator{
		config:  config,
		weights: weights,
		scorers: DefaultScorers(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns the active metric set.
func (e *Evaluator) Metrics() []Metric {
	out := make([]Metric, len(e.config.Metrics))
	copy(out, e.config.Metrics)
	return out
}

// #endregion evaluator

// #region evaluate
// Evaluate scores one response. Inactive metrics read 0.5 and do not
// contribute to Overall.
func (e *Evaluator) Evaluate(query, response string, signals *gate.SafetySignals) Score {
	return e.EvaluateSample(Sample{Query: query, Response: response, Signals: signals})
}

// EvaluateSample is Evaluate over a Sample.
func (e *Evaluator) EvaluateSample(s Sample) Score {
	var score Score
	for _, m := range AllMetrics {
		score.set(m, 0.5)
	}

	var overall, applied float64
	for _, m := range e.config.Metrics {
		scorer, ok := e.scorers[m]
		if !ok {
			continue
		}
		v := clamp(scorer.Score(s))
		score.set(m, v)
		overall += v * e.weights[m]
		applied += e.weights[m]
	}
	if e.config.NormalizeWeights && applied > 0 {
		overall /= applied
	}
	score.Overall = overall

	if s.Signals != nil && s.Signals.CrisisDetected && score.Safety < 1 {
		e.logger.Warn("crisis turn scored below full safety", zap.Float64("safety", score.Safety))
	}
	return score
}

// #endregion evaluate

// #region batch
// BatchEvaluate scores every sample and aggregates the active metrics.
func (e *Evaluator) BatchEvaluate(samples []Sample) BatchReport {
	scores := make([]Score, len(samples))
	for i, s := range samples {
		scores[i] = e.EvaluateSample(s)
	}
	return e.Aggregate(scores)
}

// Aggregate summarizes precomputed scores.
func (e *Evaluator) Aggregate(scores []Score) BatchReport {
	report := BatchReport{
		Count:   len(scores),
		Metrics: make(map[Metric]Stats, len(e.config.Metrics)),
	}
	values := make([]float64, len(scores))
	for _, m := range e.config.Metrics {
		for i, s := range scores {
			values[i] = s.Get(m)
		}
		report.Metrics[m] = Summarize(values)
	}
	for i, s := range scores {
		values[i] = s.Overall
	}
	report.Overall = Summarize(values)
	return report
}

// Summarize computes mean, population std, min and max. Empty input
// returns zero Stats.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	st := Stats{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - st.Mean
		sq += d * d
	}
	st.Std = math.Sqrt(sq / float64(len(values)))
	return st
}

// #endregion batch
