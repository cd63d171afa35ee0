package eval

import "github.com/danielpatrickdp/cotherapist/internal/gate"

// #region metric
// Metric names one evaluation dimension.
type Metric string

const (
	MetricEmpathy             Metric = "empathy"
	MetricRelevance           Metric = "relevance"
	MetricInformativeness     Metric = "informativeness"
	MetricSafety              Metric = "safety"
	MetricTherapeuticAlliance Metric = "therapeutic_alliance"
	MetricClinicalAccuracy    Metric = "clinical_accuracy"
)

// AllMetrics lists every metric in reporting order.
var AllMetrics = []Metric{
	MetricEmpathy,
	MetricRelevance,
	MetricInformativeness,
	MetricSafety,
	MetricTherapeuticAlliance,
	MetricClinicalAccuracy,
}

// DefaultWeights sum to 1.
var DefaultWeights = map[Metric]float64{
	MetricEmpathy:             0.25,
	MetricRelevance:           0.15,
	MetricInformativeness:     0.15,
	MetricSafety:              0.25,
	MetricTherapeuticAlliance: 0.10,
	MetricClinicalAccuracy:    0.10,
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	_, ok := DefaultWeights[m]
	return ok
}

// #endregion metric

// #region eval-config
// EvalConfig selects the active metrics and how overall is weighted.
type EvalConfig struct {
	Metrics          []Metric
	Weights          map[Metric]float64 // nil uses DefaultWeights
	NormalizeWeights bool               // divide overall by the active weight sum
}

// DefaultEvalConfig activates every metric with the default weights.
func DefaultEvalConfig() EvalConfig {
	metrics := make([]Metric, len(AllMetrics))
	copy(metrics, AllMetrics)
	return EvalConfig{Metrics: metrics}
}

// #endregion eval-config

// #region sample
// Sample is one (query, response, signals) triple to score.
type Sample struct {
	Query    string
	Response string
	Signals  *gate.SafetySignals // optional side-channel signals
}

// #endregion sample

// #region score
// Score holds the six sub-scores and the weighted overall.
type Score struct {
	Empathy             float64 `json:"empathy"`
	Relevance           float64 `json:"relevance"`
	Informativeness     float64 `json:"informativeness"`
	Safety              float64 `json:"safety"`
	TherapeuticAlliance float64 `json:"therapeutic_alliance"`
	ClinicalAccuracy    float64 `json:"clinical_accuracy"`
	Overall             float64 `json:"overall"`
}

// Get returns the sub-score for m.
func (s Score) Get(m Metric) float64 {
	switch m {
	case MetricEmpathy:
		return s.Empathy
	case MetricRelevance:
		return s.Relevance
	case MetricInformativeness:
		return s.Informativeness
	case MetricSafety:
		return s.Safety
	case MetricTherapeuticAlliance:
		return s.TherapeuticAlliance
	case MetricClinicalAccuracy:
		return s.ClinicalAccuracy
	}
	return 0
}

func (s *Score) set(m Metric, v float64) {
	switch m {
	case MetricEmpathy:
		s.Empathy = v
	case MetricRelevance:
		s.Relevance = v
	case MetricInformativeness:
		s.Informativeness = v
	case MetricSafety:
		s.Safety = v
	case MetricTherapeuticAlliance:
		s.TherapeuticAlliance = v
	case MetricClinicalAccuracy:
		s.ClinicalAccuracy = v
	}
}

// #endregion score

// #region stats
// Stats summarizes one metric across a batch. Std is the population
// standard deviation.
type Stats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// BatchReport holds per-metric stats for the active metrics plus overall.
type BatchReport struct {
	Count   int              `json:"count"`
	Metrics map[Metric]Stats `json:"metrics"`
	Overall Stats            `json:"overall"`
}

// #endregion stats
