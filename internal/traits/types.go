package traits

// #region trait
// Trait names one of the five personality dimensions.
type Trait string

const (
	Agreeableness      Trait = "agreeableness"
	Conscientiousness  Trait = "conscientiousness"
	EmotionalStability Trait = "emotional_stability"
	Openness           Trait = "openness"
	Extraversion       Trait = "extraversion"
)

// AllTraits lists the traits in reporting order.
var AllTraits = []Trait{
	Agreeableness,
	Conscientiousness,
	EmotionalStability,
	Openness,
	Extraversion,
}

// Valid reports whether t is a known trait.
func (t Trait) Valid() bool {
	for _, known := range AllTraits {
		if t == known {
			return true
		}
	}
	return false
}

// #endregion trait

// #region band
// Band is a qualitative reading of a trait score.
type Band string

const (
	BandLow            Band = "Low"
	BandModeratelyLow  Band = "Moderately Low"
	BandModerate       Band = "Moderate"
	BandModeratelyHigh Band = "Moderately High"
	BandHigh           Band = "High"
)

// BandFor maps a score onto its band.
func BandFor(v float64) Band {
	switch {
	case v >= 0.7:
		return BandHigh
	case v >= 0.55:
		return BandModeratelyHigh
	case v >= 0.45:
		return BandModerate
	case v >= 0.3:
		return BandModeratelyLow
	default:
		return BandLow
	}
}

// #endregion band

// #region config
// TraitConfig controls which traits are scored.
type TraitConfig struct {
	Enabled bool
	Traits  []Trait
}

// DefaultTraitConfig scores every trait.
func DefaultTraitConfig() TraitConfig {
	traits := make([]Trait, len(AllTraits))
	copy(traits, AllTraits)
	return TraitConfig{Enabled: true, Traits: traits}
}

// #endregion config

// #region scores
// Scores holds one value in [0,1] per trait. 0.5 is neutral.
type Scores struct {
	Agreeableness      float64 `json:"agreeableness"`
	Conscientiousness  float64 `json:"conscientiousness"`
	EmotionalStability float64 `json:"emotional_stability"`
	Openness           float64 `json:"openness"`
	Extraversion       float64 `json:"extraversion"`
}

// Neutral returns all-0.5 scores.
func Neutral() Scores {
	return Scores{0.5, 0.5, 0.5, 0.5, 0.5}
}

// Get returns the score for t.
func (s Scores) Get(t Trait) float64 {
	switch t {
	case Agreeableness:
		return s.Agreeableness
	case Conscientiousness:
		return s.Conscientiousness
	case EmotionalStability:
		return s.EmotionalStability
	case Openness:
		return s.Openness
	case Extraversion:
		return s.Extraversion
	}
	return 0.5
}

// Set assigns the score for t. Unknown traits are ignored.
func (s *Scores) Set(t Trait, v float64) {
	switch t {
	case Agreeableness:
		s.Agreeableness = v
	case Conscientiousness:
		s.Conscientiousness = v
	case EmotionalStability:
		s.EmotionalStability = v
	case Openness:
		s.Openness = v
	case Extraversion:
		s.Extraversion = v
	}
}

// #endregion scores
