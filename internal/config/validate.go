package config

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// #region validate
// Validate checks ranges and names. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Safety),
		validation.Field(&c.Retrieval),
		validation.Field(&c.Evaluation),
		validation.Field(&c.Psychometric),
		validation.Field(&c.Inference),
		validation.Field(&c.Logging),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (s SafetyConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ToxicityThreshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (r RetrievalConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&r.ChunkOverlap, validation.Min(0), validation.By(func(any) error {
			if r.ChunkOverlap >= r.ChunkSize {
				return errors.New("must be smaller than chunk size")
			}
			return nil
		})),
		validation.Field(&r.TopK, validation.Required, validation.Min(1)),
		validation.Field(&r.SimilarityThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&r.EmbedWorkers, validation.Required, validation.Min(1)),
	)
}

func (e EvaluationConfig) Validate() error {
	names := make([]any, len(eval.AllMetrics))
	for i, m := range eval.AllMetrics {
		names[i] = string(m)
	}
	return validation.ValidateStruct(&e,
		validation.Field(&e.Metrics, validation.Each(validation.In(names...)), validation.By(unique)),
		validation.Field(&e.Workers, validation.Required, validation.Min(1)),
	)
}

func (p PsychometricConfig) Validate() error {
	names := make([]any, len(traits.AllTraits))
	for i, t := range traits.AllTraits {
		names[i] = string(t)
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Traits, validation.Each(validation.In(names...)), validation.By(unique)),
	)
}

func (i InferenceConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Provider, validation.Required, validation.In("grpc", "gemini")),
		validation.Field(&i.Addr, validation.When(i.Provider == "grpc", validation.Required)),
		validation.Field(&i.Slots, validation.Required, validation.Min(1)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// unique rejects repeated names; scoring would count their weights twice.
func unique(value any) error {
	names, _ := value.([]string)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("duplicate name %q", n)
		}
		seen[n] = true
	}
	return nil
}

// #endregion validate
