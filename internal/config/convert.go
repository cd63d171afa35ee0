package config

import (
	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/retrieval"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
)

// #region convert
// GateConfig returns the gate's view of the safety section.
func (c *Config) GateConfig() gate.GateConfig {
	gc := gate.GateConfig{
		Enabled:           c.Safety.Enabled,
		CrisisDetection:   c.Safety.CrisisDetection,
		ToxicityThreshold: c.Safety.ToxicityThreshold,
		CrisisKeywords:    append([]string(nil), c.Safety.CrisisKeywords...),
		EmergencyResponse: c.Safety.EmergencyResponse,
	}
	if gc.EmergencyResponse == "" {
		gc.EmergencyResponse = gate.DefaultEmergencyResponse
	}
	return gc
}

// RetrievalConfig returns the retriever's view of the retrieval section.
func (c *Config) RetrievalConfig() retrieval.RetrievalConfig {
	return retrieval.RetrievalConfig{
		ChunkSize:           c.Retrieval.ChunkSize,
		ChunkOverlap:        c.Retrieval.ChunkOverlap,
		TopK:                c.Retrieval.TopK,
		SimilarityThreshold: c.Retrieval.SimilarityThreshold,
		EmbedWorkers:        c.Retrieval.EmbedWorkers,
	}
}

// ReasoningConfig returns the engine's view of the agentic section.
func (c *Config) ReasoningConfig() reasoning.ReasoningConfig {
	return reasoning.ReasoningConfig{
		Enabled:        c.Agentic.Enabled,
		ChainOfThought: c.Agentic.ChainOfThought,
		SelfCritique:   c.Agentic.SelfCritique,
		Reflection:     c.Agentic.Reflection,
	}
}

// EvalConfig returns the evaluator's view of the evaluation section.
func (c *Config) EvalConfig() eval.EvalConfig {
	metrics := make([]eval.Metric, len(c.Evaluation.Metrics))
	for i, m := range c.Evaluation.Metrics {
		metrics[i] = eval.Metric(m)
	}
	return eval.EvalConfig{Metrics: metrics, NormalizeWeights: c.Evaluation.NormalizeWeights}
}

// TraitConfig returns the analyzer's view of the psychometric section.
func (c *Config) TraitConfig() traits.TraitConfig {
	ts := make([]traits.Trait, len(c.Psychometric.Traits))
	for i, t := range c.Psychometric.Traits {
		ts[i] = traits.Trait(t)
	}
	return traits.TraitConfig{Enabled: c.Psychometric.Enabled, Traits: ts}
}

// OrchestratorConfig returns the pipeline settings.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Retrieval:    c.Retrieval.Enabled,
		TopK:         c.Retrieval.TopK,
		Reasoning:    c.ReasoningConfig(),
		StageTimeout: c.Inference.StageTimeout,
		Workers:      c.Evaluation.Workers,
	}
}

// #endregion convert
