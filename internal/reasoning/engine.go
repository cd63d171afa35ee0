package reasoning

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"go.uber.org/zap"
)

// #region engine
// Engine runs the staged reasoning pass over one message.
type Engine struct {
	config    ReasoningConfig
	generator capability.Generator
	logger    *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithGenerator attaches the generation capability.
func WithGenerator(g capability.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.Named("reasoning")
		}
	}
}

// NewEngine creates a reasoning engine. Without a generator every
// generating stage returns its fallback text.
func NewEngine(config ReasoningConfig, opts ...Option) *Engine {
	e := &Engine{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() ReasoningConfig { return e.config }

// HasGenerator reports whether a generation capability is attached.
func (e *Engine) HasGenerator() bool { return e.generator != nil }

// #endregion engine

// #region reason
// Reason runs the full stage sequence. A disabled engine behaves like
// Direct. Failure of the initial response, or cancellation at any point,
// ends the pass with an error; completed steps stay in the returned trace.
func (e *Engine) Reason(ctx context.Context, query string, retrieved []string) (Result, error) {
	if !e.config.Enabled {
		return e.Direct(ctx, query, retrieved)
	}

	res := Result{ReasoningUsed: true}
	record := func(kind StepKind, content string) {
		res.Steps = append(res.Steps, Step{Kind: kind, Content: content})
		e.logger.Debug("step", zap.String("kind", string(kind)), zap.String("content", preview(content)))
	}

	if e.config.ChainOfThought {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("reason %s: %w", StepSituationAnalysis, err)
		}
		analysis, err := e.generate(ctx, StepSituationAnalysis, capability.GenerateRequest{
			Prompt:    analysisPrompt(query),
			Context:   retrieved,
			MaxTokens: analysisMaxTokens,
		}, FallbackAnalysis, false)
		if err != nil {
			return res, err
		}
		// Recorded for observability only; later prompts do not read it.
		record(StepSituationAnalysis, analysis)
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("reason %s: %w", StepNeedsAssessment, err)
	}
	res.Needs = AssessNeeds(query)
	needs := joinNeeds(res.Needs)
	record(StepNeedsAssessment, needs)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("reason %s: %w", StepInitialResponse, err)
	}
	initial, err := e.generate(ctx, StepInitialResponse, capability.GenerateRequest{
		Prompt:  responsePrompt(query, needs),
		Context: retrieved,
	}, FallbackResponse, true)
	if err != nil {
		return res, err
	}
	record(StepInitialResponse, initial)
	res.FinalResponse = initial

	if e.config.SelfCritique {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("reason %s: %w", StepSelfCritique, err)
		}
		critique, err := e.generate(ctx, StepSelfCritique, capability.GenerateRequest{
			Prompt:    critiquePrompt(initial, needs),
			MaxTokens: critiqueMaxTokens,
		}, FallbackCritique, false)
		if err != nil {
			return res, err
		}
		record(StepSelfCritique, critique)

		if needsRefinement(critique) {
			if err := ctx.Err(); err != nil {
				return res, fmt.Errorf("reason %s: %w", StepRefinedResponse, err)
			}
			refined, err := e.generate(ctx, StepRefinedResponse, capability.GenerateRequest{
				Prompt:    refinementPrompt(initial, critique, needs),
				MaxTokens: refinementMaxTokens,
			}, initial, false)
			if err != nil {
				return res, err
			}
			record(StepRefinedResponse, refined)
			res.FinalResponse = refined
		}
	}

	if e.config.Reflection {
		record(StepReflection, Reflect(res.FinalResponse))
	}

	e.logger.Info("reasoning complete", zap.Int("steps", len(res.Steps)))
	return res, nil
}

// Direct makes a single generation call with an empty trace.
func (e *Engine) Direct(ctx context.Context, query string, retrieved []string) (Result, error) {
	res := Result{Steps: []Step{}}
	if e.generator == nil {
		return res, nil
	}
	out, err := e.generator.Generate(ctx, capability.GenerateRequest{Prompt: query, Context: retrieved})
	if err != nil {
		return res, fmt.Errorf("generate response: %w", err)
	}
	res.FinalResponse = out
	return res, nil
}

// #endregion reason

// #region generate
// generate is the single capability-presence check for every stage.
// Without a generator it returns fallback. Errors from optional stages are
// logged and replaced by fallback unless they signal cancellation.
func (e *Engine) generate(ctx context.Context, kind StepKind, req capability.GenerateRequest, fallback string, required bool) (string, error) {
	if e.generator == nil {
		return fallback, nil
	}
	out, err := e.generator.Generate(ctx, req)
	if err == nil {
		return out, nil
	}
	if required || capability.IsFatal(err) {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}
	e.logger.Warn("stage generation failed, using fallback",
		zap.String("stage", string(kind)),
		zap.Error(err),
	)
	return fallback, nil
}

func preview(s string) string {
	const n = 100
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// #endregion generate
