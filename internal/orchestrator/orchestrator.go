package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// #region deps
// Deps are the collaborators of an Orchestrator. Only Generator is
// required for turns; nil components fall back to defaults. A nil Gate
// screens with DefaultGateConfig; pass a disabled gate to turn screening off.
type Deps struct {
	Gate      *gate.Gate
	Retriever Retriever
	Generator capability.Generator
	Evaluator *eval.Evaluator
	Traits    *traits.Analyzer
	Recorder  Recorder
	Logger    *zap.Logger
}

// #endregion deps

// #region orchestrator
// Orchestrator runs the turn pipeline: input gate, retrieval, reasoning,
// output gate, disclaimer, then optional scoring.
type Orchestrator struct {
	config    Config
	gate      *gate.Gate
	retriever Retriever
	generator capability.Generator
	engine    *reasoning.Engine
	evaluator *eval.Evaluator
	traits    *traits.Analyzer
	recorder  Recorder
	logger    *zap.Logger
}

// New wires an orchestrator from deps and config.
func New(deps Deps, config Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	o := &Orchestrator{
		config:    config,
		gate:      deps.Gate,
		retriever: deps.Retriever,
		generator: deps.Generator,
		evaluator: deps.Evaluator,
		traits:    deps.Traits,
		recorder:  deps.Recorder,
		logger:    logger.Named("orch"),
	}
	if o.gate == nil {
		o.gate = gate.NewGate(gate.DefaultGateConfig(), gate.WithLogger(logger))
	}
	if o.evaluator == nil {
		o.evaluator = eval.NewEvaluator(eval.DefaultEvalConfig(), eval.WithLogger(logger))
	}
	if o.traits == nil {
		o.traits = traits.NewAnalyzer(traits.DefaultTraitConfig(), traits.WithLogger(logger))
	}
	o.engine = reasoning.NewEngine(config.Reasoning,
		reasoning.WithGenerator(deps.Generator),
		reasoning.WithLogger(logger),
	)
	return o
}

// Config returns a copy of the orchestrator's configuration.
func (o *Orchestrator) Config() Config { return o.config }

// Ready reports whether a generation capability is attached.
func (o *Orchestrator) Ready() bool { return o.generator != nil }

// #endregion orchestrator

// #region options
type turnOptions struct {
	retrieval bool
	reasoning bool
	details   bool
}

// Option overrides a default for a single turn.
type Option func(*turnOptions)

// WithRetrieval toggles context retrieval for the turn.
func WithRetrieval(on bool) Option {
	return func(t *turnOptions) { t.retrieval = on }
}

// WithReasoning toggles the staged reasoning pass for the turn.
func WithReasoning(on bool) Option {
	return func(t *turnOptions) { t.reasoning = on }
}

// WithDetails requests evaluation, traits and the trace.
func WithDetails(on bool) Option {
	return func(t *turnOptions) { t.details = on }
}

// #endregion options

// #region respond
// Respond runs one turn. Policy blocks are reported through Result;
// errors mean the turn was abandoned and nothing is recorded. When the
// caller cancels during reasoning, the returned Result still carries the
// completed steps in Details.Trace; stage timeouts salvage nothing.
func (o *Orchestrator) Respond(ctx context.Context, text string, opts ...Option) (Result, error) {
	if o.generator == nil {
		return Result{}, ErrGeneratorNotLoaded
	}
	to := turnOptions{
		retrieval: o.config.Retrieval,
		reasoning: o.config.Reasoning.Enabled,
		details:   o.config.Details,
	}
	for _, opt := range opts {
		opt(&to)
	}

	start := time.Now()
	turn := Turn{ID: uuid.NewString(), CreatedAt: start.UTC(), UserText: text}
	log := o.logger.With(zap.String("turn", turn.ID))

	var in gate.InputVerdict
	if err := o.stage(ctx, "input gate", func(ctx context.Context) error {
		in = o.gate.CheckInput(ctx, text)
		return nil
	}); err != nil {
		return Result{}, err
	}
	turn.Signals = in.Signals

	if !in.Admitted {
		log.Warn("input blocked",
			zap.Bool("crisis", in.Signals.CrisisDetected),
			zap.String("crisis_type", string(in.Signals.CrisisType)),
		)
		turn.ResponseText = in.Message
		turn.Duration = time.Since(start)
		o.record(ctx, turn)
		res := Result{
			TurnID:         turn.ID,
			Response:       in.Message,
			Safe:           false,
			CrisisDetected: in.Signals.CrisisDetected,
		}
		if to.details {
			res.Details = &Details{Signals: in.Signals, RetrievedContext: []string{}, Trace: []reasoning.Step{}}
		}
		return res, nil
	}

	if to.retrieval && o.retriever != nil {
		if err := o.stage(ctx, "retrieve", func(ctx context.Context) error {
			turn.RetrievedContext = o.retriever.Retrieve(ctx, text, o.config.TopK)
			return nil
		}); err != nil {
			return Result{}, err
		}
		log.Debug("context retrieved", zap.Int("chunks", len(turn.RetrievedContext)))
	}

	var reasoned reasoning.Result
	if err := o.stage(ctx, "reason", func(ctx context.Context) error {
		var err error
		if to.reasoning {
			reasoned, err = o.engine.Reason(ctx, text, turn.RetrievedContext)
		} else {
			reasoned, err = o.engine.Direct(ctx, text, turn.RetrievedContext)
		}
		return err
	}); err != nil {
		if !errors.Is(err, context.Canceled) || len(reasoned.Steps) == 0 {
			return Result{}, err
		}
		log.Info("turn cancelled", zap.Int("completed_steps", len(reasoned.Steps)))
		return Result{
			TurnID:        turn.ID,
			ReasoningUsed: reasoned.ReasoningUsed,
			Details: &Details{
				Signals:          in.Signals,
				RetrievedContext: nonNil(turn.RetrievedContext),
				Trace:            reasoned.Steps,
			},
		}, err
	}
	turn.Trace = reasoned.Steps
	turn.ReasoningUsed = reasoned.ReasoningUsed

	response := reasoned.FinalResponse
	var out gate.OutputVerdict
	if err := o.stage(ctx, "output gate", func(ctx context.Context) error {
		out = o.gate.CheckOutput(ctx, response)
		return nil
	}); err != nil {
		return Result{}, err
	}
	if !out.Admitted {
		log.Warn("output replaced")
		response = out.Replacement
	}
	response = gate.AddSafetyPrefix(response)

	turn.ResponseText = response
	turn.Safe = in.Admitted && out.Admitted
	turn.Signals = in.Signals.Merge(out.Signals)

	res := Result{
		TurnID:         turn.ID,
		Response:       response,
		Safe:           turn.Safe,
		CrisisDetected: in.Signals.CrisisDetected,
		ReasoningUsed:  turn.ReasoningUsed,
	}
	if to.details {
		score := o.evaluator.Evaluate(text, response, &turn.Signals)
		ts := o.traits.Analyze(response)
		turn.Evaluation = &score
		turn.Traits = &ts
		res.Details = &Details{
			Signals:          turn.Signals,
			RetrievedContext: nonNil(turn.RetrievedContext),
			Trace:            nonNilSteps(turn.Trace),
			Evaluation:       &score,
			Traits:           &ts,
			Interpretation:   traits.Interpret(ts),
			Profile:          traits.Profile(ts),
		}
	}

	turn.Duration = time.Since(start)
	o.record(ctx, turn)
	log.Info("turn complete",
		zap.Bool("safe", turn.Safe),
		zap.Bool("reasoning", turn.ReasoningUsed),
		zap.Int("steps", len(turn.Trace)),
		zap.Duration("took", turn.Duration),
	)
	return res, nil
}

// #endregion respond

// #region helpers
// stage runs fn under the stage deadline. Cancellation before the stage or
// expiry during it abandons the turn.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	sctx := ctx
	if o.config.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, o.config.StageTimeout)
		defer cancel()
	}
	if err := fn(sctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := sctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, turn Turn) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordTurn(context.WithoutCancel(ctx), turn); err != nil {
		o.logger.Error("failed to record turn", zap.String("turn", turn.ID), zap.Error(err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSteps(s []reasoning.Step) []reasoning.Step {
	if s == nil {
		return []reasoning.Step{}
	}
	return s
}

// #endregion helpers
