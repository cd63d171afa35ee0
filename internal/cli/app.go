package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"github.com/danielpatrickdp/cotherapist/internal/codec"
	"github.com/danielpatrickdp/cotherapist/internal/config"
	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/gemini"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/policy"
	"github.com/danielpatrickdp/cotherapist/internal/retrieval"
	"github.com/danielpatrickdp/cotherapist/internal/store"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"go.uber.org/zap"
)

// #region backend
// backend is the model service behind every capability.
type backend struct {
	generator capability.Generator
	embedder  capability.Embedder
	toxicity  capability.ToxicityScorer
	close     func() error
}

func openBackend(ctx context.Context, c *config.Config, log *zap.Logger) (*backend, error) {
	switch c.Inference.Provider {
	case "grpc":
		client, err := codec.NewClient(c.Inference.Addr)
		if err != nil {
			return nil, fmt.Errorf("connect inference service %s: %w", c.Inference.Addr, err)
		}
		b := &backend{generator: client, embedder: client, close: client.Close}
		if c.Inference.Toxicity {
			b.toxicity = client
		}
		return b, nil
	case "gemini":
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:         c.Inference.GeminiAPIKey,
			Model:          c.Inference.Model,
			EmbeddingModel: c.Inference.EmbeddingModel,
		}, log)
		if err != nil {
			return nil, err
		}
		return &backend{generator: client, embedder: client, close: func() error { return nil }}, nil
	}
	return nil, fmt.Errorf("unknown inference provider %q", c.Inference.Provider)
}

// #endregion backend

// #region app
// app is a fully wired pipeline for one command invocation.
type app struct {
	orch      *orchestrator.Orchestrator
	evaluator *eval.Evaluator
	traits    *traits.Analyzer
	retriever *retrieval.Retriever
	store     *store.Store
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

// buildApp wires every component from cfg. Retrieval degrades to off when
// no index or knowledge base is available.
func buildApp(ctx context.Context, c *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	b, err := openBackend(ctx, c, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, b.close)

	pol, err := policy.LoadEngine(ctx, c.Safety.PolicyPath)
	if err != nil {
		return nil, err
	}
	gateOpts := []gate.Option{gate.WithPolicy(pol), gate.WithLogger(log)}
	if b.toxicity != nil {
		gateOpts = append(gateOpts, gate.WithToxicityScorer(b.toxicity))
	}
	g := gate.NewGate(c.GateConfig(), gateOpts...)

	a.evaluator = eval.NewEvaluator(c.EvalConfig(), eval.WithLogger(log))
	a.traits = traits.NewAnalyzer(c.TraitConfig(), traits.WithLogger(log))

	deps := orchestrator.Deps{
		Gate:      g,
		Generator: capability.Bounded(b.generator, c.Inference.Slots, c.Inference.CallTimeout),
		Evaluator: a.evaluator,
		Traits:    a.traits,
		Logger:    log,
	}

	if c.Retrieval.Enabled {
		a.retriever, err = loadRetriever(ctx, c, b.embedder, log)
		if err != nil {
			return nil, err
		}
		if a.retriever != nil && a.retriever.Len() > 0 {
			deps.Retriever = a.retriever
		}
	}

	if c.Store.Path != "" {
		a.store, err = store.Open(c.Store.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.store.Close)
		deps.Recorder = a.store
	}

	oc := c.OrchestratorConfig()
	oc.Retrieval = oc.Retrieval && deps.Retriever != nil
	a.orch = orchestrator.New(deps, oc)
	ok = true
	return a, nil
}

// loadRetriever prefers the persisted index and falls back to embedding
// the knowledge base directory.
func loadRetriever(ctx context.Context, c *config.Config, embedder capability.Embedder, log *zap.Logger) (*retrieval.Retriever, error) {
	r, err := retrieval.NewRetriever(embedder, c.RetrievalConfig(), log)
	if err != nil {
		return nil, err
	}
	err = r.LoadIndex(c.Retrieval.IndexDir)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, retrieval.ErrMissingArtifact) {
		return nil, err
	}
	log.Info("no persisted index, embedding knowledge base", zap.String("dir", c.Retrieval.KnowledgeBasePath))
	if _, err := r.LoadDirectory(ctx, c.Retrieval.KnowledgeBasePath); err != nil {
		log.Warn("knowledge base unavailable, retrieval disabled", zap.Error(err))
		return nil, nil
	}
	return r, nil
}

// #endregion app
