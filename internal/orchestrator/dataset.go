package orchestrator

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region evaluate-dataset
// EvaluateDataset runs one detailed turn per example across the configured
// workers, then aggregates evaluation and trait statistics over the
// responses. Results keep input order. Any abandoned turn fails the run.
func (o *Orchestrator) EvaluateDataset(ctx context.Context, examples []Example) (DatasetReport, error) {
	if o.generator == nil {
		return DatasetReport{}, ErrGeneratorNotLoaded
	}
	o.logger.Info("evaluating dataset",
		zap.Int("examples", len(examples)),
		zap.Int("workers", o.config.Workers),
	)

	results := make([]Result, len(examples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)
	for i, ex := range examples {
		g.Go(func() error {
			res, err := o.Respond(gctx, ex.User, WithDetails(true))
			if err != nil {
				return fmt.Errorf("example %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DatasetReport{}, fmt.Errorf("evaluate dataset: %w", err)
	}

	scores := make([]eval.Score, len(results))
	traitScores := make([]traits.Scores, len(results))
	for i, res := range results {
		signals := res.Details.Signals
		if res.Details.Evaluation != nil {
			scores[i] = *res.Details.Evaluation
		} else {
			scores[i] = o.evaluator.Evaluate(examples[i].User, res.Response, &signals)
		}
		if res.Details.Traits != nil {
			traitScores[i] = *res.Details.Traits
		} else {
			traitScores[i] = o.traits.Analyze(res.Response)
		}
	}

	return DatasetReport{
		NumExamples: len(examples),
		Evaluation:  o.evaluator.Aggregate(scores),
		Traits:      o.traits.Aggregate(traitScores),
		Results:     results,
	}, nil
}

// #endregion evaluate-dataset
