package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/replay"
	"github.com/danielpatrickdp/cotherapist/internal/store"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	replayDataset string
	replayLimit   int
)

// #region evaluate
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <dataset>",
	Short: "Run a JSON or JSONL dataset through the pipeline and report metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		examples, err := replay.LoadDataset(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		report, err := a.orch.EvaluateDataset(ctx, examples)
		if err != nil {
			return err
		}
		logger.Info("dataset evaluated", zap.Int("examples", report.NumExamples), zap.Duration("took", time.Since(start)))
		if jsonOut {
			return outputJSON(stdout(cmd), report)
		}
		printDatasetReport(stdout(cmd), report, a.evaluator.Metrics())
		return nil
	},
}

func printDatasetReport(w io.Writer, r orchestrator.DatasetReport, metrics []eval.Metric) {
	crisis := 0
	for _, res := range r.Results {
		if res.CrisisDetected {
			crisis++
		}
	}
	fmt.Fprintf(w, "%s examples, %s crisis turns\n\n", humanize.Comma(int64(r.NumExamples)), humanize.Comma(int64(crisis)))
	printStatsTable(w, r.Evaluation, metrics, r.Traits)
}

func printStatsTable(w io.Writer, report eval.BatchReport, metrics []eval.Metric, ts map[traits.Trait]eval.Stats) {
	fmt.Fprintf(w, "%-22s  %6s  %6s  %6s  %6s\n", "Metric", "Mean", "Std", "Min", "Max")
	for _, m := range metrics {
		st := report.Metrics[m]
		fmt.Fprintf(w, "%-22s  %6.3f  %6.3f  %6.3f  %6.3f\n", m, st.Mean, st.Std, st.Min, st.Max)
	}
	fmt.Fprintf(w, "%-22s  %6.3f  %6.3f  %6.3f  %6.3f\n", "overall", report.Overall.Mean, report.Overall.Std, report.Overall.Min, report.Overall.Max)
	if len(ts) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, t := range traits.AllTraits {
		st, ok := ts[t]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-22s  %6.3f  %6.3f  %-12s\n", t, st.Mean, st.Std, traits.BandFor(st.Mean))
	}
}

// #endregion evaluate

// #region replay
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-score recorded turns or dataset reference answers without generating",
	RunE: func(cmd *cobra.Command, args []string) error {
		var interactions []replay.Interaction
		if replayDataset != "" {
			examples, err := replay.LoadDataset(replayDataset)
			if err != nil {
				return err
			}
			interactions = replay.FromExamples(examples)
		} else {
			if cfg.Store.Path == "" {
				return fmt.Errorf("no recorded turns: store.path is empty (use --dataset)")
			}
			s, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()
			turns, err := s.RecentTurns(cmd.Context(), replayLimit)
			if err != nil {
				return err
			}
			interactions = replay.FromTurns(turns)
		}
		if len(interactions) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "nothing to replay")
			return nil
		}

		evaluator := eval.NewEvaluator(cfg.EvalConfig(), eval.WithLogger(logger))
		analyzer := traits.NewAnalyzer(cfg.TraitConfig(), traits.WithLogger(logger))
		results := replay.Rescore(interactions, evaluator, analyzer)
		summary := replay.Summarize(results, evaluator, analyzer)
		if jsonOut {
			return outputJSON(stdout(cmd), map[string]any{"summary": summary, "results": results})
		}

		w := stdout(cmd)
		fmt.Fprintf(w, "%s turns re-scored, %d crisis\n", humanize.Comma(int64(summary.TotalTurns)), summary.CrisisTurns)
		if summary.Compared > 0 {
			fmt.Fprintf(w, "%d compared with recorded scores: %d improved, %d regressed, mean drift %+.4f\n",
				summary.Compared, summary.Improved, summary.Regressed, summary.MeanDrift)
		}
		fmt.Fprintln(w)
		printStatsTable(w, summary.Evaluation, evaluator.Metrics(), summary.Traits)
		fmt.Fprintf(w, "\n%s\n", summary.TraitProfile)
		return nil
	},
}

// #endregion replay

func init() {
	replayCmd.Flags().StringVar(&replayDataset, "dataset", "", "Re-score reference answers from this dataset instead of recorded turns")
	replayCmd.Flags().IntVar(&replayLimit, "last", 200, "Number of recent turns to re-score")
	rootCmd.AddCommand(evaluateCmd, replayCmd)
}
