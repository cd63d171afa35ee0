package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyLast   int
	historyCrisis bool
	historyTurn   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Path == "" {
			return fmt.Errorf("turn recording is disabled (store.path is empty)")
		}
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		if historyTurn != "" {
			turn, err := s.Turn(ctx, historyTurn)
			if err != nil {
				return err
			}
			return outputJSON(stdout(cmd), turn)
		}

		var turns []orchestrator.Turn
		if historyCrisis {
			turns, err = s.CrisisTurns(ctx, historyLast)
		} else {
			turns, err = s.RecentTurns(ctx, historyLast)
		}
		if err != nil {
			return err
		}
		if jsonOut {
			return outputJSON(stdout(cmd), turns)
		}
		total, err := s.Count(ctx)
		if err != nil {
			return err
		}
		printHistory(stdout(cmd), turns, total)
		return nil
	},
}

func printHistory(w io.Writer, turns []orchestrator.Turn, total int) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "no turns recorded")
		return
	}
	fmt.Fprintf(w, "%-36s  %-14s  %-6s  %7s  %8s  %s\n", "Turn", "When", "Status", "Overall", "Took", "Message")
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		status := "ok"
		switch {
		case t.Signals.CrisisDetected:
			status = "crisis"
		case !t.Safe:
			status = "block"
		}
		overall := "-"
		if t.Evaluation != nil {
			overall = fmt.Sprintf("%.3f", t.Evaluation.Overall)
		}
		fmt.Fprintf(w, "%-36s  %-14s  %-6s  %7s  %8s  %s\n",
			t.ID, humanize.Time(t.CreatedAt), status, overall, t.Duration.Round(time.Millisecond), preview(t.UserText, 48))
	}
	fmt.Fprintf(w, "\nshowing %d of %s turns\n", len(turns), humanize.Comma(int64(total)))
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	historyCmd.Flags().IntVar(&historyLast, "last", 20, "Number of recent turns")
	historyCmd.Flags().BoolVar(&historyCrisis, "crisis", false, "Only turns where a crisis was detected")
	historyCmd.Flags().StringVar(&historyTurn, "turn", "", "Show one turn in full")
	rootCmd.AddCommand(historyCmd)
}
