package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	chatDetails   bool
	noRetrieval   bool
	noReasoning   bool
	respondDetail bool
)

// responder is the slice of the orchestrator the chat loop needs.
type responder interface {
	Respond(ctx context.Context, text string, opts ...orchestrator.Option) (orchestrator.Result, error)
}

// #region commands
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session",
	Long: `Interactive session. Type a message and press enter.

  details    toggle the evaluation and reasoning view
  resources  show crisis resources
  quit       leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.orch, chatSession{
			details:   chatDetails,
			retrieval: !noRetrieval,
			reasoning: !noReasoning,
		})
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <message>",
	Short: "Run a single turn",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		s := chatSession{details: respondDetail, retrieval: !noRetrieval, reasoning: !noReasoning}
		result, err := a.orch.Respond(ctx, strings.Join(args, " "), s.options()...)
		if err != nil {
			return err
		}
		if jsonOut {
			return outputJSON(stdout(cmd), result)
		}
		printResult(stdout(cmd), result)
		return nil
	},
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Show crisis resources",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(stdout(cmd), gate.EmergencyResources())
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatDetails, "details", false, "Start with the details view on")
	respondCmd.Flags().BoolVar(&respondDetail, "details", false, "Include evaluation and reasoning trace")
	for _, c := range []*cobra.Command{chatCmd, respondCmd} {
		c.Flags().BoolVar(&noRetrieval, "no-retrieval", false, "Skip knowledge base retrieval")
		c.Flags().BoolVar(&noReasoning, "no-reasoning", false, "Single generation instead of staged reasoning")
	}
	rootCmd.AddCommand(chatCmd, respondCmd, resourcesCmd)
}

// #endregion commands

// #region loop
type chatSession struct {
	details   bool
	retrieval bool
	reasoning bool
}

func (s chatSession) options() []orchestrator.Option {
	return []orchestrator.Option{
		orchestrator.WithDetails(s.details),
		orchestrator.WithRetrieval(s.retrieval),
		orchestrator.WithReasoning(s.reasoning),
	}
}

// runChat reads lines from in until EOF, quit, or ctx ends. A failed turn
// is reported and the loop continues.
func runChat(ctx context.Context, in io.Reader, out io.Writer, r responder, s chatSession) error {
	fmt.Fprintln(out, "cotherapist ready. Type 'details' to toggle the evaluation view, 'quit' to exit.")
	fmt.Fprintln(out, "This is a support tool, not a replacement for professional care.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(text) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "details":
			s.details = !s.details
			state := "off"
			if s.details {
				state = "on"
			}
			fmt.Fprintf(out, "details %s\n", state)
			continue
		case "resources":
			fmt.Fprintln(out, gate.EmergencyResources())
			continue
		}

		result, err := r.Respond(ctx, text, s.options()...)
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printResult(out, result)
	}
	return scanner.Err()
}

// #endregion loop

// #region print
func printResult(w io.Writer, r orchestrator.Result) {
	fmt.Fprintf(w, "\n%s\n\n", r.Response)
	if r.CrisisDetected {
		fmt.Fprintln(w, gate.EmergencyResources())
		fmt.Fprintln(w)
	}
	d := r.Details
	if d == nil {
		return
	}
	if len(d.RetrievedContext) > 0 {
		fmt.Fprintf(w, "context: %d passages\n", len(d.RetrievedContext))
	}
	for _, step := range d.Trace {
		fmt.Fprintf(w, "  [%s] %s\n", step.Kind, firstLine(step.Content))
	}
	if e := d.Evaluation; e != nil {
		fmt.Fprintf(w, "overall %.2f | empathy %.2f relevance %.2f informativeness %.2f safety %.2f alliance %.2f clinical %.2f\n",
			e.Overall, e.Empathy, e.Relevance, e.Informativeness, e.Safety, e.TherapeuticAlliance, e.ClinicalAccuracy)
	}
	if len(d.Interpretation) > 0 {
		var parts []string
		for _, t := range traits.AllTraits {
			if band, ok := d.Interpretation[t]; ok {
				parts = append(parts, fmt.Sprintf("%s=%s", t, band))
			}
		}
		fmt.Fprintf(w, "traits: %s\n", strings.Join(parts, " "))
	}
	if d.Profile != "" {
		fmt.Fprintf(w, "profile: %s\n", d.Profile)
	}
	fmt.Fprintln(w)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100]) + "..."
	}
	return s
}

// #endregion print
