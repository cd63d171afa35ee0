package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"go.uber.org/zap/zaptest"
)

type scriptedResponder struct {
	texts []string
	opts  []int
	fail  map[string]bool
}

func (s *scriptedResponder) Respond(_ context.Context, text string, opts ...orchestrator.Option) (orchestrator.Result, error) {
	s.texts = append(s.texts, text)
	s.opts = append(s.opts, len(opts))
	if s.fail[text] {
		return orchestrator.Result{}, errors.New("backend down")
	}
	return orchestrator.Result{Response: "reply to " + text, Safe: true}, nil
}

// #region loop-tests
func TestRunChat(t *testing.T) {
	logger = zaptest.NewLogger(t)
	in := strings.NewReader("hello\n\ndetails\nhow are you\nresources\nbroken\nquit\nnever sent\n")
	var out bytes.Buffer
	r := &scriptedResponder{fail: map[string]bool{"broken": true}}

	if err := runChat(context.Background(), in, &out, r, chatSession{retrieval: true, reasoning: true}); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	want := []string{"hello", "how are you", "broken"}
	if strings.Join(r.texts, "|") != strings.Join(want, "|") {
		t.Errorf("sent %q, want %q", r.texts, want)
	}
	for i, n := range r.opts {
		if n != 3 {
			t.Errorf("turn %d got %d options, want 3", i, n)
		}
	}
	got := out.String()
	for _, s := range []string{"reply to hello", "details on", "reply to how are you", "988", "error: backend down"} {
		if !strings.Contains(got, s) {
			t.Errorf("output missing %q:\n%s", s, got)
		}
	}
	if strings.Contains(got, "never sent") {
		t.Error("input after quit should not be processed")
	}
}

func TestRunChatStopsAtEOF(t *testing.T) {
	logger = zaptest.NewLogger(t)
	r := &scriptedResponder{}
	var out bytes.Buffer
	if err := runChat(context.Background(), strings.NewReader("one\ntwo"), &out, r, chatSession{}); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	if len(r.texts) != 2 {
		t.Errorf("expected 2 turns before EOF, got %d", len(r.texts))
	}
}

func TestRunChatCancelled(t *testing.T) {
	logger = zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &scriptedResponder{}
	var out bytes.Buffer
	if err := runChat(ctx, strings.NewReader("hello\n"), &out, r, chatSession{}); err != nil {
		t.Fatalf("runChat: %v", err)
	}
	if len(r.texts) != 0 {
		t.Error("cancelled session should not send turns")
	}
}

// #endregion loop-tests

// #region print-tests
func TestPrintResultDetails(t *testing.T) {
	score := eval.Score{Overall: 0.5, Empathy: 0.9}
	ts := traits.Neutral()
	ts.Agreeableness = 0.8
	res := orchestrator.Result{
		Response: "I hear you.",
		Details: &orchestrator.Details{
			RetrievedContext: []string{"a", "b"},
			Trace:            []reasoning.Step{{Kind: reasoning.StepInitialResponse, Content: "first line\nsecond line"}},
			Evaluation:       &score,
			Traits:           &ts,
			Interpretation:   traits.Interpret(ts),
			Profile:          traits.Profile(ts),
		},
	}
	var out bytes.Buffer
	printResult(&out, res)
	got := out.String()
	for _, s := range []string{
		"I hear you.",
		"context: 2 passages",
		"[initial_response] first line ...",
		"overall 0.50 | empathy 0.90",
		"agreeableness=High",
		"profile: ",
	} {
		if !strings.Contains(got, s) {
			t.Errorf("output missing %q:\n%s", s, got)
		}
	}
	if strings.Contains(got, "second line") {
		t.Error("trace lines should be cut to their first line")
	}
}

func TestPrintResultCrisis(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, orchestrator.Result{Response: "please reach out", CrisisDetected: true})
	if !strings.Contains(out.String(), "741741") {
		t.Errorf("crisis result should list resources:\n%s", out.String())
	}
}

func TestPreview(t *testing.T) {
	if got := preview("  a\n b  ", 10); got != "a b" {
		t.Errorf("preview collapsed = %q", got)
	}
	if got := preview(strings.Repeat("x", 60), 10); got != "xxxxxxx..." {
		t.Errorf("preview truncated = %q", got)
	}
}

// #endregion print-tests
