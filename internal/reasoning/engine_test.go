package reasoning

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"github.com/google/go-cmp/cmp"
)

// #region mock
// scriptedGenerator answers by stage, recognised from the prompt opening.
type scriptedGenerator struct {
	analysis string
	initial  string
	critique string
	refined  string
	direct   string
	errs     map[StepKind]error
	calls    []capability.GenerateRequest
}

func (g *scriptedGenerator) stage(prompt string) StepKind {
	switch {
	case strings.HasPrefix(prompt, "Analyze this"):
		return StepSituationAnalysis
	case strings.HasPrefix(prompt, "User's message"):
		return StepInitialResponse
	case strings.HasPrefix(prompt, "Evaluate this"):
		return StepSelfCritique
	case strings.HasPrefix(prompt, "Original response"):
		return StepRefinedResponse
	}
	return ""
}

func (g *scriptedGenerator) Generate(_ context.Context, req capability.GenerateRequest) (string, error) {
	g.calls = append(g.calls, req)
	kind := g.stage(req.Prompt)
	if err := g.errs[kind]; err != nil {
		return "", err
	}
	switch kind {
	case StepSituationAnalysis:
		return g.analysis, nil
	case StepInitialResponse:
		return g.initial, nil
	case StepSelfCritique:
		return g.critique, nil
	case StepRefinedResponse:
		return g.refined, nil
	}
	return g.direct, nil
}

func (g *scriptedGenerator) promptFor(kind StepKind) string {
	for _, c := range g.calls {
		if g.stage(c.Prompt) == kind {
			return c.Prompt
		}
	}
	return ""
}

func kinds(steps []Step) []StepKind {
	out := make([]StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func newScripted() *scriptedGenerator {
	return &scriptedGenerator{
		analysis: "The person seems stressed.",
		initial:  "I hear you. That sounds hard.",
		critique: "Looks good.",
		refined:  "I hear you. You might try a short walk.",
		direct:   "Direct reply.",
	}
}

// #endregion mock

// #region reason-tests
func TestReasonRefinesOnConsider(t *testing.T) {
	gen := newScripted()
	gen.critique = "Consider offering a concrete coping step."
	e := NewEngine(DefaultReasoningConfig(), WithGenerator(gen))

	res, err := e.Reason(context.Background(), "I feel anxious before exams", []string{"ctx passage"})
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	want := []StepKind{
		StepSituationAnalysis, StepNeedsAssessment, StepInitialResponse,
		StepSelfCritique, StepRefinedResponse, StepReflection,
	}
	if diff := cmp.Diff(want, kinds(res.Steps)); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	if res.FinalResponse != gen.refined {
		t.Errorf("final = %q, want refined response", res.FinalResponse)
	}
	if !res.ReasoningUsed {
		t.Error("ReasoningUsed should be true")
	}
}

func TestReasonKeepsInitialWhenCritiquePasses(t *testing.T) {
	gen := newScripted()
	e := NewEngine(DefaultReasoningConfig(), WithGenerator(gen))

	res, err := e.Reason(context.Background(), "I feel anxious", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	for _, s := range res.Steps {
		if s.Kind == StepRefinedResponse {
			t.Fatal("no refinement expected for a passing critique")
		}
	}
	if res.FinalResponse != gen.initial {
		t.Errorf("final = %q, want initial response", res.FinalResponse)
	}
}

func TestReasonNeedsImprovementTriggerIsCaseInsensitive(t *testing.T) {
	gen := newScripted()
	gen.critique = "This NEEDS IMPROVEMENT in warmth."
	res, err := NewEngine(DefaultReasoningConfig(), WithGenerator(gen)).Reason(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if res.FinalResponse != gen.refined {
		t.Errorf("expected refinement, final = %q", res.FinalResponse)
	}
}

func TestReasonDisabledMakesOneCall(t *testing.T) {
	gen := newScripted()
	cfg := DefaultReasoningConfig()
	cfg.Enabled = false
	res, err := NewEngine(cfg, WithGenerator(gen)).Reason(context.Background(), "I'm feeling stressed about school.", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(gen.calls))
	}
	if res.ReasoningUsed || len(res.Steps) != 0 {
		t.Errorf("expected empty trace without reasoning, got %+v", res)
	}
	if res.FinalResponse != gen.direct {
		t.Errorf("final = %q", res.FinalResponse)
	}
}

func TestReasonWithoutGeneratorUsesFallbacks(t *testing.T) {
	res, err := NewEngine(DefaultReasoningConfig()).Reason(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	got := map[StepKind]string{}
	for _, s := range res.Steps {
		got[s.Kind] = s.Content
	}
	if got[StepSituationAnalysis] != FallbackAnalysis {
		t.Errorf("analysis = %q", got[StepSituationAnalysis])
	}
	if got[StepInitialResponse] != FallbackResponse || res.FinalResponse != FallbackResponse {
		t.Errorf("initial = %q final = %q", got[StepInitialResponse], res.FinalResponse)
	}
	if got[StepSelfCritique] != FallbackCritique {
		t.Errorf("critique = %q", got[StepSelfCritique])
	}
	if _, ok := got[StepRefinedResponse]; ok {
		t.Error("fallback critique should not trigger refinement")
	}
}

func TestReasonStageBudgets(t *testing.T) {
	gen := newScripted()
	gen.critique = "consider more warmth"
	if _, err := NewEngine(DefaultReasoningConfig(), WithGenerator(gen)).Reason(context.Background(), "hi", []string{"passage"}); err != nil {
		t.Fatalf("Reason: %v", err)
	}
	budgets := map[StepKind]int{}
	contexts := map[StepKind]int{}
	for _, c := range gen.calls {
		k := gen.stage(c.Prompt)
		budgets[k] = c.MaxTokens
		contexts[k] = len(c.Context)
	}
	wantBudgets := map[StepKind]int{
		StepSituationAnalysis: 200,
		StepInitialResponse:   0,
		StepSelfCritique:      150,
		StepRefinedResponse:   300,
	}
	if diff := cmp.Diff(wantBudgets, budgets); diff != "" {
		t.Errorf("budget mismatch (-want +got):\n%s", diff)
	}
	if contexts[StepInitialResponse] != 1 || contexts[StepSelfCritique] != 0 {
		t.Errorf("retrieved context should reach the response stage only once per call, got %v", contexts)
	}
}

// #endregion reason-tests

// #region failure-tests
func TestReasonSubStageFailureFallsBack(t *testing.T) {
	gen := newScripted()
	gen.errs = map[StepKind]error{
		StepSituationAnalysis: errors.New("model busy"),
		StepSelfCritique:      errors.New("model busy"),
	}
	res, err := NewEngine(DefaultReasoningConfig(), WithGenerator(gen)).Reason(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("sub-stage failure should not fail the pass: %v", err)
	}
	if res.Steps[0].Content != FallbackAnalysis {
		t.Errorf("analysis = %q", res.Steps[0].Content)
	}
	if res.FinalResponse != gen.initial {
		t.Errorf("final = %q", res.FinalResponse)
	}
}

func TestReasonInitialFailureIsFatal(t *testing.T) {
	gen := newScripted()
	gen.errs = map[StepKind]error{StepInitialResponse: errors.New("oom")}
	_, err := NewEngine(DefaultReasoningConfig(), WithGenerator(gen)).Reason(context.Background(), "hi", nil)
	if err == nil {
		t.Fatal("expected initial response failure to be returned")
	}
}

func TestReasonDeadlineInSubStageIsFatal(t *testing.T) {
	gen := newScripted()
	gen.errs = map[StepKind]error{StepSelfCritique: context.DeadlineExceeded}
	res, err := NewEngine(DefaultReasoningConfig(), WithGenerator(gen)).Reason(context.Background(), "hi", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if got := kinds(res.Steps); len(got) != 3 {
		t.Errorf("completed steps should be kept, got %v", got)
	}
}

func TestReasonCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := newScripted()
	res, err := NewEngine(DefaultReasoningConfig(), WithGenerator(gen)).Reason(ctx, "hi", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(gen.calls) != 0 || len(res.Steps) != 0 {
		t.Errorf("no stage should run after cancellation, calls=%d steps=%d", len(gen.calls), len(res.Steps))
	}
}

// #endregion failure-tests

// #region analysis-tests
func TestSituationAnalysisDoesNotAffectResponse(t *testing.T) {
	run := func(cot bool, analysis string) (*scriptedGenerator, Result) {
		gen := newScripted()
		gen.analysis = analysis
		cfg := DefaultReasoningConfig()
		cfg.ChainOfThought = cot
		res, err := NewEngine(cfg, WithGenerator(gen)).Reason(context.Background(), "Why do I feel sad?", nil)
		if err != nil {
			t.Fatalf("Reason: %v", err)
		}
		return gen, res
	}
	withGen, with := run(true, "deep analysis mentioning grief")
	withoutGen, without := run(false, "")

	if with.FinalResponse != without.FinalResponse {
		t.Errorf("final response changed with analysis: %q vs %q", with.FinalResponse, without.FinalResponse)
	}
	if withGen.promptFor(StepInitialResponse) != withoutGen.promptFor(StepInitialResponse) {
		t.Error("initial response prompt should not depend on the situation analysis")
	}
	if strings.Contains(withGen.promptFor(StepInitialResponse), "grief") {
		t.Error("analysis text leaked into the response prompt")
	}
}

// #endregion analysis-tests

// #region rule-tests
func TestAssessNeeds(t *testing.T) {
	cases := []struct {
		query string
		want  []Need
	}{
		{"I feel sad", []Need{NeedEmotionalValidation, NeedEmpathyAndSupport}},
		{"How do I cope with stress?", []Need{NeedInformation, NeedCopingStrategies}},
		{"I want to end it", []Need{NeedCrisisSupport}},
		{"The sun is out", []Need{NeedGeneralSupport}},
		{"I'm feeling stressed about school.", []Need{NeedEmpathyAndSupport}},
	}
	for _, c := range cases {
		if diff := cmp.Diff(c.want, AssessNeeds(c.query)); diff != "" {
			t.Errorf("AssessNeeds(%q) mismatch (-want +got):\n%s", c.query, diff)
		}
	}
}

func TestReflect(t *testing.T) {
	words := func(n int) string { return strings.TrimSpace(strings.Repeat("okay ", n)) }
	cases := []struct {
		response string
		want     string
	}{
		{"I understand. Try breathing slowly.", "Response shows empathy; Provides actionable suggestions; May be too brief"},
		{words(49), "May be too brief"},
		{words(50), "Appropriate length"},
		{words(200), "Appropriate length"},
		{words(201), "May be too lengthy"},
	}
	for _, c := range cases {
		if got := Reflect(c.response); got != c.want {
			t.Errorf("Reflect(%d words) = %q, want %q", len(strings.Fields(c.response)), got, c.want)
		}
	}
}

// #endregion rule-tests
