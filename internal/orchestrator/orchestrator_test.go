package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region mocks
type stubGenerator struct {
	mu      sync.Mutex
	reply   func(capability.GenerateRequest) (string, error)
	calls   []capability.GenerateRequest
	blockOn bool
}

func (g *stubGenerator) Generate(ctx context.Context, req capability.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.blockOn {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.reply == nil {
		return "I hear you. You might try journaling tonight.", nil
	}
	return g.reply(req)
}

func (g *stubGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type stubRetriever struct {
	mu       sync.Mutex
	passages []string
	queries  []string
}

func (r *stubRetriever) Retrieve(_ context.Context, query string, _ int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	return r.passages
}

type keywordToxicity struct{ word string }

func (k keywordToxicity) Score(_ context.Context, text string) (float64, error) {
	if strings.Contains(strings.ToLower(text), k.word) {
		return 0.95, nil
	}
	return 0.05, nil
}

type memRecorder struct {
	mu    sync.Mutex
	turns []Turn
	err   error
}

func (r *memRecorder) RecordTurn(_ context.Context, t Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
	return r.err
}

func directConfig() Config {
	cfg := DefaultConfig()
	cfg.Reasoning.Enabled = false
	return cfg
}

// #endregion mocks

// #region precondition-tests
func TestRespondWithoutGenerator(t *testing.T) {
	o := New(Deps{}, DefaultConfig())
	if o.Ready() {
		t.Fatal("orchestrator without generator should not be ready")
	}
	if _, err := o.Respond(context.Background(), "hello"); !errors.Is(err, ErrGeneratorNotLoaded) {
		t.Fatalf("expected ErrGeneratorNotLoaded, got %v", err)
	}
	if _, err := o.EvaluateDataset(context.Background(), []Example{{User: "hi"}}); !errors.Is(err, ErrGeneratorNotLoaded) {
		t.Fatalf("dataset: expected ErrGeneratorNotLoaded, got %v", err)
	}
}

// #endregion precondition-tests

// #region scenario-tests
func TestCrisisInputShortCircuits(t *testing.T) {
	gen := &stubGenerator{}
	ret := &stubRetriever{passages: []string{"unused"}}
	rec := &memRecorder{}
	o := New(Deps{
		Gate:      gate.NewGate(gate.DefaultGateConfig()),
		Retriever: ret,
		Generator: gen,
		Recorder:  rec,
	}, DefaultConfig())

	res, err := o.Respond(context.Background(), "I want to kill myself", WithDetails(true))
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Safe || !res.CrisisDetected {
		t.Errorf("expected unsafe crisis result, got %+v", res)
	}
	if res.Response != gate.DefaultEmergencyResponse {
		t.Errorf("response should be the emergency message, got %q", res.Response)
	}
	if res.Details == nil || res.Details.Signals.CrisisType != gate.CrisisSuicide {
		t.Errorf("details should carry the crisis type, got %+v", res.Details)
	}
	if gen.count() != 0 || len(ret.queries) != 0 {
		t.Errorf("no stage should run after a crisis block: gen=%d retrieve=%d", gen.count(), len(ret.queries))
	}
	if len(rec.turns) != 1 || rec.turns[0].Safe {
		t.Errorf("blocked turn should be recorded as unsafe, got %+v", rec.turns)
	}
}

func TestReasoningDisabledSingleCall(t *testing.T) {
	gen := &stubGenerator{}
	o := New(Deps{Gate: gate.NewGate(gate.DefaultGateConfig()), Generator: gen}, directConfig())

	res, err := o.Respond(context.Background(), "I'm feeling stressed about school.", WithDetails(true))
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if gen.count() != 1 {
		t.Errorf("expected one generation call, got %d", gen.count())
	}
	if res.ReasoningUsed || len(res.Details.Trace) != 0 {
		t.Errorf("expected empty trace without reasoning, got %+v", res.Details.Trace)
	}
	if !res.Safe || res.CrisisDetected {
		t.Errorf("expected a safe turn, got %+v", res)
	}
}

func TestFullPipelineDetails(t *testing.T) {
	gen := &stubGenerator{}
	ret := &stubRetriever{passages: []string{"Journaling can reduce rumination."}}
	o := New(Deps{
		Gate:      gate.NewGate(gate.DefaultGateConfig()),
		Retriever: ret,
		Generator: gen,
	}, DefaultConfig())

	res, err := o.Respond(context.Background(), "I can't sleep because I keep worrying", WithDetails(true))
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !res.ReasoningUsed {
		t.Error("reasoning should be used by default")
	}
	d := res.Details
	if d == nil {
		t.Fatal("details requested but missing")
	}
	if diff := cmp.Diff(ret.passages, d.RetrievedContext); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}
	var kinds []reasoning.StepKind
	for _, s := range d.Trace {
		kinds = append(kinds, s.Kind)
	}
	want := []reasoning.StepKind{
		reasoning.StepSituationAnalysis, reasoning.StepNeedsAssessment,
		reasoning.StepInitialResponse, reasoning.StepSelfCritique, reasoning.StepReflection,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if d.Evaluation == nil || d.Traits == nil || d.Profile == "" || len(d.Interpretation) != len(traits.AllTraits) {
		t.Errorf("scoring details incomplete: %+v", d)
	}

	sawContext := false
	for _, c := range gen.calls {
		if len(c.Context) == 1 && c.Context[0] == ret.passages[0] {
			sawContext = true
		}
	}
	if !sawContext {
		t.Error("retrieved context never reached the generator")
	}
}

func TestWithoutDetailsSkipsScoring(t *testing.T) {
	o := New(Deps{Generator: &stubGenerator{}}, directConfig())
	res, err := o.Respond(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Details != nil {
		t.Errorf("details should be omitted by default, got %+v", res.Details)
	}
}

func TestRetrievalToggle(t *testing.T) {
	ret := &stubRetriever{passages: []string{"p"}}
	o := New(Deps{Retriever: ret, Generator: &stubGenerator{}}, directConfig())
	if _, err := o.Respond(context.Background(), "hello", WithRetrieval(false)); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(ret.queries) != 0 {
		t.Errorf("retriever should not be consulted, got %v", ret.queries)
	}
	if _, err := o.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(ret.queries) != 1 {
		t.Errorf("retriever should be consulted once by default, got %d", len(ret.queries))
	}
}

func TestToxicOutputReplaced(t *testing.T) {
	gen := &stubGenerator{reply: func(capability.GenerateRequest) (string, error) {
		return "Honestly you are an idiot.", nil
	}}
	g := gate.NewGate(gate.DefaultGateConfig(), gate.WithToxicityScorer(keywordToxicity{word: "idiot"}))
	o := New(Deps{Gate: g, Generator: gen}, directConfig())

	res, err := o.Respond(context.Background(), "hello there", WithDetails(true))
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Safe || res.CrisisDetected {
		t.Errorf("expected unsafe output without crisis, got %+v", res)
	}
	// The replacement reads as advice ("need to") and receives the disclaimer.
	if res.Response != gate.SafetyPrefix+gate.OutputReplacement {
		t.Errorf("response = %q", res.Response)
	}
	sig := res.Details.Signals
	if sig.ToxicityScore == nil || *sig.ToxicityScore != 0.95 {
		t.Errorf("output toxicity should override input score, got %+v", sig)
	}
	if sig.MedicalAdviceFlag != "you are" {
		t.Errorf("medical flag = %q, want %q", sig.MedicalAdviceFlag, "you are")
	}
}

func TestDisclaimerInjected(t *testing.T) {
	gen := &stubGenerator{reply: func(capability.GenerateRequest) (string, error) {
		return "You should rest tonight.", nil
	}}
	o := New(Deps{Gate: gate.NewGate(gate.DefaultGateConfig()), Generator: gen}, directConfig())
	res, err := o.Respond(context.Background(), "tired")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.HasPrefix(res.Response, gate.SafetyPrefix) {
		t.Errorf("expected disclaimer, got %q", res.Response)
	}
}

func TestNilGateScreensByDefault(t *testing.T) {
	gen := &stubGenerator{}
	o := New(Deps{Generator: gen}, directConfig())

	res, err := o.Respond(context.Background(), "I want to kill myself", WithDetails(true))
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Safe || !res.CrisisDetected {
		t.Errorf("expected crisis block, got safe=%v crisis=%v", res.Safe, res.CrisisDetected)
	}
	if res.Response != gate.DefaultEmergencyResponse {
		t.Errorf("expected emergency response, got %q", res.Response)
	}
	if gen.count() != 0 {
		t.Errorf("crisis input must not reach the generator, got %d calls", gen.count())
	}
}

func TestDisabledGateAdmitsEverything(t *testing.T) {
	cfg := gate.DefaultGateConfig()
	cfg.Enabled = false
	gen := &stubGenerator{}
	o := New(Deps{Gate: gate.NewGate(cfg), Generator: gen}, directConfig())

	res, err := o.Respond(context.Background(), "I want to kill myself")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.CrisisDetected || gen.count() != 1 {
		t.Errorf("disabled gate should admit input, got crisis=%v calls=%d", res.CrisisDetected, gen.count())
	}
}

// #endregion scenario-tests

// #region failure-tests
func TestGenerationFailureIsFatal(t *testing.T) {
	gen := &stubGenerator{reply: func(capability.GenerateRequest) (string, error) {
		return "", errors.New("model crashed")
	}}
	rec := &memRecorder{}
	o := New(Deps{Generator: gen, Recorder: rec}, directConfig())
	if _, err := o.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("expected generation failure to abandon the turn")
	}
	if len(rec.turns) != 0 {
		t.Error("abandoned turns should not be recorded")
	}
}

func TestStageTimeout(t *testing.T) {
	cfg := directConfig()
	cfg.StageTimeout = 20 * time.Millisecond
	o := New(Deps{Generator: &stubGenerator{blockOn: true}}, cfg)

	_, err := o.Respond(context.Background(), "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !capability.IsFatal(err) {
		t.Error("stage timeout should classify as fatal")
	}
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &stubGenerator{}
	o := New(Deps{Generator: gen}, DefaultConfig())
	if _, err := o.Respond(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if gen.count() != 0 {
		t.Errorf("no generation after cancellation, got %d", gen.count())
	}
}

func TestCancelledMidReasoningKeepsTrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &stubGenerator{}
	gen.reply = func(capability.GenerateRequest) (string, error) {
		if gen.count() == 2 {
			cancel()
			return "That sounds heavy. What helps you unwind?", nil
		}
		return "The user is stressed about work.", nil
	}
	rec := &memRecorder{}
	o := New(Deps{Generator: gen, Recorder: rec}, DefaultConfig())

	res, err := o.Respond(ctx, "work has been rough")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Details == nil {
		t.Fatal("expected completed steps with the cancellation error")
	}
	var kinds []reasoning.StepKind
	for _, s := range res.Details.Trace {
		kinds = append(kinds, s.Kind)
	}
	want := []reasoning.StepKind{
		reasoning.StepSituationAnalysis,
		reasoning.StepNeedsAssessment,
		reasoning.StepInitialResponse,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if gen.count() != 2 {
		t.Errorf("no generation after cancellation, got %d calls", gen.count())
	}
	if len(rec.turns) != 0 {
		t.Error("cancelled turns should not be recorded")
	}
}

func TestStageTimeoutSalvagesNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StageTimeout = 20 * time.Millisecond
	o := New(Deps{Generator: &stubGenerator{blockOn: true}}, cfg)

	res, err := o.Respond(context.Background(), "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if res.Details != nil {
		t.Errorf("timed-out turns carry no trace, got %+v", res.Details)
	}
}

func TestRecorderFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := &memRecorder{err: errors.New("disk full")}
	o := New(Deps{Generator: &stubGenerator{}, Recorder: rec, Logger: zap.New(core)}, directConfig())

	if _, err := o.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("recorder failure must not fail the turn: %v", err)
	}
	if len(rec.turns) != 1 {
		t.Fatalf("recorder should be invoked once, got %d", len(rec.turns))
	}
	if logs.FilterMessage("failed to record turn").Len() != 1 {
		t.Error("expected the recorder failure to be logged")
	}
}

// #endregion failure-tests

// #region dataset-tests
func TestEvaluateDataset(t *testing.T) {
	gen := &stubGenerator{reply: func(req capability.GenerateRequest) (string, error) {
		return "About " + req.Prompt + ": I understand, that sounds difficult.", nil
	}}
	cfg := directConfig()
	cfg.Workers = 2
	cfg.Retrieval = false
	o := New(Deps{Gate: gate.NewGate(gate.DefaultGateConfig()), Generator: gen}, cfg)

	examples := []Example{
		{User: "exams", Assistant: "ref"},
		{User: "I want to kill myself"},
		{User: "my sister"},
		{User: "work"},
	}
	report, err := o.EvaluateDataset(context.Background(), examples)
	if err != nil {
		t.Fatalf("EvaluateDataset: %v", err)
	}
	if report.NumExamples != 4 || report.Evaluation.Count != 4 || len(report.Results) != 4 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	for i, ex := range examples {
		if i == 1 {
			continue
		}
		if !strings.Contains(report.Results[i].Response, ex.User) {
			t.Errorf("result %d out of order: %q", i, report.Results[i].Response)
		}
	}
	if report.Results[1].Safe || !report.Results[1].CrisisDetected {
		t.Errorf("crisis example should be blocked, got %+v", report.Results[1])
	}
	if gen.count() != 3 {
		t.Errorf("each admitted example should generate once, got %d", gen.count())
	}
	if len(report.Traits) != len(traits.AllTraits) {
		t.Errorf("expected stats for every configured trait, got %d", len(report.Traits))
	}
}

func TestEvaluateDatasetFailure(t *testing.T) {
	gen := &stubGenerator{reply: func(req capability.GenerateRequest) (string, error) {
		if req.Prompt == "bad" {
			return "", errors.New("boom")
		}
		return "ok", nil
	}}
	cfg := directConfig()
	cfg.Workers = 3
	o := New(Deps{Generator: gen}, cfg)
	_, err := o.EvaluateDataset(context.Background(), []Example{{User: "a"}, {User: "bad"}, {User: "c"}})
	if err == nil || !strings.Contains(err.Error(), "example 1") {
		t.Fatalf("expected failure naming example 1, got %v", err)
	}
}

// #endregion dataset-tests
