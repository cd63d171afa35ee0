package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/cotherapist/internal/gate"
)

func TestDefaultPolicyMatchesThreshold(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	for _, score := range []float64{0, 0.3, 0.69, 0.7, 0.71, 1} {
		in := gate.PolicyInput{Stage: gate.StageInput, ToxicityScore: score, ToxicityThreshold: 0.7}
		got, err := e.Block(ctx, in)
		if err != nil {
			t.Fatalf("Block(%v): %v", score, err)
		}
		want, _ := gate.ThresholdPolicy{}.Block(ctx, in)
		if got != want {
			t.Errorf("score %v: rego=%v threshold=%v", score, got, want)
		}
	}
}

func TestStageSpecificPolicy(t *testing.T) {
	ctx := context.Background()
	stricter := `
package cotherapist.safety

default block = false

block {
	input.stage == "output"
	input.toxicity_score > 0.3
}

block {
	input.toxicity_score > input.toxicity_threshold
}
`
	e, err := NewEngine(ctx, stricter)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	out, _ := e.Block(ctx, gate.PolicyInput{Stage: gate.StageOutput, ToxicityScore: 0.4, ToxicityThreshold: 0.7})
	if !out {
		t.Error("expected stricter output rule to block")
	}
	in, _ := e.Block(ctx, gate.PolicyInput{Stage: gate.StageInput, ToxicityScore: 0.4, ToxicityThreshold: 0.7})
	if in {
		t.Error("input should use the configured threshold")
	}
}

func TestGateWithRegoPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	g := gate.NewGate(gate.DefaultGateConfig(), gate.WithToxicityScorer(scoreOf(0.9)), gate.WithPolicy(e))

	v := g.CheckInput(ctx, "some hostile text")
	if v.Admitted {
		t.Fatal("expected block through rego policy")
	}
	if v.Message != gate.InputBlockedMessage {
		t.Fatalf("unexpected message %q", v.Message)
	}
}

func TestLoadEngine(t *testing.T) {
	ctx := context.Background()
	if _, err := LoadEngine(ctx, ""); err != nil {
		t.Fatalf("default policy: %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.rego")
	if err := os.WriteFile(path, []byte("package broken\nblock {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEngine(ctx, path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadEngine(ctx, filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Fatal("expected read error")
	}
}

type scoreOf float64

func (s scoreOf) Score(context.Context, string) (float64, error) { return float64(s), nil }
