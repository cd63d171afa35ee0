// Package policy evaluates the safety gate's toxicity rules with OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/open-policy-agent/opa/rego"
)

// Engine is a rego-backed gate.Policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares policyContent. The module must define
// data.cotherapist.safety.block as a boolean.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.cotherapist.safety.block"),
		rego.Module("safety.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// LoadEngine reads a policy file, or uses DefaultPolicy when path is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(data))
}

// Block implements gate.Policy. An undefined result admits.
func (e *Engine) Block(ctx context.Context, in gate.PolicyInput) (bool, error) {
	input := map[string]interface{}{
		"stage":              string(in.Stage),
		"toxicity_score":     in.ToxicityScore,
		"toxicity_threshold": in.ToxicityThreshold,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	val := results[0].Expressions[0].Value
	block, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate policy: expected bool, got %T", val)
	}
	return block, nil
}

// DefaultPolicy mirrors gate.ThresholdPolicy.
const DefaultPolicy = `
package cotherapist.safety

default block = false

block {
	input.toxicity_score > input.toxicity_threshold
}
`
