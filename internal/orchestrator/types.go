package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
)

// ErrGeneratorNotLoaded is returned when a turn is requested before a
// generation capability is attached.
var ErrGeneratorNotLoaded = errors.New("generator not loaded")

// #region collaborators
// Retriever supplies context passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) []string
}

// Recorder persists completed turns.
type Recorder interface {
	RecordTurn(ctx context.Context, turn Turn) error
}

// #endregion collaborators

// #region config
// Config holds the per-orchestrator defaults. It is copied at construction
// and never changes afterwards.
type Config struct {
	Retrieval    bool
	TopK         int // 0 uses the retriever's default
	Reasoning    reasoning.ReasoningConfig
	Details      bool
	StageTimeout time.Duration // 0 disables stage deadlines
	Workers      int           // dataset parallelism
}

// DefaultConfig enables retrieval and full reasoning.
func DefaultConfig() Config {
	return Config{
		Retrieval:    true,
		Reasoning:    reasoning.DefaultReasoningConfig(),
		StageTimeout: 60 * time.Second,
		Workers:      1,
	}
}

// #endregion config

// #region turn
// Turn is the full record of one utterance-to-response cycle.
type Turn struct {
	ID               string             `json:"id"`
	CreatedAt        time.Time          `json:"created_at"`
	UserText         string             `json:"user_text"`
	RetrievedContext []string           `json:"retrieved_context"`
	Trace            []reasoning.Step   `json:"trace"`
	ResponseText     string             `json:"response"`
	Safe             bool               `json:"safe"`
	ReasoningUsed    bool               `json:"reasoning_used"`
	Signals          gate.SafetySignals `json:"signals"`
	Evaluation       *eval.Score        `json:"evaluation,omitempty"`
	Traits           *traits.Scores     `json:"traits,omitempty"`
	Duration         time.Duration      `json:"duration_ns"`
}

// #endregion turn

// #region result
// Details is the extended view returned when details are requested.
type Details struct {
	Signals          gate.SafetySignals           `json:"safety_checks"`
	RetrievedContext []string                     `json:"context_used"`
	Trace            []reasoning.Step             `json:"reasoning_steps"`
	Evaluation       *eval.Score                  `json:"evaluation,omitempty"`
	Traits           *traits.Scores               `json:"traits,omitempty"`
	Interpretation   map[traits.Trait]traits.Band `json:"interpretation,omitempty"`
	Profile          string                       `json:"therapeutic_profile,omitempty"`
}

// Result is what a caller sees for one turn.
type Result struct {
	TurnID         string   `json:"turn_id"`
	Response       string   `json:"response"`
	Safe           bool     `json:"safe"`
	CrisisDetected bool     `json:"crisis_detected"`
	ReasoningUsed  bool     `json:"reasoning_used"`
	Details        *Details `json:"details,omitempty"`
}

// #endregion result

// #region dataset
// Example is one dataset row. Assistant is the optional reference reply.
type Example struct {
	User      string `json:"user"`
	Assistant string `json:"assistant,omitempty"`
}

// DatasetReport aggregates a dataset run.
type DatasetReport struct {
	NumExamples int                         `json:"num_examples"`
	Evaluation  eval.BatchReport            `json:"evaluation"`
	Traits      map[traits.Trait]eval.Stats `json:"traits"`
	Results     []Result                    `json:"results"`
}

// #endregion dataset
