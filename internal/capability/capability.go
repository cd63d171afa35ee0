package capability

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region contracts

// GenerateRequest is a single text-generation call.
// Context holds retrieved passages and may be empty.
// MaxTokens of 0 leaves the budget to the provider.
type GenerateRequest struct {
	Prompt    string
	Context   []string
	MaxTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ToxicityScorer rates text toxicity in [0,1].
type ToxicityScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// #endregion contracts

// #region fatal

// IsFatal reports whether err ends the turn: cancellation or deadline,
// whether raised locally or surfaced as a gRPC status.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	}
	return false
}

// #endregion fatal
