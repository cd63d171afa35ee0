package api

import (
	"net/http"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxBatch = 1000

// #region score
// EvaluationSample is one pair to score.
type EvaluationSample struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Validate checks one sample.
func (s EvaluationSample) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Response, validation.Required),
	)
}

// EvaluationRequest is the body of POST /v1/evaluations.
type EvaluationRequest struct {
	Samples []EvaluationSample `json:"samples"`
}

// Validate checks the request body.
func (r EvaluationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Samples, validation.Required, validation.Length(1, maxBatch)),
	)
}

// SampleResult is the per-sample part of an evaluation response.
type SampleResult struct {
	Evaluation     eval.Score                   `json:"evaluation"`
	Traits         traits.Scores                `json:"traits"`
	Interpretation map[traits.Trait]traits.Band `json:"interpretation"`
}

// Evaluate scores supplied responses without generating anything.
// POST /v1/evaluations
func (h *Handler) Evaluate(c echo.Context) error {
	var req EvaluationRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	results := make([]SampleResult, len(req.Samples))
	scores := make([]eval.Score, len(req.Samples))
	traitScores := make([]traits.Scores, len(req.Samples))
	for i, s := range req.Samples {
		scores[i] = h.evaluator.Evaluate(s.Query, s.Response, nil)
		traitScores[i] = h.traits.Analyze(s.Response)
		results[i] = SampleResult{
			Evaluation:     scores[i],
			Traits:         traitScores[i],
			Interpretation: traits.Interpret(traitScores[i]),
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"results":    results,
		"evaluation": h.evaluator.Aggregate(scores),
		"traits":     h.traits.Aggregate(traitScores),
	})
}

// #endregion score

// #region dataset
// DatasetRequest is the body of POST /v1/datasets/evaluate.
type DatasetRequest struct {
	Examples []orchestrator.Example `json:"examples"`
}

// Validate checks the request body.
func (r DatasetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Examples, validation.Required, validation.Length(1, maxBatch)),
	)
}

// EvaluateDataset runs every example through the pipeline.
// POST /v1/datasets/evaluate
func (h *Handler) EvaluateDataset(c echo.Context) error {
	var req DatasetRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if h.responder == nil {
		return errorJSON(c, http.StatusServiceUnavailable, orchestrator.ErrGeneratorNotLoaded.Error())
	}
	report, err := h.responder.EvaluateDataset(c.Request().Context(), req.Examples)
	if err != nil {
		h.logger.Error("dataset evaluation failed", zap.Error(err))
		return errorJSON(c, statusFor(err), err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// #endregion dataset
