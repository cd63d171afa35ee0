package api

import (
	"net/http"
	"strconv"

	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	maxUtterance     = 8000
	defaultTurnLimit = 20
	maxTurnLimit     = 500
)

// #region create
// TurnRequest is the body of POST /v1/turns. Nil toggles use the server
// defaults.
type TurnRequest struct {
	Text      string `json:"text"`
	Retrieval *bool  `json:"retrieval,omitempty"`
	Reasoning *bool  `json:"reasoning,omitempty"`
	Details   *bool  `json:"details,omitempty"`
}

// Validate checks the request body.
func (r TurnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, maxUtterance)),
	)
}

func (r TurnRequest) options() []orchestrator.Option {
	var opts []orchestrator.Option
	if r.Retrieval != nil {
		opts = append(opts, orchestrator.WithRetrieval(*r.Retrieval))
	}
	if r.Reasoning != nil {
		opts = append(opts, orchestrator.WithReasoning(*r.Reasoning))
	}
	if r.Details != nil {
		opts = append(opts, orchestrator.WithDetails(*r.Details))
	}
	return opts
}

// CreateTurn runs one turn through the pipeline.
// POST /v1/turns
func (h *Handler) CreateTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if h.responder == nil {
		return errorJSON(c, http.StatusServiceUnavailable, orchestrator.ErrGeneratorNotLoaded.Error())
	}

	result, err := h.responder.Respond(c.Request().Context(), req.Text, req.options()...)
	if err != nil {
		h.logger.Error("turn failed", zap.Error(err))
		return errorJSON(c, statusFor(err), err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// #endregion create

// #region history
// ListTurns returns recent recorded turns.
// GET /v1/turns?limit=N
func (h *Handler) ListTurns(c echo.Context) error {
	if h.history == nil {
		return errorJSON(c, http.StatusNotFound, "turn history is disabled")
	}
	limit := defaultTurnLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTurnLimit {
			return errorJSON(c, http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}
	turns, err := h.history.RecentTurns(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("list turns failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to list turns")
	}
	return c.JSON(http.StatusOK, map[string]any{"turns": turns, "count": len(turns)})
}

// GetTurn returns one recorded turn.
// GET /v1/turns/:turn_id
func (h *Handler) GetTurn(c echo.Context) error {
	if h.history == nil {
		return errorJSON(c, http.StatusNotFound, "turn history is disabled")
	}
	turn, err := h.history.Turn(c.Request().Context(), c.Param("turn_id"))
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.Error("get turn failed", zap.Error(err))
		}
		return errorJSON(c, code, err.Error())
	}
	return c.JSON(http.StatusOK, turn)
}

// #endregion history
