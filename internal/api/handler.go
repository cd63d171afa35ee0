// Package api serves the pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/store"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// #region collaborators
// Responder runs turns and dataset evaluations.
type Responder interface {
	Respond(ctx context.Context, text string, opts ...orchestrator.Option) (orchestrator.Result, error)
	EvaluateDataset(ctx context.Context, examples []orchestrator.Example) (orchestrator.DatasetReport, error)
	Ready() bool
}

// History reads recorded turns.
type History interface {
	RecentTurns(ctx context.Context, limit int) ([]orchestrator.Turn, error)
	Turn(ctx context.Context, id string) (orchestrator.Turn, error)
}

// #endregion collaborators

// #region handler
// Handler handles HTTP requests.
type Handler struct {
	responder Responder
	history   History
	evaluator *eval.Evaluator
	traits    *traits.Analyzer
	logger    *zap.Logger
}

// NewHandler creates a handler. history may be nil when turns are not
// recorded.
func NewHandler(responder Responder, history History, evaluator *eval.Evaluator, analyzer *traits.Analyzer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = eval.NewEvaluator(eval.DefaultEvalConfig())
	}
	if analyzer == nil {
		analyzer = traits.NewAnalyzer(traits.DefaultTraitConfig())
	}
	return &Handler{
		responder: responder,
		history:   history,
		evaluator: evaluator,
		traits:    analyzer,
		logger:    logger.Named("api"),
	}
}

// NewServer returns an echo server with middleware and routes registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/turns", h.CreateTurn)
	e.GET("/v1/turns", h.ListTurns)
	e.GET("/v1/turns/:turn_id", h.GetTurn)
	e.POST("/v1/evaluations", h.Evaluate)
	e.POST("/v1/datasets/evaluate", h.EvaluateDataset)
	e.GET("/v1/resources", h.Resources)
	e.GET("/healthz", h.Health)
}

// #endregion handler

// #region basics
// Health returns health status.
// GET /healthz
func (h *Handler) Health(c echo.Context) error {
	status := "ok"
	if h.responder == nil || !h.responder.Ready() {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":          status,
		"generator_ready": h.responder != nil && h.responder.Ready(),
		"history":         h.history != nil,
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}

// Resources returns the crisis resource directory.
// GET /v1/resources
func (h *Handler) Resources(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"resources": gate.EmergencyResources()})
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrGeneratorNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// #endregion basics
