package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/api"
	"github.com/danielpatrickdp/cotherapist/internal/codec"
	"github.com/danielpatrickdp/cotherapist/internal/gemini"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const shutdownGrace = 10 * time.Second

var (
	serveAddr     string
	inferenceAddr string
)

// #region serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var history api.History
		if a.store != nil {
			history = a.store
		}
		e := api.NewServer(api.NewHandler(a.orch, history, a.evaluator, a.traits, logger))

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info("http api listening", zap.String("addr", addr))
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down http api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}

// #endregion serve

// #region serve-inference
var serveInferenceCmd = &cobra.Command{
	Use:   "serve-inference",
	Short: "Expose Gemini over the gRPC inference service",
	Long: `Serves Generate and Embed over gRPC using the Gemini API, so other
cotherapist processes can run with inference.provider=grpc.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, err := gemini.New(ctx, gemini.Config{
			APIKey:         cfg.Inference.GeminiAPIKey,
			Model:          cfg.Inference.Model,
			EmbeddingModel: cfg.Inference.EmbeddingModel,
		}, logger)
		if err != nil {
			return err
		}

		addr := cfg.Inference.Addr
		if inferenceAddr != "" {
			addr = inferenceAddr
		}
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		srv := grpc.NewServer()
		codec.RegisterInferenceServiceServer(srv, codec.NewServer(g, g, nil, logger))

		go func() {
			<-ctx.Done()
			logger.Info("stopping inference service")
			srv.GracefulStop()
		}()
		logger.Info("inference service listening", zap.String("addr", lis.Addr().String()))
		return srv.Serve(lis)
	},
}

// #endregion serve-inference

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
	serveInferenceCmd.Flags().StringVar(&inferenceAddr, "addr", "", "Listen address (defaults to inference.addr)")
	rootCmd.AddCommand(serveCmd, serveInferenceCmd)
}
