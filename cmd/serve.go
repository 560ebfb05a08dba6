// =============================================================================
// GTD Declaration Engine - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   gtd serve [--addr :8080]
//
// ENDPOINTS:
//   POST /v1/declarations/check        : report document
//   POST /v1/declarations/export/xml   : XML export
//   POST /v1/declarations/export/print : print model
//   POST /v1/extractions/merge         : merged form with provenance
//   GET  /healthz, GET /metrics
//
// The server stops gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/httpapi"
)

// shutdownTimeout bounds how long in-flight requests may take on shutdown.
const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := cfg.HTTP.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		engine, closer, err := newEngine(ctx, reg)
		if err != nil {
			return err
		}
		defer closer.Close()

		srv := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(httpapi.New(engine, logger), reg),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("http server listening", "addr", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
		}

		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default http.addr)")
}
