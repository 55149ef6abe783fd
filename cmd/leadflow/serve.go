package main

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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/leadflow"
	"github.com/arloliu/leadflow/internal/metrics"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the contact webhook, stage move routes and the metrics endpoint",
	Long: `Starts an HTTP server accepting contacts at the webhook path and exposing
Prometheus metrics at the metrics path.

Stage moves are driven through /contacts/{id}/move (POST to start with
{"stageId": "..."}, GET for the state, DELETE to cancel, POST .../retry after a
failure). Their lifecycle events are logged.

Example:
  leadflow serve --embedded-nats ./data --listen :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides webhook.listenAddr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listenAddr != "" {
		cfg.Webhook.ListenAddr = listenAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, shutdown, err := startService(ctx, metrics.NewPrometheus(reg, "leadflow"))
	if err != nil {
		return err
	}
	defer shutdown()

	events, unsubscribe, err := svc.SubscribeMovements()
	if err != nil {
		return err
	}
	defer unsubscribe()

	mux := http.NewServeMux()
	mux.Handle(cfg.Webhook.Path, svc.WebhookHandler())
	registerMoveRoutes(mux, svc)
	if cfg.Webhook.MetricsPath != "" {
		mux.Handle(cfg.Webhook.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK\n")
	})

	srv := &http.Server{
		Addr:              cfg.Webhook.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			"addr", srv.Addr, "webhook_path", cfg.Webhook.Path, "metrics_path", cfg.Webhook.MetricsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")

		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logMovements(gctx, events)
		return nil
	})

	return g.Wait()
}

func logMovements(ctx context.Context, events <-chan leadflow.MovementEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				logger.Warn("stage movement", "kind", ev.Kind.String(), "contact_id", ev.ContactID,
					"to_stage_id", ev.ToStageID, "attempt", ev.Attempt, "error", ev.Err)

				continue
			}
			logger.Debug("stage movement", "kind", ev.Kind.String(), "contact_id", ev.ContactID,
				"to_stage_id", ev.ToStageID, "attempt", ev.Attempt)
		}
	}
}
