package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/barkprotocol/blinks"
	"github.com/barkprotocol/blinks/metrics"
	"github.com/barkprotocol/blinks/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the actions, actions.json and Solana Pay endpoints.

Examples:
  barkd serve
  barkd serve --addr :9090 --config /etc/barkd.yaml
  BARK_CHAIN_CLUSTER=mainnet-beta barkd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func runServe(addr string) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}
	defer log.Sync()

	if addr != "" {
		cfg.Server.Addr = addr
	}

	var (
		rec            metrics.Recorder = metrics.NoopRecorder{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		prom, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return err
		}
		rec = prom
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	b, err := blinks.New(cfg, blinks.WithLogger(log), blinks.WithMetrics(rec))
	if err != nil {
		return err
	}
	defer b.Close()

	gin.SetMode(gin.ReleaseMode)
	httpServer := server.New(b, log, rec, metricsHandler).HTTPServer()

	log.Info("starting HTTP server", map[string]any{
		"addr":          cfg.Server.Addr,
		"cluster":       cfg.Chain.Cluster.String(),
		"read_timeout":  cfg.Server.ReadTimeout.String(),
		"write_timeout": cfg.Server.WriteTimeout.String(),
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal for graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", map[string]any{"error": err})
			return err
		}
		return nil
	case <-sig:
	}

	log.Info("shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", map[string]any{"error": err})
		return err
	}

	log.Info("server shutdown complete", nil)
	return nil
}
