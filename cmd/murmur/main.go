// Command murmur runs one broadcast node, speaking newline-delimited JSON on
// stdin and stdout. Logs go to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arya-analytics/murmur"
	"github.com/arya-analytics/murmur/internal/config"
	"github.com/arya-analytics/murmur/internal/telemetry"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() { os.Exit(run()) }

func run() int {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: telemetry.Handler(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	// Reads of os.Stdin cannot be interrupted, so the node reads from a pipe it
	// is free to close.
	in, inW := io.Pipe()
	go func() {
		_, err := io.Copy(inW, os.Stdin)
		_ = inW.CloseWithError(err)
	}()

	err = murmur.Run(
		ctx,
		in,
		os.Stdout,
		murmur.WithLogger(logger),
		murmur.WithGossipInterval(cfg.GossipInterval),
		murmur.WithRegisterer(reg),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("node failed", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
