package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"odin-dobj/internal/appschema"
	"odin-dobj/internal/auth"
	"odin-dobj/internal/config"
	"odin-dobj/internal/fanout"
	"odin-dobj/internal/logging"
	"odin-dobj/internal/metrics"
	"odin-dobj/internal/session"
	"odin-dobj/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	metricsRegistry := metrics.NewRegistry()
	warner := &metrics.CodecWarner{Registry: metricsRegistry, Logger: logger}

	var verifier auth.Verifier
	if cfg.Auth.RequireVerifiedToken {
		verifier = auth.NewManager(cfg.Auth.SecretKey, cfg.Auth.TokenDuration)
	}

	var bus *fanout.Bus
	if cfg.Fanout.Enabled {
		fanoutCfg := fanout.DefaultConfig(cfg.Fanout.URL)
		fanoutCfg.Subject = cfg.Fanout.Subject
		var err error
		bus, err = fanout.Connect(fanoutCfg, logger)
		if err != nil {
			logger.Fatal("fanout connect failed", zap.Error(err))
		}
		defer bus.Close()
	}

	// A single shared root is built once for the process, not per
	// connection: every session resolves paths against this same object
	// graph, so concurrent subscribers to the same key (e.g. rooms/"lobby")
	// share one materialised Room and see each other's Players/Chat
	// updates (spec.md §4.5 "concurrent subscribers to the same key share
	// one materialisation").
	var root *appschema.Root
	if bus != nil {
		root = appschema.NewRoot(warner, bus)
		if err := bus.Subscribe(root.DeliverRelay); err != nil {
			logger.Fatal("fanout subscribe failed", zap.Error(err))
		}
	} else {
		root = appschema.NewRoot(warner, nil)
	}

	newSession := func() transport.Session {
		sess := session.New(logger, metricsRegistry, root, verifier, cfg.WebSocket.SendQueueSize)
		sess.OnAuthenticate(root.Meta)
		return sess
	}

	transportServer := transport.NewServer(cfg, logger, metricsRegistry, newSession)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := transportServer.Start(ctx); err != nil {
		logger.Fatal("transport start failed", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- runMetricsServer(ctx, cfg, metricsRegistry, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := transportServer.Stop(shutdownCtx); err != nil {
		logger.Warn("transport stop error", zap.Error(err))
	}
	logger.Info("transport stopped")
}

func runMetricsServer(ctx context.Context, cfg config.Config, metricsRegistry *metrics.Registry, logger *zap.Logger) error {
	if !cfg.Metrics.Enabled {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Endpoint, metricsRegistry.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
