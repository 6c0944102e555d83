package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/venla/onboard-gateway/internal/api"
	"github.com/venla/onboard-gateway/internal/audit"
	"github.com/venla/onboard-gateway/internal/coalesce"
	"github.com/venla/onboard-gateway/internal/config"
	"github.com/venla/onboard-gateway/internal/edge"
	"github.com/venla/onboard-gateway/internal/logging"
	"github.com/venla/onboard-gateway/internal/monitor"
	"github.com/venla/onboard-gateway/internal/onboarding"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("gateway-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	edgeClient, err := edge.New(edge.Config{
		BaseURL:       cfg.EdgeBaseURL,
		APIKey:        cfg.EdgeAPIKey,
		SigningSecret: cfg.InternalSigningSecret,
		Timeout:       cfg.EdgeTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build onboarding edge client")
	}

	authBaseURL := cfg.AuthBaseURL
	if authBaseURL == "" {
		authBaseURL = cfg.EdgeBaseURL
	}
	authClient, err := edge.New(edge.Config{
		BaseURL:       authBaseURL,
		APIKey:        cfg.EdgeAPIKey,
		SigningSecret: cfg.InternalSigningSecret,
		Timeout:       cfg.EdgeTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build auth edge client")
	}

	var sink audit.Sink
	if cfg.AuditURL != "" {
		sink = audit.NewHTTPSink(cfg.AuditURL, cfg.AuditToken)
	}
	recorder := audit.NewRecorder(sink, logger)
	defer recorder.Close()

	notifier := monitor.NewLogNotifier(logger)
	svc := onboarding.NewService(edgeClient, notifier)

	srv := api.NewServer(logger, cfg, api.Deps{
		Onboarding: svc,
		AuthClient: authClient,
		Coalescer:  coalesce.New(cfg.CoalesceTTL),
		Auditor:    recorder,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting onboarding gateway")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
