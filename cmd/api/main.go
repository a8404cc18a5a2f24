package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"brewbook/internal/api"
	"brewbook/internal/app"
	"brewbook/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "", "Path to the YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := app.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := app.NewLogger(cfg.Logging, nil)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("initialise services failed", "error", err)
		log.Fatalf("failed to initialise services: %v", err)
	}
	defer services.Close()

	var jobs *scheduler.Scheduler
	if services.DrinkOfDay != nil {
		jobs, err = scheduler.New(cfg.Scheduler, services.DrinkOfDay, logger)
		if err != nil {
			log.Fatalf("failed to schedule jobs: %v", err)
		}
		jobs.Start()
	}

	server := api.NewServer(services.APIDependencies(), api.Options{
		Auth:          cfg.Auth,
		RateLimit:     cfg.Server.RateLimit,
		MaxScrapeURLs: cfg.Server.MaxScrapeURLs,
		Logger:        logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Duration,
		ReadTimeout:       cfg.Server.ReadTimeout.Duration,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		if jobs != nil {
			if err := jobs.Stop(shutdownCtx); err != nil {
				logger.Error("scheduler shutdown error", "error", err)
			}
		}
	}()

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("jwt secret not set; mutating routes are unauthenticated")
	}
	logger.Info("api server listening", "addr", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("api server stopped")
}
