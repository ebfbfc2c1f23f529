package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"commerce-backend/internal/app"
	"commerce-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	ctx := context.Background()
	container, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}
	logger := container.Logger

	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Stop()
		watcher.OnChange(func(next *config.Config) {
			if err := container.ApplyLogging(next.Logging); err != nil {
				logger.Warn("Reloaded logging config rejected", zap.Error(err))
			}
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      container.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			zap.String("addr", server.Addr),
			zap.String("environment", string(cfg.Environment)),
		)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	container.Shutdown(shutdownCtx)
}
