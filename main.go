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

	"go.uber.org/zap"

	"tablestore/internal/config"
	"tablestore/internal/dbclient"
	"tablestore/internal/logging"
	mcpserver "tablestore/internal/mcp"
	"tablestore/internal/secret"
	"tablestore/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	secrets := secret.Chain{secret.NewEnvStore(), secret.NewKeychainStore(secret.DefaultKeychainService)}
	store, err := dbclient.Open(ctx, dbclient.Options{
		Driver:   cfg.Driver,
		DSN:      cfg.DSN,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Database: cfg.DBName,
		Username: cfg.DBUser,
		Password: cfg.DBPassword,
		SSLMode:  cfg.DBSSLMode,
	}, secrets, logger)
	if err != nil {
		return fmt.Errorf("open backing store: %w", err)
	}
	defer store.Close()

	notifier := mcpserver.NewNotifier(logger)
	svcs := service.New(service.Deps{
		Store:     store,
		Emitter:   notifier,
		Logger:    logger,
		Retention: cfg.Retention,
	})

	purge := service.NewPurgeScheduler(svcs.Trash, logger)
	if err := purge.Start(ctx, cfg.PurgeSchedule); err != nil {
		return err
	}

	srv := mcpserver.New(mcpserver.Deps{
		Services:    svcs,
		Notifier:    notifier,
		DefaultUser: cfg.DefaultUser,
		Logger:      logger,
	})

	serveErr := serve(ctx, cfg, srv, logger)

	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	purge.Stop(stopCtx)
	if err := srv.Close(stopCtx); err != nil {
		logger.Warn("close server", zap.Error(err))
	}
	return serveErr
}

func serve(ctx context.Context, cfg *config.Config, srv *mcpserver.Server, logger *zap.Logger) error {
	if cfg.Transport == "stdio" {
		logger.Info("serving MCP over stdio", zap.String("driver", cfg.Driver))
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ServeStdio() }()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", zap.String("addr", cfg.HTTPAddr), zap.String("driver", cfg.Driver))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
