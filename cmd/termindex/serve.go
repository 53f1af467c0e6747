package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/termindex/pkg/api"
	"github.com/hazyhaar/termindex/pkg/chassis"
	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/hazyhaar/termindex/pkg/config"
	"github.com/hazyhaar/termindex/pkg/importer"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and HTTP/3 + MCP over QUIC when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Log, os.Stderr)
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func loadRegistry(cfg *config.Config, logger *slog.Logger) (*codesys.Registry, error) {
	reg := codesys.NewRegistry(cfg.Index.Dir)
	if err := reg.Load(); err != nil {
		return nil, fmt.Errorf("load code systems: %w", err)
	}
	logger.Info("code systems loaded", "dir", cfg.Index.Dir, "count", reg.CodeSystemCount(), "concepts", reg.TotalConcepts())
	return reg, nil
}

func newMCPServer(reg *codesys.Registry, logger *slog.Logger) *server.MCPServer {
	srv := server.NewMCPServer("termindex", version, server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, reg, logger)
	return srv
}

func runServe(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	router := api.NewRouter(reg, logger)

	// SIGHUP: hot reload code systems.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				logger.Info("SIGHUP received, reloading code systems")
				if err := reg.Reload(); err != nil {
					logger.Error("reload failed", "error", err)
					continue
				}
				logger.Info("code systems reloaded", "count", reg.CodeSystemCount(), "concepts", reg.TotalConcepts())
			}
		}
	}()

	if cfg.Import.CheckInterval > 0 {
		sdb, err := openSources(cfg)
		if err != nil {
			logger.Warn("source checks disabled", "error", err)
		} else {
			defer sdb.Close()
			go importer.NewChecker(sdb, logger, cfg.Import.CheckInterval).Start(ctx)
		}
	}

	if cfg.Server.QUIC {
		return serveChassis(ctx, cfg, reg, router, logger)
	}
	return serveHTTP(ctx, cfg, router, logger)
}

func serveHTTP(ctx context.Context, cfg *config.Config, router http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("termindex listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveChassis(ctx context.Context, cfg *config.Config, reg *codesys.Registry, router http.Handler, logger *slog.Logger) error {
	ch, err := chassis.New(chassis.Config{
		Addr:      cfg.Server.Addr,
		CertFile:  cfg.Server.CertFile,
		KeyFile:   cfg.Server.KeyFile,
		Handler:   router,
		MCPServer: newMCPServer(reg, logger),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	runErr := ch.Start(ctx)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, ch.Stop(shutdownCtx))
}
