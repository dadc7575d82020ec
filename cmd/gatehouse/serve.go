// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/session"
	"github.com/gatehouse/gatehouse/internal/store"
)

// sweepInterval controls how often expired session tags are purged.
const sweepInterval = 5 * time.Minute

// ObservabilityServer abstracts the observability server for testing.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps holds injectable dependencies for the serve command.
// Nil fields fall back to production implementations.
type ServeDeps struct {
	PoolFactory                func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth service",
		Long: `Start the Gatehouse auth service: connects to PostgreSQL, registers
session backends for the configured platforms, and exposes health and
metrics endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, nil)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = store.Connect
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (config database_url or DATABASE_URL)")
	}

	logging.SetDefault("gatehouse", version, cfg.LogFormat)

	slog.Info("starting auth service",
		"metrics_addr", cfg.MetricsAddr,
		"log_format", cfg.LogFormat,
		"platforms", cfg.Platforms,
	)

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	_, backend, err := buildService(pool, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			return pool.Ping(ctx) == nil
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// Purge expired session tags in the background.
	go sweepLoop(ctx, backend)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// buildService wires the auth service from configuration. One shared
// in-memory session backend serves every configured platform.
func buildService(pool *pgxpool.Pool, cfg *config.Config) (*auth.Service, *session.MemoryBackend, error) {
	repo := authpg.NewUserAuthRepository(pool)
	codec := auth.NewDigestCodec()
	registry := auth.NewProviderRegistry()

	tags := auth.NewTagStore(cfg.TagSuffix)
	backend := session.NewMemoryBackend(session.DefaultTTL)
	for _, p := range cfg.Platforms {
		if err := tags.Register(auth.Platform(p), backend); err != nil {
			return nil, nil, err
		}
	}

	svc, err := auth.NewService(repo, registry, tags, codec)
	if err != nil {
		return nil, nil, err
	}
	return svc, backend, nil
}

func sweepLoop(ctx context.Context, backend *session.MemoryBackend) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := backend.Sweep(); n > 0 {
				slog.Debug("swept expired session tags", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failed server triggers graceful shutdown.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
