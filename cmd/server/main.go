package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/validata/internal/auth"
	"github.com/JonMunkholm/validata/internal/config"
	"github.com/JonMunkholm/validata/internal/core"
	_ "github.com/JonMunkholm/validata/internal/core/rules" // Register built-in rules
	"github.com/JonMunkholm/validata/internal/database"
	"github.com/JonMunkholm/validata/internal/logging"
	"github.com/JonMunkholm/validata/internal/store"
	"github.com/JonMunkholm/validata/internal/web"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s\n\n%s\n", os.Args[0], config.Usage())
	}
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"data_schema", cfg.Database.DataSchema,
		"failure_policy", cfg.Ingest.FailurePolicy,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"auth_verification", cfg.Auth.EnableVerification,
	)

	ctx := context.Background()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied")
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if err := database.EnsureNamespace(ctx, pool, cfg.Database.DataSchema); err != nil {
		slog.Error("failed to create data schema", "schema", cfg.Database.DataSchema, "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(store.New(pool, cfg.Database.DataSchema), core.DefaultRules, cfg)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	if err := service.SyncRuleCatalog(ctx); err != nil {
		slog.Error("failed to sync rule catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("rules registered", "count", core.DefaultRules.Count())

	tokens, err := auth.NewJWKSClient(ctx, auth.Config{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSURL:            cfg.Auth.JWKSURL,
		Issuer:             cfg.Auth.Issuer,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		slog.Error("failed to create token validator", "error", err)
		os.Exit(1)
	}
	if !cfg.Auth.EnableVerification {
		slog.Warn("token signature verification is disabled")
	}

	server := web.NewServer(service, cfg, tokens)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartHistoryPruner(jobCtx, core.RetentionConfig{
		RetentionDays: cfg.Ingest.HistoryRetentionDays,
		CheckInterval: cfg.Ingest.HistoryPruneInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for ingestions to complete", "active", status.Active)
			if err := service.WaitForIngestions(shutdownCtx); err != nil {
				slog.Warn("ingestions did not complete in time", "error", err)
			} else {
				slog.Info("all ingestions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
