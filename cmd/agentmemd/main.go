// agentmemd is the agentmem service process: it loads configuration,
// connects to Postgres, wires the core subsystems, and runs the
// consolidation scheduler and capsule retention sweep as long-lived
// background jobs. No HTTP/gRPC transport is wired here — transport
// adapters are an explicit non-goal (see SPEC_FULL.md §A, §B).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/agentmem/pkg/audit"
	"github.com/codeready-toolchain/agentmem/pkg/cleanup"
	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/consolidation"
	"github.com/codeready-toolchain/agentmem/pkg/database"
	"github.com/codeready-toolchain/agentmem/pkg/handoff"
	"github.com/codeready-toolchain/agentmem/pkg/ingestion"
	"github.com/codeready-toolchain/agentmem/pkg/masking"
	"github.com/codeready-toolchain/agentmem/pkg/orchestrator"
	"github.com/codeready-toolchain/agentmem/pkg/overlay"
	"github.com/codeready-toolchain/agentmem/pkg/retrieval"
	"github.com/codeready-toolchain/agentmem/pkg/store"
	"github.com/codeready-toolchain/agentmem/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment", "path", envPath)
	}

	slog.Info("starting agentmemd", "version", version.Full(), "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to postgres, schema migrated")

	st := store.New(dbClient.DB(), slog.Default())

	if health, err := st.Health(ctx); err != nil {
		slog.Error("initial health check failed", "error", err)
	} else {
		slog.Info("store healthy", "status", health.Status, "open_conns", health.OpenConnections, "in_use", health.InUse, "idle", health.Idle)
	}

	maskingSvc := masking.New(cfg.Masking, cfg.Secret.Policy, slog.Default())
	overlaySvc := overlay.New(st, slog.Default())
	retrievalSvc := retrieval.New(st, overlaySvc, cfg.Retrieval, slog.Default())
	ingestionSvc := ingestion.New(st, maskingSvc, cfg.ToolResult.ExcerptBytesMax, slog.Default())
	orchestratorSvc := orchestrator.New(st, overlaySvc, retrievalSvc, cfg, slog.Default())
	handoffSvc := handoff.New(st, slog.Default())
	auditSvc := audit.New(st, slog.Default())

	// No transport is wired to call these (§1 non-goal), so main only
	// proves construction succeeds; a caller embedding this module
	// invokes them directly.
	_ = ingestionSvc
	_ = orchestratorSvc
	_ = handoffSvc
	_ = auditSvc

	stats := cfg.Stats()
	slog.Info("subsystems wired",
		"modes", stats.Modes,
		"masking_patterns", stats.MaskingPatterns,
		"masking_pattern_groups", stats.MaskingPatternGroups,
		"consolidation_jobs", stats.ConsolidationJobs)

	consolidationSvc := consolidation.New(st, consolidation.HeuristicSummarizer{}, cfg.Consolidation, slog.Default())
	scheduler := consolidation.NewScheduler(consolidationSvc, cfg.Consolidation.Schedule, slog.Default())
	if cfg.Consolidation.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			slog.Error("failed to start consolidation scheduler", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	} else {
		slog.Info("consolidation scheduler disabled by config")
	}

	retentionSvc := cleanup.NewService(cfg.Retention, st, slog.Default())
	retentionSvc.Start(ctx)
	defer retentionSvc.Stop()

	slog.Info("agentmemd ready")
	<-ctx.Done()
	slog.Info("shutdown signal received, draining background jobs")
}
