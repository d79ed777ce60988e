package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/historiar/monument-assets/pkg/assetversion/config"
	"github.com/historiar/monument-assets/pkg/assetversion/sweep"
)

// SweepConfig controls the orphaned-blob sweep run.
type SweepConfig struct {
	Prefix      string        `env:"SWEEP_PREFIX" env-default:""`
	GracePeriod time.Duration `env:"SWEEP_GRACE_PERIOD" env-default:"24h"`
	Parallelism int           `env:"SWEEP_PARALLELISM" env-default:"10"`
	Timeout     time.Duration `env:"SWEEP_TIMEOUT" env-default:"30m"`
}

func main() {
	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", false, "report orphans without deleting them")
	flag.Parse()

	var sweepCfg SweepConfig
	if err := cleanenv.ReadEnv(&sweepCfg); err != nil {
		slog.Error("Failed to read sweep config", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	repo, err := cfg.BuildRepository()
	if err != nil {
		slog.Error("Failed to build repository", "err", err)
		os.Exit(1)
	}

	store, err := cfg.BuildStorageBackend(cfg.DefaultStorageBackend)
	if err != nil {
		slog.Error("Failed to build storage backend", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sweepCfg.Timeout)
	defer cancel()

	sweeper := sweep.New(store, repo)
	result, err := sweeper.Sweep(ctx, sweep.Options{
		Prefix:      sweepCfg.Prefix,
		GracePeriod: sweepCfg.GracePeriod,
		Parallelism: sweepCfg.Parallelism,
		DryRun:      *dryRun,
	})
	if err != nil {
		slog.Error("Sweep failed", "err", err)
		os.Exit(1)
	}

	slog.Info("Sweep finished",
		"backend", cfg.DefaultStorageBackend,
		"dry_run", *dryRun,
		"blobs_scanned", result.BlobsScanned,
		"orphans_found", result.OrphansFound,
		"deleted", result.Deleted,
		"failed", result.Failed,
		"skipped_young", result.SkippedYoung)
	if result.Failed > 0 {
		for _, key := range result.FailedKeys {
			slog.Warn("Failed to delete orphan", "key", key)
		}
		os.Exit(1)
	}
}
