package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/crate/internal/config"
	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/expiry"
	"github.com/vmunix/crate/internal/ledger"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/migrations"
	"github.com/vmunix/crate/internal/navidrome"
	"github.com/vmunix/crate/internal/pipeline"
	"github.com/vmunix/crate/internal/reconciler"
	"github.com/vmunix/crate/internal/server"
	"github.com/vmunix/crate/internal/slskd"
	"github.com/vmunix/crate/internal/watcher"
	"github.com/vmunix/crate/pkg/match"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// noStars stands in for Navidrome when none is configured. The cleanup
// stage is never scheduled in that case; organize runs unprotected.
type noStars struct{}

func (noStars) Starred(ctx context.Context) (*navidrome.StarredSet, error) {
	return &navidrome.StarredSet{}, nil
}

func runDaemon(configPath string, dryRun bool) error {
	if configPath == "" {
		var err error
		configPath, err = config.Discover()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	logger.Info("starting crated", "version", version, "config", configPath, "dry_run", dryRun)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Storage.Path+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	led := ledger.NewStore(db)
	exp := expiry.NewStore(db)
	actions := events.NewActionLog(db, logger.With("component", "actions"), dryRun)
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger.With("component", "bus"))
	defer bus.Close()

	lidarrClient := lidarr.NewClient(cfg.Lidarr.URL, cfg.Lidarr.APIKey,
		logger.With("component", "lidarr"), lidarr.WithDryRun(dryRun))
	slskdClient := slskd.NewClient(cfg.Slskd.URL, cfg.Slskd.APIKey,
		logger.With("component", "slskd"), slskd.WithDryRun(dryRun))
	var navidromeClient *navidrome.Client
	if cfg.Navidrome.URL != "" {
		navidromeClient = navidrome.NewClient(cfg.Navidrome.URL,
			cfg.Navidrome.Username, cfg.Navidrome.Password,
			logger.With("component", "navidrome"), navidrome.WithDryRun(dryRun))
	}

	var starred reconciler.StarredSource = noStars{}
	if navidromeClient != nil {
		starred = navidromeClient
	}

	rec := reconciler.New(cfg.Library, lidarrClient, starred, exp, bus, actions,
		logger.With("component", "reconciler"))
	pipe := pipeline.New(lidarrClient, slskdClient, led, match.NewScorer(cfg.Scoring.Weights()),
		bus, actions, pipeline.Config{
			Workers:          cfg.Pipeline.Workers,
			SearchTimeout:    time.Duration(cfg.Pipeline.SearchTimeoutSeconds) * time.Second,
			PollInterval:     time.Duration(cfg.Pipeline.PollIntervalSeconds) * time.Second,
			MinResults:       cfg.Pipeline.MinResults,
			TrackSearchLimit: cfg.Pipeline.TrackSearchLimit,
		}, logger.With("component", "pipeline"))

	staleAfter := time.Duration(cfg.Cleanup.StaleReservationDays) * 24 * time.Hour
	watch := watcher.New(slskdClient, led, bus,
		time.Duration(cfg.Daemon.WatchIntervalMinutes)*time.Minute, staleAfter,
		logger.With("component", "watcher"))

	runner := server.NewRunner(logger.With("component", "runner"))
	runner.AddBackground(server.Background{Name: "watcher", Run: watch.Run})

	runner.AddStage(server.Stage{
		Name:     "sync",
		Interval: time.Duration(cfg.Daemon.SyncIntervalMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			owned, err := rec.OwnedIndex()
			if err != nil {
				return fmt.Errorf("scan owned tier: %w", err)
			}
			_, err = pipe.Run(ctx, owned)
			return err
		},
	})
	runner.AddStage(server.Stage{
		Name:     "organize",
		Interval: time.Duration(cfg.Daemon.OrganizeIntervalMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := rec.Run(ctx)
			return err
		},
	})

	// Cleanup deletes data, so it needs both the config switch and a
	// starred snapshot to veto against.
	if cfg.Cleanup.Enabled && navidromeClient != nil {
		cleaner := expiry.NewCleaner(exp, navidromeClient, lidarrClient, bus, actions,
			time.Duration(cfg.Cleanup.RetentionDays)*24*time.Hour,
			logger.With("component", "cleaner"))
		runner.AddStage(server.Stage{
			Name:     "cleanup",
			Interval: time.Duration(cfg.Daemon.CleanupIntervalMinutes) * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := cleaner.Run(ctx)
				return err
			},
		})
	} else if cfg.Cleanup.Enabled {
		logger.Warn("cleanup enabled but navidrome not configured, stage disabled")
	}

	// History tables grow without bound otherwise. Runs daily; failures
	// on one table don't block the others.
	retention := time.Duration(cfg.Daemon.HistoryRetentionDays) * 24 * time.Hour
	maintLog := logger.With("component", "maintenance")
	runner.AddStage(server.Stage{
		Name:     "maintenance",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			if n, err := eventLog.Prune(retention); err != nil {
				maintLog.Error("prune events failed", "error", err)
			} else if n > 0 {
				maintLog.Info("pruned events", "rows", n)
			}
			if n, err := actions.Prune(retention); err != nil {
				maintLog.Error("prune actions failed", "error", err)
			} else if n > 0 {
				maintLog.Info("pruned actions", "rows", n)
			}
			if n, err := exp.Prune(retention); err != nil {
				maintLog.Error("prune expiry records failed", "error", err)
			} else if n > 0 {
				maintLog.Info("pruned expiry records", "rows", n)
			}
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runner.Run(ctx)
	logger.Info("crated stopped")
	return err
}
