package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/crate/internal/config"
	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/expiry"
	"github.com/vmunix/crate/internal/ledger"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/migrations"
	"github.com/vmunix/crate/internal/navidrome"
	"github.com/vmunix/crate/internal/reconciler"
	"github.com/vmunix/crate/internal/slskd"
)

// app holds everything a command needs wired up: config, storage,
// clients, and the event plumbing. Built once per invocation.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	logger *slog.Logger

	ledger   *ledger.Store
	expiry   *expiry.Store
	bus      *events.Bus
	eventLog *events.EventLog
	actions  *events.ActionLog

	lidarr    *lidarr.Client
	slskd     *slskd.Client
	navidrome *navidrome.Client // nil when not configured
}

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

// newApp loads config, opens storage, and builds the clients. Storage
// being unreachable is fatal before any mutation happens.
func newApp() (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.Discover()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Storage.Path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		ledger:  ledger.NewStore(db),
		expiry:  expiry.NewStore(db),
		actions: events.NewActionLog(db, logger.With("component", "actions"), dryRun),
	}
	a.eventLog = events.NewEventLog(db)
	a.bus = events.NewBus(a.eventLog, logger.With("component", "bus"))

	a.lidarr = lidarr.NewClient(cfg.Lidarr.URL, cfg.Lidarr.APIKey,
		logger.With("component", "lidarr"), lidarr.WithDryRun(dryRun))
	a.slskd = slskd.NewClient(cfg.Slskd.URL, cfg.Slskd.APIKey,
		logger.With("component", "slskd"), slskd.WithDryRun(dryRun))
	if cfg.Navidrome.URL != "" {
		a.navidrome = navidrome.NewClient(cfg.Navidrome.URL,
			cfg.Navidrome.Username, cfg.Navidrome.Password,
			logger.With("component", "navidrome"), navidrome.WithDryRun(dryRun))
	}
	return a, nil
}

// noStars stands in for Navidrome when none is configured: nothing is
// starred, so moves and duplicate removal proceed unprotected. Cleanup
// does not accept this stand-in; it refuses to run instead.
type noStars struct{}

func (noStars) Starred(ctx context.Context) (*navidrome.StarredSet, error) {
	return &navidrome.StarredSet{}, nil
}

func (a *app) starredSource() reconciler.StarredSource {
	if a.navidrome == nil {
		return noStars{}
	}
	return a.navidrome
}

func (a *app) close() {
	_ = a.bus.Close()
	_ = a.db.Close()
}

func (a *app) retention() time.Duration {
	return time.Duration(a.cfg.Cleanup.RetentionDays) * 24 * time.Hour
}

func (a *app) staleAfter() time.Duration {
	return time.Duration(a.cfg.Cleanup.StaleReservationDays) * 24 * time.Hour
}
