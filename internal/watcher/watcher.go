// Package watcher follows the download daemon's transfer list and keeps
// the ledger honest: completed and permanently failed transfers release
// their reservations, and reservations the daemon no longer knows about
// are surfaced as stale.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/ledger"
	"github.com/vmunix/crate/internal/slskd"
	"github.com/vmunix/crate/pkg/match"
)

const (
	defaultInterval   = 15 * time.Second
	defaultStaleAfter = 24 * time.Hour
)

// TransferSource lists the daemon's downloads.
type TransferSource interface {
	Downloads(ctx context.Context) ([]slskd.Transfer, error)
}

// Ledger is the reservation surface the watcher needs.
type Ledger interface {
	List() ([]*ledger.Entry, error)
	Release(key string) error
	Stale(activePaths map[string]bool, olderThan time.Duration) ([]*ledger.Entry, error)
}

// Watcher polls transfers and releases finished reservations.
type Watcher struct {
	transfers  TransferSource
	ledger     Ledger
	bus        *events.Bus
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration

	lastState map[string]string // remote path → last seen state
	staleSeen map[string]bool   // keys already reported stale
}

// New creates a Watcher. Zero durations pick the defaults.
func New(transfers TransferSource, led Ledger, bus *events.Bus,
	interval, staleAfter time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Watcher{
		transfers:  transfers,
		ledger:     led,
		bus:        bus,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		lastState:  make(map[string]string),
		staleSeen:  make(map[string]bool),
	}
}

// Run polls until the context is canceled. The first poll happens
// immediately, not one interval in.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("transfer watcher started", "interval", w.interval)

	w.Poll(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("transfer watcher stopped")
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one reconciliation pass between the transfer list and the
// ledger. Transient daemon errors skip the pass; the next tick retries.
func (w *Watcher) Poll(ctx context.Context) {
	transfers, err := w.transfers.Downloads(ctx)
	if err != nil {
		w.logger.Warn("transfer poll failed", "error", err)
		return
	}
	entries, err := w.ledger.List()
	if err != nil {
		w.logger.Error("ledger list failed", "error", err)
		return
	}

	byPath := make(map[string]*ledger.Entry, len(entries))
	var pathless []*ledger.Entry
	for _, e := range entries {
		if e.RemotePath != "" {
			byPath[e.RemotePath] = e
		} else {
			// Reserved from an album selection whose per-track pick
			// found no file; only artist and title identify it.
			pathless = append(pathless, e)
		}
	}

	active := make(map[string]bool)
	for _, t := range transfers {
		if t.Active() {
			active[t.Filename] = true
		}
		if w.lastState[t.Filename] == t.State {
			continue
		}
		w.lastState[t.Filename] = t.State

		entry := byPath[t.Filename]
		if entry == nil {
			entry = matchPathless(pathless, t.Filename)
		}
		switch {
		case t.Succeeded():
			w.release(ctx, entry, t, true)
		case t.FailedPermanently():
			w.release(ctx, entry, t, false)
		default:
			w.logger.Debug("transfer state changed",
				"file", t.Filename, "state", t.State, "peer", t.Username)
		}
	}

	w.reportStale(ctx, active)
}

// matchPathless finds the reservation a transfer belongs to by title,
// for entries stored without a remote path. Ambiguity keeps hands off:
// a wrong release would let the track be queued twice.
func matchPathless(entries []*ledger.Entry, remotePath string) *ledger.Entry {
	base := remoteBase(remotePath)
	if base == "" {
		return nil
	}

	var hits []*ledger.Entry
	for _, e := range entries {
		if match.TitleMatches(e.Title, base) {
			hits = append(hits, e)
		}
	}
	if len(hits) > 1 {
		// Same title reserved for two artists; require the artist to
		// appear somewhere in the remote path to disambiguate.
		normPath := match.Normalize(strings.ReplaceAll(remotePath, `\`, " "))
		var narrowed []*ledger.Entry
		for _, e := range hits {
			if strings.Contains(normPath, match.Normalize(e.Artist)) {
				narrowed = append(narrowed, e)
			}
		}
		hits = narrowed
	}
	if len(hits) == 1 {
		return hits[0]
	}
	return nil
}

// remoteBase strips the peer's directory structure and extension from a
// transfer path, which arrives with Windows separators.
func remoteBase(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	b := path.Base(p)
	return strings.TrimSuffix(b, path.Ext(b))
}

// release frees the reservation matching a finished transfer and
// publishes the outcome. A finished transfer without a reservation is
// normal: it was queued outside this system or already released.
func (w *Watcher) release(ctx context.Context, entry *ledger.Entry, t slskd.Transfer, ok bool) {
	if entry == nil {
		w.logger.Debug("finished transfer has no reservation", "file", t.Filename, "state", t.State)
		return
	}

	if err := w.ledger.Release(entry.Key); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		w.logger.Error("release failed", "key", entry.Key, "error", err)
		return
	}

	if ok {
		_ = w.bus.Publish(ctx, events.NewTransferCompleted(entry.Key, t.Username, t.Filename))
		w.logger.Info("transfer completed, reservation released",
			"artist", entry.Artist, "title", entry.Title, "peer", t.Username)
		return
	}
	_ = w.bus.Publish(ctx, events.NewTransferFailed(entry.Key, t.Username, t.Filename, t.State))
	w.logger.Warn("transfer failed permanently, reservation released",
		"artist", entry.Artist, "title", entry.Title, "state", t.State)
}

// reportStale surfaces reservations the daemon has no transfer for.
// Each is reported once per watcher lifetime; nothing is auto-cleared.
func (w *Watcher) reportStale(ctx context.Context, active map[string]bool) {
	stale, err := w.ledger.Stale(active, w.staleAfter)
	if err != nil {
		w.logger.Error("stale check failed", "error", err)
		return
	}
	for _, e := range stale {
		if w.staleSeen[e.Key] {
			continue
		}
		w.staleSeen[e.Key] = true
		ageDays := int(time.Since(e.QueuedAt).Hours() / 24)
		_ = w.bus.Publish(ctx, events.NewStaleReservation(e.Key, e.Artist, e.Title, ageDays))
		w.logger.Warn("stale reservation",
			"artist", e.Artist, "title", e.Title, "queued_at", e.QueuedAt)
	}
}
