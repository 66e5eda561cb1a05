package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/navidrome"
	"github.com/vmunix/crate/pkg/match"
)

// StarredSource provides the protection snapshot fetched immediately
// before each deletion.
type StarredSource interface {
	Starred(ctx context.Context) (*navidrome.StarredSet, error)
}

// Unmonitorer stops the wanted-album source from re-requesting an album
// the cleaner just deleted.
type Unmonitorer interface {
	FindAlbum(ctx context.Context, artistName, albumTitle string) (*lidarr.Album, error)
	SetMonitored(ctx context.Context, albumID int64, monitored bool) error
}

// CleanSummary reports one cleanup run.
type CleanSummary struct {
	Checked       int
	Deleted       int
	Vetoed        int
	RetainedFiles int // starred tracks kept inside deleted albums
	Failed        int
	Interrupted   bool
}

// Cleaner deletes albums whose first-detected age exceeded the
// retention period. Starred albums are vetoed whole; starred tracks
// inside an expiring album are retained individually while their
// unstarred siblings go.
type Cleaner struct {
	store     *Store
	starred   StarredSource
	wanted    Unmonitorer
	bus       *events.Bus
	actions   *events.ActionLog
	logger    *slog.Logger
	retention time.Duration
}

// NewCleaner creates a Cleaner. wanted may be nil when unmonitoring is
// not configured.
func NewCleaner(store *Store, starred StarredSource, wanted Unmonitorer,
	bus *events.Bus, actions *events.ActionLog, retention time.Duration, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		store:     store,
		starred:   starred,
		wanted:    wanted,
		bus:       bus,
		actions:   actions,
		logger:    logger,
		retention: retention,
	}
}

// Run executes one cleanup pass.
func (c *Cleaner) Run(ctx context.Context) (CleanSummary, error) {
	runKey := time.Now().UTC().Format("20060102T150405Z")
	_ = c.bus.Publish(ctx, events.NewRunStarted("cleanup", runKey, c.actions.DryRun()))

	var sum CleanSummary

	expired, err := c.store.Expired(c.retention)
	if err != nil {
		return sum, fmt.Errorf("list expired albums: %w", err)
	}

	for i, rec := range expired {
		// Halt between albums, never mid-deletion.
		if ctx.Err() != nil {
			break
		}
		sum.Checked++
		c.cleanOne(ctx, rec, &sum)
		_ = c.bus.Publish(ctx, events.NewProgress("cleanup", runKey, i+1, len(expired),
			fmt.Sprintf("%s - %s", rec.Artist, rec.Album)))
	}

	sum.Interrupted = ctx.Err() != nil
	_ = c.bus.Publish(context.WithoutCancel(ctx), events.NewRunCompleted("cleanup", runKey,
		sum.Interrupted, sum.Checked, sum.Deleted, sum.Failed, sum.Vetoed))

	c.logger.Info("cleanup run finished",
		"checked", sum.Checked,
		"deleted", sum.Deleted,
		"vetoed", sum.Vetoed,
		"retained_files", sum.RetainedFiles,
		"interrupted", sum.Interrupted,
	)
	return sum, nil
}

func (c *Cleaner) cleanOne(ctx context.Context, rec *Record, sum *CleanSummary) {
	log := c.logger.With("artist", rec.Artist, "album", rec.Album, "age_days", rec.AgeDays())

	// Snapshot taken per candidate, immediately before the deletion.
	set, err := c.starred.Starred(ctx)
	if err != nil {
		log.Warn("starred fetch failed, holding deletion", "error", err)
		sum.Failed++
		return
	}
	if set.AlbumStarred(rec.Artist, rec.Album) {
		sum.Vetoed++
		_ = c.bus.Publish(ctx, events.NewDeletionVetoed(rec.AlbumKey, rec.Directory, "album"))
		_ = c.actions.Record(events.Action{
			Action: events.ActionDelete, Target: rec.Directory,
			Status: events.StatusVetoed, Detail: "album starred",
		})
		log.Info("deletion vetoed by album star")
		return
	}

	tracks, err := c.store.Tracks(rec.ID)
	if err != nil {
		log.Error("track listing failed", "error", err)
		sum.Failed++
		return
	}

	retained := 0
	failed := false
	for _, t := range tracks {
		if set.TrackStarred(rec.Artist, t.Title) || set.TrackPaths[t.FilePath] {
			retained++
			_ = c.bus.Publish(ctx, events.NewDeletionVetoed(
				match.TrackKey(rec.Artist, t.Title), t.FilePath, "track"))
			log.Info("starred track retained", "file", t.FilePath)
			continue
		}
		if err := c.deleteFile(t.FilePath); err != nil {
			log.Error("file deletion failed", "file", t.FilePath, "error", err)
			sum.Failed++
			failed = true
		}
	}
	sum.RetainedFiles += retained
	if failed {
		return
	}

	// The folder itself goes only when nothing inside was retained.
	if retained == 0 && !c.actions.DryRun() {
		if err := os.RemoveAll(rec.Directory); err != nil {
			log.Error("directory removal failed", "error", err)
			sum.Failed++
			return
		}
	}

	if !c.actions.DryRun() {
		if err := c.store.MarkDeleted(rec.AlbumKey); err != nil {
			log.Error("mark deleted failed", "error", err)
			sum.Failed++
			return
		}
	}

	sum.Deleted++
	sizeMB := float64(rec.TotalSize) / (1 << 20)
	_ = c.bus.Publish(ctx, events.NewAlbumExpired(rec.AlbumKey, rec.Artist, rec.Album,
		rec.AgeDays(), sizeMB, retained))
	log.Info("expired album deleted", "size_mb", fmt.Sprintf("%.1f", sizeMB), "retained", retained)

	c.unmonitor(ctx, rec, log)
}

// unmonitor clears the album's monitored flag so the sync stage stops
// re-queueing what was just deleted on purpose.
func (c *Cleaner) unmonitor(ctx context.Context, rec *Record, log *slog.Logger) {
	if c.wanted == nil {
		return
	}
	album, err := c.wanted.FindAlbum(ctx, rec.Artist, rec.Album)
	if errors.Is(err, lidarr.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn("album lookup for unmonitor failed", "error", err)
		return
	}

	start := time.Now()
	if err := c.wanted.SetMonitored(ctx, album.ID, false); err != nil {
		log.Error("unmonitor failed", "album_id", album.ID, "error", err)
		_ = c.actions.Record(events.Action{
			Action: events.ActionUnmonitor, Target: rec.AlbumKey,
			Status: events.StatusFailed, Detail: err.Error(),
			StartedAt: start, Duration: time.Since(start),
		})
		return
	}
	_ = c.actions.Record(events.Action{
		Action: events.ActionUnmonitor, Target: rec.AlbumKey,
		Status: events.StatusDone, StartedAt: start, Duration: time.Since(start),
	})
	log.Info("album unmonitored", "album_id", album.ID)
}

// deleteFile removes one file. A file already gone is fine; under
// dry-run the action is recorded and nothing is deleted.
func (c *Cleaner) deleteFile(path string) error {
	start := time.Now()
	if !c.actions.DryRun() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			_ = c.actions.Record(events.Action{
				Action: events.ActionDelete, Target: path,
				Status: events.StatusFailed, Detail: err.Error(),
				StartedAt: start, Duration: time.Since(start),
			})
			return fmt.Errorf("delete file: %w", err)
		}
	}
	return c.actions.Record(events.Action{
		Action: events.ActionDelete, Target: path,
		Status: events.StatusDone, StartedAt: start, Duration: time.Since(start),
	})
}
