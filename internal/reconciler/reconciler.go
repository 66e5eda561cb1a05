// Package reconciler is the organize stage: it scans the three library
// tiers, classifies each album folder against the wanted-album source's
// canonical track list, and moves folders between tiers when their
// completeness changed. Owned is scanned read-only; every destructive
// action is preceded by a fresh starred-status check and recorded in the
// action log.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/crate/internal/config"
	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/expiry"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/navidrome"
	"github.com/vmunix/crate/pkg/match"
)

// Tier names used in events and logs.
const (
	tierDownloads  = "downloads"
	tierIncomplete = "incomplete"
	tierNotOwned   = "not-owned"
)

// TrackSource resolves album folders against the wanted-album service's
// canonical track lists.
type TrackSource interface {
	FindAlbum(ctx context.Context, artistName, albumTitle string) (*lidarr.Album, error)
	GetAlbumTracks(ctx context.Context, albumID int64) ([]lidarr.Track, error)
}

// StarredSource provides the protection snapshot fetched before every
// destructive action.
type StarredSource interface {
	Starred(ctx context.Context) (*navidrome.StarredSet, error)
}

// ExpiryObserver records album sightings so retention age survives moves.
type ExpiryObserver interface {
	Observe(rec expiry.Record, files []expiry.TrackFile) (*expiry.Record, error)
	Forget(albumKey string) error
}

// Reconciler scans and reorganizes the library tiers.
type Reconciler struct {
	roots   config.LibraryConfig
	tracks  TrackSource
	starred StarredSource
	expiry  ExpiryObserver
	bus     *events.Bus
	actions *events.ActionLog
	logger  *slog.Logger
}

// New creates a Reconciler.
func New(roots config.LibraryConfig, tracks TrackSource, starred StarredSource,
	exp ExpiryObserver, bus *events.Bus, actions *events.ActionLog, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		roots:   roots,
		tracks:  tracks,
		starred: starred,
		expiry:  exp,
		bus:     bus,
		actions: actions,
		logger:  logger,
	}
}

// OwnedIndex scans the Owned tier and returns the set of track keys it
// satisfies. Used by the sync stage to suppress searches for tracks the
// library already has.
func (r *Reconciler) OwnedIndex() (map[string]bool, error) {
	paths, _, err := r.scanOwned()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(paths))
	for k := range paths {
		keys[k] = true
	}
	return keys, nil
}

// wantedEntry caches one wanted-source lookup for the duration of a run.
type wantedEntry struct {
	album  *lidarr.Album
	tracks []lidarr.Track
	found  bool
}

// Run executes one organize pass over all tiers.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	runKey := time.Now().UTC().Format("20060102T150405Z")
	_ = r.bus.Publish(ctx, events.NewRunStarted("organize", runKey, r.actions.DryRun()))

	var sum Summary

	ownedPaths, ownedDupes, err := r.scanOwned()
	if err != nil {
		return sum, fmt.Errorf("scan owned tier: %w", err)
	}
	sum.OwnedDuplicates = ownedDupes
	owned := make(map[string]bool, len(ownedPaths))
	for k := range ownedPaths {
		owned[k] = true
	}

	cache := make(map[string]*wantedEntry)

	tiers := []struct {
		name       string
		root       string
		promotable bool // Complete folders here move to Not-Owned
	}{
		{tierDownloads, r.roots.DownloadsRoot, true},
		{tierIncomplete, r.roots.IncompleteRoot, true},
		{tierNotOwned, r.roots.NotOwnedRoot, false},
	}

scan:
	for _, tier := range tiers {
		if tier.root == "" {
			continue
		}
		folders, err := scanTier(tier.root)
		if err != nil {
			r.logger.Error("tier scan failed", "tier", tier.name, "error", err)
			sum.Failed++
			continue
		}
		for i, f := range folders {
			// Halt between folders, never mid-move.
			if ctx.Err() != nil {
				break scan
			}
			r.processFolder(ctx, tier.name, tier.promotable, f, ownedPaths, owned, cache, &sum)
			_ = r.bus.Publish(ctx, events.NewProgress("organize", runKey, i+1, len(folders),
				fmt.Sprintf("%s: %s", tier.name, filepath.Base(f.dir))))
		}
	}

	if ctx.Err() == nil {
		for _, root := range []string{r.roots.DownloadsRoot, r.roots.IncompleteRoot, r.roots.NotOwnedRoot} {
			sum.EmptyDirsRemoved += r.removeEmptyDirs(root)
		}
	}

	sum.Interrupted = ctx.Err() != nil
	moved := sum.Promoted + sum.Demoted
	_ = r.bus.Publish(context.WithoutCancel(ctx), events.NewRunCompleted("organize", runKey,
		sum.Interrupted, sum.FoldersScanned, moved, sum.Failed, sum.Retained+sum.Unclassified))

	r.logger.Info("organize run finished",
		"folders", sum.FoldersScanned,
		"promoted", sum.Promoted,
		"demoted", sum.Demoted,
		"duplicates_removed", sum.DuplicatesRemoved,
		"unclassified", sum.Unclassified,
		"interrupted", sum.Interrupted,
	)
	return sum, nil
}

func (r *Reconciler) processFolder(ctx context.Context, tier string, promotable bool,
	f *albumFolder, ownedPaths map[string]string, owned map[string]bool,
	cache map[string]*wantedEntry, sum *Summary) {

	sum.FoldersScanned++
	log := r.logger.With("tier", tier, "dir", f.dir)

	if f.metaIncomplete {
		sum.Unclassified++
		_ = r.bus.Publish(ctx, events.NewAlbumUnclassified(f.dir, f.metaReason))
		log.Info("left unclassified", "reason", f.metaReason)
		return
	}

	r.dedupe(ctx, f, sum, log)
	r.removeOwnedCopies(ctx, f, ownedPaths, sum, log)
	if len(f.files) == 0 {
		r.forgetExpiry(f, log)
		return
	}

	entry, err := r.lookupWanted(ctx, f.artist, f.album, cache)
	if err != nil {
		log.Warn("wanted-source lookup failed", "error", err)
		sum.Failed++
		return
	}

	// A lone file in Not-Owned is a single, not an album.
	if tier == tierNotOwned && len(f.files) == 1 {
		r.demote(ctx, f, 0, sum, log)
		return
	}

	if !entry.found {
		// Unknown to the wanted source; nothing to compare against.
		// Leave it in place but keep the expiry clock running.
		sum.Retained++
		if tier != tierDownloads {
			r.observeExpiry(f, log)
		}
		return
	}

	missing := missingTracks(entry.tracks, f)
	switch {
	case len(missing) == 0 && promotable:
		r.promote(ctx, f, entry, sum, log)
	case len(missing) > 0 && tier == tierNotOwned:
		r.demote(ctx, f, len(missing), sum, log)
	default:
		sum.Retained++
		if tier != tierDownloads {
			r.observeExpiry(f, log)
		}
	}
}

// lookupWanted resolves a folder's album against the wanted source,
// cached per run.
func (r *Reconciler) lookupWanted(ctx context.Context, artist, album string, cache map[string]*wantedEntry) (*wantedEntry, error) {
	key := match.AlbumKey(artist, album)
	if e, ok := cache[key]; ok {
		return e, nil
	}

	found, err := r.tracks.FindAlbum(ctx, artist, album)
	if errors.Is(err, lidarr.ErrNotFound) {
		e := &wantedEntry{}
		cache[key] = e
		return e, nil
	}
	if err != nil {
		return nil, err
	}

	tracks, err := r.tracks.GetAlbumTracks(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	e := &wantedEntry{album: found, tracks: tracks, found: true}
	cache[key] = e
	return e, nil
}

// missingTracks returns the canonical tracks not present in the folder.
func missingTracks(wanted []lidarr.Track, f *albumFolder) []lidarr.Track {
	var missing []lidarr.Track
	for _, w := range wanted {
		present := false
		for _, t := range f.files {
			if match.TitleMatches(w.Title, t.meta.Title) {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, w)
		}
	}
	return missing
}

// promote moves a complete folder into Not-Owned under a year-prefixed
// name. The wanted source's release year wins; file metadata is the
// fallback.
func (r *Reconciler) promote(ctx context.Context, f *albumFolder, entry *wantedEntry, sum *Summary, log *slog.Logger) {
	vetoed, err := r.vetoedByStar(ctx, f, sum, log)
	if err != nil {
		sum.Failed++
		return
	}
	if vetoed {
		return
	}

	year := releaseYear(entry.album.ReleaseDate)
	if year == 0 {
		year = f.year
	}
	name := fmt.Sprintf("[%d] %s - %s", year, sanitizeName(f.artist), sanitizeName(f.album))
	dest := filepath.Join(r.roots.NotOwnedRoot, name)
	if dest == f.dir {
		sum.Retained++
		return
	}

	if err := r.moveDir(f.dir, dest); err != nil {
		log.Error("promote failed", "dest", dest, "error", err)
		sum.Failed++
		return
	}
	sum.Promoted++
	_ = r.bus.Publish(ctx, events.NewAlbumPromoted(f.key(), f.artist, f.album, f.dir, dest))
	log.Info("album promoted", "dest", dest)

	if !r.actions.DryRun() {
		f.rebase(dest)
		r.observeExpiry(f, log)
	}
}

// demote moves an incomplete or single-track folder from Not-Owned to
// the Incomplete tier, unless a star protects it.
func (r *Reconciler) demote(ctx context.Context, f *albumFolder, missing int, sum *Summary, log *slog.Logger) {
	vetoed, err := r.vetoedByStar(ctx, f, sum, log)
	if err != nil {
		sum.Failed++
		return
	}
	if vetoed {
		return
	}

	dest := filepath.Join(r.roots.IncompleteRoot, filepath.Base(f.dir))
	if err := r.moveDir(f.dir, dest); err != nil {
		log.Error("demote failed", "dest", dest, "error", err)
		sum.Failed++
		return
	}
	sum.Demoted++
	_ = r.bus.Publish(ctx, events.NewAlbumDemoted(f.key(), f.artist, f.album, f.dir, dest, missing))
	log.Info("album demoted", "dest", dest, "missing", missing)

	if !r.actions.DryRun() {
		f.rebase(dest)
		r.observeExpiry(f, log)
	}
}

// vetoedByStar re-fetches the starred snapshot and reports whether the
// folder's album or any file in it is starred. Fetch failure blocks the
// mutation: without a snapshot no destructive action may proceed.
func (r *Reconciler) vetoedByStar(ctx context.Context, f *albumFolder, sum *Summary, log *slog.Logger) (bool, error) {
	set, err := r.starred.Starred(ctx)
	if err != nil {
		log.Warn("starred fetch failed, holding destructive action", "error", err)
		return false, err
	}
	if set.AlbumStarred(f.artist, f.album) {
		sum.Vetoed++
		_ = r.bus.Publish(ctx, events.NewDeletionVetoed(f.key(), f.dir, "album"))
		log.Info("action vetoed by album star")
		return true, nil
	}
	for _, t := range f.files {
		if set.TrackStarred(t.meta.Artist, t.meta.Title) || set.TrackPaths[t.path] {
			sum.Vetoed++
			_ = r.bus.Publish(ctx, events.NewDeletionVetoed(f.key(), t.path, "track"))
			log.Info("action vetoed by track star", "file", t.path)
			return true, nil
		}
	}
	return false, nil
}

// dedupe deletes redundant same-title copies inside the folder, keeping
// the best container. Starred copies survive.
func (r *Reconciler) dedupe(ctx context.Context, f *albumFolder, sum *Summary, log *slog.Logger) {
	groups := duplicateGroups(f)
	if len(groups) == 0 {
		return
	}

	set, err := r.starred.Starred(ctx)
	if err != nil {
		log.Warn("starred fetch failed, skipping duplicate removal", "error", err)
		return
	}

	removed := make(map[string]bool)
	for _, group := range groups {
		keep := group[0]
		for _, t := range group[1:] {
			key := match.TrackKey(t.meta.Artist, t.meta.Title)
			if set.AlbumStarred(f.artist, f.album) || set.TrackStarred(t.meta.Artist, t.meta.Title) || set.TrackPaths[t.path] {
				sum.Vetoed++
				_ = r.bus.Publish(ctx, events.NewDeletionVetoed(key, t.path, "track"))
				continue
			}
			if err := r.deleteFile(t.path); err != nil {
				log.Error("duplicate removal failed", "file", t.path, "error", err)
				sum.Failed++
				continue
			}
			removed[t.path] = true
			sum.DuplicatesRemoved++
			_ = r.bus.Publish(ctx, events.NewDuplicateRemoved(key, keep.path, t.path))
			log.Info("duplicate removed", "kept", filepath.Base(keep.path), "removed", filepath.Base(t.path))
		}
	}
	f.dropFiles(removed)
}

// removeOwnedCopies deletes files already satisfied by the Owned tier.
// Owned always wins; the Not-Owned or Incomplete copy is the redundant
// side. Starred copies survive.
func (r *Reconciler) removeOwnedCopies(ctx context.Context, f *albumFolder, ownedPaths map[string]string, sum *Summary, log *slog.Logger) {
	var candidates []trackFile
	for _, t := range f.files {
		if _, ok := ownedPaths[match.TrackKey(t.meta.Artist, t.meta.Title)]; ok {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return
	}

	set, err := r.starred.Starred(ctx)
	if err != nil {
		log.Warn("starred fetch failed, skipping owned-copy removal", "error", err)
		return
	}

	removed := make(map[string]bool)
	for _, t := range candidates {
		key := match.TrackKey(t.meta.Artist, t.meta.Title)
		if set.AlbumStarred(f.artist, f.album) || set.TrackStarred(t.meta.Artist, t.meta.Title) || set.TrackPaths[t.path] {
			sum.Vetoed++
			_ = r.bus.Publish(ctx, events.NewDeletionVetoed(key, t.path, "track"))
			continue
		}
		if err := r.deleteFile(t.path); err != nil {
			log.Error("owned-copy removal failed", "file", t.path, "error", err)
			sum.Failed++
			continue
		}
		removed[t.path] = true
		sum.DuplicatesRemoved++
		_ = r.bus.Publish(ctx, events.NewDuplicateRemoved(key, ownedPaths[key], t.path))
		log.Info("owned copy removed", "file", t.path, "owned", ownedPaths[key])
	}
	f.dropFiles(removed)
}

// scanOwned walks the Owned tier read-only, building the key → path
// index and counting duplicates. Owned duplicates are reported, never
// removed.
func (r *Reconciler) scanOwned() (map[string]string, int, error) {
	paths := make(map[string]string)
	dupes := 0
	if r.roots.OwnedRoot == "" {
		return paths, 0, nil
	}

	folders, err := scanTier(r.roots.OwnedRoot)
	if err != nil {
		return nil, 0, err
	}
	for _, f := range folders {
		for _, group := range duplicateGroups(f) {
			dupes += len(group) - 1
			r.logger.Info("duplicate in owned tier, not touching",
				"kept", group[0].path, "copies", len(group)-1)
		}
		for _, t := range f.files {
			if t.meta.Artist == "" || t.meta.Title == "" {
				continue
			}
			key := match.TrackKey(t.meta.Artist, t.meta.Title)
			if _, ok := paths[key]; !ok {
				paths[key] = t.path
			}
		}
	}
	return paths, dupes, nil
}

// observeExpiry upserts the folder's aging record. Suppressed under
// dry-run so a rehearsal leaves no trace in the database either.
func (r *Reconciler) observeExpiry(f *albumFolder, log *slog.Logger) {
	if r.actions.DryRun() || r.expiry == nil {
		return
	}
	files := make([]expiry.TrackFile, 0, len(f.files))
	for _, t := range f.files {
		files = append(files, expiry.TrackFile{
			FilePath: t.path,
			Title:    t.meta.Title,
			Number:   t.meta.Track,
			Size:     t.size,
		})
	}
	_, err := r.expiry.Observe(expiry.Record{
		AlbumKey:  f.key(),
		Artist:    f.artist,
		Album:     f.album,
		Directory: f.dir,
		FileCount: len(f.files),
		TotalSize: f.totalSize(),
	}, files)
	if err != nil {
		log.Error("expiry observe failed", "error", err)
	}
}

// forgetExpiry drops the folder's aging record once nothing is left to
// age, so no pending row keeps pointing at a pruned directory.
func (r *Reconciler) forgetExpiry(f *albumFolder, log *slog.Logger) {
	if r.actions.DryRun() || r.expiry == nil {
		return
	}
	if err := r.expiry.Forget(f.key()); err != nil {
		log.Error("expiry forget failed", "error", err)
	}
}

// moveDir relocates an album folder, creating the destination parent.
// Under dry-run the action is recorded and nothing moves.
func (r *Reconciler) moveDir(src, dest string) error {
	start := time.Now()
	if !r.actions.DryRun() {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create destination parent: %w", err)
		}
		if err := os.Rename(src, dest); err != nil {
			_ = r.actions.Record(events.Action{
				Action: events.ActionMove, Source: src, Target: dest,
				Status: events.StatusFailed, Detail: err.Error(),
				StartedAt: start, Duration: time.Since(start),
			})
			return fmt.Errorf("move directory: %w", err)
		}
	}
	return r.actions.Record(events.Action{
		Action: events.ActionMove, Source: src, Target: dest,
		Status: events.StatusDone, StartedAt: start, Duration: time.Since(start),
	})
}

// deleteFile removes one file. Under dry-run the action is recorded and
// nothing is deleted.
func (r *Reconciler) deleteFile(path string) error {
	start := time.Now()
	if !r.actions.DryRun() {
		if err := os.Remove(path); err != nil {
			_ = r.actions.Record(events.Action{
				Action: events.ActionDelete, Target: path,
				Status: events.StatusFailed, Detail: err.Error(),
				StartedAt: start, Duration: time.Since(start),
			})
			return fmt.Errorf("delete file: %w", err)
		}
	}
	return r.actions.Record(events.Action{
		Action: events.ActionDelete, Target: path,
		Status: events.StatusDone, StartedAt: start, Duration: time.Since(start),
	})
}

// removeEmptyDirs deletes empty directories under root, deepest first,
// so emptied parents cascade. The root itself is kept.
func (r *Reconciler) removeEmptyDirs(root string) int {
	if root == "" || r.actions.DryRun() {
		return 0
	}

	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
			r.logger.Debug("removed empty directory", "dir", dir)
		}
	}
	return removed
}

// sanitizeName makes a tag value safe as a path segment.
func sanitizeName(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "/", "-"))
}

// releaseYear extracts the year from an ISO release date.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
