// Package pipeline orchestrates the sync stage: wanted albums in, download
// requests out. For each wanted album it suppresses tracks already owned or
// queued, runs an album-scoped search first, falls back to a bounded number
// of per-track searches, and reserves every queued track in the ledger
// before the enqueue call goes out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/ledger"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/slskd"
	"github.com/vmunix/crate/pkg/match"
)

// reservationSource tags ledger entries created by this stage.
const reservationSource = "sync"

// WantedSource is the wanted-album service.
type WantedSource interface {
	GetWantedAlbums(ctx context.Context) ([]lidarr.Album, error)
	GetAlbumTracks(ctx context.Context, albumID int64) ([]lidarr.Track, error)
}

// SearchClient is the search/download daemon.
type SearchClient interface {
	Collect(ctx context.Context, text string, opts slskd.CollectOptions) ([]slskd.Response, error)
	Enqueue(ctx context.Context, username string, files []slskd.EnqueueFile) error
	Downloads(ctx context.Context) ([]slskd.Transfer, error)
}

// Reserver is the dedup ledger surface the pipeline needs.
type Reserver interface {
	Reserve(e ledger.Entry) (bool, error)
	Release(key string) error
	IsReserved(key string) (bool, error)
}

// Config bounds one pipeline run.
type Config struct {
	Workers          int           // concurrent album units
	SearchTimeout    time.Duration // per-search budget
	PollInterval     time.Duration
	MinResults       int // early-exit file count
	TrackSearchLimit int // per-album cap on fallback track searches
}

// Pipeline runs the sync stage.
type Pipeline struct {
	wanted  WantedSource
	search  SearchClient
	ledger  Reserver
	scorer  *match.Scorer
	bus     *events.Bus
	actions *events.ActionLog
	logger  *slog.Logger
	cfg     Config
}

// New creates a Pipeline.
func New(wanted WantedSource, search SearchClient, led Reserver, scorer *match.Scorer,
	bus *events.Bus, actions *events.ActionLog, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TrackSearchLimit <= 0 {
		cfg.TrackSearchLimit = 5
	}
	return &Pipeline{
		wanted:  wanted,
		search:  search,
		ledger:  led,
		scorer:  scorer,
		bus:     bus,
		actions: actions,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run executes one sync pass. owned holds the track keys already satisfied
// by the Owned tier; pass nil when no scan is available. Interruption is
// not an error: the summary reports partial completion.
func (p *Pipeline) Run(ctx context.Context, owned map[string]bool) (Summary, error) {
	runKey := time.Now().UTC().Format("20060102T150405Z")
	_ = p.bus.Publish(ctx, events.NewRunStarted("sync", runKey, p.actions.DryRun()))

	albums, err := p.wanted.GetWantedAlbums(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch wanted albums: %w", err)
	}

	queued := p.activeQueue(ctx)

	var (
		mu  sync.Mutex
		sum Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	done := 0
	for _, album := range albums {
		// Halt between album units on cancellation, never mid-unit.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			unit := p.processAlbum(gctx, album, owned, queued)

			mu.Lock()
			sum.merge(unit)
			done++
			current := done
			mu.Unlock()

			_ = p.bus.Publish(gctx, events.NewProgress("sync", runKey, current, len(albums),
				fmt.Sprintf("%s - %s", album.Artist.ArtistName, album.Title)))
			return nil
		})
	}
	_ = g.Wait()

	sum.Interrupted = ctx.Err() != nil
	_ = p.bus.Publish(context.WithoutCancel(ctx), events.NewRunCompleted("sync", runKey,
		sum.Interrupted, sum.AlbumsChecked, sum.TracksQueued, sum.TracksFailed, sum.skipped()))

	p.logger.Info("sync run finished",
		"albums", sum.AlbumsChecked,
		"tracks_queued", sum.TracksQueued,
		"tracks_skipped", sum.skipped(),
		"interrupted", sum.Interrupted,
	)
	return sum, nil
}

// activeQueue snapshots the daemon's current download queue as a set of
// remote paths. A failure here only weakens suppression, so it degrades
// to an empty set.
func (p *Pipeline) activeQueue(ctx context.Context) map[string]bool {
	transfers, err := p.search.Downloads(ctx)
	if err != nil {
		p.logger.Warn("could not fetch download queue, proceeding without suppression", "error", err)
		return nil
	}
	active := make(map[string]bool)
	for _, t := range transfers {
		if t.Active() {
			active[t.Filename] = true
		}
	}
	return active
}

// processAlbum handles one wanted album end to end.
func (p *Pipeline) processAlbum(ctx context.Context, album lidarr.Album, owned, queued map[string]bool) Summary {
	var sum Summary
	sum.AlbumsChecked = 1

	log := p.logger.With("artist", album.Artist.ArtistName, "album", album.Title)

	tracks, err := p.wanted.GetAlbumTracks(ctx, album.ID)
	if err != nil {
		log.Error("failed to fetch track list", "error", err)
		sum.AlbumsFailed = 1
		return sum
	}

	target := toMatchAlbum(album, tracks)
	sum.TracksWanted = len(target.Tracks)

	need := p.filterTracks(ctx, target, queued, owned, &sum)
	if len(need) == 0 {
		return sum
	}
	target.Tracks = need

	remaining, albumQueued := p.queueAlbum(ctx, target, &sum, log)
	if albumQueued {
		sum.AlbumsQueued = 1
		return sum
	}
	if ctx.Err() != nil || len(remaining) == 0 {
		return sum
	}

	target.Tracks = remaining
	p.queueTracks(ctx, target, &sum, log)
	return sum
}

// filterTracks drops tracks already owned, already reserved, or already
// sitting in the download queue, recording a distinct skip reason each.
func (p *Pipeline) filterTracks(ctx context.Context, target match.Album, queued, owned map[string]bool, sum *Summary) []match.Track {
	var need []match.Track
	for _, t := range target.Tracks {
		key := t.Key()
		if owned[key] {
			sum.TracksOwned++
			_ = p.bus.Publish(ctx, events.NewTrackSkipped(key, t.Artist, t.Title, events.SkipOwned))
			continue
		}
		reserved, err := p.ledger.IsReserved(key)
		if err != nil {
			p.logger.Error("ledger check failed", "key", key, "error", err)
			sum.TracksFailed++
			continue
		}
		if reserved || p.inQueue(queued, t) {
			sum.TracksAlreadyQueued++
			_ = p.bus.Publish(ctx, events.NewTrackSkipped(key, t.Artist, t.Title, events.SkipAlreadyQueued))
			continue
		}
		need = append(need, t)
	}
	return need
}

// inQueue reports whether some active transfer looks like this track.
func (p *Pipeline) inQueue(queued map[string]bool, t match.Track) bool {
	for path := range queued {
		name := (match.Candidate{Path: path}).Filename()
		if match.TitleMatches(t.Title, name) {
			return true
		}
	}
	return false
}

// queueAlbum tries the album-scoped search. Returns the tracks the
// per-track fallback should still handle, and whether a whole release was
// enqueued. Once a selection was made, tracks that lost their reservation
// race or failed stay out of the fallback until the next run.
func (p *Pipeline) queueAlbum(ctx context.Context, target match.Album, sum *Summary, log *slog.Logger) ([]match.Track, bool) {
	query := match.NormalizeSearchQuery(target.Artist + " " + target.Title)
	responses, err := p.search.Collect(ctx, query, p.collectOptions())
	if err != nil {
		log.Warn("album search failed", "error", err)
		return target.Tracks, false
	}

	result := p.scorer.SelectAlbum(target, flatten(responses))
	if result.Outcome != match.OutcomeSelected {
		log.Debug("no album selection", "outcome", result.Outcome.String())
		return target.Tracks, false
	}
	sel := result.Selection

	// Reserve before enqueueing so a concurrent run can't double-queue.
	var entries []ledger.Entry
	for _, t := range target.Tracks {
		key := t.Key()
		remote := ""
		if r := p.scorer.SelectTrack(t, sel.Files); r.Outcome == match.OutcomeSelected {
			remote = r.Selection.Path
		}
		won, err := p.ledger.Reserve(ledger.Entry{
			Key: key, Artist: t.Artist, Title: t.Title,
			Source: reservationSource, RemotePath: remote,
		})
		if err != nil {
			log.Error("reserve failed", "key", key, "error", err)
			sum.TracksFailed++
			continue
		}
		if !won {
			sum.TracksAlreadyQueued++
			_ = p.bus.Publish(ctx, events.NewTrackSkipped(key, t.Artist, t.Title, events.SkipAlreadyQueued))
			continue
		}
		entries = append(entries, ledger.Entry{Key: key, Artist: t.Artist, Title: t.Title})
	}
	if len(entries) == 0 {
		return nil, false
	}

	files := make([]slskd.EnqueueFile, 0, len(sel.Files))
	for _, f := range sel.Files {
		files = append(files, slskd.EnqueueFile{Filename: f.Path, Size: f.Size})
	}

	start := time.Now()
	albumKey := match.AlbumKey(target.Artist, target.Title)
	if err := p.search.Enqueue(ctx, sel.Peer, files); err != nil {
		log.Error("album enqueue failed", "peer", sel.Peer, "error", err)
		// Nothing was queued; free the reservations so the next run can retry.
		for _, e := range entries {
			if relErr := p.ledger.Release(e.Key); relErr != nil {
				log.Error("release after failed enqueue", "key", e.Key, "error", relErr)
			}
		}
		sum.TracksFailed += len(entries)
		_ = p.actions.Record(events.Action{
			Action: events.ActionEnqueue, Source: sel.Peer, Target: albumKey,
			Status: events.StatusFailed, Detail: err.Error(),
			StartedAt: start, Duration: time.Since(start),
		})
		return nil, false
	}

	sum.TracksQueued += len(entries)
	_ = p.actions.Record(events.Action{
		Action: events.ActionEnqueue, Source: sel.Peer, Target: albumKey,
		Status: events.StatusDone,
		Detail: fmt.Sprintf("%d files, score %d", len(files), sel.Score),
		StartedAt: start, Duration: time.Since(start),
	})
	_ = p.bus.Publish(ctx, events.NewAlbumQueued(albumKey, target.Artist, target.Title,
		sel.Peer, len(files), sel.Score))

	log.Info("album queued", "peer", sel.Peer, "files", len(files), "score", sel.Score)
	return nil, true
}

// queueTracks is the per-track fallback, bounded by TrackSearchLimit.
func (p *Pipeline) queueTracks(ctx context.Context, target match.Album, sum *Summary, log *slog.Logger) {
	for i, t := range target.Tracks {
		if ctx.Err() != nil {
			return
		}
		if i >= p.cfg.TrackSearchLimit {
			remaining := len(target.Tracks) - i
			sum.TracksSkipped += remaining
			_ = p.bus.Publish(ctx, events.NewSearchExhausted(
				match.AlbumKey(target.Artist, target.Title), remaining))
			log.Debug("track search limit reached", "remaining", remaining)
			return
		}
		p.queueOneTrack(ctx, t, sum, log)
	}
}

func (p *Pipeline) queueOneTrack(ctx context.Context, t match.Track, sum *Summary, log *slog.Logger) {
	key := t.Key()
	query := match.NormalizeSearchQuery(t.Artist + " " + t.Title)

	responses, err := p.search.Collect(ctx, query, p.collectOptions())
	if err != nil {
		log.Warn("track search failed", "title", t.Title, "error", err)
		sum.TracksFailed++
		return
	}

	result := p.scorer.SelectTrack(t, flatten(responses))
	if result.Outcome != match.OutcomeSelected {
		sum.TracksSkipped++
		_ = p.bus.Publish(ctx, events.NewTrackSkipped(key, t.Artist, t.Title, skipReason(result.Outcome)))
		return
	}
	sel := result.Selection

	won, err := p.ledger.Reserve(ledger.Entry{
		Key: key, Artist: t.Artist, Title: t.Title,
		Source: reservationSource, RemotePath: sel.Path,
	})
	if err != nil {
		log.Error("reserve failed", "key", key, "error", err)
		sum.TracksFailed++
		return
	}
	if !won {
		sum.TracksAlreadyQueued++
		_ = p.bus.Publish(ctx, events.NewTrackSkipped(key, t.Artist, t.Title, events.SkipAlreadyQueued))
		return
	}

	start := time.Now()
	err = p.search.Enqueue(ctx, sel.Peer, []slskd.EnqueueFile{{Filename: sel.Path, Size: sel.Size}})
	if err != nil {
		log.Error("track enqueue failed", "title", t.Title, "peer", sel.Peer, "error", err)
		if relErr := p.ledger.Release(key); relErr != nil {
			log.Error("release after failed enqueue", "key", key, "error", relErr)
		}
		sum.TracksFailed++
		_ = p.actions.Record(events.Action{
			Action: events.ActionEnqueue, Source: sel.Peer, Target: key,
			Status: events.StatusFailed, Detail: err.Error(),
			StartedAt: start, Duration: time.Since(start),
		})
		return
	}

	sum.TracksQueued++
	_ = p.actions.Record(events.Action{
		Action: events.ActionEnqueue, Source: sel.Peer, Target: key,
		Status: events.StatusDone,
		Detail: fmt.Sprintf("score %d", sel.Score),
		StartedAt: start, Duration: time.Since(start),
	})
	_ = p.bus.Publish(ctx, events.NewTrackQueued(key, t.Artist, t.Title, sel.Peer, sel.Path, sel.Score))

	log.Info("track queued", "title", t.Title, "peer", sel.Peer, "score", sel.Score)
}

func (p *Pipeline) collectOptions() slskd.CollectOptions {
	return slskd.CollectOptions{
		Timeout:    p.cfg.SearchTimeout,
		Interval:   p.cfg.PollInterval,
		MinResults: p.cfg.MinResults,
	}
}

// flatten merges per-peer responses into one candidate slice, preserving
// response order so selection stays deterministic.
func flatten(responses []slskd.Response) []match.Candidate {
	var out []match.Candidate
	for _, r := range responses {
		out = append(out, r.Candidates()...)
	}
	return out
}

// skipReason maps a non-selected outcome to its summary skip reason.
func skipReason(o match.Outcome) string {
	switch o {
	case match.OutcomeNoCandidates:
		return events.SkipNoCandidates
	case match.OutcomeAllRejected:
		return events.SkipAllRejected
	default:
		return events.SkipNoMatch
	}
}

// toMatchAlbum converts a wanted album and its missing tracks into the
// matcher's album shape.
func toMatchAlbum(album lidarr.Album, tracks []lidarr.Track) match.Album {
	out := match.Album{
		Artist: album.Artist.ArtistName,
		Title:  album.Title,
		Year:   releaseYear(album.ReleaseDate),
	}
	for _, t := range tracks {
		if t.HasFile {
			continue
		}
		out.Tracks = append(out.Tracks, match.Track{
			Artist:   album.Artist.ArtistName,
			Title:    t.Title,
			Album:    album.Title,
			Number:   trackNumber(t.TrackNumber),
			Duration: time.Duration(t.Duration) * time.Millisecond,
		})
	}
	return out
}

// trackNumber parses "5" and disc-qualified "1-05" forms.
func trackNumber(s string) int {
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
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
