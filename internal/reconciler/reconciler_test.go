package reconciler

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/crate/internal/config"
	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/expiry"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/migrations"
	"github.com/vmunix/crate/internal/navidrome"
	"github.com/vmunix/crate/pkg/match"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeMP3 drops a minimally tagged mp3 into dir.
func writeMP3(t *testing.T, dir, name, artist, album, title string, track, year int) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetArtist(artist)
	tag.SetAlbum(album)
	tag.SetTitle(title)
	tag.SetYear(strconv.Itoa(year))
	tag.AddTextFrame("TRCK", tag.DefaultEncoding(), strconv.Itoa(track))
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())
	return path
}

type fakeTracks struct {
	albums []*lidarr.Album
	tracks map[int64][]lidarr.Track
}

func (f *fakeTracks) FindAlbum(_ context.Context, artist, album string) (*lidarr.Album, error) {
	for _, a := range f.albums {
		if match.Normalize(a.Artist.ArtistName) == match.Normalize(artist) &&
			match.Normalize(a.Title) == match.Normalize(album) {
			return a, nil
		}
	}
	return nil, lidarr.ErrNotFound
}

func (f *fakeTracks) GetAlbumTracks(_ context.Context, albumID int64) ([]lidarr.Track, error) {
	return f.tracks[albumID], nil
}

type fakeStarred struct {
	set   *navidrome.StarredSet
	calls int
}

func (f *fakeStarred) Starred(context.Context) (*navidrome.StarredSet, error) {
	f.calls++
	if f.set == nil {
		return &navidrome.StarredSet{}, nil
	}
	return f.set, nil
}

type fakeExpiry struct {
	observed  []expiry.Record
	forgotten []string
}

func (f *fakeExpiry) Observe(rec expiry.Record, _ []expiry.TrackFile) (*expiry.Record, error) {
	f.observed = append(f.observed, rec)
	return &rec, nil
}

func (f *fakeExpiry) Forget(albumKey string) error {
	f.forgotten = append(f.forgotten, albumKey)
	return nil
}

type testEnv struct {
	roots   config.LibraryConfig
	tracks  *fakeTracks
	starred *fakeStarred
	expiry  *fakeExpiry
	actions *events.ActionLog
	r       *Reconciler
}

func setup(t *testing.T, dryRun bool) *testEnv {
	t.Helper()
	base := t.TempDir()
	env := &testEnv{
		roots: config.LibraryConfig{
			OwnedRoot:      filepath.Join(base, "owned"),
			NotOwnedRoot:   filepath.Join(base, "not-owned"),
			IncompleteRoot: filepath.Join(base, "incomplete"),
			DownloadsRoot:  filepath.Join(base, "downloads"),
		},
		tracks:  &fakeTracks{tracks: make(map[int64][]lidarr.Track)},
		starred: &fakeStarred{},
		expiry:  &fakeExpiry{},
	}
	for _, root := range []string{env.roots.OwnedRoot, env.roots.NotOwnedRoot, env.roots.IncompleteRoot, env.roots.DownloadsRoot} {
		require.NoError(t, os.MkdirAll(root, 0o755))
	}

	bus := events.NewBus(nil, discardLogger())
	t.Cleanup(func() { _ = bus.Close() })
	env.actions = events.NewActionLog(setupTestDB(t), discardLogger(), dryRun)
	env.r = New(env.roots, env.tracks, env.starred, env.expiry, bus, env.actions, discardLogger())
	return env
}

// wantDummy registers Portishead's Dummy with three canonical tracks.
func (env *testEnv) wantDummy() {
	env.tracks.albums = append(env.tracks.albums, &lidarr.Album{
		ID: 42, Title: "Dummy", ReleaseDate: "1994-08-22",
		Artist: lidarr.Artist{ID: 7, ArtistName: "Portishead"},
	})
	env.tracks.tracks[42] = []lidarr.Track{
		{ID: 1, Title: "Mysterons", TrackNumber: "1"},
		{ID: 2, Title: "Sour Times", TrackNumber: "2"},
		{ID: 3, Title: "Strangers", TrackNumber: "3"},
	}
}

func (env *testEnv) writeDummy(t *testing.T, dir string, titles ...string) {
	t.Helper()
	for i, title := range titles {
		writeMP3(t, dir, "0"+strconv.Itoa(i+1)+" - "+title+".mp3",
			"Portishead", "Dummy", title, i+1, 1994)
	}
}

func TestRun_PromotesCompleteAlbum(t *testing.T) {
	env := setup(t, false)
	env.wantDummy()

	src := filepath.Join(env.roots.IncompleteRoot, "Dummy")
	env.writeDummy(t, src, "Mysterons", "Sour Times", "Strangers")

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Promoted)
	assert.Zero(t, sum.Demoted)

	dest := filepath.Join(env.roots.NotOwnedRoot, "[1994] Portishead - Dummy")
	assert.DirExists(t, dest)
	assert.NoDirExists(t, src)

	require.NotEmpty(t, env.expiry.observed)
	last := env.expiry.observed[len(env.expiry.observed)-1]
	assert.Equal(t, dest, last.Directory)
	assert.Equal(t, 3, last.FileCount)
}

func TestRun_DemotesIncompleteAlbum(t *testing.T) {
	env := setup(t, false)
	env.wantDummy()

	src := filepath.Join(env.roots.NotOwnedRoot, "[1994] Portishead - Dummy")
	env.writeDummy(t, src, "Mysterons", "Sour Times") // Strangers missing

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Demoted)

	assert.DirExists(t, filepath.Join(env.roots.IncompleteRoot, "[1994] Portishead - Dummy"))
	assert.NoDirExists(t, src)
}

func TestRun_StarVetoesDemotion(t *testing.T) {
	env := setup(t, false)
	env.wantDummy()
	env.starred.set = &navidrome.StarredSet{
		Albums: map[string]bool{"portishead|dummy": true},
	}

	src := filepath.Join(env.roots.NotOwnedRoot, "Dummy")
	env.writeDummy(t, src, "Mysterons", "Sour Times")

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Demoted)
	assert.Equal(t, 1, sum.Vetoed)
	assert.DirExists(t, src, "vetoed folder must not move")
	assert.Positive(t, env.starred.calls, "starred snapshot fetched before the action")
}

func TestRun_TrackStarVetoesOnlyThatFile(t *testing.T) {
	env := setup(t, false)

	dir := filepath.Join(env.roots.IncompleteRoot, "Dummy")
	keep := writeMP3(t, dir, "02 - Sour Times [320].mp3", "Portishead", "Dummy", "Sour Times", 2, 1994)
	starredDup := writeMP3(t, dir, "02 - Sour Times [128].mp3", "Portishead", "Dummy", "Sour Times", 2, 1994)
	writeMP3(t, dir, "01 - Mysterons.mp3", "Portishead", "Dummy", "Mysterons", 1, 1994)
	env.starred.set = &navidrome.StarredSet{
		TrackPaths: map[string]bool{starredDup: true},
	}

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.DuplicatesRemoved)
	assert.Equal(t, 1, sum.Vetoed)
	assert.FileExists(t, starredDup)
	assert.FileExists(t, keep)
}

func TestRun_RemovesWorseDuplicate(t *testing.T) {
	env := setup(t, false)

	dir := filepath.Join(env.roots.IncompleteRoot, "Dummy")
	keep := writeMP3(t, dir, "02 - Sour Times [320].mp3", "Portishead", "Dummy", "Sour Times", 2, 1994)
	lose := writeMP3(t, dir, "02 - Sour Times [128].mp3", "Portishead", "Dummy", "Sour Times", 2, 1994)
	writeMP3(t, dir, "01 - Mysterons.mp3", "Portishead", "Dummy", "Mysterons", 1, 1994)

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.DuplicatesRemoved)
	assert.FileExists(t, keep)
	assert.NoFileExists(t, lose)
}

func TestRun_SingleTrackDemoted(t *testing.T) {
	env := setup(t, false)

	src := filepath.Join(env.roots.NotOwnedRoot, "Single")
	writeMP3(t, src, "01 - Angel.mp3", "Massive Attack", "Mezzanine", "Angel", 1, 1998)

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Demoted)
	assert.DirExists(t, filepath.Join(env.roots.IncompleteRoot, "Single"))
}

func TestRun_UnclassifiedLeftUntouched(t *testing.T) {
	env := setup(t, false)

	dir := filepath.Join(env.roots.NotOwnedRoot, "Mystery")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// No tag reader for ogg and nothing useful in the name.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recording.ogg"), make([]byte, 16), 0o644))

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Unclassified)
	assert.DirExists(t, dir)
	assert.FileExists(t, filepath.Join(dir, "recording.ogg"))
}

func TestRun_OwnedCopyRemoved(t *testing.T) {
	env := setup(t, false)

	ownedPath := writeMP3(t, filepath.Join(env.roots.OwnedRoot, "Mezzanine"),
		"01 - Angel.mp3", "Massive Attack", "Mezzanine", "Angel", 1, 1998)
	dir := filepath.Join(env.roots.IncompleteRoot, "Mixed")
	redundant := writeMP3(t, dir, "01 - Angel.mp3", "Massive Attack", "Mezzanine", "Angel", 1, 1998)
	other := writeMP3(t, dir, "02 - Teardrop.mp3", "Massive Attack", "Mezzanine", "Teardrop", 2, 1998)

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.DuplicatesRemoved)
	assert.NoFileExists(t, redundant)
	assert.FileExists(t, other)
	assert.FileExists(t, ownedPath, "owned tier is never mutated")
}

func TestRun_EmptiedFolderForgotten(t *testing.T) {
	env := setup(t, false)

	writeMP3(t, filepath.Join(env.roots.OwnedRoot, "Mezzanine"),
		"01 - Angel.mp3", "Massive Attack", "Mezzanine", "Angel", 1, 1998)
	dir := filepath.Join(env.roots.IncompleteRoot, "Mezzanine")
	redundant := writeMP3(t, dir, "01 - Angel.mp3", "Massive Attack", "Mezzanine", "Angel", 1, 1998)

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.DuplicatesRemoved)
	assert.NoFileExists(t, redundant)

	// Nothing left to age; the expiry record must not linger.
	assert.Contains(t, env.expiry.forgotten, "massive attack|mezzanine")
	assert.Empty(t, env.expiry.observed)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	env := setup(t, false)
	env.wantDummy()

	env.writeDummy(t, filepath.Join(env.roots.IncompleteRoot, "Dummy"),
		"Mysterons", "Sour Times", "Strangers")

	_, err := env.r.Run(context.Background())
	require.NoError(t, err)

	mark := time.Now()
	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Promoted)
	assert.Zero(t, sum.Demoted)
	assert.Zero(t, sum.DuplicatesRemoved)
	assert.Equal(t, 1, sum.Retained)

	actions, err := env.actions.Since(mark)
	require.NoError(t, err)
	assert.Empty(t, actions, "no filesystem actions on an unchanged library")
}

func TestRun_DryRunMovesNothing(t *testing.T) {
	env := setup(t, true)
	env.wantDummy()

	src := filepath.Join(env.roots.IncompleteRoot, "Dummy")
	env.writeDummy(t, src, "Mysterons", "Sour Times", "Strangers")

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Promoted, "dry run reports the same decisions")
	assert.DirExists(t, src, "nothing moves under dry-run")
	assert.Empty(t, env.expiry.observed, "dry run leaves no database trace")

	actions, err := env.actions.Since(time.Time{})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, events.ActionMove, actions[0].Action)
	assert.True(t, actions[0].DryRun)
}

func TestRun_CleansEmptyDirectories(t *testing.T) {
	env := setup(t, false)

	nested := filepath.Join(env.roots.DownloadsRoot, "peer", "leftover")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	sum, err := env.r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.EmptyDirsRemoved, "child then emptied parent")
	assert.NoDirExists(t, filepath.Join(env.roots.DownloadsRoot, "peer"))
	assert.DirExists(t, env.roots.DownloadsRoot, "tier roots are kept")
}

func TestOwnedIndex(t *testing.T) {
	env := setup(t, false)
	writeMP3(t, filepath.Join(env.roots.OwnedRoot, "Mezzanine"),
		"01 - Angel.mp3", "Massive Attack", "Mezzanine", "Angel", 1, 1998)

	owned, err := env.r.OwnedIndex()
	require.NoError(t, err)
	assert.True(t, owned["massive attack|angel"])
	assert.Len(t, owned, 1)
}
