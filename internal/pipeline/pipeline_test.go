package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/lidarr"
	"github.com/vmunix/crate/internal/migrations"
	"github.com/vmunix/crate/internal/pipeline/mocks"
	"github.com/vmunix/crate/internal/slskd"
	"github.com/vmunix/crate/pkg/match"
	"github.com/vmunix/crate/pkg/match/scoring"
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

type fixture struct {
	wanted  *mocks.MockWantedSource
	search  *mocks.MockSearchClient
	ledger  *mocks.MockReserver
	actions *events.ActionLog
	p       *Pipeline
}

func setup(t *testing.T, dryRun bool) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		wanted: mocks.NewMockWantedSource(ctrl),
		search: mocks.NewMockSearchClient(ctrl),
		ledger: mocks.NewMockReserver(ctrl),
	}
	db := setupTestDB(t)
	f.actions = events.NewActionLog(db, discardLogger(), dryRun)
	bus := events.NewBus(nil, discardLogger())
	t.Cleanup(func() { _ = bus.Close() })

	f.p = New(f.wanted, f.search, f.ledger,
		match.NewScorer(scoring.Defaults()), bus, f.actions,
		Config{Workers: 1, TrackSearchLimit: 3}, discardLogger())
	return f
}

func wantedDummy() []lidarr.Album {
	return []lidarr.Album{{
		ID:          42,
		Title:       "Dummy",
		ReleaseDate: "1994-08-22",
		Artist:      lidarr.Artist{ID: 7, ArtistName: "Portishead"},
	}}
}

func dummyTracks() []lidarr.Track {
	return []lidarr.Track{
		{ID: 1, Title: "Mysterons", TrackNumber: "1", HasFile: false},
		{ID: 2, Title: "Sour Times", TrackNumber: "2", HasFile: false},
		{ID: 3, Title: "Strangers", TrackNumber: "3", HasFile: true},
	}
}

// albumResponse is a peer sharing the whole release in one directory.
func albumResponse() []slskd.Response {
	dir := `@@music\Portishead\Portishead - Dummy (1994)`
	return []slskd.Response{{
		Username:    "goodpeer",
		UploadSpeed: 900000,
		Files: []slskd.File{
			{Filename: dir + `\01 - Mysterons.flac`, Size: 30 << 20},
			{Filename: dir + `\02 - Sour Times.flac`, Size: 28 << 20},
			{Filename: dir + `\03 - Strangers.flac`, Size: 25 << 20},
		},
	}}
}

func TestRun_AlbumQueued(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	f.search.EXPECT().Downloads(gomock.Any()).Return(nil, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(dummyTracks(), nil)

	// Only the two missing tracks are considered.
	f.ledger.EXPECT().IsReserved(match.TrackKey("Portishead", "Mysterons")).Return(false, nil)
	f.ledger.EXPECT().IsReserved(match.TrackKey("Portishead", "Sour Times")).Return(false, nil)

	f.search.EXPECT().Collect(gomock.Any(), "Portishead Dummy", gomock.Any()).
		Return(albumResponse(), nil)

	f.ledger.EXPECT().Reserve(gomock.Any()).Return(true, nil).Times(2)

	f.search.EXPECT().Enqueue(gomock.Any(), "goodpeer", gomock.Len(3)).Return(nil)

	sum, err := f.p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AlbumsChecked)
	assert.Equal(t, 1, sum.AlbumsQueued)
	assert.Equal(t, 2, sum.TracksWanted)
	assert.Equal(t, 2, sum.TracksQueued)
	assert.False(t, sum.Interrupted)

	// The enqueue landed in the audit trail.
	actions, aerr := f.actions.Since(time.Time{})
	require.NoError(t, aerr)
	require.Len(t, actions, 1)
	assert.Equal(t, events.ActionEnqueue, actions[0].Action)
	assert.Equal(t, events.StatusDone, actions[0].Status)
	assert.Equal(t, "goodpeer", actions[0].Source)
}

func TestRun_OwnedAndReservedSuppressed(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	f.search.EXPECT().Downloads(gomock.Any()).Return(nil, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(dummyTracks(), nil)

	// Sour Times is already reserved by a previous run.
	f.ledger.EXPECT().IsReserved(match.TrackKey("Portishead", "Sour Times")).Return(true, nil)

	owned := map[string]bool{match.TrackKey("Portishead", "Mysterons"): true}

	// Nothing left to search; no Collect, no Enqueue.
	sum, err := f.p.Run(context.Background(), owned)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TracksOwned)
	assert.Equal(t, 1, sum.TracksAlreadyQueued)
	assert.Zero(t, sum.TracksQueued)
}

func TestRun_TrackFallback(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	f.search.EXPECT().Downloads(gomock.Any()).Return(nil, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(dummyTracks(), nil)
	f.ledger.EXPECT().IsReserved(gomock.Any()).Return(false, nil).Times(2)

	// Album search finds nothing; each track search runs individually.
	f.search.EXPECT().Collect(gomock.Any(), "Portishead Dummy", gomock.Any()).Return(nil, nil)
	f.search.EXPECT().Collect(gomock.Any(), "Portishead Mysterons", gomock.Any()).
		Return([]slskd.Response{{
			Username: "trackpeer",
			Files:    []slskd.File{{Filename: `a\01 - Mysterons.flac`, Size: 30 << 20}},
		}}, nil)
	f.search.EXPECT().Collect(gomock.Any(), "Portishead Sour Times", gomock.Any()).
		Return(nil, nil) // no candidates

	f.ledger.EXPECT().Reserve(gomock.Any()).Return(true, nil)
	f.search.EXPECT().Enqueue(gomock.Any(), "trackpeer", gomock.Len(1)).Return(nil)

	sum, err := f.p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, sum.AlbumsQueued)
	assert.Equal(t, 1, sum.TracksQueued)
	assert.Equal(t, 1, sum.TracksSkipped, "no-candidate track counts as skipped")
}

func TestRun_TrackSearchLimit(t *testing.T) {
	f := setup(t, false)

	tracks := []lidarr.Track{
		{ID: 1, Title: "One", TrackNumber: "1"},
		{ID: 2, Title: "Two", TrackNumber: "2"},
		{ID: 3, Title: "Three", TrackNumber: "3"},
		{ID: 4, Title: "Four", TrackNumber: "4"},
		{ID: 5, Title: "Five", TrackNumber: "5"},
	}

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	f.search.EXPECT().Downloads(gomock.Any()).Return(nil, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(tracks, nil)
	f.ledger.EXPECT().IsReserved(gomock.Any()).Return(false, nil).Times(5)

	// Album search plus exactly TrackSearchLimit (3) track searches; the
	// last two tracks are never searched.
	f.search.EXPECT().Collect(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).Times(4)

	sum, err := f.p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TracksSkipped, "3 searched without result + 2 past the cap")
}

func TestRun_EnqueueFailureReleasesReservations(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	f.search.EXPECT().Downloads(gomock.Any()).Return(nil, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(dummyTracks(), nil)
	f.ledger.EXPECT().IsReserved(gomock.Any()).Return(false, nil).Times(2)
	f.search.EXPECT().Collect(gomock.Any(), "Portishead Dummy", gomock.Any()).
		Return(albumResponse(), nil)
	f.ledger.EXPECT().Reserve(gomock.Any()).Return(true, nil).Times(2)

	f.search.EXPECT().Enqueue(gomock.Any(), "goodpeer", gomock.Any()).
		Return(errors.New("peer went away"))

	// Both reservations are freed so the next run can retry; the per-track
	// fallback does not re-search in the same run.
	f.ledger.EXPECT().Release(match.TrackKey("Portishead", "Mysterons")).Return(nil)
	f.ledger.EXPECT().Release(match.TrackKey("Portishead", "Sour Times")).Return(nil)

	sum, err := f.p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TracksFailed)

	actions, aerr := f.actions.Since(time.Time{})
	require.NoError(t, aerr)
	require.Len(t, actions, 1)
	assert.Equal(t, events.StatusFailed, actions[0].Status)
}

func TestRun_LostReservationMeansNoEnqueue(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	f.search.EXPECT().Downloads(gomock.Any()).Return(nil, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(dummyTracks(), nil)
	f.ledger.EXPECT().IsReserved(gomock.Any()).Return(false, nil).Times(2)
	f.search.EXPECT().Collect(gomock.Any(), "Portishead Dummy", gomock.Any()).
		Return(albumResponse(), nil)

	// A concurrent run won both reservations between our check and claim.
	f.ledger.EXPECT().Reserve(gomock.Any()).Return(false, nil).Times(2)

	// No Enqueue, and the fallback skips reserving again: the album path
	// already recorded both tracks as queued elsewhere.
	sum, err := f.p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TracksAlreadyQueued)
	assert.Zero(t, sum.TracksQueued)
}

func TestRun_WantedSourceDown(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).
		Return(nil, errors.New("connection refused"))

	_, err := f.p.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wanted albums")
}

func TestRun_QueueSuppression(t *testing.T) {
	f := setup(t, false)

	f.wanted.EXPECT().GetWantedAlbums(gomock.Any()).Return(wantedDummy(), nil)
	// Mysterons is mid-download already.
	f.search.EXPECT().Downloads(gomock.Any()).Return([]slskd.Transfer{
		{Username: "p", Filename: `dir\01 - Mysterons.flac`, State: "InProgress"},
		{Username: "p", Filename: `dir\old.flac`, State: "Completed, Succeeded"},
	}, nil)
	f.wanted.EXPECT().GetAlbumTracks(gomock.Any(), int64(42)).Return(
		dummyTracks()[:1], nil) // only Mysterons missing
	f.ledger.EXPECT().IsReserved(gomock.Any()).Return(false, nil)

	sum, err := f.p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TracksAlreadyQueued)
	assert.Zero(t, sum.TracksQueued)
}
