package pipeline

// Summary is the result of one sync run. Produced regardless of
// interruption; Interrupted distinguishes partial from full completion.
type Summary struct {
	AlbumsChecked int
	AlbumsQueued  int
	AlbumsFailed  int

	TracksWanted        int
	TracksOwned         int
	TracksAlreadyQueued int
	TracksQueued        int
	TracksSkipped       int // searched but no acceptable candidate
	TracksFailed        int

	Interrupted bool
}

// merge folds one album unit's counters into the run total.
func (s *Summary) merge(unit Summary) {
	s.AlbumsChecked += unit.AlbumsChecked
	s.AlbumsQueued += unit.AlbumsQueued
	s.AlbumsFailed += unit.AlbumsFailed
	s.TracksWanted += unit.TracksWanted
	s.TracksOwned += unit.TracksOwned
	s.TracksAlreadyQueued += unit.TracksAlreadyQueued
	s.TracksQueued += unit.TracksQueued
	s.TracksSkipped += unit.TracksSkipped
	s.TracksFailed += unit.TracksFailed
}

// skipped totals every track that was deliberately not queued.
func (s *Summary) skipped() int {
	return s.TracksOwned + s.TracksAlreadyQueued + s.TracksSkipped
}
