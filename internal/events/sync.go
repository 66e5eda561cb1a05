package events

// Sync pipeline event type constants.
const (
	EventRunStarted      = "run.started"
	EventRunCompleted    = "run.completed"
	EventAlbumQueued     = "sync.album_queued"
	EventTrackQueued     = "sync.track_queued"
	EventTrackSkipped    = "sync.track_skipped"
	EventSearchExhausted = "sync.search_exhausted"
)

// Skip reasons recorded on TrackSkipped events.
const (
	SkipOwned         = "owned"
	SkipAlreadyQueued = "already_queued"
	SkipNoCandidates  = "no_candidates"
	SkipNoMatch       = "no_match"
	SkipAllRejected   = "all_rejected"
)

// RunStarted marks the beginning of a pipeline stage run.
type RunStarted struct {
	BaseEvent
	Stage  string `json:"stage"`
	DryRun bool   `json:"dry_run"`
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(stage, runKey string, dryRun bool) *RunStarted {
	return &RunStarted{
		BaseEvent: NewBaseEvent(EventRunStarted, "run", runKey),
		Stage:     stage,
		DryRun:    dryRun,
	}
}

// RunCompleted marks the end of a pipeline stage run, including partial
// completion after an interrupt.
type RunCompleted struct {
	BaseEvent
	Stage       string `json:"stage"`
	Interrupted bool   `json:"interrupted"`
	Processed   int    `json:"processed"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(stage, runKey string, interrupted bool, processed, succeeded, failed, skipped int) *RunCompleted {
	return &RunCompleted{
		BaseEvent:   NewBaseEvent(EventRunCompleted, "run", runKey),
		Stage:       stage,
		Interrupted: interrupted,
		Processed:   processed,
		Succeeded:   succeeded,
		Failed:      failed,
		Skipped:     skipped,
	}
}

// AlbumQueued records a whole-release enqueue with the winning peer.
type AlbumQueued struct {
	BaseEvent
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Peer      string `json:"peer"`
	FileCount int    `json:"file_count"`
	Score     int    `json:"score"`
}

// NewAlbumQueued creates an AlbumQueued event.
func NewAlbumQueued(albumKey, artist, album, peer string, fileCount, score int) *AlbumQueued {
	return &AlbumQueued{
		BaseEvent: NewBaseEvent(EventAlbumQueued, "album", albumKey),
		Artist:    artist,
		Album:     album,
		Peer:      peer,
		FileCount: fileCount,
		Score:     score,
	}
}

// TrackQueued records a single-track enqueue with the winning candidate.
type TrackQueued struct {
	BaseEvent
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Peer   string `json:"peer"`
	Path   string `json:"path"`
	Score  int    `json:"score"`
}

// NewTrackQueued creates a TrackQueued event.
func NewTrackQueued(trackKey, artist, title, peer, path string, score int) *TrackQueued {
	return &TrackQueued{
		BaseEvent: NewBaseEvent(EventTrackQueued, "track", trackKey),
		Artist:    artist,
		Title:     title,
		Peer:      peer,
		Path:      path,
		Score:     score,
	}
}

// SearchExhausted records tracks left unsearched after an album hit the
// per-album track-search cap. They stay wanted for the next run.
type SearchExhausted struct {
	BaseEvent
	Remaining int `json:"remaining"`
}

// NewSearchExhausted creates a SearchExhausted event.
func NewSearchExhausted(albumKey string, remaining int) *SearchExhausted {
	return &SearchExhausted{
		BaseEvent: NewBaseEvent(EventSearchExhausted, "album", albumKey),
		Remaining: remaining,
	}
}

// TrackSkipped records why a wanted track was not queued. All reasons are
// legitimate outcomes, not failures.
type TrackSkipped struct {
	BaseEvent
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// NewTrackSkipped creates a TrackSkipped event.
func NewTrackSkipped(trackKey, artist, title, reason string) *TrackSkipped {
	return &TrackSkipped{
		BaseEvent: NewBaseEvent(EventTrackSkipped, "track", trackKey),
		Artist:    artist,
		Title:     title,
		Reason:    reason,
	}
}
