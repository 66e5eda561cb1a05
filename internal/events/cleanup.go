package events

// Cleanup and transfer-watcher event type constants.
const (
	EventAlbumExpired      = "cleanup.album_expired"
	EventDeletionVetoed    = "cleanup.deletion_vetoed"
	EventTransferCompleted = "watch.transfer_completed"
	EventTransferFailed    = "watch.transfer_failed"
	EventStaleReservation  = "watch.stale_reservation"
)

// AlbumExpired records an album deleted after exceeding the retention
// period.
type AlbumExpired struct {
	BaseEvent
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	AgeDays  int     `json:"age_days"`
	SizeMB   float64 `json:"size_mb"`
	Retained int     `json:"retained_files"` // starred tracks kept in place
}

// NewAlbumExpired creates an AlbumExpired event.
func NewAlbumExpired(albumKey, artist, album string, ageDays int, sizeMB float64, retained int) *AlbumExpired {
	return &AlbumExpired{
		BaseEvent: NewBaseEvent(EventAlbumExpired, "album", albumKey),
		Artist:    artist,
		Album:     album,
		AgeDays:   ageDays,
		SizeMB:    sizeMB,
		Retained:  retained,
	}
}

// DeletionVetoed records a starred-protection veto. Guaranteed no-op.
type DeletionVetoed struct {
	BaseEvent
	Target string `json:"target"`
	Level  string `json:"level"` // "album" or "track"
}

// NewDeletionVetoed creates a DeletionVetoed event.
func NewDeletionVetoed(key, target, level string) *DeletionVetoed {
	return &DeletionVetoed{
		BaseEvent: NewBaseEvent(EventDeletionVetoed, "album", key),
		Target:    target,
		Level:     level,
	}
}

// TransferCompleted records a finished download; its ledger reservation
// has been released.
type TransferCompleted struct {
	BaseEvent
	Peer string `json:"peer"`
	Path string `json:"path"`
}

// NewTransferCompleted creates a TransferCompleted event.
func NewTransferCompleted(trackKey, peer, path string) *TransferCompleted {
	return &TransferCompleted{
		BaseEvent: NewBaseEvent(EventTransferCompleted, "track", trackKey),
		Peer:      peer,
		Path:      path,
	}
}

// TransferFailed records a permanently failed download; its ledger
// reservation has been released so a later run can retry.
type TransferFailed struct {
	BaseEvent
	Peer  string `json:"peer"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// NewTransferFailed creates a TransferFailed event.
func NewTransferFailed(trackKey, peer, path, state string) *TransferFailed {
	return &TransferFailed{
		BaseEvent: NewBaseEvent(EventTransferFailed, "track", trackKey),
		Peer:      peer,
		Path:      path,
		State:     state,
	}
}

// StaleReservation surfaces a reservation with no matching transfer for
// an extended period. Reported, never auto-cleared.
type StaleReservation struct {
	BaseEvent
	Artist  string `json:"artist"`
	Title   string `json:"title"`
	AgeDays int    `json:"age_days"`
}

// NewStaleReservation creates a StaleReservation event.
func NewStaleReservation(trackKey, artist, title string, ageDays int) *StaleReservation {
	return &StaleReservation{
		BaseEvent: NewBaseEvent(EventStaleReservation, "track", trackKey),
		Artist:    artist,
		Title:     title,
		AgeDays:   ageDays,
	}
}
