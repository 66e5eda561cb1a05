package events

// Reconciler event type constants.
const (
	EventAlbumPromoted     = "library.album_promoted"
	EventAlbumDemoted      = "library.album_demoted"
	EventAlbumUnclassified = "library.album_unclassified"
	EventDuplicateRemoved  = "library.duplicate_removed"
)

// AlbumPromoted records a complete album moving into the Not-Owned tier.
type AlbumPromoted struct {
	BaseEvent
	Artist string `json:"artist"`
	Album  string `json:"album"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// NewAlbumPromoted creates an AlbumPromoted event.
func NewAlbumPromoted(albumKey, artist, album, from, to string) *AlbumPromoted {
	return &AlbumPromoted{
		BaseEvent: NewBaseEvent(EventAlbumPromoted, "album", albumKey),
		Artist:    artist,
		Album:     album,
		From:      from,
		To:        to,
	}
}

// AlbumDemoted records an incomplete album moving into the Incomplete tier.
type AlbumDemoted struct {
	BaseEvent
	Artist  string `json:"artist"`
	Album   string `json:"album"`
	From    string `json:"from"`
	To      string `json:"to"`
	Missing int    `json:"missing_tracks"`
}

// NewAlbumDemoted creates an AlbumDemoted event.
func NewAlbumDemoted(albumKey, artist, album, from, to string, missing int) *AlbumDemoted {
	return &AlbumDemoted{
		BaseEvent: NewBaseEvent(EventAlbumDemoted, "album", albumKey),
		Artist:    artist,
		Album:     album,
		From:      from,
		To:        to,
		Missing:   missing,
	}
}

// AlbumUnclassified records a folder whose metadata was insufficient to
// classify. Informational; the folder is left untouched.
type AlbumUnclassified struct {
	BaseEvent
	Directory string `json:"directory"`
	Reason    string `json:"reason"`
}

// NewAlbumUnclassified creates an AlbumUnclassified event.
func NewAlbumUnclassified(directory, reason string) *AlbumUnclassified {
	return &AlbumUnclassified{
		BaseEvent: NewBaseEvent(EventAlbumUnclassified, "album", directory),
		Directory: directory,
		Reason:    reason,
	}
}

// DuplicateRemoved records a redundant copy of a track removed in favor
// of a better-format one.
type DuplicateRemoved struct {
	BaseEvent
	Kept    string `json:"kept"`
	Removed string `json:"removed"`
}

// NewDuplicateRemoved creates a DuplicateRemoved event.
func NewDuplicateRemoved(trackKey, kept, removed string) *DuplicateRemoved {
	return &DuplicateRemoved{
		BaseEvent: NewBaseEvent(EventDuplicateRemoved, "track", trackKey),
		Kept:      kept,
		Removed:   removed,
	}
}
