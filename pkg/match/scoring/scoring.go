// Package scoring provides the weight tables used to rank candidate files
// against wanted tracks and albums.
//
// The magnitudes are tuned defaults, not protocol constants. Callers may
// override any of them through Weights; Validate enforces the orderings the
// selection logic depends on (the unwanted-marker penalty outweighs any
// single bonus, and lossless outranks any bitrate bonus).
package scoring

import "fmt"

// Default track-level weights.
const (
	PenaltyUnwantedMarker = -50
	BonusLossless         = 30
	BonusBitrateHigh      = 20
	BonusBitrateMid       = 10
	BonusOriginalMarker   = 25
	BonusTrackNumber      = 15
	BonusPlausibleSize    = 10
)

// Default album-level weights.
const (
	BonusAlbumNameMatch   = 10
	BonusLosslessCoverage = 40
	BonusPerMatchingFile  = 1
	BonusUploadSpeedMax   = 30
	PenaltyCompilation    = -20
)

// Bitrate thresholds in kbps.
const (
	BitrateHigh = 320
	BitrateMid  = 192
)

// Plausible size range for a single audio track.
const (
	MinTrackBytes = 3 * 1024 * 1024
	MaxTrackBytes = 50 * 1024 * 1024
)

// SpeedPerPoint is the peer upload speed, in bytes per second, worth one
// point of the capped upload-speed bonus.
const SpeedPerPoint = 100 * 1024

// UnwantedMarkers are version qualifiers that mark a candidate as a
// degraded or alternate take of the wanted recording. Matching is done on
// whole normalized tokens, so "live" does not fire on "alive".
var UnwantedMarkers = []string{
	"remix",
	"live",
	"acoustic",
	"instrumental",
	"karaoke",
	"edit",
	"demo",
	"cover",
	"tribute",
}

// OriginalMarkers indicate the canonical album recording.
var OriginalMarkers = []string{
	"original",
	"album version",
}

// CompilationMarkers flag a shared directory as a various-artists release
// rather than the requested album proper.
var CompilationMarkers = []string{
	"various",
	"various artists",
	"compilation",
	"greatest hits",
	"best of",
	"collection",
	"anthology",
}

// Weights holds every tunable magnitude used by the scorer. The zero value
// is not usable; start from Defaults and override.
type Weights struct {
	UnwantedMarker   int
	Lossless         int
	BitrateHigh      int
	BitrateMid       int
	OriginalMarker   int
	TrackNumber      int
	PlausibleSize    int
	AlbumNameMatch   int
	LosslessCoverage int
	PerMatchingFile  int
	UploadSpeedMax   int
	Compilation      int

	// RejectBelow is the score floor: a matched candidate scoring below it
	// counts as rejected rather than selectable. Size never contributes to
	// rejection, only markers and missing bonuses do.
	RejectBelow int
}

// Defaults returns the tuned default weights.
func Defaults() Weights {
	return Weights{
		UnwantedMarker:   PenaltyUnwantedMarker,
		Lossless:         BonusLossless,
		BitrateHigh:      BonusBitrateHigh,
		BitrateMid:       BonusBitrateMid,
		OriginalMarker:   BonusOriginalMarker,
		TrackNumber:      BonusTrackNumber,
		PlausibleSize:    BonusPlausibleSize,
		AlbumNameMatch:   BonusAlbumNameMatch,
		LosslessCoverage: BonusLosslessCoverage,
		PerMatchingFile:  BonusPerMatchingFile,
		UploadSpeedMax:   BonusUploadSpeedMax,
		Compilation:      PenaltyCompilation,
		RejectBelow:      0,
	}
}

// Validate checks the relative orderings the selection invariants rely on.
// Magnitudes are free to change; these orderings are not.
func (w Weights) Validate() error {
	if w.UnwantedMarker >= 0 {
		return fmt.Errorf("unwanted marker weight must be negative, got %d", w.UnwantedMarker)
	}
	bonuses := map[string]int{
		"lossless":        w.Lossless,
		"bitrate_high":    w.BitrateHigh,
		"bitrate_mid":     w.BitrateMid,
		"original_marker": w.OriginalMarker,
		"track_number":    w.TrackNumber,
		"plausible_size":  w.PlausibleSize,
	}
	for name, b := range bonuses {
		if b < 0 {
			return fmt.Errorf("%s weight must not be negative, got %d", name, b)
		}
		if -w.UnwantedMarker <= b {
			return fmt.Errorf("unwanted marker penalty %d must outweigh %s bonus %d", w.UnwantedMarker, name, b)
		}
	}
	if w.Lossless <= w.BitrateHigh {
		return fmt.Errorf("lossless bonus %d must exceed bitrate bonus %d", w.Lossless, w.BitrateHigh)
	}
	if w.BitrateHigh < w.BitrateMid {
		return fmt.Errorf("high bitrate bonus %d must be at least mid bitrate bonus %d", w.BitrateHigh, w.BitrateMid)
	}
	if w.Compilation >= 0 {
		return fmt.Errorf("compilation weight must be negative, got %d", w.Compilation)
	}
	return nil
}
