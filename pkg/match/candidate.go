// Package match implements the candidate matching and selection engine:
// normalizing noisy remote filenames, scoring them against wanted tracks
// and albums, and deterministically picking the single best file per target.
package match

import (
	"path"
	"strings"
	"time"
)

// Track identifies a canonical wanted song. Immutable for the duration of
// one matching pass.
type Track struct {
	Artist   string
	Title    string
	Album    string        // optional
	Number   int           // optional, 0 = unknown
	Duration time.Duration // optional
}

// Key returns the track's dedup ledger key.
func (t Track) Key() string {
	return TrackKey(t.Artist, t.Title)
}

// Album identifies a canonical wanted release together with its track list.
type Album struct {
	Artist      string
	Title       string
	Year        int
	Tracks      []Track
	Compilation bool // true when the wanted release itself is a compilation
}

// Candidate is a single remote search hit. Ephemeral; exists only within
// one search-and-score operation.
type Candidate struct {
	Peer        string // owning peer identifier
	Path        string // remote file path as reported by the peer
	Size        int64  // bytes
	BitRate     int    // declared kbps, 0 when absent
	UploadSpeed int    // peer upload speed, bytes per second
	QueueLength int    // peer queue depth
	HasFreeSlot bool
}

// Filename returns the base name of the candidate's remote path. Peers
// report Windows-style paths as often as Unix ones.
func (c Candidate) Filename() string {
	p := strings.ReplaceAll(c.Path, `\`, "/")
	return path.Base(p)
}

// Directory returns the remote parent directory of the candidate.
func (c Candidate) Directory() string {
	p := strings.ReplaceAll(c.Path, `\`, "/")
	return path.Dir(p)
}

// Extension returns the lowercased file extension including the dot.
func (c Candidate) Extension() string {
	return strings.ToLower(path.Ext(c.Filename()))
}

// Lossless reports whether the candidate uses a lossless container.
func (c Candidate) Lossless() bool {
	return c.Extension() == ".flac" || c.Extension() == ".wav"
}

// ScoredCandidate is a Candidate that cleared the similarity threshold
// against its target Track, carrying the computed quality score.
type ScoredCandidate struct {
	Candidate
	Track Track
	Score int
}

// Selection is the single winning candidate for one wanted track.
type Selection struct {
	ScoredCandidate
}

// AlbumCandidate is a peer's shared directory treated as a whole-release
// offer: all audio files grouped under one remote parent directory.
type AlbumCandidate struct {
	Peer        string
	Directory   string
	Files       []Candidate
	UploadSpeed int
}

// AlbumSelection is the winning directory for one wanted album.
type AlbumSelection struct {
	AlbumCandidate
	Album Album
	Score int
}

// Outcome reports why a matching pass did or did not produce a selection.
// All non-Selected outcomes are legitimate results, not errors.
type Outcome int

const (
	// OutcomeSelected means a winner was chosen.
	OutcomeSelected Outcome = iota
	// OutcomeNoCandidates means the search returned no audio files at all.
	OutcomeNoCandidates
	// OutcomeNoMatch means audio candidates existed but none cleared the
	// similarity threshold against the target.
	OutcomeNoMatch
	// OutcomeAllRejected means candidates matched the target but every one
	// scored below the rejection floor (degraded versions only).
	OutcomeAllRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelected:
		return "selected"
	case OutcomeNoCandidates:
		return "no candidates"
	case OutcomeNoMatch:
		return "no match"
	case OutcomeAllRejected:
		return "all rejected"
	default:
		return "unknown"
	}
}

// audioExtensions is the recognized audio set. Anything else (cover art,
// logs, cue sheets) is discarded before scoring.
var audioExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// IsAudioFile reports whether the filename carries a recognized audio
// extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(path.Ext(name))]
}

// FilterAudio returns only the candidates with a recognized audio
// extension, preserving input order (first-seen order matters for
// tie-breaking).
func FilterAudio(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if IsAudioFile(c.Filename()) {
			out = append(out, c)
		}
	}
	return out
}

// GroupByDirectory buckets candidates into album candidates by remote
// parent directory, preserving first-seen directory order.
func GroupByDirectory(candidates []Candidate) []AlbumCandidate {
	index := make(map[string]int)
	var groups []AlbumCandidate
	for _, c := range candidates {
		dir := c.Peer + "::" + c.Directory()
		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, AlbumCandidate{
				Peer:        c.Peer,
				Directory:   c.Directory(),
				UploadSpeed: c.UploadSpeed,
			})
		}
		groups[i].Files = append(groups[i].Files, c)
		if c.UploadSpeed > groups[i].UploadSpeed {
			groups[i].UploadSpeed = c.UploadSpeed
		}
	}
	return groups
}
