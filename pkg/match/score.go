package match

import (
	"regexp"
	"strings"

	"github.com/vmunix/crate/pkg/match/scoring"
)

// MinAlbumFiles is the smallest number of audio files a shared directory
// must hold to be considered a whole-release offer.
const MinAlbumFiles = 3

// trackPrefixRegex captures a leading track number, optionally preceded by
// the word "track", followed by a separator ("01 - ", "3.", "track 12 ").
var trackPrefixRegex = regexp.MustCompile(`^(?:track[\s._-]*)?(\d{1,3})(?:[\s._-]|$)`)

// separatorReplacer rewrites filename punctuation to spaces so marker
// tokens inside parentheses or after dashes are still seen.
var separatorReplacer = strings.NewReplacer(
	"(", " ", ")", " ",
	"[", " ", "]", " ",
	"{", " ", "}", " ",
	"-", " ", "_", " ",
	".", " ", ",", " ",
)

// Scorer computes quality scores for candidates against wanted tracks and
// albums. It is pure and deterministic: identical inputs always produce
// identical scores. Safe for concurrent use.
type Scorer struct {
	weights scoring.Weights
}

// NewScorer returns a scorer using the given weights. Callers should
// Validate the weights first; NewScorer does not.
func NewScorer(w scoring.Weights) *Scorer {
	return &Scorer{weights: w}
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() scoring.Weights {
	return s.weights
}

// ScoreTrack scores one candidate file against a wanted track. The second
// return is false when the filename does not match the track at all; no
// score is computed for non-matches.
func (s *Scorer) ScoreTrack(t Track, c Candidate) (int, bool) {
	name := c.Filename()
	stem := strings.TrimSuffix(name, c.Extension())

	if !TitleMatches(t.Title, stem) {
		return 0, false
	}

	w := s.weights
	tokens, joined := fileTokens(name)
	score := 0

	if hasMarker(tokens, joined, scoring.UnwantedMarkers) {
		score += w.UnwantedMarker
	}
	if hasMarker(tokens, joined, scoring.OriginalMarkers) {
		score += w.OriginalMarker
	}

	if c.Lossless() {
		score += w.Lossless
	} else {
		switch kbps := declaredBitrate(c, joined); {
		case kbps >= scoring.BitrateHigh:
			score += w.BitrateHigh
		case kbps >= scoring.BitrateMid:
			score += w.BitrateMid
		}
	}

	if n, ok := trackNumberPrefix(stem); ok && plausibleTrackNumber(n, t.Number) {
		score += w.TrackNumber
	}

	// Size influences ranking only; it never disqualifies a match.
	if c.Size >= scoring.MinTrackBytes && c.Size <= scoring.MaxTrackBytes {
		score += w.PlausibleSize
	}

	return score, true
}

// ScoreAlbum scores a peer's shared directory against a wanted album. The
// second return is false when the directory does not plausibly offer the
// album: too few audio files, or neither the album name nor a majority of
// its tracks appear.
func (s *Scorer) ScoreAlbum(a Album, ac AlbumCandidate) (int, bool) {
	audio := FilterAudio(ac.Files)
	if len(audio) < MinAlbumFiles {
		return 0, false
	}

	dirBase := baseName(ac.Directory)
	nameMatch := TitleMatches(a.Title, dirBase)

	matched, lossless := s.matchTrackFiles(a, audio)
	if !nameMatch && (len(a.Tracks) == 0 || matched*2 < len(a.Tracks)) {
		return 0, false
	}

	w := s.weights
	score := 0

	if nameMatch {
		score += w.AlbumNameMatch
	}
	if len(a.Tracks) > 0 {
		score += lossless * w.LosslessCoverage / len(a.Tracks)
	}
	score += matched * w.PerMatchingFile

	if bonus := ac.UploadSpeed / scoring.SpeedPerPoint; bonus > 0 {
		score += min(bonus, w.UploadSpeedMax)
	}

	if !a.Compilation && looksLikeCompilation(dirBase) {
		score += w.Compilation
	}

	return score, true
}

// matchTrackFiles counts directory files matching any wanted track, and
// how many of the matches are lossless. Each file counts once against the
// first track it matches; each track is satisfied at most once.
func (s *Scorer) matchTrackFiles(a Album, audio []Candidate) (matched, lossless int) {
	if len(a.Tracks) == 0 {
		return 0, 0
	}
	satisfied := make([]bool, len(a.Tracks))
	for _, f := range audio {
		stem := strings.TrimSuffix(f.Filename(), f.Extension())
		for i, t := range a.Tracks {
			if satisfied[i] || !TitleMatches(t.Title, stem) {
				continue
			}
			satisfied[i] = true
			matched++
			if f.Lossless() {
				lossless++
			}
			break
		}
	}
	return matched, lossless
}

// fileTokens lowercases a filename and splits it on punctuation, keeping
// parenthesized content visible. Returns the token list and the joined
// form for multi-word marker checks.
func fileTokens(name string) ([]string, string) {
	s := strings.ToLower(name)
	if i := strings.LastIndex(s, "."); i > 0 {
		s = s[:i]
	}
	s = separatorReplacer.Replace(s)
	tokens := strings.Fields(s)
	return tokens, strings.Join(tokens, " ")
}

// hasMarker reports whether any marker from the table appears in the
// filename. Single-word markers match whole tokens only ("live" does not
// fire on "alive"); multi-word markers match on the joined token string.
func hasMarker(tokens []string, joined string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(m, " ") {
			if strings.Contains(joined, m) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == m {
				return true
			}
		}
	}
	return false
}

// declaredBitrate prefers the peer-declared bitrate; when absent it falls
// back to a bitrate token embedded in the filename ("320", "192").
func declaredBitrate(c Candidate, joined string) int {
	if c.BitRate > 0 {
		return c.BitRate
	}
	for _, hint := range []struct {
		token string
		kbps  int
	}{
		{"320", 320},
		{"256", 256},
		{"192", 192},
	} {
		for _, tok := range strings.Fields(joined) {
			if tok == hint.token {
				return hint.kbps
			}
		}
	}
	return 0
}

// trackNumberPrefix extracts a leading track number from a filename stem.
func trackNumberPrefix(stem string) (int, bool) {
	m := trackPrefixRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(stem)))
	if m == nil {
		return 0, false
	}
	n := 0
	for _, r := range m[1] {
		n = n*10 + int(r-'0')
	}
	return n, true
}

// plausibleTrackNumber checks a parsed prefix against the wanted track
// number when known, or basic disc-position bounds when not.
func plausibleTrackNumber(n, wanted int) bool {
	if wanted > 0 {
		return n == wanted
	}
	return n >= 1 && n <= 99
}

func looksLikeCompilation(dirName string) bool {
	_, joined := fileTokens(dirName)
	tokens := strings.Fields(joined)
	return hasMarker(tokens, joined, scoring.CompilationMarkers)
}

func baseName(dir string) string {
	d := strings.ReplaceAll(dir, `\`, "/")
	d = strings.TrimRight(d, "/")
	if i := strings.LastIndex(d, "/"); i >= 0 {
		return d[i+1:]
	}
	return d
}
