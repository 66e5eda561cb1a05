// Package tags extracts per-file audio metadata: ID3v2 frames for mp3,
// Vorbis comments for flac, and a conservative filename fallback for
// everything the tag readers cannot fill in. Extraction is read-only;
// files are never rewritten.
package tags

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// Meta is the metadata of one audio file. Zero fields mean the value
// could not be determined.
type Meta struct {
	Artist string
	Album  string
	Title  string
	Track  int
	Year   int
}

// Complete reports whether every field a classifier needs is present.
func (m Meta) Complete() bool {
	return m.Artist != "" && m.Album != "" && m.Title != "" && m.Track > 0 && m.Year > 0
}

// AudioExtensions lists the file extensions treated as audio, lowercase
// with leading dot.
var AudioExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// IsAudio reports whether path has a recognized audio extension.
func IsAudio(path string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ReadFile extracts metadata from the file at path. Tag data is
// preferred; fields the tags leave empty are filled from the filename
// where that can be done without guessing. An unreadable or untagged
// file is not an error: the caller gets whatever could be recovered,
// possibly a zero Meta.
func ReadFile(path string) (Meta, error) {
	var m Meta
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		m, err = readID3(path)
	case ".flac":
		m, err = readVorbis(path)
	default:
		// No reader for this container; filename is all we have.
	}
	if err != nil {
		return Meta{}, err
	}
	fillFromFilename(&m, filepath.Base(path))
	return m, nil
}

func readID3(path string) (Meta, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Meta{}, fmt.Errorf("parse id3: %w", err)
	}
	defer tag.Close()

	m := Meta{
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
		Title:  strings.TrimSpace(tag.Title()),
	}
	if m.Artist == "" {
		m.Artist = strings.TrimSpace(tag.GetTextFrame("TPE2").Text)
	}
	m.Track = parseTrackNumber(tag.GetTextFrame("TRCK").Text)
	m.Year = parseYear(tag.Year())
	if m.Year == 0 {
		m.Year = parseYear(tag.GetTextFrame("TDRC").Text)
	}
	return m, nil
}

func readVorbis(path string) (Meta, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("parse flac: %w", err)
	}

	var m Meta
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return Meta{}, fmt.Errorf("parse vorbis comment: %w", err)
		}
		m.Artist = firstComment(cmt, flacvorbis.FIELD_ARTIST, "ALBUMARTIST")
		m.Album = firstComment(cmt, flacvorbis.FIELD_ALBUM)
		m.Title = firstComment(cmt, flacvorbis.FIELD_TITLE)
		m.Track = parseTrackNumber(firstComment(cmt, flacvorbis.FIELD_TRACKNUMBER, "TRACK"))
		m.Year = parseYear(firstComment(cmt, flacvorbis.FIELD_DATE, "YEAR"))
		break
	}
	return m, nil
}

func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, keys ...string) string {
	for _, key := range keys {
		vals, err := cmt.Get(key)
		if err != nil || len(vals) == 0 {
			continue
		}
		if v := strings.TrimSpace(vals[0]); v != "" {
			return v
		}
	}
	return ""
}

// parseTrackNumber handles plain numbers and "n/total" forms.
func parseTrackNumber(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// parseYear accepts a bare year or anything starting with one, like the
// ISO timestamps TDRC frames often carry.
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	n, err := strconv.Atoi(s[:4])
	if err != nil || n < 1000 || n > 9999 {
		return 0
	}
	return n
}

var (
	// "01 - Title", "01. Title", "01 Title"
	trackTitleRE = regexp.MustCompile(`^(\d{1,3})[\s.\-_]+(.+)$`)
	// "Artist - Title"
	artistTitleRE = regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`)
)

// fillFromFilename fills fields m's tag readers left empty using the
// common "NN - Title" and "Artist - Title" filename shapes. It never
// overwrites a tagged value and never invents album or year.
func fillFromFilename(m *Meta, base string) {
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSpace(name)

	if g := trackTitleRE.FindStringSubmatch(name); g != nil {
		if m.Track == 0 {
			if n, err := strconv.Atoi(g[1]); err == nil && n > 0 && n < 1000 {
				m.Track = n
			}
		}
		name = strings.TrimSpace(g[2])
	}
	if g := artistTitleRE.FindStringSubmatch(name); g != nil {
		if m.Artist == "" {
			m.Artist = strings.TrimSpace(g[1])
		}
		if m.Title == "" {
			m.Title = strings.TrimSpace(g[2])
		}
		return
	}
	if m.Title == "" {
		m.Title = name
	}
}
