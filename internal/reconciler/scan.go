package reconciler

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/vmunix/crate/internal/tags"
	"github.com/vmunix/crate/pkg/match"
)

// trackFile is one audio file inside an album folder.
type trackFile struct {
	path string
	meta tags.Meta
	size int64
}

// albumFolder is one directory holding audio files, with the metadata
// consensus derived from them. Artist and album come from the most
// common tagged value; a folder where any file is missing a required
// field is flagged incomplete-metadata and never reorganized.
type albumFolder struct {
	dir    string
	files  []trackFile
	artist string
	album  string
	year   int

	metaIncomplete bool
	metaReason     string
}

func (f *albumFolder) key() string {
	return match.AlbumKey(f.artist, f.album)
}

// rebase updates the folder's dir and file paths after the directory
// has been moved to dest, so later observers record post-move paths.
func (f *albumFolder) rebase(dest string) {
	old := f.dir
	f.dir = dest
	for i := range f.files {
		if rel, err := filepath.Rel(old, f.files[i].path); err == nil {
			f.files[i].path = filepath.Join(dest, rel)
		}
	}
}

func (f *albumFolder) totalSize() int64 {
	var n int64
	for _, t := range f.files {
		n += t.size
	}
	return n
}

// scanTier walks one tier root and returns its album folders, sorted by
// path for deterministic processing. A missing root is an empty tier,
// not an error.
func scanTier(root string) ([]*albumFolder, error) {
	byDir := make(map[string]*albumFolder)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return nil
			}
			return err
		}
		if d.IsDir() || !tags.IsAudio(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		meta, err := tags.ReadFile(path)
		if err != nil {
			// Unreadable file: keep it in the folder with zero meta so
			// the folder classifies as Unclassified rather than vanishing.
			meta = tags.Meta{}
		}

		dir := filepath.Dir(path)
		folder, ok := byDir[dir]
		if !ok {
			folder = &albumFolder{dir: dir}
			byDir[dir] = folder
		}
		folder.files = append(folder.files, trackFile{path: path, meta: meta, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	folders := make([]*albumFolder, 0, len(byDir))
	for _, f := range byDir {
		f.resolve()
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].dir < folders[j].dir })
	return folders, nil
}

// resolve derives the folder's artist, album, and year from its files
// and decides whether metadata suffices for classification.
func (f *albumFolder) resolve() {
	sort.Slice(f.files, func(i, j int) bool { return f.files[i].path < f.files[j].path })

	for _, t := range f.files {
		if !t.meta.Complete() {
			f.metaIncomplete = true
			f.metaReason = "missing required metadata: " + filepath.Base(t.path)
			break
		}
	}

	f.artist = mostCommon(f.files, func(m tags.Meta) string { return m.Artist })
	f.album = mostCommon(f.files, func(m tags.Meta) string { return m.Album })
	for _, t := range f.files {
		if t.meta.Year > 0 {
			f.year = t.meta.Year
			break
		}
	}
	if f.artist == "" || f.album == "" {
		f.metaIncomplete = true
		if f.metaReason == "" {
			f.metaReason = "no artist/album consensus"
		}
	}
}

// mostCommon returns the most frequent non-empty value of one metadata
// field across the folder's files, first-seen winning ties.
func mostCommon(files []trackFile, field func(tags.Meta) string) string {
	counts := make(map[string]int)
	var best string
	for _, t := range files {
		v := field(t.meta)
		if v == "" {
			continue
		}
		counts[v]++
		if best == "" || counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
