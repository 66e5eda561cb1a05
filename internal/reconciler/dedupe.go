package reconciler

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmunix/crate/pkg/match"
)

// formatRank orders containers by quality for duplicate resolution.
// Higher wins.
var formatRank = map[string]int{
	".flac": 6,
	".wav":  5,
	".m4a":  4,
	".mp3":  3,
	".ogg":  2,
	".opus": 1,
}

var bitrateInNameRE = regexp.MustCompile(`\b(320|256|224|192|160|128)\b`)

// dupScore ranks one copy of a track: container quality dominates, a
// bitrate advertised in the filename breaks ties within a container.
func dupScore(path string) int {
	score := formatRank[strings.ToLower(filepath.Ext(path))] * 1000
	if g := bitrateInNameRE.FindString(filepath.Base(path)); g != "" {
		if n, err := strconv.Atoi(g); err == nil {
			score += n
		}
	}
	return score
}

// duplicateGroups finds same-title copies within a folder. Each group is
// ordered best-first; everything after the head is removable.
func duplicateGroups(f *albumFolder) [][]trackFile {
	byTitle := make(map[string][]trackFile)
	var order []string
	for _, t := range f.files {
		if t.meta.Title == "" {
			continue
		}
		key := match.Normalize(t.meta.Title)
		if key == "" {
			continue
		}
		if _, seen := byTitle[key]; !seen {
			order = append(order, key)
		}
		byTitle[key] = append(byTitle[key], t)
	}

	var groups [][]trackFile
	for _, key := range order {
		group := byTitle[key]
		if len(group) < 2 {
			continue
		}
		// Stable best-first: walk the already path-sorted slice and
		// float the highest score to the front.
		best := 0
		for i := 1; i < len(group); i++ {
			if dupScore(group[i].path) > dupScore(group[best].path) {
				best = i
			}
		}
		group[0], group[best] = group[best], group[0]
		groups = append(groups, group)
	}
	return groups
}

// dropFiles removes the given paths from the folder's in-memory file
// list after they were deleted (or would have been, under dry-run) so
// classification sees the post-dedupe state.
func (f *albumFolder) dropFiles(paths map[string]bool) {
	kept := f.files[:0]
	for _, t := range f.files {
		if !paths[t.path] {
			kept = append(kept, t)
		}
	}
	f.files = kept
}
