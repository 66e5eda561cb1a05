package reconciler

// Summary reports one organize run. Dry runs produce the same counts as
// live runs; only the filesystem is left alone.
type Summary struct {
	FoldersScanned    int
	Promoted          int
	Demoted           int
	Retained          int
	Unclassified      int
	DuplicatesRemoved int
	OwnedDuplicates   int // reported only, Owned is never mutated
	Vetoed            int
	EmptyDirsRemoved  int
	Failed            int
	Interrupted       bool
}
