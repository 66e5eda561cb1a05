package match

// Result is the outcome of one track-level matching pass. Selection is nil
// unless Outcome is OutcomeSelected.
type Result struct {
	Outcome   Outcome
	Selection *Selection
	// Scored holds every candidate that cleared the similarity threshold,
	// in first-seen order. Useful for diagnostics; empty for OutcomeNoMatch
	// and OutcomeNoCandidates.
	Scored []ScoredCandidate
}

// AlbumResult is the outcome of one album-level matching pass.
type AlbumResult struct {
	Outcome   Outcome
	Selection *AlbumSelection
}

// SelectTrack scores every candidate against the wanted track and picks the
// single winner. At most one Selection is ever produced. Deterministic:
// identical input slices always yield the identical Result.
func (s *Scorer) SelectTrack(t Track, candidates []Candidate) Result {
	audio := FilterAudio(candidates)
	if len(audio) == 0 {
		return Result{Outcome: OutcomeNoCandidates}
	}

	var scored []ScoredCandidate
	for _, c := range audio {
		score, ok := s.ScoreTrack(t, c)
		if !ok {
			continue
		}
		scored = append(scored, ScoredCandidate{Candidate: c, Track: t, Score: score})
	}
	if len(scored) == 0 {
		return Result{Outcome: OutcomeNoMatch}
	}

	best := -1
	for i := range scored {
		if scored[i].Score < s.weights.RejectBelow {
			continue
		}
		if best < 0 || trackBeats(scored[i], scored[best]) {
			best = i
		}
	}
	if best < 0 {
		return Result{Outcome: OutcomeAllRejected, Scored: scored}
	}

	sel := Selection{ScoredCandidate: scored[best]}
	return Result{Outcome: OutcomeSelected, Selection: &sel, Scored: scored}
}

// trackBeats reports whether a should replace the current best b. Strict:
// on a full tie the earlier-seen candidate wins, so callers iterate in
// first-seen order.
func trackBeats(a, b ScoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Lossless() != b.Lossless() {
		return a.Lossless()
	}
	if a.BitRate != b.BitRate {
		return a.BitRate > b.BitRate
	}
	return a.Size > b.Size
}

// SelectAlbum groups candidates into per-directory release offers, scores
// each against the wanted album, and picks the single winner.
func (s *Scorer) SelectAlbum(a Album, candidates []Candidate) AlbumResult {
	audio := FilterAudio(candidates)
	if len(audio) == 0 {
		return AlbumResult{Outcome: OutcomeNoCandidates}
	}

	var scored []AlbumSelection
	for _, ac := range GroupByDirectory(audio) {
		score, ok := s.ScoreAlbum(a, ac)
		if !ok {
			continue
		}
		scored = append(scored, AlbumSelection{AlbumCandidate: ac, Album: a, Score: score})
	}
	if len(scored) == 0 {
		return AlbumResult{Outcome: OutcomeNoMatch}
	}

	best := -1
	for i := range scored {
		if scored[i].Score < s.weights.RejectBelow {
			continue
		}
		if best < 0 || albumBeats(scored[i], scored[best]) {
			best = i
		}
	}
	if best < 0 {
		return AlbumResult{Outcome: OutcomeAllRejected}
	}
	return AlbumResult{Outcome: OutcomeSelected, Selection: &scored[best]}
}

// albumBeats prefers higher score, then more audio files (a more complete
// offer), then the faster peer. First-seen order breaks full ties.
func albumBeats(a, b AlbumSelection) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if len(a.Files) != len(b.Files) {
		return len(a.Files) > len(b.Files)
	}
	return a.UploadSpeed > b.UploadSpeed
}
