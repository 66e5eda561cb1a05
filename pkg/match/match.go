package match

import (
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"
)

// SimilarityThreshold is the fuzzy-ratio floor below which two titles are
// not considered the same recording. Candidates under it are never scored.
const SimilarityThreshold = 0.85

// numberRegex extracts sequence numbers from titles (e.g., "Vol 2").
var numberRegex = regexp.MustCompile(`\b(\d+)\b`)

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // Score < 0.70
	ConfidenceLow                           // Score >= 0.70
	ConfidenceMedium                        // Score >= 0.85
	ConfidenceHigh                          // Score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult represents the result of a fuzzy title match.
type MatchResult struct {
	Title      string          // The matched candidate title
	Score      float64         // Jaro-Winkler similarity score (0.0-1.0)
	Confidence MatchConfidence // Confidence level based on score
}

// TitleMatches reports whether a candidate string names the same recording
// as the target. True when the candidate contains every significant target
// token (order-insensitive), when the compacted target is a substring of
// the compacted candidate, or when Jaro-Winkler similarity clears
// SimilarityThreshold. Pure; safe for concurrent use.
func TitleMatches(target, candidate string) bool {
	nt := Normalize(target)
	nc := Normalize(candidate)
	if nt == "" || nc == "" {
		return false
	}
	if nt == nc {
		return true
	}

	// All significant target tokens present in the candidate.
	targetTokens := Tokens(target)
	if len(targetTokens) > 0 && containsAllTokens(nc, targetTokens) {
		return true
	}

	// Compact containment handles run-together filenames like
	// "03-thewall.flac" against "The Wall".
	ct := compact(nt)
	if len(ct) >= 4 && strings.Contains(compact(nc), ct) {
		return true
	}

	return float64(edlib.JaroWinklerSimilarity(nt, nc)) >= SimilarityThreshold
}

// MatchTitle finds the best match for a title against candidate titles.
// Uses Jaro-Winkler similarity which favors prefix matches (good for
// album and artist names). Additionally applies a bonus when sequence
// numbers match between target and candidate ("Vol 2" vs "Vol 3").
// Returns the best match with confidence level based on score thresholds.
func MatchTitle(target string, candidates []string) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{Confidence: ConfidenceNone}
	}

	normalizedTarget := Normalize(target)
	targetNumbers := extractNumbers(normalizedTarget)

	best := MatchResult{
		Score:      0,
		Confidence: ConfidenceNone,
	}

	for _, candidate := range candidates {
		normalizedCandidate := Normalize(candidate)

		score := float64(edlib.JaroWinklerSimilarity(normalizedTarget, normalizedCandidate))

		candidateNumbers := extractNumbers(normalizedCandidate)
		score = adjustScoreForNumbers(score, targetNumbers, candidateNumbers)

		if score > best.Score {
			best.Title = candidate
			best.Score = score
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		best.Confidence = ConfidenceNone
		best.Title = "" // Clear title for no-match case
	}

	return best
}

func containsAllTokens(normalized string, tokens []string) bool {
	have := make(map[string]bool)
	for _, f := range strings.Fields(normalized) {
		have[f] = true
	}
	for _, tok := range tokens {
		if !have[tok] {
			return false
		}
	}
	return true
}

// compact strips spaces from an already-normalized string.
func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// extractNumbers returns all numeric sequences from a normalized title.
func extractNumbers(title string) []string {
	return numberRegex.FindAllString(title, -1)
}

// adjustScoreForNumbers modifies the similarity score based on sequence
// number matching. When the target title has numbers:
// - Matching numbers get a bonus
// - Mismatched numbers get a penalty
// - Missing numbers in candidate also get a penalty
func adjustScoreForNumbers(score float64, targetNums, candidateNums []string) float64 {
	if len(targetNums) == 0 {
		return score
	}

	targetSet := make(map[string]bool)
	for _, n := range targetNums {
		targetSet[n] = true
	}

	candidateSet := make(map[string]bool)
	for _, n := range candidateNums {
		candidateSet[n] = true
	}

	if len(candidateNums) == 0 {
		return score * 0.85
	}

	for n := range targetSet {
		if candidateSet[n] {
			return min(score*1.05, 1.0)
		}
	}

	return score * 0.90
}
