package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// romanNumeralRegex matches Roman numerals II-IX when preceded by a space (not at start of string).
// Does NOT match standalone "I" to avoid false positives like "I Robot".
// Does NOT match standalone "X" to avoid false positives like "Generation X".
// Case-insensitive to work with lowercased input from Normalize.
var romanNumeralRegex = regexp.MustCompile(`(?i) (ii|iii|iv|v|vi|vii|viii|ix)\b`)

var romanToArabic = map[string]string{
	"II": "2", "III": "3", "IV": "4", "V": "5",
	"VI": "6", "VII": "7", "VIII": "8", "IX": "9",
}

// qualifierRegex matches bracketed and parenthetical qualifiers such as
// "(Deluxe Edition)" or "[2004 Remaster]". Stripped for comparison only;
// version markers inside them are detected separately by the scorer.
var qualifierRegex = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|\{[^}]*\}`)

// NormalizeRomanNumerals converts Roman numerals (II-IX) to Arabic numbers.
// Does not convert standalone "I" to avoid false positives.
// Does not convert Roman numerals at the start of the string.
func NormalizeRomanNumerals(s string) string {
	return romanNumeralRegex.ReplaceAllStringFunc(s, func(m string) string {
		roman := strings.TrimSpace(m)
		if arabic, ok := romanToArabic[strings.ToUpper(roman)]; ok {
			return " " + arabic
		}
		return m
	})
}

// Normalize reduces a title or artist name to its comparable form: lowercase,
// accents stripped, qualifiers removed, punctuation collapsed to single
// spaces. Two strings that normalize equal are the same name for matching
// purposes.
func Normalize(s string) string {
	s = strings.ToLower(s)

	// Convert Roman numerals to Arabic numbers (must be before accent removal)
	s = NormalizeRomanNumerals(s)

	s = removeAccents(s)
	s = qualifierRegex.ReplaceAllString(s, " ")

	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, ".", " ")

	// Split on colon to handle subtitles, stripping leading articles from
	// each part ("The Wall" and "Wall" are the same album).
	parts := strings.Split(s, ":")
	for i, part := range parts {
		parts[i] = stripLeadingArticle(strings.TrimSpace(part))
	}
	s = strings.Join(parts, " ")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the significant tokens of a normalized string. Tokens
// shorter than two runes are kept only if numeric, since single letters
// carry no matching signal in filenames.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 || isDigits(f) {
			out = append(out, f)
		}
	}
	return out
}

// TrackKey builds the canonical dedup key for a wanted track. The same
// normalization as title matching so a ledger hit and a title match can
// never disagree about identity.
func TrackKey(artist, title string) string {
	return Normalize(artist) + "|" + Normalize(title)
}

// AlbumKey builds the canonical key for an album, used by starred-set
// lookups and the expiry records.
func AlbumKey(artist, album string) string {
	return Normalize(artist) + "|" + Normalize(album)
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

func stripLeadingArticle(s string) string {
	s = strings.TrimSpace(s)
	articles := []string{"the ", "a ", "an "}
	for _, art := range articles {
		if strings.HasPrefix(s, art) {
			return strings.TrimPrefix(s, art)
		}
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeSearchQuery prepares a search query for the download daemon.
// Converts & to "and" and collapses whitespace. Unlike Normalize, preserves
// case and most punctuation since peers index raw filenames.
func NormalizeSearchQuery(query string) string {
	s := strings.ReplaceAll(query, "&", "and")
	return strings.Join(strings.Fields(s), " ")
}
