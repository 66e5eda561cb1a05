package match

import "testing"

func TestTitleMatches(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		candidate string
		want      bool
	}{
		{"exact", "Paranoid Android", "Paranoid Android", true},
		{"case and punctuation", "Paranoid Android", "paranoid_android", true},
		{"track number prefix", "Paranoid Android", "02 - Paranoid Android", true},
		{"qualifier stripped", "Paranoid Android", "Paranoid Android (2009 Remaster)", true},
		{"run together filename", "The Wall", "03-thewall", true},
		{"diacritics", "Jóga", "Joga", true},
		{"different song", "Paranoid Android", "Karma Police", false},
		{"empty target", "", "anything", false},
		{"empty candidate", "Paranoid Android", "", false},
		{"typo within threshold", "Bohemian Rhapsody", "Bohemian Rapsody", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleMatches(tt.target, tt.candidate); got != tt.want {
				t.Errorf("TitleMatches(%q, %q) = %v, want %v", tt.target, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestMatchTitle(t *testing.T) {
	candidates := []string{"Abbey Road", "Abbey Road (Remastered)", "Let It Be", "Revolver"}

	got := MatchTitle("Abbey Road", candidates)
	if got.Title != "Abbey Road" {
		t.Errorf("best = %q, want Abbey Road", got.Title)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %v, want high", got.Confidence)
	}
}

func TestMatchTitleNoCandidates(t *testing.T) {
	got := MatchTitle("Anything", nil)
	if got.Confidence != ConfidenceNone || got.Title != "" {
		t.Errorf("want empty none result, got %+v", got)
	}
}

func TestMatchTitleSequenceNumbers(t *testing.T) {
	// A matching volume number must beat a mismatched one even when the
	// rest of the string is identical.
	candidates := []string{"Greatest Hits Vol 3", "Greatest Hits Vol 2"}
	got := MatchTitle("Greatest Hits Vol 2", candidates)
	if got.Title != "Greatest Hits Vol 2" {
		t.Errorf("best = %q, want the matching volume", got.Title)
	}
}

func TestMatchConfidenceString(t *testing.T) {
	tests := []struct {
		c    MatchConfidence
		want string
	}{
		{ConfidenceHigh, "high"},
		{ConfidenceMedium, "medium"},
		{ConfidenceLow, "low"},
		{ConfidenceNone, "none"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
