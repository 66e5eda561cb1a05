package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vmunix/crate/pkg/match/scoring"
)

// writeTestConfig writes a config file into a temp dir and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// minimalConfig returns a config body that passes validation, with tier
// directories rooted in an existing temp dir.
func minimalConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"owned", "not-owned", "incomplete"} {
		if err := os.Mkdir(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return `
[library]
owned_root = "` + filepath.Join(root, "owned") + `"
not_owned_root = "` + filepath.Join(root, "not-owned") + `"
incomplete_root = "` + filepath.Join(root, "incomplete") + `"

[lidarr]
url = "http://localhost:8686"
api_key = "lidarr-key"

[slskd]
url = "http://localhost:5030"
api_key = "slskd-key"
`
}

func TestLoad_Valid(t *testing.T) {
	path := writeTestConfig(t, minimalConfig(t))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lidarr.APIKey != "lidarr-key" {
		t.Errorf("lidarr api_key = %q", cfg.Lidarr.APIKey)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, minimalConfig(t))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "./data/crate.db" {
		t.Errorf("storage path default = %q", cfg.Storage.Path)
	}
	if cfg.Pipeline.Workers != 3 {
		t.Errorf("workers default = %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.SearchTimeoutSeconds != 120 {
		t.Errorf("search timeout default = %d", cfg.Pipeline.SearchTimeoutSeconds)
	}
	if cfg.Cleanup.RetentionDays != 30 {
		t.Errorf("retention default = %d", cfg.Cleanup.RetentionDays)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default = %q", cfg.Log.Level)
	}
}

func TestLoad_MissingEnvVar(t *testing.T) {
	path := writeTestConfig(t, minimalConfig(t)+`
[navidrome]
url = "http://localhost:4533"
username = "admin"
password = "${CRATE_TEST_NONEXISTENT_VAR_92817}"
`)

	_, err := Load(path)
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("want *ConfigError, got %v", err)
	}
	if len(cfgErr.Missing) != 1 || cfgErr.Missing[0] != "CRATE_TEST_NONEXISTENT_VAR_92817" {
		t.Errorf("missing = %v", cfgErr.Missing)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, `
[lidarr]
url = "http://localhost:8686"
`)

	_, err := Load(path)
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("want *ConfigError, got %v", err)
	}
	if len(cfgErr.Errors) == 0 {
		t.Error("want validation errors for missing tiers and keys")
	}
}

func TestLoadWithoutValidation(t *testing.T) {
	path := writeTestConfig(t, `
[lidarr]
url = "http://localhost:8686"
`)

	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithoutValidation: %v", err)
	}
	if cfg.Lidarr.URL != "http://localhost:8686" {
		t.Errorf("lidarr url = %q", cfg.Lidarr.URL)
	}
}

func TestLoad_EnvVarSubstitution(t *testing.T) {
	t.Setenv("CRATE_TEST_SLSKD_KEY", "secret")

	path := writeTestConfig(t, minimalConfig(t)+`
[storage]
path = "${CRATE_TEST_STORAGE:-./fallback.db}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "./fallback.db" {
		t.Errorf("storage path = %q, want fallback", cfg.Storage.Path)
	}
}

func TestScoringConfig_Weights(t *testing.T) {
	penalty := -80
	lossless := 45
	c := ScoringConfig{UnwantedMarker: &penalty, Lossless: &lossless}

	w := c.Weights()
	if w.UnwantedMarker != -80 {
		t.Errorf("unwanted marker = %d", w.UnwantedMarker)
	}
	if w.Lossless != 45 {
		t.Errorf("lossless = %d", w.Lossless)
	}
	// Untouched fields keep the defaults.
	if w.BitrateHigh != scoring.BonusBitrateHigh {
		t.Errorf("bitrate high = %d, want default", w.BitrateHigh)
	}
}

func TestLoad_ScoringOrderingEnforced(t *testing.T) {
	path := writeTestConfig(t, minimalConfig(t)+`
[scoring]
unwanted_marker = -5
`)

	_, err := Load(path)
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("want *ConfigError, got %v", err)
	}
	found := false
	for _, e := range cfgErr.Errors {
		if len(e) >= 7 && e[:7] == "scoring" {
			found = true
		}
	}
	if !found {
		t.Errorf("want scoring ordering error, got %v", cfgErr.Errors)
	}
}
