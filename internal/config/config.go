// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vmunix/crate/pkg/match/scoring"
)

// Config is the root configuration structure.
type Config struct {
	Library   LibraryConfig   `toml:"library"`
	Lidarr    LidarrConfig    `toml:"lidarr"`
	Slskd     SlskdConfig     `toml:"slskd"`
	Navidrome NavidromeConfig `toml:"navidrome"`
	Storage   StorageConfig   `toml:"storage"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Cleanup   CleanupConfig   `toml:"cleanup"`
	Daemon    DaemonConfig    `toml:"daemon"`
	Log       LogConfig       `toml:"log"`
}

// LibraryConfig names the three library tiers plus the download landing
// directory the reconciler promotes completed albums out of.
type LibraryConfig struct {
	OwnedRoot      string `toml:"owned_root"`
	NotOwnedRoot   string `toml:"not_owned_root"`
	IncompleteRoot string `toml:"incomplete_root"`
	DownloadsRoot  string `toml:"downloads_root"`
}

// LidarrConfig points at the wanted-album source.
type LidarrConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// SlskdConfig points at the search/download daemon.
type SlskdConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// NavidromeConfig points at the starred-status source. Optional: without
// it there is no protection signal, so destructive cleanup refuses to run.
type NavidromeConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

// PipelineConfig bounds the sync stage's concurrency and search patience.
type PipelineConfig struct {
	Workers              int `toml:"workers"`
	PollIntervalSeconds  int `toml:"poll_interval_seconds"`
	SearchTimeoutSeconds int `toml:"search_timeout_seconds"`
	MinResults           int `toml:"min_results"`
	TrackSearchLimit     int `toml:"track_search_limit"`
}

// ScoringConfig overrides individual scoring magnitudes. Nil fields keep
// the tuned defaults. Validation checks the relative orderings, never the
// magnitudes themselves.
type ScoringConfig struct {
	UnwantedMarker   *int `toml:"unwanted_marker"`
	Lossless         *int `toml:"lossless"`
	BitrateHigh      *int `toml:"bitrate_high"`
	BitrateMid       *int `toml:"bitrate_mid"`
	OriginalMarker   *int `toml:"original_marker"`
	TrackNumber      *int `toml:"track_number"`
	PlausibleSize    *int `toml:"plausible_size"`
	AlbumNameMatch   *int `toml:"album_name_match"`
	LosslessCoverage *int `toml:"lossless_coverage"`
	PerMatchingFile  *int `toml:"per_matching_file"`
	UploadSpeedMax   *int `toml:"upload_speed_max"`
	Compilation      *int `toml:"compilation"`
}

// Weights materializes the override set on top of the tuned defaults.
func (c ScoringConfig) Weights() scoring.Weights {
	w := scoring.Defaults()
	apply := func(dst, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&w.UnwantedMarker, c.UnwantedMarker)
	apply(&w.Lossless, c.Lossless)
	apply(&w.BitrateHigh, c.BitrateHigh)
	apply(&w.BitrateMid, c.BitrateMid)
	apply(&w.OriginalMarker, c.OriginalMarker)
	apply(&w.TrackNumber, c.TrackNumber)
	apply(&w.PlausibleSize, c.PlausibleSize)
	apply(&w.AlbumNameMatch, c.AlbumNameMatch)
	apply(&w.LosslessCoverage, c.LosslessCoverage)
	apply(&w.PerMatchingFile, c.PerMatchingFile)
	apply(&w.UploadSpeedMax, c.UploadSpeedMax)
	apply(&w.Compilation, c.Compilation)
	return w
}

// CleanupConfig controls expired-album deletion.
type CleanupConfig struct {
	Enabled              bool `toml:"enabled"`
	RetentionDays        int  `toml:"retention_days"`
	StaleReservationDays int  `toml:"stale_reservation_days"`
}

// DaemonConfig holds the crated scheduler intervals, in minutes. A zero
// interval disables that stage.
type DaemonConfig struct {
	SyncIntervalMinutes     int `toml:"sync_interval_minutes"`
	OrganizeIntervalMinutes int `toml:"organize_interval_minutes"`
	CleanupIntervalMinutes  int `toml:"cleanup_interval_minutes"`
	WatchIntervalMinutes    int `toml:"watch_interval_minutes"`
	HistoryRetentionDays    int `toml:"history_retention_days"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Load reads, substitutes, parses, and validates the configuration file.
// Returns a *ConfigError when environment variables are unresolved or
// validation fails.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	cfgErr := &ConfigError{Path: path, Missing: missing}
	cfgErr.Errors = cfg.Validate()
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file, skipping
// validation. Unresolved environment variables are left in place. Used by
// tooling that needs to inspect a partial config.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, missing, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, missing, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/crate.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 3
	}
	if c.Pipeline.PollIntervalSeconds == 0 {
		c.Pipeline.PollIntervalSeconds = 4
	}
	if c.Pipeline.SearchTimeoutSeconds == 0 {
		c.Pipeline.SearchTimeoutSeconds = 120
	}
	if c.Pipeline.MinResults == 0 {
		c.Pipeline.MinResults = 50
	}
	if c.Pipeline.TrackSearchLimit == 0 {
		c.Pipeline.TrackSearchLimit = 5
	}
	if c.Cleanup.RetentionDays == 0 {
		c.Cleanup.RetentionDays = 30
	}
	if c.Cleanup.StaleReservationDays == 0 {
		c.Cleanup.StaleReservationDays = 7
	}
	if c.Daemon.HistoryRetentionDays == 0 {
		c.Daemon.HistoryRetentionDays = 90
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default}, and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:[-?][^}]*)?\}`)

// substituteEnvVars replaces ${VAR_NAME} references with environment
// values. ${VAR:-default} falls back to the default when VAR is unset or
// empty; ${VAR:?message} records the variable as missing with the message.
// Plain ${VAR} references to unset variables are left unchanged and
// reported in the returned missing list.
func substituteEnvVars(content string) (string, []string) {
	var missing []string

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, modifier := groups[1], groups[2]

		value := os.Getenv(name)
		if value != "" {
			return value
		}

		switch {
		case strings.HasPrefix(modifier, ":-"):
			return modifier[2:]
		case strings.HasPrefix(modifier, ":?"):
			msg := modifier[2:]
			if msg != "" {
				missing = append(missing, fmt.Sprintf("%s (%s)", name, msg))
			} else {
				missing = append(missing, name)
			}
			return match
		default:
			missing = append(missing, name)
			return match
		}
	})

	return result, missing
}
