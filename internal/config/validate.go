package config

import (
	"fmt"
	"os"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// All three tiers are required; downloads root is optional.
	if c.Library.OwnedRoot == "" {
		errs = append(errs, "library.owned_root: required")
	}
	if c.Library.NotOwnedRoot == "" {
		errs = append(errs, "library.not_owned_root: required")
	}
	if c.Library.IncompleteRoot == "" {
		errs = append(errs, "library.incomplete_root: required")
	}

	if c.Lidarr.URL == "" {
		errs = append(errs, "lidarr.url: required")
	}
	if c.Lidarr.APIKey == "" {
		errs = append(errs, "lidarr.api_key: required")
	}

	if c.Slskd.URL == "" {
		errs = append(errs, "slskd.url: required")
	}
	if c.Slskd.APIKey == "" {
		errs = append(errs, "slskd.api_key: required")
	}

	if c.Navidrome.URL != "" {
		if c.Navidrome.Username == "" {
			errs = append(errs, "navidrome.username: required when navidrome is configured")
		}
		if c.Navidrome.Password == "" {
			errs = append(errs, "navidrome.password: required when navidrome is configured")
		}
	}
	if c.Cleanup.Enabled && c.Navidrome.URL == "" {
		errs = append(errs, "cleanup.enabled: requires navidrome (the starred-protection source)")
	}

	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 16 {
		errs = append(errs, fmt.Sprintf("pipeline.workers: must be between 1 and 16, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.PollIntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.poll_interval_seconds: must be positive, got %d", c.Pipeline.PollIntervalSeconds))
	}
	if c.Pipeline.SearchTimeoutSeconds < c.Pipeline.PollIntervalSeconds {
		errs = append(errs, "pipeline.search_timeout_seconds: must be at least the poll interval")
	}

	if c.Cleanup.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("cleanup.retention_days: must be positive, got %d", c.Cleanup.RetentionDays))
	}

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}

	if err := c.Scoring.Weights().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("scoring: %v", err))
	}

	// Tier path warnings (non-fatal in spirit, surfaced the same way).
	for _, tier := range []struct{ name, root string }{
		{"library.owned_root", c.Library.OwnedRoot},
		{"library.not_owned_root", c.Library.NotOwnedRoot},
		{"library.incomplete_root", c.Library.IncompleteRoot},
	} {
		if tier.root == "" {
			continue
		}
		if _, err := os.Stat(tier.root); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("%s: warning: directory %q does not exist", tier.name, tier.root))
		}
	}

	return errs
}
