package config

import (
	"fmt"
	"strings"
)

// ConfigError collects everything wrong with a config file in one shot:
// unresolved ${VAR} references and validation failures. Reported together
// so a fresh install can be fixed in one edit instead of one error at a
// time.
type ConfigError struct {
	Path    string   // config file path
	Missing []string // unresolved environment variables
	Errors  []string // validation failures
}

func (e *ConfigError) Error() string {
	if !e.HasErrors() {
		return ""
	}

	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Errors) > 0 {
		parts = append(parts, "validation failed:")
		for _, msg := range e.Errors {
			parts = append(parts, fmt.Sprintf("  - %s", msg))
		}
	}
	return strings.Join(parts, "\n")
}

// HasErrors reports whether anything was collected.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Errors) > 0
}
