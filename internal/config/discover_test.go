package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := filepath.Join("/custom/config", "crate", "config.toml")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDiscover_CRATE_CONFIG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRATE_CONFIG", path)

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != path {
		t.Errorf("Discover() = %q, want %q", got, path)
	}
}

func TestDiscover_CRATE_CONFIG_NotFound(t *testing.T) {
	t.Setenv("CRATE_CONFIG", filepath.Join(t.TempDir(), "nope.toml"))

	if _, err := Discover(); err == nil {
		t.Error("want error for dangling CRATE_CONFIG")
	}
}

func TestDiscover_CurrentDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("CRATE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != "./config.toml" {
		t.Errorf("Discover() = %q", got)
	}
}

func TestDiscover_NotFound(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CRATE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	_, err := Discover()
	if err == nil {
		t.Fatal("want error when no config exists")
	}
	if !strings.Contains(err.Error(), "config not found") {
		t.Errorf("error = %v", err)
	}
}
