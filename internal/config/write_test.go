package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[library]") {
		t.Error("default config missing [library] section")
	}
	if !strings.Contains(string(data), "[slskd]") {
		t.Error("default config missing [slskd] section")
	}
}

func TestWriteDefault_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "config.toml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config not written: %v", err)
	}
}

func TestConfig_Write(t *testing.T) {
	cfg := &Config{}
	cfg.Library.OwnedRoot = "/music/owned"
	cfg.Lidarr.URL = "http://localhost:8686"
	cfg.applyDefaults()

	path := filepath.Join(t.TempDir(), "out.toml")
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := LoadWithoutValidation(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Library.OwnedRoot != "/music/owned" {
		t.Errorf("round trip lost owned_root: %q", loaded.Library.OwnedRoot)
	}
	if loaded.Lidarr.URL != "http://localhost:8686" {
		t.Errorf("round trip lost lidarr url: %q", loaded.Lidarr.URL)
	}
}
