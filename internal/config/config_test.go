package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the default search paths at empty directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty without a config file", cfg.Path())
	}

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want %+v", *cfg, *want)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	isolate(t)

	path := writeFile(t, "userlist.yaml", `
database:
  path: /tmp/users.db
github:
  token: file-token
  per_page: 50
sync:
  interval: 30s
dashboard:
  port: 9090
logging:
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if cfg.Database.Path != "/tmp/users.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.GitHub.Token != "file-token" || cfg.GitHub.PerPage != 50 {
		t.Errorf("GitHub = %+v", cfg.GitHub)
	}
	if cfg.Sync.Interval != 30*time.Second {
		t.Errorf("Sync.Interval = %v, want 30s", cfg.Sync.Interval)
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("Dashboard.Port = %d, want 9090", cfg.Dashboard.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}

	// Keys absent from the file keep their defaults
	if cfg.GitHub.BaseURL != DefaultConfig().GitHub.BaseURL {
		t.Errorf("GitHub.BaseURL = %q, want default", cfg.GitHub.BaseURL)
	}
	if cfg.GitHub.MaxPages != 10 {
		t.Errorf("GitHub.MaxPages = %d, want 10", cfg.GitHub.MaxPages)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	isolate(t)

	path := writeFile(t, "userlist.yaml", "github:\n  token: file-token\n")
	t.Setenv("USERLIST_GITHUB_TOKEN", "env-token")
	t.Setenv("USERLIST_SYNC_INTERVAL", "1m")
	t.Setenv("USERLIST_DASHBOARD_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.GitHub.Token != "env-token" {
		t.Errorf("GitHub.Token = %q, want env-token", cfg.GitHub.Token)
	}
	if cfg.Sync.Interval != time.Minute {
		t.Errorf("Sync.Interval = %v, want 1m", cfg.Sync.Interval)
	}
	if cfg.Dashboard.Port != 7070 {
		t.Errorf("Dashboard.Port = %d, want 7070", cfg.Dashboard.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing explicit file should fail")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"per page too large", "github:\n  per_page: 500\n"},
		{"zero max pages", "github:\n  max_pages: 0\n"},
		{"zero interval", "sync:\n  interval: 0s\n"},
		{"bad port", "dashboard:\n  port: 70000\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			_, err := Load(writeFile(t, "userlist.yaml", tt.content))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "conf", "userlist.toml")
	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written defaults failed: %v", err)
	}

	want := DefaultConfig()
	want.path = path
	if *cfg != *want {
		t.Errorf("Load() = %+v, want %+v", *cfg, *want)
	}

	if err := WriteDefault(path, false); err == nil {
		t.Error("WriteDefault() over an existing file should fail without force")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault() with force failed: %v", err)
	}
}
