package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(mistralModelEnv, "")

	cfg := Load()

	if cfg.Fetch.DaysLimit != 7 || cfg.Fetch.MaxRetries != 3 || cfg.Fetch.Workers != 5 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Summarizer.MaxLength != 130 || cfg.Summarizer.MinLength != 30 {
		t.Fatalf("unexpected summarizer defaults: %+v", cfg.Summarizer)
	}
	if cfg.Digest.Model != "mistral-large-latest" || cfg.Digest.WindowDays != 7 {
		t.Fatalf("unexpected digest defaults: %+v", cfg.Digest)
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatal("scheduler location not bound")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
database:
  path: /var/lib/rssdigest/articles.db
feeds:
  - name: Import AI
    url: https://importai.example.org/rss
fetch:
  daysLimit: 14
  workers: 2
digest:
  windowDays: 14
  always: true
scheduler:
  timezone: Europe/Paris
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(databasePathEnv, "")

	cfg := Load()

	if cfg.Database.Path != "/var/lib/rssdigest/articles.db" {
		t.Fatalf("database path not overridden: %q", cfg.Database.Path)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "Import AI" {
		t.Fatalf("feeds not replaced: %+v", cfg.Feeds)
	}
	if cfg.Fetch.DaysLimit != 14 || cfg.Fetch.Workers != 2 {
		t.Fatalf("fetch overrides not applied: %+v", cfg.Fetch)
	}
	// Untouched fields keep their defaults.
	if cfg.Fetch.MaxRetries != 3 {
		t.Fatalf("default lost on merge: %+v", cfg.Fetch)
	}
	if !cfg.Digest.Always || cfg.Digest.WindowDays != 14 {
		t.Fatalf("digest overrides not applied: %+v", cfg.Digest)
	}
	if cfg.Scheduler.Location().String() != "Europe/Paris" {
		t.Fatalf("timezone not bound: %v", cfg.Scheduler.Location())
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
digest:
  apiKey: from-file
  model: from-file-model
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(mistralAPIKeyEnv, "from-env")
	t.Setenv(mistralModelEnv, "")
	t.Setenv(databasePathEnv, "/tmp/env.db")

	cfg := Load()

	if cfg.Digest.APIKey != "from-env" {
		t.Fatalf("env api key should win: %q", cfg.Digest.APIKey)
	}
	if cfg.Digest.Model != "from-file-model" {
		t.Fatalf("file model lost: %q", cfg.Digest.Model)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Fatalf("env database path should win: %q", cfg.Database.Path)
	}
}

func TestLoadFileCanZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
digest:
  temperature: 0
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Digest.Temperature == nil || *cfg.Digest.Temperature != 0 {
		t.Fatalf("temperature 0 from file not honored: %v", cfg.Digest.Temperature)
	}
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Digest.Endpoint == "" {
		t.Fatal("defaults not applied after unreadable config file")
	}
}
