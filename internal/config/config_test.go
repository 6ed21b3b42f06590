package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:3000" || cfg.Timezone != "Europe/Stockholm" {
		t.Fatalf("default config: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config written with %o, want 0600", perm)
	}
}

func TestLoadPartialConfigNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := []byte("listen: \"0.0.0.0:8080\"\nweeks_normal: 0\n")
	if err := os.WriteFile(path, partial, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:8080" {
		t.Fatalf("explicit value lost: %q", cfg.Listen)
	}
	if cfg.WeeksNormal != 3 || cfg.WeeksExpanded != 6 {
		t.Fatalf("window defaults not applied: %d/%d", cfg.WeeksNormal, cfg.WeeksExpanded)
	}
	if cfg.FetchTimeoutSeconds != 15 {
		t.Fatalf("fetch timeout default not applied: %d", cfg.FetchTimeoutSeconds)
	}
	if cfg.ScheduleFeeds == nil {
		t.Fatalf("schedule feeds not initialized")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed YAML should fail")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:9999"
	cfg.ScheduleFeeds = []ScheduleFeedConfig{
		{URL: "https://example.test/a.ics", Label: "skola24_maja"},
		{URL: "https://example.test/b.ics", Label: "skola24_erik"},
	}
	cfg.HomeAssistant.Token = "secret-token"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Listen != "127.0.0.1:9999" {
		t.Fatalf("listen = %q", loaded.Listen)
	}
	if len(loaded.ScheduleFeeds) != 2 || loaded.ScheduleFeeds[1].Label != "skola24_erik" {
		t.Fatalf("schedule feeds = %+v", loaded.ScheduleFeeds)
	}
	// YAML carries the token; only JSON responses redact it.
	if loaded.HomeAssistant.Token != "secret-token" {
		t.Fatalf("token lost in round trip")
	}
}

func TestSaveEmptyPath(t *testing.T) {
	if err := Save("", DefaultConfig()); err == nil {
		t.Fatalf("empty path should fail")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("empty path should fail")
	}
}
