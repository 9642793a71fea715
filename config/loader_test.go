package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := LoadAppConfig(); err != nil {
		t.Fatalf("LoadAppConfig without a file: %v", err)
	}
	if Config.Server.Port != 16080 {
		t.Errorf("expected default port 16080, got %d", Config.Server.Port)
	}
	if Config.Polling.IntervalSeconds != 60 {
		t.Errorf("expected default interval 60s, got %d", Config.Polling.IntervalSeconds)
	}
	if Config.Polling.Iterations != 60 {
		t.Errorf("expected default iterations 60, got %d", Config.Polling.Iterations)
	}
	if Config.Polling.FetchRetries != 3 {
		t.Errorf("expected default fetch retries 3, got %d", Config.Polling.FetchRetries)
	}
}

func TestLoadAppConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: 9090
polling:
  intervalSeconds: 30
  iterations: 10
systems:
  - name: montreal
    discoveryURL: https://gbfs.velobixi.com/gbfs/gbfs.json
fields:
  - city: montreal
    feed: station_status
    metadata: [station_id, name]
    data: [num_bikes_available]
`
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Chdir(dir)

	if err := LoadAppConfig(); err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}
	if Config.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", Config.Server.Port)
	}
	if Config.Polling.IntervalSeconds != 30 {
		t.Errorf("expected interval 30, got %d", Config.Polling.IntervalSeconds)
	}
	// unset values still pick up defaults
	if Config.Polling.TimeoutMS != 15000 {
		t.Errorf("expected default timeout, got %d", Config.Polling.TimeoutMS)
	}

	url, ok := Config.DiscoveryURL("montreal")
	if !ok || url != "https://gbfs.velobixi.com/gbfs/gbfs.json" {
		t.Errorf("config-added system not resolvable: %s %v", url, ok)
	}
	meta, data, ok := Config.FieldLists("montreal", "station_status")
	if !ok {
		t.Fatal("config field table not resolvable")
	}
	if len(meta) != 2 || len(data) != 1 {
		t.Errorf("wrong field lists: meta=%v data=%v", meta, data)
	}
}

func TestLoadAppConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	yml := `
systems:
  - name: montreal
    discoveryURL: not-a-url
`
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Chdir(dir)

	if err := LoadAppConfig(); err == nil {
		t.Fatal("expected a validation error for a bad discovery URL")
	}
}

func TestBuiltinRegistry(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := LoadAppConfig(); err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}

	names := Config.SystemNames()
	if len(names) != len(builtinSystemOrder) {
		t.Fatalf("expected %d built-in systems, got %d", len(builtinSystemOrder), len(names))
	}
	if names[0] != "dc" || names[1] != "nyc" {
		t.Errorf("built-in order lost: %v", names[:2])
	}

	if _, ok := Config.DiscoveryURL("atlantis"); ok {
		t.Error("unknown city must not resolve")
	}

	meta, data, ok := Config.FieldLists("nyc", "station_status")
	if !ok {
		t.Fatal("nyc station_status must be classified")
	}
	if len(meta) == 0 || len(data) == 0 {
		t.Error("built-in field lists must be non-empty")
	}
	// nyc publishes no free bike feed worth tracking
	if _, _, ok := Config.FieldLists("nyc", "free_bike_status"); ok {
		t.Error("unclassified feed must not resolve")
	}
}

func TestFieldListOverrideReplacesBuiltin(t *testing.T) {
	dir := t.TempDir()
	yml := `
fields:
  - city: nyc
    feed: station_status
    metadata: [station_id]
    data: [num_bikes_available, num_docks_available]
`
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Chdir(dir)

	if err := LoadAppConfig(); err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}
	meta, data, ok := Config.FieldLists("nyc", "station_status")
	if !ok {
		t.Fatal("override not resolvable")
	}
	if len(meta) != 1 || meta[0] != "station_id" {
		t.Errorf("override metadata not honored: %v", meta)
	}
	if len(data) != 2 {
		t.Errorf("override data not honored: %v", data)
	}
}
