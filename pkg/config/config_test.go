package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAMLConfiguration = `
gameName: mygame
listenPort: 9001
branchToken: placeholder
scanFolders:
  - root: /assets
    outputPrefix: ""
    recursive: true
    order: 0
platforms:
  - pc
  - switch
excludePatterns:
  - "**/*.tmp"
cacheRoot: /cache
storePath: /cache/forge.db
maxPathLength: 240
workers: 4
`

func writeTestConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "forge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unable to write test configuration: %v", err)
	}
	return path
}

func TestLoadConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testYAMLConfiguration)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GameName != "mygame" {
		t.Errorf("game name mismatch: %q", cfg.GameName)
	}
	if cfg.ListenPort != 9001 {
		t.Errorf("listen port mismatch: %d", cfg.ListenPort)
	}
	if len(cfg.ScanFolders) != 1 || cfg.ScanFolders[0].Root != "/assets" {
		t.Errorf("scan folders mismatch: %+v", cfg.ScanFolders)
	}
	if len(cfg.Platforms) != 2 || cfg.Platforms[0] != "pc" || cfg.Platforms[1] != "switch" {
		t.Errorf("platforms mismatch: %+v", cfg.Platforms)
	}
	if cfg.MaxPathLength != 240 {
		t.Errorf("max path length mismatch: %d", cfg.MaxPathLength)
	}
	if cfg.BranchToken != "placeholder" {
		t.Errorf("branch token mismatch: %q", cfg.BranchToken)
	}
}

func TestLoadConfigurationMissingGameNameFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "listenPort: 1\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing gameName")
	}
}

func TestLoadConfigurationAppliesDotEnvBranchTokenOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testYAMLConfiguration)

	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("FORGE_BRANCH_TOKEN=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("unable to write .env: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BranchToken != "from-dotenv" {
		t.Errorf("branch token override mismatch: %q", cfg.BranchToken)
	}
}

func TestLoadConfigurationMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatalf("expected error for missing configuration file")
	}
}
