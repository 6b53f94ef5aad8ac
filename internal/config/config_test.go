package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Daemon.Performance.WatchDebounce != "500ms" {
		t.Errorf("expected 500ms debounce default, got %s", cfg.Daemon.Performance.WatchDebounce)
	}
	if cfg.Chunking.TargetTokens != 400 {
		t.Errorf("expected target_tokens 400, got %d", cfg.Chunking.TargetTokens)
	}
	if cfg.Daemon.Performance.IndexWorkers < 1 || cfg.Daemon.Performance.IndexWorkers > 4 {
		t.Errorf("expected index workers in [1,4], got %d", cfg.Daemon.Performance.IndexWorkers)
	}
}

func TestLoad_DefaultsWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chunking.TargetTokens != 400 {
		t.Errorf("expected default target tokens, got %d", cfg.Chunking.TargetTokens)
	}
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	yamlContent := `
version: 1
chunking:
  target_tokens: 800
  soft_cap_multiplier: 1.5
  hard_cap_multiplier: 2.0
`
	if err := os.WriteFile(filepath.Join(dir, ".folder-mcp.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chunking.TargetTokens != 800 {
		t.Errorf("expected target_tokens 800, got %d", cfg.Chunking.TargetTokens)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FOLDER_MCP_TARGET_TOKENS", "1200")

	yamlContent := "chunking:\n  target_tokens: 800\n"
	if err := os.WriteFile(filepath.Join(dir, ".folder-mcp.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chunking.TargetTokens != 1200 {
		t.Errorf("expected env override 1200, got %d", cfg.Chunking.TargetTokens)
	}
}

func TestValidate_RejectsMissingFolderPath(t *testing.T) {
	cfg := NewConfig()
	cfg.Folders = []FolderConfig{{Path: filepath.Join(t.TempDir(), "does-not-exist")}}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for nonexistent folder path")
	}
}

func TestValidate_RejectsFileAsFolderPath(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "notadir.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	cfg := NewConfig()
	cfg.Folders = []FolderConfig{{Path: filePath}}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when folder path is a file")
	}
}

func TestValidate_RejectsDuplicateFolderPath(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Folders = []FolderConfig{{Path: dir}, {Path: dir}}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate folder registration")
	}
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Folders = []FolderConfig{{Path: dir, Embeddings: EmbeddingsConfig{Backend: "not-a-backend"}}}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown embeddings backend")
	}
}

func TestValidate_RejectsBadChunkingCaps(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunking.HardCapMultiplier = cfg.Chunking.SoftCapMultiplier

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when hard cap does not exceed soft cap")
	}
}

func TestValidate_RejectsInvalidLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestCanonicalFolderKey_StripsTrailingSeparator(t *testing.T) {
	a := canonicalFolderKey("/Users/me/Docs/")
	b := canonicalFolderKey("/Users/me/Docs")
	if a != b {
		t.Errorf("trailing separator should be stripped: %q != %q", a, b)
	}
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Chunking.TargetTokens = 555

	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	var reloaded Config
	reloaded = *NewConfig()
	if err := reloaded.loadYAML(path); err != nil {
		t.Fatalf("loadYAML failed: %v", err)
	}
	if reloaded.Chunking.TargetTokens != 555 {
		t.Errorf("expected 555 after round trip, got %d", reloaded.Chunking.TargetTokens)
	}
}
