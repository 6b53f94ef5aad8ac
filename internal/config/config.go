package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's persisted configuration: which folders to monitor,
// how the daemon supervises itself, and how documents get chunked.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Folders  []FolderConfig `yaml:"folders" json:"folders"`
	Daemon   DaemonConfig   `yaml:"daemon" json:"daemon"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// FolderConfig describes one monitored folder entry.
type FolderConfig struct {
	Path       string           `yaml:"path" json:"path"`
	Name       string           `yaml:"name" json:"name"`
	Enabled    bool             `yaml:"enabled" json:"enabled"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
}

// EmbeddingsConfig selects the embedding backend and model for a folder.
type EmbeddingsConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Model   string `yaml:"model" json:"model"`
}

// DaemonConfig configures the daemon supervisor.
type DaemonConfig struct {
	HealthCheck     string            `yaml:"health_check" json:"health_check"`
	AutoRestart     bool              `yaml:"auto_restart" json:"auto_restart"`
	Performance     PerformanceConfig `yaml:"performance" json:"performance"`
	ShutdownTimeout string            `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// PerformanceConfig tunes the orchestrator's worker pool and caches.
type PerformanceConfig struct {
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	CacheSize     int    `yaml:"cache_size" json:"cache_size"`
	SQLiteCacheMB int    `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ChunkingConfig tunes the chunker's token budget.
type ChunkingConfig struct {
	TargetTokens      int     `yaml:"target_tokens" json:"target_tokens"`
	SoftCapMultiplier float64 `yaml:"soft_cap_multiplier" json:"soft_cap_multiplier"`
	HardCapMultiplier float64 `yaml:"hard_cap_multiplier" json:"hard_cap_multiplier"`
}

// LoggingConfig mirrors logging.Config for the parts that are user tunable.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Folders: []FolderConfig{},
		Daemon: DaemonConfig{
			HealthCheck: "30s",
			AutoRestart: true,
			Performance: PerformanceConfig{
				IndexWorkers:  defaultIndexWorkers(),
				WatchDebounce: "500ms",
				CacheSize:     1000,
				SQLiteCacheMB: 64,
			},
			ShutdownTimeout: "10s",
		},
		Chunking: ChunkingConfig{
			TargetTokens:      400,
			SoftCapMultiplier: 1.5,
			HardCapMultiplier: 2.0,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultIndexWorkers returns min(NumCPU, 4), the Indexing worker pool bound.
func defaultIndexWorkers() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory spec.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "folder-mcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "folder-mcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "folder-mcp", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file. Returns nil, nil if it
// doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration from dir, applying, in order of increasing
// precedence: hardcoded defaults, the user/global config, the project
// config (.folder-mcp.yaml in dir), then FOLDER_MCP_* environment overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".folder-mcp.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".folder-mcp.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Folders) > 0 {
		c.Folders = other.Folders
	}

	if other.Daemon.HealthCheck != "" {
		c.Daemon.HealthCheck = other.Daemon.HealthCheck
	}
	if other.Daemon.ShutdownTimeout != "" {
		c.Daemon.ShutdownTimeout = other.Daemon.ShutdownTimeout
	}
	if other.Daemon.Performance.IndexWorkers != 0 {
		c.Daemon.Performance.IndexWorkers = other.Daemon.Performance.IndexWorkers
	}
	if other.Daemon.Performance.WatchDebounce != "" {
		c.Daemon.Performance.WatchDebounce = other.Daemon.Performance.WatchDebounce
	}
	if other.Daemon.Performance.CacheSize != 0 {
		c.Daemon.Performance.CacheSize = other.Daemon.Performance.CacheSize
	}
	if other.Daemon.Performance.SQLiteCacheMB != 0 {
		c.Daemon.Performance.SQLiteCacheMB = other.Daemon.Performance.SQLiteCacheMB
	}
	// AutoRestart can be explicitly set false, so only adopt it alongside
	// some other daemon override rather than always.
	if other.Daemon.HealthCheck != "" || other.Daemon.ShutdownTimeout != "" {
		c.Daemon.AutoRestart = other.Daemon.AutoRestart
	}

	if other.Chunking.TargetTokens != 0 {
		c.Chunking.TargetTokens = other.Chunking.TargetTokens
	}
	if other.Chunking.SoftCapMultiplier != 0 {
		c.Chunking.SoftCapMultiplier = other.Chunking.SoftCapMultiplier
	}
	if other.Chunking.HardCapMultiplier != 0 {
		c.Chunking.HardCapMultiplier = other.Chunking.HardCapMultiplier
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies FOLDER_MCP_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOLDER_MCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FOLDER_MCP_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Daemon.Performance.IndexWorkers = n
		}
	}
	if v := os.Getenv("FOLDER_MCP_WATCH_DEBOUNCE"); v != "" {
		c.Daemon.Performance.WatchDebounce = v
	}
	if v := os.Getenv("FOLDER_MCP_HEALTH_CHECK"); v != "" {
		c.Daemon.HealthCheck = v
	}
	if v := os.Getenv("FOLDER_MCP_TARGET_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.TargetTokens = n
		}
	}
}

// knownBackends lists embedding backend identifiers the daemon recognizes.
// A folder's embeddings.backend must name one of these (empty defers to the
// daemon's auto-detected default backend).
var knownBackends = map[string]bool{
	"":       true,
	"ollama": true,
	"static": true,
}

// Validate validates the configuration, returning an error describing the
// first violation found.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Folders))
	for _, f := range c.Folders {
		if f.Path == "" {
			return fmt.Errorf("folder path must not be empty")
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return fmt.Errorf("folder path %s does not exist: %w", f.Path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("folder path %s is not a directory", f.Path)
		}
		key := canonicalFolderKey(f.Path)
		if seen[key] {
			return fmt.Errorf("folder path %s is registered more than once", f.Path)
		}
		seen[key] = true

		if !knownBackends[strings.ToLower(f.Embeddings.Backend)] {
			return fmt.Errorf("folder %s: unknown embeddings.backend %q", f.Path, f.Embeddings.Backend)
		}
	}

	if c.Daemon.Performance.IndexWorkers < 0 {
		return fmt.Errorf("daemon.performance.index_workers must be non-negative, got %d", c.Daemon.Performance.IndexWorkers)
	}
	if c.Chunking.TargetTokens <= 0 {
		return fmt.Errorf("chunking.target_tokens must be positive, got %d", c.Chunking.TargetTokens)
	}
	if c.Chunking.SoftCapMultiplier <= 1 {
		return fmt.Errorf("chunking.soft_cap_multiplier must be greater than 1, got %f", c.Chunking.SoftCapMultiplier)
	}
	if c.Chunking.HardCapMultiplier <= c.Chunking.SoftCapMultiplier {
		return fmt.Errorf("chunking.hard_cap_multiplier must exceed soft_cap_multiplier")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// canonicalFolderKey normalizes a folder path for duplicate-registration
// comparisons: case-insensitive on Windows/macOS, case-sensitive on Unix,
// with trailing separators stripped. Only a path made entirely of
// separators (such as "/") keeps them; "C:\" becomes "C:".
func canonicalFolderKey(path string) string {
	trimmed := strings.TrimRight(path, string(filepath.Separator))
	if trimmed == "" {
		trimmed = path // all-separator path ("/") keeps its separator
	}
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.ToLower(trimmed)
	}
	return trimmed
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
