package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	Level         string
	FilePath      string
	MaxSizeMB     int
	MaxFiles      int
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for file logging.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig returns the configuration used when
// FOLDER_MCP_DEVELOPMENT_ENABLED is set.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// FromEnvironment builds a Config honoring FOLDER_MCP_DEVELOPMENT_ENABLED.
func FromEnvironment() Config {
	v := os.Getenv("FOLDER_MCP_DEVELOPMENT_ENABLED")
	if strings.EqualFold(v, "true") || v == "1" {
		return DebugConfig()
	}
	return DefaultConfig()
}

// Setup initializes file-based structured logging and returns a cleanup func.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler)

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return logger, cleanup, nil
}

// SetupDefault sets up logging from the environment and installs it as the
// process default logger.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(FromEnvironment())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString exposes level parsing to other packages (e.g. config
// validation of daemon.log_level).
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
