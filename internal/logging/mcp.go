package logging

import "log/slog"

// SetupMCPMode initializes logging for stdio MCP transport. The JSON-RPC
// protocol requires stdout to carry only protocol frames, so file logging
// never writes to stderr/stdout in this mode.
func SetupMCPMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("mcp stdio logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupMCPModeWithLevel is SetupMCPMode with an explicit level instead of
// the always-debug default, for callers that already know their verbosity
// (e.g. a --log-level flag plumbed through the daemon supervisor).
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
