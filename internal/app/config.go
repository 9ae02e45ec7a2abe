package app

import (
	"mcpaggregator/internal/config"
)

// Config holds the flags and configuration needed to bootstrap the
// application, resolved to a loaded config.Config once NewApplication runs.
type Config struct {
	// Debug enables verbose (debug-level) logging.
	Debug bool

	// Yolo disables the destructive-tool denylist guard on tools/call.
	Yolo bool

	// ConfigPath, when set, loads configuration from this single directory
	// instead of the layered (user + project) default.
	ConfigPath string

	// Loaded is populated by NewApplication once configuration has loaded.
	Loaded config.Config
}

// NewConfig creates application bootstrap configuration from CLI flags.
func NewConfig(debug, yolo bool, configPath string) *Config {
	return &Config{Debug: debug, Yolo: yolo, ConfigPath: configPath}
}
