package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mcpaggregator/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/mcpaggregator"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns the default user configuration directory
// (~/.config/mcpaggregator), without creating it.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load loads configuration from a single directory containing config.yaml.
// A missing directory or file yields an empty Config, not an error, so a
// fresh install can start with zero configured upstreams.
func Load(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("config", "no config.yaml found at %s, starting with no upstreams", configFilePath)
			return Config{}, nil
		}
		return Config{}, ConfigurationError{FilePath: configFilePath, Message: err.Error()}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, ConfigurationError{FilePath: configFilePath, Message: err.Error()}
	}

	for name, u := range cfg.Upstreams {
		u.Name = name
		cfg.Upstreams[name] = u
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, ConfigurationError{FilePath: configFilePath, Message: err.Error()}
	}

	logging.Info("config", "loaded %d upstream(s) from %s", len(cfg.Upstreams), configFilePath)
	return cfg, nil
}

// LoadLayered loads configuration from the default user directory and, if
// present, from a project-local ".mcpaggregator" directory in the current
// working directory, with the project layer's upstreams overriding the
// user layer's by name. This mirrors the common convention of a
// machine-wide default overridden by a per-project file.
func LoadLayered() (Config, error) {
	userDir, err := DefaultConfigPath()
	if err != nil {
		return Config{}, err
	}

	userCfg, err := Load(userDir)
	if err != nil {
		return Config{}, err
	}

	projectDir := filepath.Join(".", ".mcpaggregator")
	if _, statErr := os.Stat(filepath.Join(projectDir, configFileName)); statErr != nil {
		return userCfg, nil
	}

	projectCfg, err := Load(projectDir)
	if err != nil {
		return Config{}, err
	}

	merged := userCfg
	if merged.Upstreams == nil {
		merged.Upstreams = make(map[string]UpstreamConfig)
	}
	for name, u := range projectCfg.Upstreams {
		merged.Upstreams[name] = u
	}
	if projectCfg.Listen.Port != 0 {
		merged.Listen = projectCfg.Listen
	}
	if projectCfg.AllowClientGeneratedSessionIDs != nil {
		merged.AllowClientGeneratedSessionIDs = projectCfg.AllowClientGeneratedSessionIDs
	}
	return merged, nil
}
