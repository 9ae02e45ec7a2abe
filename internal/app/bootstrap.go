package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"mcpaggregator/internal/config"
	"mcpaggregator/internal/errs"
	"mcpaggregator/pkg/logging"
)

// Application bootstraps and runs the aggregating proxy process.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the full bootstrap sequence: configures logging,
// loads configuration, and wires every component together.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var out io.Writer = os.Stdout
	logging.InitForCLI(level, out)

	loaded, err := loadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, &errs.ConfigError{Path: cfg.ConfigPath, Cause: err}
	}
	cfg.Loaded = loaded

	services, err := InitializeServices(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}

func loadConfig(configPath string) (config.Config, error) {
	if configPath != "" {
		logging.Info("app", "loading configuration from %s", configPath)
		return config.Load(configPath)
	}
	logging.Info("app", "loading layered configuration")
	return config.LoadLayered()
}

// Run starts the downstream server and blocks until ctx is cancelled,
// then drains upstream connections and sessions before returning.
func (a *Application) Run(ctx context.Context) error {
	return run(ctx, a.services)
}
