package app

import (
	"io"

	"chapterbase/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Custom configuration path (optional)
	// Empty selects ~/.config/chapterbase
	ConfigPath string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Pre-loaded configuration. When set, config.yaml is not read.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
