package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chapterbase/pkg/logging"
)

const (
	userConfigDir  = ".config/chapterbase"
	configFileName = "config.yaml"
)

// envPrefix prefixes every environment override.
const envPrefix = "CHAPTERBASE_"

// GetDefaultConfigPath returns ~/.config/chapterbase.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}

	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from config.yaml in configPath, applies
// environment overrides and validates the result. An empty configPath
// selects the default directory. A missing file yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	if configPath == "" {
		var err error
		configPath, err = GetDefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
	}

	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	// #nosec G304 -- the path is chosen by the user running the command
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			Source:    "file",
			ErrorType: "io",
			Message:   "cannot read configuration file",
			Details:   err.Error(),
			Err:       err,
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, parseError(configFilePath, err)
		}
		logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnvOverrides(&config); err != nil {
		return Config{}, err
	}

	if errs := Validate(config); errs.HasErrors() {
		return Config{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			Source:    "file",
			ErrorType: "validation",
			Message:   "invalid configuration",
			Details:   errs.Error(),
			Suggestions: []string{
				"Check the values in " + configFilePath,
				"Check CHAPTERBASE_* environment variables",
			},
			Err: errs,
		}
	}

	return config, nil
}

// parseError converts a YAML error into a ConfigurationError, keeping the
// line number when yaml.v3 reports one.
func parseError(path string, err error) ConfigurationError {
	ce := ConfigurationError{
		FilePath:    path,
		FileName:    configFileName,
		Source:      "file",
		ErrorType:   "parse",
		Message:     "malformed YAML",
		Details:     err.Error(),
		Suggestions: []string{"Validate the file with a YAML linter"},
		Err:         err,
	}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		ce.Message = "unexpected value type"
		ce.Details = strings.Join(typeErr.Errors, "; ")
	}
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		ce.LineNumber = line
	}
	return ce
}

// applyEnvOverrides overrides config fields with CHAPTERBASE_* variables.
func applyEnvOverrides(c *Config) error {
	stringOverrides := map[string]*string{
		"CLIENT_ID":         &c.Auth.ClientID,
		"AUTHORIZATION_URL": &c.Auth.AuthorizationURL,
		"TOKEN_URL":         &c.Auth.TokenURL,
		"REDIRECT_URI":      &c.Auth.RedirectURI,
		"API_URL":           &c.API.BaseURL,
		"SESSION_DIR":       &c.Session.Dir,
		"PROXY_LISTEN":      &c.Proxy.Listen,
		"LOG_LEVEL":         &c.LogLevel,
	}
	for name, field := range stringOverrides {
		if v := os.Getenv(envPrefix + name); v != "" {
			*field = v
		}
	}

	if v := os.Getenv(envPrefix + "SCOPES"); v != "" {
		c.Auth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}

	durationOverrides := map[string]*time.Duration{
		"CALLBACK_TIMEOUT": &c.Auth.CallbackTimeout,
		"API_TIMEOUT":      &c.API.Timeout,
	}
	for name, field := range durationOverrides {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return ConfigurationError{
				Source:    "environment",
				ErrorType: "parse",
				Message:   fmt.Sprintf("invalid duration in %s%s", envPrefix, name),
				Details:   err.Error(),
				Err:       err,
			}
		}
		*field = d
	}

	return nil
}
