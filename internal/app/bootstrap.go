package app

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"chapterbase/internal/config"
	"chapterbase/internal/login"
	"chapterbase/internal/session"
	"chapterbase/internal/transport"
	"chapterbase/pkg/logging"
	"chapterbase/pkg/oauth"
)

// Application holds the long-lived objects every chapterbase command works
// with. There is exactly one session store per application; the controller
// and every authenticated HTTP client share it.
//
// Example usage:
//
//	application, err := app.NewApplication(app.NewConfig(debug, configPath))
//	if err != nil {
//	    return err
//	}
//	result := application.Controller.Evaluate(ctx, page)
type Application struct {
	Settings   config.Config
	Store      *session.FileStore
	OAuth      *oauth.Client
	Controller *login.Controller
}

// NewApplication creates and initializes a new application instance with the provided configuration.
// This function performs the complete bootstrap sequence:
//
//  1. Loads chapterbase configuration (unless pre-loaded)
//  2. Configures logging based on debug settings and the configured level
//  3. Opens the session store
//  4. Creates the OAuth client and the session controller
func NewApplication(cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}

	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
	} else {
		loaded, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load chapterbase configuration: %w", err)
		}
		settings = loaded
	}

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logger := logging.Init(level, logging.FormatText, logOutput)

	store, err := session.NewFileStore(settings.Session.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	logging.Debug("Bootstrap", "Using session file %s", store.Path())

	client := oauth.NewClient(oauth.WithLogger(logger))

	return &Application{
		Settings:   settings,
		Store:      store,
		OAuth:      client,
		Controller: login.NewController(store, client, settings.Auth.Endpoints()),
	}, nil
}

// Endpoints returns the configured OAuth endpoints.
func (a *Application) Endpoints() oauth.Endpoints {
	return a.Settings.Auth.Endpoints()
}

// HTTPClient returns a client for the API whose requests carry the session's
// access token.
func (a *Application) HTTPClient(opts ...transport.Option) *http.Client {
	client := transport.NewClient(a.Store, opts...)
	if a.Settings.API.Timeout > 0 {
		client.Timeout = a.Settings.API.Timeout
	}
	return client
}

// NewCallbackServer creates the callback server for the configured
// redirect URI.
func (a *Application) NewCallbackServer() (*login.CallbackServer, error) {
	return login.NewCallbackServer(a.Controller, a.Settings.Auth.RedirectURI)
}
