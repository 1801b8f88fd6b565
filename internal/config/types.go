package config

import (
	"time"

	"chapterbase/pkg/oauth"
)

// Config is the top-level chapterbase configuration.
type Config struct {
	Auth     AuthConfig    `yaml:"auth"`
	API      APIConfig     `yaml:"api"`
	Session  SessionConfig `yaml:"session"`
	Proxy    ProxyConfig   `yaml:"proxy"`
	LogLevel string        `yaml:"logLevel" validate:"oneof=debug info warn error"`
}

// AuthConfig describes the OAuth client registration at the authorization
// server.
type AuthConfig struct {
	// ClientID is the public client identifier.
	ClientID string `yaml:"clientId" validate:"required"`

	// AuthorizationURL is the authorization (login) endpoint.
	AuthorizationURL string `yaml:"authorizationUrl" validate:"required,url"`

	// TokenURL is the token endpoint.
	TokenURL string `yaml:"tokenUrl" validate:"required,url"`

	// RedirectURI is where the authorization server sends the browser back
	// to. The local callback server listens on its host and port.
	RedirectURI string `yaml:"redirectUri" validate:"required,url,startswith=http://"`

	// Scopes requested at login.
	Scopes []string `yaml:"scopes" validate:"required,min=1,dive,required"`

	// CallbackTimeout bounds how long auth login waits for the browser.
	CallbackTimeout time.Duration `yaml:"callbackTimeout" validate:"gte=0"`
}

// APIConfig describes the protected API.
type APIConfig struct {
	// BaseURL is the API the session's access token is sent to.
	BaseURL string `yaml:"baseUrl" validate:"required,url"`

	// Timeout is the per-request timeout of API calls.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// SessionConfig controls where the session is stored.
type SessionConfig struct {
	// Dir holds session.json. Empty selects ~/.config/chapterbase.
	Dir string `yaml:"dir,omitempty"`

	// Watch reloads the session when another process changes it.
	Watch bool `yaml:"watch"`
}

// ProxyConfig configures chapterbase proxy.
type ProxyConfig struct {
	// Listen is the address the proxy binds to.
	Listen string `yaml:"listen" validate:"required,hostname_port"`
}

// Endpoints returns the OAuth endpoints described by the configuration.
func (c AuthConfig) Endpoints() oauth.Endpoints {
	return oauth.Endpoints{
		AuthorizationURL: c.AuthorizationURL,
		TokenURL:         c.TokenURL,
		ClientID:         c.ClientID,
		RedirectURI:      c.RedirectURI,
		Scopes:           append([]string(nil), c.Scopes...),
	}
}
