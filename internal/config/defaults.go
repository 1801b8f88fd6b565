package config

import (
	"time"

	"chapterbase/pkg/oauth"
)

const (
	// DefaultClientID is the client registered for the chapter-base front end.
	DefaultClientID = "49k8pr50rs8j0011o9hkg8limj"

	// DefaultAuthorizationURL is the hosted login page.
	DefaultAuthorizationURL = "https://chapter-base.auth.ap-southeast-1.amazoncognito.com/login"

	// DefaultTokenURL is the token endpoint of the same user pool.
	DefaultTokenURL = "https://chapter-base.auth.ap-southeast-1.amazoncognito.com/oauth2/token"

	// DefaultRedirectURI is the registered redirect URI.
	DefaultRedirectURI = "http://localhost:3000"

	// DefaultAPIBaseURL is the chapter-base API.
	DefaultAPIBaseURL = "http://localhost:5261"

	// DefaultProxyListen is where chapterbase proxy listens.
	DefaultProxyListen = "localhost:8080"

	// DefaultCallbackTimeout bounds the wait for the browser to return.
	DefaultCallbackTimeout = 10 * time.Minute

	// DefaultAPITimeout is the per-request API timeout.
	DefaultAPITimeout = 30 * time.Second
)

// GetDefaultConfig returns default configuration
func GetDefaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			ClientID:         DefaultClientID,
			AuthorizationURL: DefaultAuthorizationURL,
			TokenURL:         DefaultTokenURL,
			RedirectURI:      DefaultRedirectURI,
			Scopes:           append([]string(nil), oauth.DefaultScopes...),
			CallbackTimeout:  DefaultCallbackTimeout,
		},
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultAPITimeout,
		},
		Proxy: ProxyConfig{
			Listen: DefaultProxyListen,
		},
		LogLevel: "warn",
	}
}
