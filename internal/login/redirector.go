package login

import (
	"fmt"

	"chapterbase/internal/metrics"
	"chapterbase/internal/session"
	"chapterbase/pkg/logging"
	"chapterbase/pkg/oauth"
)

// Redirector starts a login: it creates and stores a fresh code verifier and
// sends the page to the authorization endpoint with the derived challenge.
type Redirector struct {
	store     session.Store
	endpoints oauth.Endpoints
	generate  func() (*oauth.PKCEChallenge, error)
}

// NewRedirector creates a redirector for the given endpoints.
func NewRedirector(store session.Store, endpoints oauth.Endpoints) *Redirector {
	return &Redirector{
		store:     store,
		endpoints: endpoints,
		generate:  oauth.GeneratePKCE,
	}
}

// AuthorizationURL creates and stores a new verifier and returns the
// authorization URL carrying its challenge. Each call replaces the stored
// verifier, so only the latest URL can complete a login.
func (r *Redirector) AuthorizationURL() (string, error) {
	pkce, err := r.generate()
	if err != nil {
		return "", err
	}

	// The verifier must be durable before control leaves for the
	// authorization server.
	if err := r.store.SaveVerifier(pkce.CodeVerifier); err != nil {
		return "", fmt.Errorf("failed to store code verifier: %w", err)
	}

	authURL, err := oauth.BuildAuthorizationURL(r.endpoints, pkce.CodeChallenge)
	if err != nil {
		return "", err
	}
	return authURL, nil
}

// RedirectToLogin starts a login and navigates page to the authorization
// endpoint. It returns the URL navigated to.
func (r *Redirector) RedirectToLogin(page Page) (string, error) {
	authURL, err := r.AuthorizationURL()
	if err != nil {
		return "", err
	}

	if err := page.Navigate(authURL); err != nil {
		return "", fmt.Errorf("failed to navigate to authorization endpoint: %w", err)
	}

	metrics.LoginRedirects.Inc()
	logging.Info("Login", "Redirecting to authorization endpoint %s", r.endpoints.AuthorizationURL)
	return authURL, nil
}
