package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultHTTPTimeout is the default timeout for token endpoint requests.
	DefaultHTTPTimeout = 30 * time.Second

	// maxTokenResponseBytes bounds how much of a token response is read.
	maxTokenResponseBytes = 1 << 20
)

// Client handles the OAuth 2.0 protocol operations of the session manager:
// building the authorization URL and exchanging the authorization code.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BuildAuthorizationURL constructs the authorization endpoint URL for a
// PKCE login: client_id, response_type=code, scope, redirect_uri,
// code_challenge and code_challenge_method=S256.
func BuildAuthorizationURL(ep Endpoints, challenge string) (string, error) {
	if challenge == "" {
		return "", errors.New("code challenge is required")
	}

	authURL, err := url.Parse(ep.AuthorizationURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if authURL.Scheme == "" || authURL.Host == "" {
		return "", fmt.Errorf("invalid authorization endpoint: %q is not absolute", ep.AuthorizationURL)
	}

	return ep.oauth2Config().AuthCodeURL("",
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", CodeChallengeMethodS256),
	), nil
}

// BuildAuthorizationURL is the method form of the package-level function.
func (c *Client) BuildAuthorizationURL(ep Endpoints, challenge string) (string, error) {
	return BuildAuthorizationURL(ep, challenge)
}

// ExchangeCode exchanges an authorization code for a token pair.
//
// Exactly one request is sent. The code is single-use, so a failed
// exchange is never retried here or by callers; the login has to start
// over with a fresh verifier.
func (c *Client) ExchangeCode(ctx context.Context, ep Endpoints, code, codeVerifier string) (*TokenPair, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if codeVerifier == "" {
		return nil, ErrVerifierMissing
	}

	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {ep.ClientID},
		"redirect_uri":  {ep.RedirectURI},
		"code":          {code},
		"code_verifier": {codeVerifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &TokenExchangeError{Cause: fmt.Errorf("failed to create token request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		exchangeErr := &TokenExchangeError{StatusCode: resp.StatusCode}
		var oauthErr errorResponse
		if json.Unmarshal(body, &oauthErr) == nil {
			exchangeErr.Code = oauthErr.Error
			exchangeErr.Description = oauthErr.ErrorDescription
		}
		c.logger.Debug("Token request failed",
			"status", resp.StatusCode,
			"error", exchangeErr.Code)
		return nil, exchangeErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenResponseIncomplete, err)
	}

	var missing []string
	if tr.IDToken == "" {
		missing = append(missing, "id_token")
	}
	if tr.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrTokenResponseIncomplete, strings.Join(missing, ", "))
	}

	pair := &TokenPair{
		IDToken:      tr.IDToken,
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		pair.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return pair, nil
}
