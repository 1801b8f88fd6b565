package oauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultScopes are the scopes requested from the authorization server.
var DefaultScopes = []string{"email", "openid", "phone"}

// Endpoints describes the client registration at the authorization server.
// All values are fixed for a given deployment.
type Endpoints struct {
	// AuthorizationURL is the authorization endpoint the browser is sent to.
	AuthorizationURL string

	// TokenURL is the token endpoint the code is exchanged at.
	TokenURL string

	// ClientID is the public client identifier.
	ClientID string

	// RedirectURI is where the authorization server sends the browser back to.
	RedirectURI string

	// Scopes are the requested scopes. Defaults to DefaultScopes when empty.
	Scopes []string
}

// scopes returns the configured scopes or the defaults.
func (e Endpoints) scopes() []string {
	if len(e.Scopes) == 0 {
		return DefaultScopes
	}
	return e.Scopes
}

// oauth2Config returns the golang.org/x/oauth2 view of the endpoints.
func (e Endpoints) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    e.ClientID,
		RedirectURL: e.RedirectURI,
		Scopes:      e.scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.AuthorizationURL,
			TokenURL:  e.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
type PKCEChallenge struct {
	// CodeVerifier is the random secret, kept in the session store until
	// the code is exchanged.
	CodeVerifier string

	// CodeChallenge is the SHA256 hash of the verifier (base64url-encoded).
	// It is sent once, in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// TokenPair is the credential set of an authenticated session.
// Only IDToken and AccessToken decide whether the session is valid;
// the remaining fields are informational.
type TokenPair struct {
	// IDToken is the OIDC ID token.
	IDToken string `json:"id_token"`

	// AccessToken is the bearer token attached to API requests.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is kept for display only; this client never refreshes.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the access token expiry reported by the token endpoint.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether both the id token and the access token are present.
// A pair with only one of them never counts as a session.
func (p *TokenPair) Valid() bool {
	return p != nil && p.IDToken != "" && p.AccessToken != ""
}

// ToOAuth2Token converts the pair to an oauth2.Token, with the id token in
// the extra data the way golang.org/x/oauth2 exposes it.
func (p *TokenPair) ToOAuth2Token() *oauth2.Token {
	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	token := &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    tokenType,
		RefreshToken: p.RefreshToken,
		Expiry:       p.ExpiresAt,
	}

	if p.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": p.IDToken,
		})
	}

	return token
}

// tokenResponse is the JSON body of a successful token endpoint response.
type tokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// errorResponse is the JSON body of a failed token endpoint response (RFC 6749 5.2).
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// IDTokenClaims holds the identity claims shown by "auth whoami".
// They are decoded without signature verification and must not be used
// for authorization decisions.
type IDTokenClaims struct {
	Subject     string `json:"sub"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Issuer      string `json:"iss"`
	Expiry      int64  `json:"exp"`
}

// ExpiresAt returns the exp claim as a time, zero if absent.
func (c *IDTokenClaims) ExpiresAt() time.Time {
	if c.Expiry == 0 {
		return time.Time{}
	}
	return time.Unix(c.Expiry, 0)
}

// ParseIDTokenClaims decodes the payload segment of a JWT ID token.
func ParseIDTokenClaims(idToken string) (*IDTokenClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, errors.New("id token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode id token payload: %w", err)
	}

	var claims IDTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token claims: %w", err)
	}

	return &claims, nil
}
