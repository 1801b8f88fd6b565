package session

import (
	"errors"
	"time"

	"chapterbase/pkg/oauth"
)

// Persisted key names. They match the keys the browser application kept in
// localStorage, so a session document is recognisable across both clients.
const (
	KeyIDToken      = "idToken"
	KeyAccessToken  = "accessToken"
	KeyCodeVerifier = "pkce_code_verifier"
)

// ErrIncompleteTokenPair is returned when a caller tries to save a token pair
// with an empty id token or access token. Nothing is written in that case.
var ErrIncompleteTokenPair = errors.New("token pair requires both id token and access token")

// Store persists the current token pair and the in-flight PKCE code verifier.
//
// Every mutation is synchronous: once it returns nil, subsequent loads in the
// same process observe it. Clearing is idempotent.
type Store interface {
	// SaveVerifier stores the code verifier of the login attempt in flight,
	// replacing any previous one.
	SaveVerifier(verifier string) error

	// LoadVerifier returns the stored code verifier, if any.
	LoadVerifier() (string, bool)

	// ClearVerifier removes the stored code verifier.
	ClearVerifier() error

	// SaveTokens stores a complete token pair in a single write.
	SaveTokens(pair oauth.TokenPair) error

	// LoadTokens returns the stored token pair if both tokens are present.
	LoadTokens() (*oauth.TokenPair, bool)

	// ClearTokens removes the token pair.
	ClearTokens() error

	// IsAuthenticated reports whether LoadTokens yields a complete pair.
	IsAuthenticated() bool
}

// Info describes the current session for status output. It never contains
// token values.
type Info struct {
	// ID identifies the session in audit logs. A new ID is assigned every
	// time a token pair is saved.
	ID string

	// CreatedAt is when the token pair was saved.
	CreatedAt time.Time

	// ExpiresAt is the access token expiry reported by the token endpoint.
	ExpiresAt time.Time

	// HasRefreshToken reports whether the provider issued a refresh token.
	HasRefreshToken bool

	// LoginInFlight reports whether a code verifier is waiting for a code.
	LoginInFlight bool
}

// document is the persisted form of a session.
type document struct {
	IDToken      string    `json:"idToken,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	CodeVerifier string    `json:"pkce_code_verifier,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
	SessionID    string    `json:"sessionId,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// tokens returns the pair held by the document, or false if it is incomplete.
func (d *document) tokens() (*oauth.TokenPair, bool) {
	pair := &oauth.TokenPair{
		IDToken:      d.IDToken,
		AccessToken:  d.AccessToken,
		TokenType:    d.TokenType,
		RefreshToken: d.RefreshToken,
		ExpiresAt:    d.ExpiresAt,
	}
	if !pair.Valid() {
		return nil, false
	}
	return pair, true
}

// hasTokenFields reports whether any token field is set, complete or not.
func (d *document) hasTokenFields() bool {
	return d.IDToken != "" || d.AccessToken != "" || d.RefreshToken != ""
}

// withTokens returns a copy of d holding pair under a fresh session id.
func (d document) withTokens(pair oauth.TokenPair, sessionID string, now time.Time) document {
	d.IDToken = pair.IDToken
	d.AccessToken = pair.AccessToken
	d.TokenType = pair.TokenType
	d.RefreshToken = pair.RefreshToken
	d.ExpiresAt = pair.ExpiresAt
	d.SessionID = sessionID
	d.CreatedAt = now
	return d
}

// withoutTokens returns a copy of d with every token field removed.
func (d document) withoutTokens() document {
	d.IDToken = ""
	d.AccessToken = ""
	d.TokenType = ""
	d.RefreshToken = ""
	d.ExpiresAt = time.Time{}
	d.SessionID = ""
	d.CreatedAt = time.Time{}
	return d
}

// info returns the display view of the document.
func (d *document) info() Info {
	return Info{
		ID:              d.SessionID,
		CreatedAt:       d.CreatedAt,
		ExpiresAt:       d.ExpiresAt,
		HasRefreshToken: d.RefreshToken != "",
		LoginInFlight:   d.CodeVerifier != "",
	}
}
