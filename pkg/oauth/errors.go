package oauth

import (
	"errors"
	"fmt"
)

// Authentication flow errors. Every one of them is terminal for the
// current login attempt; none of them may be retried with the same
// authorization code or verifier.
var (
	// ErrEnvironmentUnsupported means no secure random source or hash
	// primitive is available.
	ErrEnvironmentUnsupported = errors.New("secure randomness unavailable")

	// ErrVerifierMissing means an authorization code arrived but no code
	// verifier was found in the session store.
	ErrVerifierMissing = errors.New("PKCE code verifier missing")

	// ErrTokenResponseIncomplete means the token endpoint answered with a
	// success status but without both id_token and access_token.
	ErrTokenResponseIncomplete = errors.New("token response incomplete")

	// ErrTokenExchangeFailed means the token endpoint could not be reached
	// or answered with a non-2xx status.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrAuthorizationFailure means a downstream API rejected the bearer
	// token with 401 Unauthorized.
	ErrAuthorizationFailure = errors.New("authorization failure")

	// ErrAuthorizationRejected means the authorization server redirected
	// back with an OAuth error instead of a code.
	ErrAuthorizationRejected = errors.New("authorization rejected")
)

// TokenExchangeError carries the details of a failed token request.
// It matches ErrTokenExchangeFailed with errors.Is.
type TokenExchangeError struct {
	// StatusCode is the HTTP status of the token response, 0 on transport failure.
	StatusCode int

	// Code is the OAuth error code from the response body (if any).
	Code string

	// Description is the OAuth error_description from the response body (if any).
	Description string

	// Cause is the underlying transport or decoding error (if any).
	Cause error
}

// Error implements the error interface.
func (e *TokenExchangeError) Error() string {
	switch {
	case e.Cause != nil && e.StatusCode == 0:
		return fmt.Sprintf("token exchange failed: %v", e.Cause)
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token exchange failed with status %d: %s - %s", e.StatusCode, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Code)
	case e.Cause != nil:
		return fmt.Sprintf("token exchange failed with status %d: %v", e.StatusCode, e.Cause)
	default:
		return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
	}
}

// Is reports whether target is ErrTokenExchangeFailed.
func (e *TokenExchangeError) Is(target error) bool {
	return target == ErrTokenExchangeFailed
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *TokenExchangeError) Unwrap() error {
	return e.Cause
}

// AuthorizationRejectedError is returned when the redirect back from the
// authorization server carries an error instead of a code.
type AuthorizationRejectedError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *AuthorizationRejectedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization rejected: %s - %s", e.Code, e.Description)
	}
	return "authorization rejected: " + e.Code
}

// Is reports whether target is ErrAuthorizationRejected.
func (e *AuthorizationRejectedError) Is(target error) bool {
	return target == ErrAuthorizationRejected
}

// IsFlowError reports whether err belongs to the login flow taxonomy.
// Flow errors end the current attempt; the user has to start a new login.
func IsFlowError(err error) bool {
	return errors.Is(err, ErrEnvironmentUnsupported) ||
		errors.Is(err, ErrVerifierMissing) ||
		errors.Is(err, ErrTokenResponseIncomplete) ||
		errors.Is(err, ErrTokenExchangeFailed) ||
		errors.Is(err, ErrAuthorizationRejected)
}

// Reason returns a short machine-readable name for a flow error,
// suitable for metrics labels and log keys.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrEnvironmentUnsupported):
		return "environment_unsupported"
	case errors.Is(err, ErrVerifierMissing):
		return "verifier_missing"
	case errors.Is(err, ErrTokenResponseIncomplete):
		return "token_response_incomplete"
	case errors.Is(err, ErrTokenExchangeFailed):
		return "token_exchange_failed"
	case errors.Is(err, ErrAuthorizationRejected):
		return "authorization_rejected"
	case errors.Is(err, ErrAuthorizationFailure):
		return "authorization_failure"
	default:
		return "unknown"
	}
}
