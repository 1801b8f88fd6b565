package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"chapterbase/internal/metrics"
	"chapterbase/internal/session"
	"chapterbase/pkg/logging"
	"chapterbase/pkg/oauth"
)

// DefaultTimeout is the request timeout of clients built by NewClient.
const DefaultTimeout = 30 * time.Second

// Authenticator is an http.RoundTripper that attaches the stored access
// token to every request and invalidates the session when the API answers
// 401 Unauthorized.
//
// A 401 clears the token pair and calls the unauthorized hook once per
// invalidated token: any number of concurrent 401s for the same token
// collapse into a single trigger, as do 401s for requests that went out
// after the session was cleared. The response itself is returned
// unchanged, so the caller's request still fails. Other statuses never
// touch the session.
type Authenticator struct {
	base           http.RoundTripper
	store          session.Store
	onUnauthorized func()

	mu              sync.Mutex
	invalidatedOnce bool
	lastInvalidated string
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithBase sets the transport requests are sent with. Defaults to
// http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(a *Authenticator) {
		a.base = base
	}
}

// WithOnUnauthorized sets the hook run after a 401 invalidated the session,
// typically the start of a new login. It runs on the goroutine of the
// failing request.
func WithOnUnauthorized(fn func()) Option {
	return func(a *Authenticator) {
		a.onUnauthorized = fn
	}
}

// NewAuthenticator creates an authenticator over store.
func NewAuthenticator(store session.Store, opts ...Option) *Authenticator {
	a := &Authenticator{
		base:  http.DefaultTransport,
		store: store,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RoundTrip implements http.RoundTripper.
func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	reqCopy := req.Clone(req.Context())

	var attached string
	if pair, ok := a.store.LoadTokens(); ok {
		pair.ToOAuth2Token().SetAuthHeader(reqCopy)
		attached = pair.AccessToken
	}
	metrics.Requests.WithLabelValues(metrics.BearerLabel(attached != "")).Inc()

	resp, err := a.base.RoundTrip(reqCopy)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logging.Debug("Transport", "%s %s returned 401", req.Method, req.URL.Redacted())
		a.handleUnauthorized(attached)
	}
	return resp, nil
}

// handleUnauthorized invalidates the session a 401 was received with.
// token is the access token the failing request carried, "" if none.
func (a *Authenticator) handleUnauthorized(token string) {
	a.mu.Lock()
	// Once a session was invalidated, 401s for that token and for requests
	// sent without one belong to the same invalidation.
	if a.invalidatedOnce && (token == a.lastInvalidated || token == "") {
		a.mu.Unlock()
		return
	}
	a.invalidatedOnce = true
	a.lastInvalidated = token

	// Only the session the request was sent with is cleared. A pair saved
	// after the request left belongs to a newer login.
	if token != "" {
		if current, ok := a.store.LoadTokens(); ok && current.AccessToken == token {
			if err := a.store.ClearTokens(); err != nil {
				logging.Error("Transport", err, "Failed to clear rejected session")
			} else {
				metrics.SessionInvalidations.Inc()
				logging.Audit("session_invalidated", "reason", "api_unauthorized")
			}
		}
	}
	a.mu.Unlock()

	if a.onUnauthorized != nil {
		a.onUnauthorized()
	}
}

// NewClient returns an HTTP client whose requests go through an
// Authenticator over store.
func NewClient(store session.Store, opts ...Option) *http.Client {
	return &http.Client{
		Transport: NewAuthenticator(store, opts...),
		Timeout:   DefaultTimeout,
	}
}

// StatusError is returned by CheckResponse for non-2xx responses other
// than 401.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// CheckResponse turns an unsuccessful API response into an error. A 401
// wraps oauth.ErrAuthorizationFailure; the session has already been
// invalidated by the Authenticator at that point.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	method, target := "", ""
	if resp.Request != nil {
		method = resp.Request.Method
		target = resp.Request.URL.Redacted()
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s %s returned %s", oauth.ErrAuthorizationFailure, method, target, resp.Status)
	}
	return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
}
