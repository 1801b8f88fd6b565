package login

import (
	"net/url"

	"chapterbase/pkg/oauth"
)

// State is the derived session state of one evaluation. It is never
// persisted; every evaluation recomputes it from the session store and the
// URL the page was loaded with.
type State int

const (
	// StateUnauthenticated means there is no token pair and no code to exchange.
	StateUnauthenticated State = iota

	// StateRedirecting means the page was sent to the authorization endpoint.
	StateRedirecting

	// StateExchangingCode means an authorization code is being exchanged.
	StateExchangingCode

	// StateAuthenticated means a valid token pair is stored.
	StateAuthenticated

	// StateFailed means the login attempt ended with a flow error.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRedirecting:
		return "redirecting"
	case StateExchangingCode:
		return "exchanging_code"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the login attempt is over for this page load,
// either with a session or with an error.
func (s State) IsTerminal() bool {
	return s == StateAuthenticated || s == StateFailed
}

// Snapshot is the part of the session store an evaluation depends on.
type Snapshot struct {
	HasTokens   bool
	HasVerifier bool
}

// Return holds the authorization response parameters found in the page URL.
type Return struct {
	Code             string
	Error            string
	ErrorDescription string
}

// ParseReturn extracts the authorization response parameters from u.
func ParseReturn(u *url.URL) Return {
	if u == nil {
		return Return{}
	}
	q := u.Query()
	return Return{
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// Action is the side effect the controller performs for a decision.
type Action int

const (
	// ActionNone performs nothing.
	ActionNone Action = iota

	// ActionRedirect starts a new login at the authorization endpoint.
	ActionRedirect

	// ActionExchange exchanges the returned code with the stored verifier.
	ActionExchange

	// ActionFail ends the attempt and discards the in-flight verifier.
	ActionFail
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRedirect:
		return "redirect"
	case ActionExchange:
		return "exchange"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	// Next is the state entered before the action runs.
	Next State

	// Action is the side effect to perform.
	Action Action

	// Err is set for ActionFail.
	Err error
}

// Decide is the transition function of the session state machine. It is
// pure: the same snapshot and return always give the same decision.
//
//   - a stored token pair wins over anything in the URL
//   - an error response from the authorization server fails the attempt
//   - a code is only exchanged when a verifier is stored
//   - anything else starts a new login
func Decide(s Snapshot, r Return) Decision {
	switch {
	case s.HasTokens:
		return Decision{Next: StateAuthenticated, Action: ActionNone}

	case r.Error != "":
		return Decision{
			Next:   StateFailed,
			Action: ActionFail,
			Err:    &oauth.AuthorizationRejectedError{Code: r.Error, Description: r.ErrorDescription},
		}

	case r.Code != "" && !s.HasVerifier:
		return Decision{Next: StateFailed, Action: ActionFail, Err: oauth.ErrVerifierMissing}

	case r.Code != "":
		return Decision{Next: StateExchangingCode, Action: ActionExchange}

	default:
		return Decision{Next: StateUnauthenticated, Action: ActionRedirect}
	}
}

// authResponseParams are removed from the visible URL after a successful
// exchange.
var authResponseParams = []string{"code", "state", "session_state"}

// StripAuthResponse returns a copy of u without the authorization response
// query parameters. Other query parameters are kept.
func StripAuthResponse(u *url.URL) *url.URL {
	stripped := *u
	q := stripped.Query()
	for _, p := range authResponseParams {
		q.Del(p)
	}
	stripped.RawQuery = q.Encode()
	stripped.ForceQuery = false
	return &stripped
}
