package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chapterbase/internal/metrics"
	"chapterbase/internal/session"
	"chapterbase/pkg/logging"
	"chapterbase/pkg/oauth"
)

// Exchanger trades an authorization code and its verifier for tokens.
// *oauth.Client implements it.
type Exchanger interface {
	ExchangeCode(ctx context.Context, ep oauth.Endpoints, code, codeVerifier string) (*oauth.TokenPair, error)
}

// Result is the outcome of one evaluation.
type Result struct {
	// State is the state the evaluation ended in.
	State State

	// Err is the flow error for StateFailed.
	Err error

	// AuthorizationURL is the URL navigated to for StateRedirecting.
	AuthorizationURL string
}

// Controller runs the session state machine. Each Evaluate call is one page
// load: it reads the session store and the page URL, decides, and performs
// the side effects of the decision.
//
// Evaluations are serialized, so at most one exchange is in flight.
type Controller struct {
	mu         sync.Mutex
	store      session.Store
	exchanger  Exchanger
	endpoints  oauth.Endpoints
	redirector *Redirector
}

// NewController creates a controller over store.
func NewController(store session.Store, exchanger Exchanger, endpoints oauth.Endpoints) *Controller {
	return &Controller{
		store:      store,
		exchanger:  exchanger,
		endpoints:  endpoints,
		redirector: NewRedirector(store, endpoints),
	}
}

// Redirector returns the redirector the controller starts logins with.
func (c *Controller) Redirector() *Redirector {
	return c.redirector
}

// Snapshot reads the part of the session store that drives decisions.
func (c *Controller) Snapshot() Snapshot {
	_, hasTokens := c.store.LoadTokens()
	_, hasVerifier := c.store.LoadVerifier()
	return Snapshot{HasTokens: hasTokens, HasVerifier: hasVerifier}
}

// State returns the state an evaluation without an authorization response
// would start from: Authenticated or Unauthenticated.
func (c *Controller) State() State {
	if c.store.IsAuthenticated() {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Evaluate runs one page load against page.
func (c *Controller) Evaluate(ctx context.Context, page Page) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := ParseReturn(page.URL())
	decision := Decide(c.Snapshot(), ret)
	logging.Debug("Login", "Evaluated page load: state=%s action=%s", decision.Next, decision.Action)

	var result Result
	switch decision.Action {
	case ActionNone:
		result = Result{State: decision.Next}
	case ActionRedirect:
		result = c.redirect(page)
	case ActionExchange:
		result = c.exchange(ctx, page, ret.Code)
	default:
		result = c.fail(decision.Err)
	}

	metrics.Evaluations.WithLabelValues(result.State.String()).Inc()
	return result
}

func (c *Controller) redirect(page Page) Result {
	authURL, err := c.redirector.RedirectToLogin(page)
	if err != nil {
		return c.fail(err)
	}
	return Result{State: StateRedirecting, AuthorizationURL: authURL}
}

func (c *Controller) exchange(ctx context.Context, page Page, code string) Result {
	verifier, ok := c.store.LoadVerifier()
	if !ok {
		return c.fail(oauth.ErrVerifierMissing)
	}

	start := time.Now()
	pair, err := c.exchanger.ExchangeCode(ctx, c.endpoints, code, verifier)
	metrics.TokenExchangeDuration.Observe(time.Since(start).Seconds())

	// The verifier is spent either way; a code is never exchanged twice.
	if clearErr := c.store.ClearVerifier(); clearErr != nil {
		logging.Warn("Login", "Failed to clear code verifier: %v", clearErr)
	}

	if err != nil {
		metrics.TokenExchanges.WithLabelValues(oauth.Reason(err)).Inc()
		return c.fail(err)
	}
	if !pair.Valid() {
		err := fmt.Errorf("%w: exchanger returned an incomplete pair", oauth.ErrTokenResponseIncomplete)
		metrics.TokenExchanges.WithLabelValues(oauth.Reason(err)).Inc()
		return c.fail(err)
	}

	if err := c.store.SaveTokens(*pair); err != nil {
		metrics.TokenExchanges.WithLabelValues(oauth.Reason(err)).Inc()
		return c.fail(fmt.Errorf("failed to store session: %w", err))
	}
	metrics.TokenExchanges.WithLabelValues(metrics.ResultSuccess).Inc()

	page.ReplaceURL(StripAuthResponse(page.URL()))
	logging.Info("Login", "Authorization code exchanged, session established")
	return Result{State: StateAuthenticated}
}

func (c *Controller) fail(err error) Result {
	if clearErr := c.store.ClearVerifier(); clearErr != nil {
		logging.Warn("Login", "Failed to clear code verifier: %v", clearErr)
	}

	if errors.Is(err, oauth.ErrEnvironmentUnsupported) {
		logging.Error("Login", err, "Secure random source unavailable, login cannot start")
	} else {
		logging.Warn("Login", "Login failed (%s): %v", oauth.Reason(err), err)
	}
	return Result{State: StateFailed, Err: err}
}

// resetter is implemented by stores that can drop the whole session in one
// write.
type resetter interface {
	Reset() error
}

// Logout tears the session down: tokens and any in-flight verifier.
func (c *Controller) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.store.(resetter); ok {
		return r.Reset()
	}

	if err := c.store.ClearTokens(); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	if err := c.store.ClearVerifier(); err != nil {
		return fmt.Errorf("failed to clear code verifier: %w", err)
	}
	return nil
}
