package login

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"chapterbase/pkg/logging"
	"chapterbase/pkg/oauth"
	pkgstrings "chapterbase/pkg/strings"
)

// CallbackTimeout is how long a login waits for the browser to come back.
const CallbackTimeout = 10 * time.Minute

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Funcs(sprig.HtmlFuncMap()).Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Funcs(sprig.HtmlFuncMap()).Parse(callbackErrorHTML))
)

// CallbackServer is the local HTTP server behind the redirect URI. Every GET
// on the redirect path is a page load: the controller evaluates it and the
// server renders the result. A page load without an authorization response
// is answered with a redirect to the authorization endpoint, so the redirect
// URI itself is a valid login entry point.
type CallbackServer struct {
	controller  *Controller
	redirectURI *url.URL
	server      *http.Server
	listener    net.Listener
	resultCh    chan Result
	errorCh     chan error
	stopOnce    sync.Once
}

// NewCallbackServer creates a callback server for redirectURI. The URI must
// be an absolute http URL; its host and port are where the server listens.
func NewCallbackServer(controller *Controller, redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URI %q: must be an absolute http URL", redirectURI)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return &CallbackServer{
		controller:  controller,
		redirectURI: u,
		resultCh:    make(chan Result, 1),
		errorCh:     make(chan error, 1),
	}, nil
}

// Start begins listening on the redirect URI's host and port. The server
// stops when ctx is cancelled or Stop is called.
func (s *CallbackServer) Start(ctx context.Context) error {
	addr := s.redirectURI.Host
	if s.redirectURI.Port() == "" {
		addr = net.JoinHostPort(s.redirectURI.Hostname(), "80")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("Login", "Callback server listening on %s", listener.Addr())
	return nil
}

// Handler returns the HTTP handler of the callback server.
func (s *CallbackServer) Handler() http.Handler {
	return http.HandlerFunc(s.handlePageLoad)
}

// URL returns the redirect URI the server answers on.
func (s *CallbackServer) URL() string {
	return s.redirectURI.String()
}

// WaitForResult waits for the first page load that ends in Authenticated or
// Failed.
func (s *CallbackServer) WaitForResult(ctx context.Context) (Result, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

func (s *CallbackServer) handlePageLoad(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.redirectURI.Path {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	pageURL := *s.redirectURI
	pageURL.RawQuery = r.URL.RawQuery
	page := NewStaticPage(&pageURL, nil)

	result := s.controller.Evaluate(r.Context(), page)

	switch result.State {
	case StateRedirecting:
		setSecurityHeaders(w, "")
		http.Redirect(w, r, page.NavigatedTo(), http.StatusFound)
		return
	case StateAuthenticated:
		cleanURL := page.ReplacedURL()
		if cleanURL == nil {
			cleanURL = StripAuthResponse(&pageURL)
		}
		s.render(w, http.StatusOK, successTemplate, map[string]interface{}{
			"CleanURL": cleanURL.String(),
		})
	default:
		s.render(w, failureStatus(result.Err), errorTemplate, map[string]interface{}{
			"Reason":      oauth.Reason(result.Err),
			"Description": errorDescription(result.Err),
		})
	}

	if result.State.IsTerminal() {
		select {
		case s.resultCh <- result:
		default:
		}
	}
}

func (s *CallbackServer) render(w http.ResponseWriter, status int, tmpl *template.Template, data map[string]interface{}) {
	nonce, err := scriptNonce()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	data["Nonce"] = nonce

	setSecurityHeaders(w, nonce)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logging.Error("Login", err, "Failed to render callback page")
	}
}

func setSecurityHeaders(w http.ResponseWriter, nonce string) {
	csp := "default-src 'self'; style-src 'unsafe-inline'"
	if nonce != "" {
		csp += "; script-src 'nonce-" + nonce + "'"
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", csp)
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
}

func scriptNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

// failureStatus maps a flow error to the status of the error page.
func failureStatus(err error) int {
	switch {
	case errors.Is(err, oauth.ErrTokenExchangeFailed), errors.Is(err, oauth.ErrTokenResponseIncomplete):
		return http.StatusBadGateway
	case errors.Is(err, oauth.ErrEnvironmentUnsupported):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func errorDescription(err error) string {
	var rejected *oauth.AuthorizationRejectedError
	switch {
	case errors.As(err, &rejected):
		if rejected.Description != "" {
			return pkgstrings.ErrorDescription(rejected.Description)
		}
		return "The authorization server rejected the login request (" + rejected.Code + ")."
	case errors.Is(err, oauth.ErrVerifierMissing):
		return "This login link has no matching login attempt. It may have been opened in another session or used already."
	case errors.Is(err, oauth.ErrTokenExchangeFailed):
		return "The authorization code could not be exchanged for tokens."
	case errors.Is(err, oauth.ErrTokenResponseIncomplete):
		return "The token endpoint returned an incomplete response."
	case errors.Is(err, oauth.ErrEnvironmentUnsupported):
		return "No secure random source is available."
	default:
		return "The login could not be completed."
	}
}
