package login

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapterbase/internal/session"
	"chapterbase/pkg/oauth"
)

func newTestCallbackServer(t *testing.T, store session.Store, exchanger Exchanger) (*CallbackServer, *httptest.Server) {
	t.Helper()
	c := NewController(store, exchanger, testEndpoints())
	cs, err := NewCallbackServer(c, "http://localhost:3000")
	require.NoError(t, err)

	server := httptest.NewServer(cs.Handler())
	t.Cleanup(server.Close)
	return cs, server
}

func noRedirectClient(server *httptest.Server) *http.Client {
	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

func TestCallbackServer_EntryRedirects(t *testing.T) {
	store := session.NewMemoryStore()
	_, server := newTestCallbackServer(t, store, &fakeExchanger{})

	resp, err := noRedirectClient(server).Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "https://auth.example.com/login?")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	_, ok := store.LoadVerifier()
	assert.True(t, ok)
}

func TestCallbackServer_SuccessPage(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SaveVerifier("V"))
	cs, server := newTestCallbackServer(t, store, &fakeExchanger{pair: &oauth.TokenPair{IDToken: "secret-id-token", AccessToken: "secret-access-token"}})

	resp, err := noRedirectClient(server).Get(server.URL + "/?code=XYZ&state=s")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "script-src 'nonce-")
	assert.Contains(t, string(body), "Signed in to chapterbase")
	assert.Contains(t, string(body), "window.history.replaceState(null")
	assert.Contains(t, string(body), "localhost:3000")
	assert.NotContains(t, string(body), "XYZ")
	assert.NotContains(t, string(body), "secret-")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := cs.WaitForResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, result.State)
}

func TestCallbackServer_ErrorPages(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		query    string
		exchange *fakeExchanger
		status   int
		reason   string
	}{
		{
			name:     "missing verifier",
			query:    "?code=XYZ",
			exchange: &fakeExchanger{},
			status:   http.StatusBadRequest,
			reason:   "verifier missing",
		},
		{
			name:     "rejected",
			verifier: "V",
			query:    "?error=access_denied&error_description=User+cancelled",
			exchange: &fakeExchanger{},
			status:   http.StatusBadRequest,
			reason:   "authorization rejected",
		},
		{
			name:     "exchange failed",
			verifier: "V",
			query:    "?code=XYZ",
			exchange: &fakeExchanger{err: &oauth.TokenExchangeError{StatusCode: 400, Code: "invalid_grant"}},
			status:   http.StatusBadGateway,
			reason:   "token exchange failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewMemoryStore()
			if tt.verifier != "" {
				require.NoError(t, store.SaveVerifier(tt.verifier))
			}
			cs, server := newTestCallbackServer(t, store, tt.exchange)

			resp, err := noRedirectClient(server).Get(server.URL + "/" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, string(body), "Sign in failed")
			assert.Contains(t, string(body), tt.reason)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			result, err := cs.WaitForResult(ctx)
			require.NoError(t, err)
			assert.Equal(t, StateFailed, result.State)
		})
	}
}

func TestCallbackServer_RejectedDescriptionShown(t *testing.T) {
	_, server := newTestCallbackServer(t, session.NewMemoryStore(), &fakeExchanger{})

	resp, err := noRedirectClient(server).Get(server.URL + "/?error=access_denied&error_description=User+cancelled")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "User cancelled")
}

func TestCallbackServer_RejectedDescriptionFlattened(t *testing.T) {
	_, server := newTestCallbackServer(t, session.NewMemoryStore(), &fakeExchanger{})

	resp, err := noRedirectClient(server).Get(server.URL + "/?error=access_denied&error_description=Account%0Alocked%0D%0A%0Dby+admin")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Account locked by admin")
}

func TestCallbackServer_OtherPathsAndMethods(t *testing.T) {
	_, server := newTestCallbackServer(t, session.NewMemoryStore(), &fakeExchanger{})

	resp, err := noRedirectClient(server).Get(server.URL + "/favicon.ico")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = noRedirectClient(server).Post(server.URL+"/?code=XYZ", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNewCallbackServer_InvalidRedirectURI(t *testing.T) {
	c := NewController(session.NewMemoryStore(), &fakeExchanger{}, testEndpoints())

	for _, uri := range []string{"", "/callback", "https://localhost:3000", "://bad"} {
		_, err := NewCallbackServer(c, uri)
		assert.Error(t, err, "redirect URI %q", uri)
	}
}

func TestCallbackServer_StartAndStop(t *testing.T) {
	c := NewController(session.NewMemoryStore(), &fakeExchanger{}, testEndpoints())
	cs, err := NewCallbackServer(c, "http://127.0.0.1:0/")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cs.Start(ctx))

	cancel()
	cs.Stop()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer waitCancel()
	_, err = cs.WaitForResult(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
