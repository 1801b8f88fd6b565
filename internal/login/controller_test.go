package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapterbase/internal/session"
	"chapterbase/pkg/oauth"
)

type fakeExchanger struct {
	mu       sync.Mutex
	calls    int
	code     string
	verifier string
	pair     *oauth.TokenPair
	err      error
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, _ oauth.Endpoints, code, codeVerifier string) (*oauth.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.code = code
	f.verifier = codeVerifier
	return f.pair, f.err
}

func (f *fakeExchanger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testEndpoints() oauth.Endpoints {
	return oauth.Endpoints{
		AuthorizationURL: "https://auth.example.com/login",
		TokenURL:         "https://auth.example.com/oauth2/token",
		ClientID:         "test-client",
		RedirectURI:      "http://localhost:3000",
	}
}

func pageAt(t *testing.T, raw string) *StaticPage {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return NewStaticPage(u, nil)
}

func TestController_ExchangeSuccess(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SaveVerifier("V"))

	exchanger := &fakeExchanger{pair: &oauth.TokenPair{IDToken: "t1", AccessToken: "t2"}}
	c := NewController(store, exchanger, testEndpoints())

	page := pageAt(t, "http://localhost:3000/?code=XYZ")
	result := c.Evaluate(context.Background(), page)

	require.Equal(t, StateAuthenticated, result.State)
	assert.NoError(t, result.Err)

	assert.Equal(t, 1, exchanger.Calls())
	assert.Equal(t, "XYZ", exchanger.code)
	assert.Equal(t, "V", exchanger.verifier)

	pair, ok := store.LoadTokens()
	require.True(t, ok)
	assert.Equal(t, "t1", pair.IDToken)
	assert.Equal(t, "t2", pair.AccessToken)

	_, ok = store.LoadVerifier()
	assert.False(t, ok, "verifier is cleared after a successful exchange")

	require.NotNil(t, page.ReplacedURL())
	assert.Equal(t, "http://localhost:3000/", page.ReplacedURL().String())
	assert.Empty(t, page.NavigatedTo())
}

func TestController_CodeWithoutVerifier(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{pair: &oauth.TokenPair{IDToken: "t1", AccessToken: "t2"}}
	c := NewController(store, exchanger, testEndpoints())

	page := pageAt(t, "http://localhost:3000/?code=XYZ")
	result := c.Evaluate(context.Background(), page)

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, oauth.ErrVerifierMissing)
	assert.Equal(t, 0, exchanger.Calls())
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, page.NavigatedTo())
}

func TestController_CodeWithoutVerifier_NoNetwork(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	ep := testEndpoints()
	ep.TokenURL = server.URL
	c := NewController(session.NewMemoryStore(), oauth.NewClient(oauth.WithHTTPClient(server.Client())), ep)

	result := c.Evaluate(context.Background(), pageAt(t, "http://localhost:3000/?code=XYZ"))
	assert.ErrorIs(t, result.Err, oauth.ErrVerifierMissing)
	assert.Equal(t, int32(0), requests.Load())
}

func TestController_ExistingSessionWinsOverCode(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SaveTokens(oauth.TokenPair{IDToken: "a", AccessToken: "b"}))
	require.NoError(t, store.SaveVerifier("V"))

	exchanger := &fakeExchanger{pair: &oauth.TokenPair{IDToken: "t1", AccessToken: "t2"}}
	c := NewController(store, exchanger, testEndpoints())

	result := c.Evaluate(context.Background(), pageAt(t, "http://localhost:3000/?code=XYZ"))

	assert.Equal(t, StateAuthenticated, result.State)
	assert.Equal(t, 0, exchanger.Calls())

	pair, ok := store.LoadTokens()
	require.True(t, ok)
	assert.Equal(t, "a", pair.IDToken)
	assert.Equal(t, "b", pair.AccessToken)
}

func TestController_FreshLoadRedirects(t *testing.T) {
	store := session.NewMemoryStore()
	exchanger := &fakeExchanger{}
	c := NewController(store, exchanger, testEndpoints())

	page := pageAt(t, "http://localhost:3000/")
	result := c.Evaluate(context.Background(), page)

	require.Equal(t, StateRedirecting, result.State)
	assert.Equal(t, 0, exchanger.Calls())
	assert.Equal(t, result.AuthorizationURL, page.NavigatedTo())

	verifier, ok := store.LoadVerifier()
	require.True(t, ok, "verifier is stored before navigation")

	target, err := url.Parse(page.NavigatedTo())
	require.NoError(t, err)
	challenge, err := oauth.DeriveChallenge(verifier)
	require.NoError(t, err)
	assert.Equal(t, challenge, target.Query().Get("code_challenge"))
	assert.Equal(t, "S256", target.Query().Get("code_challenge_method"))
}

func TestController_ExchangeFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pair *oauth.TokenPair
		want error
	}{
		{name: "http failure", err: &oauth.TokenExchangeError{StatusCode: 400, Code: "invalid_grant"}, want: oauth.ErrTokenExchangeFailed},
		{name: "incomplete response", err: oauth.ErrTokenResponseIncomplete, want: oauth.ErrTokenResponseIncomplete},
		{name: "incomplete pair", pair: &oauth.TokenPair{IDToken: "t1"}, want: oauth.ErrTokenResponseIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewMemoryStore()
			require.NoError(t, store.SaveVerifier("V"))

			exchanger := &fakeExchanger{pair: tt.pair, err: tt.err}
			c := NewController(store, exchanger, testEndpoints())

			page := pageAt(t, "http://localhost:3000/?code=XYZ")
			result := c.Evaluate(context.Background(), page)

			assert.Equal(t, StateFailed, result.State)
			assert.ErrorIs(t, result.Err, tt.want)
			assert.Equal(t, 1, exchanger.Calls())
			assert.False(t, store.IsAuthenticated())

			_, ok := store.LoadVerifier()
			assert.False(t, ok, "verifier is discarded after a failed exchange")
			assert.Nil(t, page.ReplacedURL())

			// reloading the same URL must not exchange the code again
			again := c.Evaluate(context.Background(), pageAt(t, "http://localhost:3000/?code=XYZ"))
			assert.ErrorIs(t, again.Err, oauth.ErrVerifierMissing)
			assert.Equal(t, 1, exchanger.Calls())
		})
	}
}

func TestController_AuthorizationRejected(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SaveVerifier("V"))
	exchanger := &fakeExchanger{}
	c := NewController(store, exchanger, testEndpoints())

	result := c.Evaluate(context.Background(), pageAt(t, "http://localhost:3000/?error=access_denied"))

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, oauth.ErrAuthorizationRejected)
	assert.Equal(t, 0, exchanger.Calls())
	_, ok := store.LoadVerifier()
	assert.False(t, ok)
}

func TestController_RandomnessUnavailable(t *testing.T) {
	store := session.NewMemoryStore()
	c := NewController(store, &fakeExchanger{}, testEndpoints())
	c.redirector.generate = func() (*oauth.PKCEChallenge, error) {
		return nil, errors.Join(oauth.ErrEnvironmentUnsupported, errors.New("no entropy"))
	}

	page := pageAt(t, "http://localhost:3000/")
	result := c.Evaluate(context.Background(), page)

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, oauth.ErrEnvironmentUnsupported)
	assert.Empty(t, page.NavigatedTo())
	_, ok := store.LoadVerifier()
	assert.False(t, ok)
}

func TestController_EndToEndWithTokenEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":     "id-" + r.PostForm.Get("code"),
			"access_token": "access-" + r.PostForm.Get("code"),
		})
	}))
	defer server.Close()

	ep := testEndpoints()
	ep.TokenURL = server.URL
	store := session.NewMemoryStore()
	c := NewController(store, oauth.NewClient(oauth.WithHTTPClient(server.Client())), ep)

	first := c.Evaluate(context.Background(), pageAt(t, "http://localhost:3000/"))
	require.Equal(t, StateRedirecting, first.State)

	second := c.Evaluate(context.Background(), pageAt(t, "http://localhost:3000/?code=abc"))
	require.Equal(t, StateAuthenticated, second.State)

	pair, ok := store.LoadTokens()
	require.True(t, ok)
	assert.Equal(t, "id-abc", pair.IDToken)
	assert.Equal(t, "access-abc", pair.AccessToken)
}

func TestController_Logout(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SaveTokens(oauth.TokenPair{IDToken: "a", AccessToken: "b"}))
	require.NoError(t, store.SaveVerifier("V"))

	c := NewController(store, &fakeExchanger{}, testEndpoints())
	assert.Equal(t, StateAuthenticated, c.State())

	require.NoError(t, c.Logout())
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Equal(t, Snapshot{}, c.Snapshot())

	assert.NoError(t, c.Logout())
}

func TestController_SerializesEvaluations(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SaveVerifier("V"))

	exchanger := &fakeExchanger{pair: &oauth.TokenPair{IDToken: "t1", AccessToken: "t2"}}
	c := NewController(store, exchanger, testEndpoints())

	returnURL, err := url.Parse("http://localhost:3000/?code=XYZ")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Result, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Evaluate(context.Background(), NewStaticPage(returnURL, nil))
		}(i)
	}
	wg.Wait()

	// the first evaluation exchanges, the rest find the session
	assert.Equal(t, 1, exchanger.Calls())
	for _, r := range results {
		assert.Equal(t, StateAuthenticated, r.State)
	}
}
