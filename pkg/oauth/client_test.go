package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoints(tokenURL string) Endpoints {
	return Endpoints{
		AuthorizationURL: "https://auth.example.com/login",
		TokenURL:         tokenURL,
		ClientID:         "test-client",
		RedirectURI:      "http://localhost:3000",
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with defaults", func(t *testing.T) {
		c := NewClient()
		require.NotNil(t, c.httpClient)
		assert.Equal(t, DefaultHTTPTimeout, c.httpClient.Timeout)
		assert.NotNil(t, c.logger)
	})

	t.Run("applies options", func(t *testing.T) {
		customHTTP := &http.Client{Timeout: 10 * time.Second}
		c := NewClient(WithHTTPClient(customHTTP))
		assert.Same(t, customHTTP, c.httpClient)
	})
}

func TestBuildAuthorizationURL(t *testing.T) {
	ep := testEndpoints("https://auth.example.com/oauth2/token")

	raw, err := BuildAuthorizationURL(ep, "challenge-value")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "auth.example.com", u.Host)
	assert.Equal(t, "/login", u.Path)

	q := u.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "email openid phone", q.Get("scope"))
	assert.Equal(t, "http://localhost:3000", q.Get("redirect_uri"))
	assert.Equal(t, "challenge-value", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.False(t, q.Has("state"), "no state parameter is sent")

	// redirect_uri must be URL encoded in the raw query
	assert.Contains(t, u.RawQuery, "redirect_uri=http%3A%2F%2Flocalhost%3A3000")
}

func TestBuildAuthorizationURL_CustomScopes(t *testing.T) {
	ep := testEndpoints("https://auth.example.com/oauth2/token")
	ep.Scopes = []string{"openid", "profile"}

	raw, err := BuildAuthorizationURL(ep, "c")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "openid profile", u.Query().Get("scope"))
}

func TestBuildAuthorizationURL_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		authURL   string
		challenge string
	}{
		{name: "missing challenge", authURL: "https://auth.example.com/login", challenge: ""},
		{name: "relative endpoint", authURL: "/login", challenge: "c"},
		{name: "unparseable endpoint", authURL: "://bad", challenge: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := testEndpoints("https://auth.example.com/oauth2/token")
			ep.AuthorizationURL = tt.authURL
			_, err := BuildAuthorizationURL(ep, tt.challenge)
			assert.Error(t, err)
		})
	}
}

func TestExchangeCode_Success(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-client", r.PostForm.Get("client_id"))
		assert.Equal(t, "http://localhost:3000", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "XYZ", r.PostForm.Get("code"))
		assert.Equal(t, "verifier-V", r.PostForm.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id_token":      "t1",
			"access_token":  "t2",
			"token_type":    "Bearer",
			"refresh_token": "r1",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	c := NewClient(WithHTTPClient(server.Client()))
	pair, err := c.ExchangeCode(context.Background(), testEndpoints(server.URL), "XYZ", "verifier-V")
	require.NoError(t, err)

	assert.Equal(t, "t1", pair.IDToken)
	assert.Equal(t, "t2", pair.AccessToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, "r1", pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.ExpiresAt, 5*time.Second)
	assert.True(t, pair.Valid())
	assert.Equal(t, int32(1), requests.Load())
}

func TestExchangeCode_IncompleteResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing id_token", body: `{"access_token":"t2"}`},
		{name: "missing access_token", body: `{"id_token":"t1"}`},
		{name: "both missing", body: `{"token_type":"Bearer"}`},
		{name: "empty strings", body: `{"id_token":"","access_token":""}`},
		{name: "not json", body: `<html>ok</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(WithHTTPClient(server.Client()))
			pair, err := c.ExchangeCode(context.Background(), testEndpoints(server.URL), "XYZ", "V")
			assert.Nil(t, pair)
			assert.ErrorIs(t, err, ErrTokenResponseIncomplete)
			assert.NotErrorIs(t, err, ErrTokenExchangeFailed)
		})
	}
}

func TestExchangeCode_HTTPFailure(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code already used"}`))
	}))
	defer server.Close()

	c := NewClient(WithHTTPClient(server.Client()))
	pair, err := c.ExchangeCode(context.Background(), testEndpoints(server.URL), "XYZ", "V")
	assert.Nil(t, pair)
	require.ErrorIs(t, err, ErrTokenExchangeFailed)

	var exchangeErr *TokenExchangeError
	require.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, http.StatusBadRequest, exchangeErr.StatusCode)
	assert.Equal(t, "invalid_grant", exchangeErr.Code)
	assert.Equal(t, "code already used", exchangeErr.Description)
	assert.Contains(t, err.Error(), "invalid_grant")

	// never retried
	assert.Equal(t, int32(1), requests.Load())
}

func TestExchangeCode_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokenURL := server.URL
	server.Close()

	c := NewClient()
	_, err := c.ExchangeCode(context.Background(), testEndpoints(tokenURL), "XYZ", "V")
	require.ErrorIs(t, err, ErrTokenExchangeFailed)

	var exchangeErr *TokenExchangeError
	require.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, 0, exchangeErr.StatusCode)
	assert.NotNil(t, exchangeErr.Cause)
}

func TestExchangeCode_RejectsMissingInputs(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	c := NewClient(WithHTTPClient(server.Client()))

	_, err := c.ExchangeCode(context.Background(), testEndpoints(server.URL), "XYZ", "")
	assert.ErrorIs(t, err, ErrVerifierMissing)

	_, err = c.ExchangeCode(context.Background(), testEndpoints(server.URL), "", "V")
	assert.Error(t, err)

	assert.Equal(t, int32(0), requests.Load())
}
