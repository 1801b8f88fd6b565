package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chapterbase/internal/session"
	"chapterbase/pkg/logging"
)

// Proxy forwards requests to the API through an Authenticator, so a front
// end that knows nothing about tokens can call the API through it.
type Proxy struct {
	target *url.URL
	store  session.Store
	proxy  *httputil.ReverseProxy
}

// NewProxy creates a proxy to the API at target. Requests are sent with
// auth as transport.
func NewProxy(target string, store session.Store, auth *Authenticator) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: must be absolute", target)
	}

	rp := httputil.NewSingleHostReverseProxy(u)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		// Credentials come from the session, never from the caller.
		req.Header.Del("Authorization")
		req.Host = u.Host
	}
	rp.Transport = auth
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.Error("Proxy", err, "Upstream request %s %s failed", r.Method, r.URL.Path)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return &Proxy{target: u, store: store, proxy: rp}, nil
}

// Target returns the API base URL.
func (p *Proxy) Target() *url.URL {
	return p.target
}

// Handler returns the proxy's HTTP handler. Besides the proxied API it
// serves /metrics and /healthz.
func (p *Proxy) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", p.handleHealth)
	mux.Handle("/", p.proxy)
	return mux
}

type healthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	Upstream      string `json:"upstream"`
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:        "ok",
		Authenticated: p.store.IsAuthenticated(),
		Upstream:      p.target.String(),
	})
}
