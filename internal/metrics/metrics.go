package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginRedirects is a counter for navigations to the authorization endpoint.
	LoginRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chapterbase_login_redirects_total",
			Help: "The total number of redirects to the authorization endpoint.",
		},
	)

	// Evaluations is a counter for session evaluations by resulting state.
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapterbase_session_evaluations_total",
			Help: "The total number of session evaluations, by resulting state.",
		},
		[]string{"state"},
	)

	// TokenExchanges is a counter for authorization code exchanges by result.
	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapterbase_token_exchanges_total",
			Help: "The total number of authorization code exchanges, by result.",
		},
		[]string{"result"},
	)

	// TokenExchangeDuration is a histogram of token endpoint round trips.
	TokenExchangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chapterbase_token_exchange_duration_seconds",
			Help:    "A histogram of the token endpoint round trip duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms .. 6.4s
		},
	)

	// SessionInvalidations is a counter for sessions cleared after a 401.
	SessionInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chapterbase_session_invalidations_total",
			Help: "The total number of sessions invalidated by an API 401 response.",
		},
	)

	// Requests is a counter for outbound API requests, by whether a bearer
	// token was attached.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapterbase_requests_total",
			Help: "The total number of outbound API requests.",
		},
		[]string{"bearer"},
	)
)

// ExchangeResult labels for TokenExchanges.
const (
	ResultSuccess = "success"
)

// BearerLabel returns the Requests label value for a request.
func BearerLabel(attached bool) string {
	if attached {
		return "attached"
	}
	return "none"
}
