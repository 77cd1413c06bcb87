package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "walletauth"

// Metrics holds the service counters
type Metrics struct {
	// Login metrics
	LoginsTotal       *prometheus.CounterVec
	ChallengesIssued  prometheus.Counter
	VerificationTotal *prometheus.CounterVec

	// Session metrics
	SessionsIssued  prometheus.Counter
	SessionsRevoked *prometheus.CounterVec

	// Registry metrics
	AddressesLinked    prometheus.Counter
	AddressAuthChanges *prometheus.CounterVec
	SyncRequests       *prometheus.CounterVec

	// Transport metrics
	RequestDuration *prometheus.HistogramVec
}

// New registers the metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),

		ChallengesIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Login challenges issued",
		}),

		VerificationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verify-only signature checks by result",
		}, []string{"result"}),

		SessionsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Bearer sessions issued",
		}),

		SessionsRevoked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked by reason",
		}, []string{"reason"}),

		AddressesLinked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "addresses_linked_total",
			Help:      "Addresses linked to existing accounts",
		}),

		AddressAuthChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_auth_changes_total",
			Help:      "can_auth toggles by direction",
		}, []string{"direction"}),

		SyncRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_requests_total",
			Help:      "Portfolio ingestion requests by kind",
		}, []string{"kind"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
