package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ledgerbook/identity/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Magic link lifecycle

	MagicLinkRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "magic_link_requests_total",
		Help:      "Magic link issuance attempts, by outcome.",
	}, []string{"outcome"})

	MagicLinkRedemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "magic_link_redemptions_total",
		Help:      "Magic link redemption attempts, by result.",
	}, []string{"result"})

	TokensActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "identity",
		Name:      "magic_link_tokens_active",
		Help:      "Unused tokens still inside their validity window.",
	})

	TokensExpiredUnused = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "identity",
		Name:      "magic_link_tokens_expired_unused",
		Help:      "Tokens that expired without ever being redeemed.",
	})

	// Guest import

	GuestImportBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "guest_import_batches_total",
		Help:      "Imported guest transaction batches, by outcome.",
	}, []string{"outcome"})

	GuestImportTransactions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "guest_import_transactions_total",
		Help:      "Guest transactions successfully imported.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "identity",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		MagicLinkRequests,
		MagicLinkRedemptions,
		TokensActive,
		TokensExpiredUnused,
		GuestImportBatches,
		GuestImportTransactions,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves Prometheus metrics plus liveness/readiness probes on
// the internal port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, status, result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, status int, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
