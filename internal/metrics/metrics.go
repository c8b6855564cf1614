package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shh"

// Login outcomes recorded on LoginsTotal.
const (
	LoginStarted   = "started"
	LoginCompleted = "completed"
	LoginDeclined  = "declined"
	LoginFailed    = "failed"
)

var (
	SecretsCreatedTotal   = newCounter("secrets_created_total", "Total number of secrets created")
	SecretsRetrievedTotal = newCounter("secrets_retrieved_total", "Total number of secrets revealed and destroyed")
	SecretsNotFoundTotal  = newCounter("secrets_not_found_total", "Total number of lookups for absent, expired or consumed secrets")
	SecretsPurgedTotal    = newCounter("secrets_purged_total", "Total number of expired secrets deleted by the sweeper")
	SweeperErrorsTotal    = newCounter("sweeper_errors_total", "Total number of failed expiry sweeps")

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of OIDC login attempts by outcome",
	}, []string{"outcome"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "code"})

	HTTPInflightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_inflight_requests",
		Help:      "Number of HTTP requests currently being served",
	})
)

var (
	once     sync.Once
	registry *prometheus.Registry
)

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// Registry returns the registry holding every collector, registering them on
// first use.
func Registry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			SecretsCreatedTotal,
			SecretsRetrievedTotal,
			SecretsNotFoundTotal,
			SecretsPurgedTotal,
			SweeperErrorsTotal,
			LoginsTotal,
			HTTPRequestsTotal,
			HTTPInflightRequests,
		)
	})
	return registry
}

// Handler exposes the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
