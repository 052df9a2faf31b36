// Package monitor defines the Prometheus collectors exposed by the services when started with the "-m" flag.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptowallet"

// Collectors registered in the default registry.
var (
	PriceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_requests_total",
		Help:      "Price feed answers by source (live, cache, fallback).",
	}, []string{"source"})

	UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_fetches_total",
		Help:      "Upstream market data requests by result.",
	}, []string{"endpoint", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by handler, method and status code.",
	}, []string{"handler", "method", "code"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Websocket clients subscribed to the price stream.",
	})

	Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Simulated transactions by type and status.",
	}, []string{"type", "status"})
)

// Result label values for UpstreamFetches.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Instrument counts requests served by h under the handler label name.
func Instrument(name string, h http.HandlerFunc) http.Handler {
	return promhttp.InstrumentHandlerCounter(HTTPRequests.MustCurryWith(prometheus.Labels{"handler": name}), h)
}

// Upstream records the outcome of an upstream request.
func Upstream(endpoint string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}

	UpstreamFetches.WithLabelValues(endpoint, result).Inc()
}

// Handler returns the metrics exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
