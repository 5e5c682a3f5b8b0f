package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	documentsSignedTotal *prometheus.CounterVec
	verificationsTotal   *prometheus.CounterVec
	revocationsTotal     prometheus.Counter
	keyRotationsTotal    prometheus.Counter
)

// RegisterMetrics inicializa métricas HTTP y de dominio, y devuelve el
// handler para /metrics. Idempotente.
func RegisterMetrics(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Requests HTTP procesadas",
		}, []string{"method", "route", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duración de requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		documentsSignedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_signed_total",
			Help: "Documentos firmados y emitidos",
		}, []string{"doc_type"})

		verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Verificaciones por outcome (valid|invalid|revoked|superseded|error)",
		}, []string{"outcome"})

		revocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revocations_total",
			Help: "Documentos revocados",
		})

		keyRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "key_rotations_total",
			Help: "Rotaciones de clave de institución",
		})

		reg.MustRegister(httpRequestsTotal, httpRequestDuration,
			documentsSignedTotal, verificationsTotal, revocationsTotal, keyRotationsTotal)
	})

	return promhttp.Handler()
}

func observeHTTP(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// routePattern devuelve el patrón chi ("/v1/documents/{documentID}") para
// no explotar la cardinalidad de labels con ids.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func countVerification(outcome string) {
	if verificationsTotal != nil {
		verificationsTotal.WithLabelValues(outcome).Inc()
	}
}

func countSigned(docType string) {
	if documentsSignedTotal != nil {
		documentsSignedTotal.WithLabelValues(docType).Inc()
	}
}

func countRevocation() {
	if revocationsTotal != nil {
		revocationsTotal.Inc()
	}
}

func countKeyRotation() {
	if keyRotationsTotal != nil {
		keyRotationsTotal.Inc()
	}
}
