// Package metrics holds the Prometheus collectors shared by the pipeline
// and the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "productlens"

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	imagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Source images by pipeline outcome",
		},
		[]string{"outcome"},
	)

	imageTiles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_tiles",
			Help:      "Tiles produced per accepted source image",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Model calls by family and outcome",
		},
		[]string{"family", "outcome"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Model call duration in seconds including any text-only retry",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"family"},
	)
)

func HttpRequestsTotal(method, path, code string) {
	httpRequestsTotal.With(prometheus.Labels{
		"method": method,
		"path":   path,
		"code":   code,
	}).Inc()
}

func HttpRequestDuration(method, path string, duration time.Duration) {
	httpRequestDuration.With(prometheus.Labels{
		"method": method,
		"path":   path,
	}).Observe(duration.Seconds())
}

// ImageOutcome counts one source image by outcome (ok, denied, filtered,
// network_error, decode_error, chunk_error).
func ImageOutcome(outcome string) {
	imagesTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func ImageTiles(n int) {
	imageTiles.Observe(float64(n))
}

// Provider request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeTextOnly = "text_only"
	OutcomeBlocked  = "blocked"
	OutcomeFailed   = "failed"
)

// ProviderRequest records one Generate call. outcome is one of OutcomeOK,
// OutcomeTextOnly (succeeded on the text-only retry), OutcomeBlocked or
// OutcomeFailed.
func ProviderRequest(family, outcome string, duration time.Duration) {
	providerRequestsTotal.With(prometheus.Labels{
		"family":  family,
		"outcome": outcome,
	}).Inc()
	providerRequestDuration.With(prometheus.Labels{
		"family": family,
	}).Observe(duration.Seconds())
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		HttpRequestsTotal(r.Method, r.URL.Path, strconv.Itoa(ww.status))
		HttpRequestDuration(r.Method, r.URL.Path, duration)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
