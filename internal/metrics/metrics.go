// Package metrics defines the Prometheus collectors exported by pantry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Accounts
	UsersRegistered prometheus.Counter
	TokensIssued    prometheus.Counter
	LoginFailures   prometheus.Counter

	// Recipes
	RecipesCreated      prometheus.Counter
	ImagesUploaded      prometheus.Counter
	ImageUploadFailures *prometheus.CounterVec
	ImageUploadBytes    prometheus.Histogram
}

// New creates the collectors under namespace and registers them together
// with the Go runtime and process collectors.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),

		UsersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Users created through registration or the admin tool.",
		}),

		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Auth tokens issued.",
		}),

		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Token requests rejected for bad credentials.",
		}),

		RecipesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipes_created_total",
			Help:      "Recipes created.",
		}),

		ImagesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipe_images_uploaded_total",
			Help:      "Recipe images stored.",
		}),

		ImageUploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipe_image_upload_failures_total",
			Help:      "Rejected or failed recipe image uploads by reason.",
		}, []string{"reason"}),

		ImageUploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipe_image_upload_bytes",
			Help:      "Size of stored recipe images.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.UsersRegistered,
		m.TokensIssued,
		m.LoginFailures,
		m.RecipesCreated,
		m.ImagesUploaded,
		m.ImageUploadFailures,
		m.ImageUploadBytes,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a finished request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Image upload failure reasons.
const (
	ReasonInvalidImage = "invalid_image"
	ReasonTooLarge     = "too_large"
	ReasonStorage      = "storage"
	ReasonNotFound     = "not_found"
)

// RecordImageUpload records a stored image of size bytes.
func (m *Metrics) RecordImageUpload(size int64) {
	m.ImagesUploaded.Inc()
	m.ImageUploadBytes.Observe(float64(size))
}

// RecordImageUploadFailure records a rejected upload.
func (m *Metrics) RecordImageUploadFailure(reason string) {
	m.ImageUploadFailures.WithLabelValues(reason).Inc()
}
