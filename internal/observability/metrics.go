// Package observability exposes Prometheus metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics exposed on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lookupsTotal    *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	tokenFetches    *prometheus.CounterVec
	toggles         *prometheus.CounterVec
	logins          *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneder_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tuneder_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneder_artist_lookups_total",
		Help: "Artist metadata lookups by outcome.",
	}, []string{"outcome"})
	lookupDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tuneder_artist_lookup_duration_seconds",
		Help:    "Latency of artist metadata lookups.",
		Buckets: prometheus.DefBuckets,
	})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneder_token_fetches_total",
		Help: "Bearer token requests by outcome.",
	}, []string{"outcome"})
	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneder_favorite_toggles_total",
		Help: "Favorite toggles by resulting action.",
	}, []string{"action"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneder_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, lookups, lookupDuration, tokens, toggles, logins)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		lookupsTotal:    lookups,
		lookupDuration:  lookupDuration,
		tokenFetches:    tokens,
		toggles:         toggles,
		logins:          logins,
	}
}

// RecordArtistLookup counts one artist lookup.
func (m *Metrics) RecordArtistLookup(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(outcome).Inc()
	m.lookupDuration.Observe(elapsed.Seconds())
}

// RecordTokenFetch counts one bearer token request.
func (m *Metrics) RecordTokenFetch(outcome string) {
	if m == nil {
		return
	}
	m.tokenFetches.WithLabelValues(outcome).Inc()
}

// RecordFavoriteToggle counts a toggle; action is "added" or "removed".
func (m *Metrics) RecordFavoriteToggle(action string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(action).Inc()
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
