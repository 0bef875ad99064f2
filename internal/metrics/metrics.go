package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for authentication counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	once sync.Once

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grimoire_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grimoire_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grimoire_auth_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grimoire_auth_token_refresh_total",
		Help: "Refresh token exchanges by outcome.",
	}, []string{"outcome"})

	referenceLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grimoire_reference_lookups_total",
		Help: "Reference API lookups by resource and cache result.",
	}, []string{"resource", "source"})
)

// InitMetrics registers collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(requestsTotal, requestDuration, loginAttempts, tokenRefreshes, referenceLookups)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// ObserveLogin counts a login attempt.
func ObserveLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveRefresh counts a refresh token exchange.
func ObserveRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

// ObserveReferenceLookup counts a reference API lookup served from source
// ("cache" or "upstream").
func ObserveReferenceLookup(resource, source string) {
	referenceLookups.WithLabelValues(resource, source).Inc()
}
