package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SubmissionsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcert_submissions_total",
			Help: "Test submissions received, by skill",
		},
		[]string{"skill"},
	)

	EvaluationsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcert_evaluations_saved_total",
			Help: "Evaluation saves, by resulting status",
		},
		[]string{"status"},
	)

	CertificationsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcert_certifications_issued_total",
			Help: "Certifications issued, by skill",
		},
		[]string{"skill"},
	)

	CertificationsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skillcert_certification_expiry_users_total",
			Help: "Users whose certifications were swept to expired",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(SubmissionsReceived)
		prometheus.MustRegister(EvaluationsSaved)
		prometheus.MustRegister(CertificationsIssued)
		prometheus.MustRegister(CertificationsExpired)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
