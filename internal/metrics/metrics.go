package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sleepcash",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepcash",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sleepcash",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	awardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepcash",
			Subsystem: "rewards",
			Name:      "awards_total",
			Help:      "Successful point awards by channel.",
		},
		[]string{"channel"},
	)

	awardedPoints = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sleepcash",
			Subsystem: "rewards",
			Name:      "awarded_points",
			Help:      "Points credited per award.",
			Buckets:   []float64{0, 10, 25, 50, 100, 150, 200},
		},
		[]string{"channel"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepcash",
			Subsystem: "rewards",
			Name:      "rejections_total",
			Help:      "Claims rejected by a reward rule.",
		},
		[]string{"channel", "reason"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		awardsTotal,
		awardedPoints,
		rejectionsTotal,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency labelled by route
// template, so session ids never become label values.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Awards implements service.AwardRecorder on the package collectors.
type Awards struct{}

func (Awards) RecordAward(channel string, points float64) {
	awardsTotal.WithLabelValues(channel).Inc()
	awardedPoints.WithLabelValues(channel).Observe(points)
}

func (Awards) RecordRejection(channel, reason string) {
	rejectionsTotal.WithLabelValues(channel, reason).Inc()
}
