package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status"},
	)

	httpInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
		[]string{"route", "method"},
	)

	regOnce sync.Once
)

// Metrics records per-route request counters, latency histograms and
// an in-flight gauge. The route label is the echo template path, not
// the raw URL, which keeps cardinality bounded. Requests slower than
// slowThreshold additionally get a warning log line.
func Metrics(slowThreshold time.Duration) echo.MiddlewareFunc {
	regOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			httpInFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			status := c.Response().Status
			if err != nil && status < 400 {
				status = 500
			}
			label := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(route, method, label).Inc()
			httpRequestDuration.WithLabelValues(route, method, label).Observe(elapsed.Seconds())
			httpInFlight.WithLabelValues(route, method).Dec()

			if slowThreshold > 0 && elapsed >= slowThreshold {
				log.Warn().
					Str("route", route).
					Str("method", method).
					Int("status", status).
					Dur("latency", elapsed).
					Msg("slow http request")
			}

			return err
		}
	}
}
