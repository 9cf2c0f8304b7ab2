package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Counters — счётчики домена; регистрируются в переданном регистре.
type Counters struct {
	BroadcastDelivered prometheus.Counter
	BroadcastDropped   prometheus.Counter
	RateLimitExceeded  prometheus.Counter
	DriverReports      *prometheus.CounterVec
}

func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		BroadcastDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadcast_delivered_total",
			Help: "Events queued to live subscribers",
		}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Events dropped because a subscriber buffer was full or closed",
		}),
		RateLimitExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_exceeded_total",
			Help: "Total number of rejected HTTP requests due to rate limiting",
		}),
		DriverReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driver_reports_total",
			Help: "Driver reports consumed from Kafka by result",
		}, []string{"result"}),
	}
	reg.MustRegister(c.BroadcastDelivered, c.BroadcastDropped, c.RateLimitExceeded, c.DriverReports)
	return c
}

// Observability пишет метрики и лог по каждому запросу.
func Observability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := pathPattern(r) // шаблон маршрута, а не сырой путь: иначе взорвём кардинальность
		tm := time.Since(start)
		status := strconv.Itoa(ww.Status())

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(tm.Seconds())

		slog.Info("http request",
			"method", r.Method,
			"path", path,
			"status", ww.Status(),
			"duration", tm,
		)
	})
}

func pathPattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
