package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics exposes Prometheus request and task-queue instruments.
type HTTPMetrics struct {
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	taskDispatch    *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	handlerErrors   *prometheus.CounterVec
}

// NewHTTPMetrics registers the instruments on the default registerer.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

// NewHTTPMetricsForTest registers the instruments on an isolated registerer.
func NewHTTPMetricsForTest(registerer prometheus.Registerer) *HTTPMetrics {
	return newHTTPMetrics(registerer, Config{ServiceName: "turnos-test"})
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := serviceLabels(cfg)

	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turnos_api_requests_total",
		Help:        "Counts API requests by method, route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "turnos_api_duration_seconds",
		Help:        "API request latency per method and route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	taskDispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turnos_task_dispatch_total",
		Help:        "Notification tasks handed to the queue by outcome.",
		ConstLabels: constLabels,
	}, []string{"task", "status"})

	handlerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "turnos_task_handler_duration_seconds",
		Help:        "Notification task handler durations.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"task", "status"})

	handlerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turnos_task_handler_errors_total",
		Help:        "Notification task handler errors.",
		ConstLabels: constLabels,
	}, []string{"task"})

	registerer.MustRegister(apiRequests, apiDuration, taskDispatch, handlerDuration, handlerErrors)

	return &HTTPMetrics{
		apiRequests:     apiRequests,
		apiDuration:     apiDuration,
		taskDispatch:    taskDispatch,
		handlerDuration: handlerDuration,
		handlerErrors:   handlerErrors,
	}
}

// GinMiddleware observes every request once the handler chain completes.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveAPIRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *HTTPMetrics) ObserveAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(strings.ToUpper(method))
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

// RecordTaskDispatch counts a task enqueue attempt.
func (m *HTTPMetrics) RecordTaskDispatch(task, status string) {
	if m == nil {
		return
	}
	m.taskDispatch.WithLabelValues(sanitizeLabel(task), sanitizeLabel(status)).Inc()
}

// RecordHandler observes task handler invocations.
func (m *HTTPMetrics) RecordHandler(task, status string, duration time.Duration) {
	if m == nil {
		return
	}
	taskLabel := sanitizeLabel(task)
	m.handlerDuration.WithLabelValues(taskLabel, sanitizeLabel(status)).Observe(duration.Seconds())
	if status != "success" {
		m.handlerErrors.WithLabelValues(taskLabel).Inc()
	}
}

func serviceLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "turnos"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
