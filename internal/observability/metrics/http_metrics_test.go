package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{ServiceName: "turnos", Environment: "test"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/declarations/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/declarations/9", nil))
	}

	got := testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "/api/declarations/:id", "404"))
	assert.Equal(t, float64(2), got)
}

func TestRecordHandlerCountsFailures(t *testing.T) {
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{})

	m.RecordHandler("turnos:notify", "success", time.Millisecond)
	m.RecordHandler("turnos:notify", "error", time.Millisecond)
	m.RecordTaskDispatch("turnos:notify", "enqueued")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.handlerErrors.WithLabelValues("turnos:notify")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.taskDispatch.WithLabelValues("turnos:notify", "enqueued")))
}
