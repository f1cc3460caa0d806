package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/church-web/sermon-feed-go/internal/metrics"
)

func TestRequestLoggerAndMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	r := gin.New()
	r.Use(RequestLogger(), Metrics(m))
	r.GET("/api/v1/sermons", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/api/v1/sermons", "/api/v1/sermons", "/boom", "/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(m.Registry(), "sermon_feed_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per route and status, unmatched collapsed")
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
