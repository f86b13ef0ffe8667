package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMetricsMiddleware(t *testing.T) {
	httpMetrics, err := registerHttpMetrics(DefaultMetricsConfig)
	require.NoError(t, err)
	httpMetrics.Reset()

	e := echo.New()
	e.Use(Metrics())
	e.GET("/api/v1/offers/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})
	e.GET("/broken", func(c echo.Context) error {
		return errors.New("boom")
	})

	for range 3 {
		serve(e, http.MethodGet, "/api/v1/offers/hat")
	}
	serve(e, http.MethodGet, "/api/v1/offers/cape")
	serve(e, http.MethodGet, "/broken")
	serve(e, http.MethodGet, "/nowhere")
	serve(e, http.MethodPost, "/elsewhere")

	body := serve(e, http.MethodGet, "/metrics").Body.String()
	assert.Contains(t, body, `request_duration_seconds_count{code="200",method="GET",path="/api/v1/offers/:id"} 4`)
	assert.Contains(t, body, `request_duration_seconds_count{code="500",method="GET",path="/broken"} 1`)
	assert.Contains(t, body, `request_duration_seconds_count{code="404",method="GET",path="/not-found"} 1`)
	assert.Contains(t, body, `request_duration_seconds_count{code="404",method="POST",path="/not-found"} 1`)
}

func TestNormalizeHTTPStatus(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]string{101: "1xx", 204: "2xx", 302: "3xx", 409: "4xx", 503: "5xx"} {
		assert.Equal(t, want, normalizeHTTPStatus(status))
	}
}
