package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/userdash/pkg/response"
)

func newStatusRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Status(Options{Logger: zap.New(core), QuietRoutes: []string{"/healthz"}})...)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/debug/cache", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(NotFound)
	return r, logs
}

func serve(r http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(rec, req)
	return rec
}

func TestStatusLogsAndTagsRequests(t *testing.T) {
	r, logs := newStatusRouter(t)

	rec := serve(r, "/debug/cache", http.Header{RequestIDHeader: {"req-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "/debug/cache", fields["route"])

	rec = serve(r, "/debug/cache", nil)
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestStatusSkipsQuietRoutes(t *testing.T) {
	r, logs := newStatusRouter(t)

	require.Equal(t, http.StatusOK, serve(r, "/healthz", nil).Code)
	require.Zero(t, logs.FilterMessage("request").Len())
}

func TestStatusRecoversPanics(t *testing.T) {
	r, logs := newStatusRouter(t)

	rec := serve(r, "/panic", http.Header{RequestIDHeader: {"req-panic"}})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal error", response.ErrorMessage(rec.Body.Bytes()))

	panics := logs.FilterMessage("status handler panicked").All()
	require.Len(t, panics, 1)
	require.Equal(t, "req-panic", panics[0].ContextMap()["request_id"])

	access := logs.FilterMessage("request").All()
	require.Len(t, access, 1)
	require.EqualValues(t, http.StatusInternalServerError, access[0].ContextMap()["status"])
}

func TestNotFoundIsMeasuredAsUnmatched(t *testing.T) {
	r, _ := newStatusRouter(t)

	rec := serve(r, "/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "route /missing not found", response.ErrorMessage(rec.Body.Bytes()))

	body := serve(r, "/metrics", nil).Body.String()
	require.Contains(t, body, `userdash_status_latency_seconds_count{method="GET",path="unmatched",status="404"}`)
}
