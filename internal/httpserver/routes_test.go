package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/busgateway/internal/config"
	"github.com/chris-alexander-pop/busgateway/internal/proxy"
	"github.com/chris-alexander-pop/busgateway/internal/publisher"
	"github.com/chris-alexander-pop/busgateway/pkg/correlate"
	"github.com/chris-alexander-pop/busgateway/pkg/jsonapi"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging/adapters/memory"
)

func newTestEcho(t *testing.T) (*config.Config, *proxy.Handler) {
	t.Helper()

	broker := memory.New(memory.Config{BufferSize: 4})
	t.Cleanup(func() { broker.Close() })

	producer, err := broker.Producer(publisher.RequestTopic)
	require.NoError(t, err)
	pub := publisher.New(producer)

	correlationBroker := correlate.New()
	go correlationBroker.Run(t.Context())

	handler := proxy.New(pub, correlationBroker, 30*time.Millisecond)

	cfg := &config.Config{
		ListenPort:     8080,
		EnableCORS:     true,
		AllowedOrigins: nil,
		BodyLimitBytes: 1024,
	}
	return cfg, handler
}

func TestHealthCheckReturnsStatusDocument(t *testing.T) {
	cfg, handler := newTestEcho(t)
	e := New(cfg, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statuses", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, jsonapi.ContentType, rec.Header().Get(echo.HeaderContentType))
	require.JSONEq(t, `{"data":{"id":"1","type":"statuses","attributes":{"name":"success"}}}`, rec.Body.String())
}

func TestUnknownRouteReturnsJSONAPI404(t *testing.T) {
	cfg, handler := newTestEcho(t)
	e := New(cfg, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, jsonapi.ContentType, rec.Header().Get(echo.HeaderContentType))
	require.Contains(t, rec.Body.String(), `"code":"404"`)
}

func TestRelayedRouteTimesOutWithoutBackendResponse(t *testing.T) {
	cfg, handler := newTestEcho(t)
	e := New(cfg, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestTimeout, rec.Code)
	require.Equal(t, jsonapi.ContentType, rec.Header().Get(echo.HeaderContentType))
}

func TestBodyLimitHelperDefaultsWhenUnset(t *testing.T) {
	require.Equal(t, "256000", bodyLimit(0))
	require.Equal(t, "1024", bodyLimit(1024))
}

func TestCorsOriginsDefaultsToWildcard(t *testing.T) {
	require.Equal(t, []string{"*"}, corsOrigins(nil))
	require.Equal(t, []string{"https://example.com"}, corsOrigins([]string{"https://example.com"}))
}
