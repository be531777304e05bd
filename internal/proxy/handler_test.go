package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/busgateway/internal/publisher"
	"github.com/chris-alexander-pop/busgateway/pkg/correlate"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging/adapters/memory"
)

// newTestHandler wires a Handler against an in-process broker and starts a
// fake backend worker that echoes back whatever correlation id it sees on
// the request topic, simulating the real request/response round trip.
func newTestHandler(t *testing.T, timeout time.Duration, respond func(id string) (code string, body []byte)) *Handler {
	t.Helper()

	broker := memory.New(memory.Config{BufferSize: 8})
	t.Cleanup(func() { broker.Close() })

	requestConsumer, err := broker.Consumer(publisher.RequestTopic, "")
	require.NoError(t, err)
	t.Cleanup(func() { requestConsumer.Close() })

	requestProducer, err := broker.Producer(publisher.RequestTopic)
	require.NoError(t, err)
	pub := publisher.New(requestProducer)

	correlationBroker := correlate.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go correlationBroker.Run(ctx)

	// Stands in for the subscriber+backend-worker round trip: delivers
	// straight into the correlation broker under the id it observed on
	// the request topic, skipping the response-topic hop that
	// internal/subscriber owns and already has its own tests for.
	go func() {
		_ = requestConsumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
			code, body := respond(msg.ID)
			if code == "" {
				return nil
			}
			correlationBroker.Publish(correlate.Event{ID: msg.ID, Code: code, Data: body})
			return nil
		})
	}()

	return New(pub, correlationBroker, timeout)
}

func TestProxyRelaysBackendResponse(t *testing.T) {
	h := newTestHandler(t, time.Second, func(id string) (string, []byte) {
		return "201", []byte(`{"data":{"id":"1"}}`)
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"name":"alice"}`))
	req.Header.Set(echo.HeaderAuthorization, "Bearer secret-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/users")

	require.NoError(t, h.Proxy(c))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/vnd.api+json", rec.Header().Get(echo.HeaderContentType))
	require.JSONEq(t, `{"data":{"id":"1"}}`, rec.Body.String())
}

func TestProxyReturns408WhenNoResponseArrives(t *testing.T) {
	h := newTestHandler(t, 30*time.Millisecond, func(id string) (string, []byte) {
		return "", nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/plans")

	require.NoError(t, h.Proxy(c))
	require.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestBuildEnvelopeCapturesRouteParamsAndQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolios/42/securities?include=prices", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/portfolios/:pid/securities")
	c.SetParamNames("pid")
	c.SetParamValues("42")

	env := buildEnvelope(c, []byte("body"))

	require.Equal(t, "/api/v1/portfolios/:pid/securities", env.Type)
	require.Equal(t, "abc", env.AccessToken)
	require.Equal(t, "42", env.UserValues["pid"])
	require.Equal(t, []byte("prices"), env.URI.Args["include"])
	require.Equal(t, "http", string(env.URI.Scheme))
	require.Equal(t, []byte("body"), env.Body)
}

func TestBearerTokenStripsPrefix(t *testing.T) {
	require.Equal(t, "abc123", bearerToken("Bearer abc123"))
	require.Equal(t, "", bearerToken("Basic abc123"))
	require.Equal(t, "", bearerToken(""))
}

func TestHTTPStatusFromCode(t *testing.T) {
	require.Equal(t, 200, httpStatusFromCode("200"))
	require.Equal(t, 404, httpStatusFromCode("404"))
	require.Equal(t, http.StatusInternalServerError, httpStatusFromCode("not-a-code"))
	require.Equal(t, http.StatusInternalServerError, httpStatusFromCode("999"))
}
