// Package proxy implements the HTTP handler that ties one request to its
// correlated response: build envelope, subscribe, publish, wait, and
// translate the result (or timeout) back into an HTTP response.
package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chris-alexander-pop/busgateway/internal/publisher"
	"github.com/chris-alexander-pop/busgateway/pkg/clientip"
	"github.com/chris-alexander-pop/busgateway/pkg/correlate"
	"github.com/chris-alexander-pop/busgateway/pkg/envelope"
	"github.com/chris-alexander-pop/busgateway/pkg/jsonapi"
	"github.com/chris-alexander-pop/busgateway/pkg/logger"
)

// Handler orchestrates one HTTP request against the message bus.
type Handler struct {
	publisher *publisher.Publisher
	broker    *correlate.Broker
	timeout   time.Duration
}

// New builds a Handler. timeout is the per-request deadline for waiting
// on a correlated response.
func New(pub *publisher.Publisher, broker *correlate.Broker, timeout time.Duration) *Handler {
	return &Handler{publisher: pub, broker: broker, timeout: timeout}
}

// Proxy is the echo.HandlerFunc registered for every route relayed to the
// message bus.
func (h *Handler) Proxy(c echo.Context) error {
	start := time.Now()
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "500", "Internal Server Error", "failed to read request body")
	}

	env := buildEnvelope(c, body)

	// Subscribe before publish: eliminates the race where the response
	// arrives while the subscription is not yet registered. The
	// correlation id is minted here, before either call, so both use the
	// same id.
	correlationID := publisher.NewCorrelationID()
	rx := h.broker.Subscribe(correlationID)
	defer h.broker.Unsubscribe(correlationID)

	if err := h.publisher.Publish(req.Context(), correlationID, env); err != nil {
		logError(req, correlationID, env.Type, start, "500")
		return writeError(c, http.StatusInternalServerError, "500", "Internal Server Error", "failed to publish request")
	}

	status := h.waitForResponse(rx)
	if status == nil {
		logError(req, correlationID, env.Type, start, "408")
		return writeError(c, http.StatusRequestTimeout, "408", "Request timeout", "no response received before the deadline")
	}

	logger.L().InfoContext(req.Context(), "proxied request",
		"correlation_id", correlationID,
		"route", env.Type,
		"method", env.Method,
		"status", status.Code,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return c.Blob(httpStatusFromCode(status.Code), jsonapi.ContentType, status.Data)
}

// waitForResponse races the correlation channel against the handler's
// configured timeout. A nil result means the deadline elapsed first.
func (h *Handler) waitForResponse(rx <-chan correlate.Event) *correlate.Event {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case e, ok := <-rx:
		if !ok {
			return nil
		}
		return &e
	case <-timer.C:
		return nil
	}
}

func logError(req *http.Request, correlationID, route string, start time.Time, code string) {
	logger.L().ErrorContext(req.Context(), "proxy request failed",
		"correlation_id", correlationID,
		"route", route,
		"status", code,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

func buildEnvelope(c echo.Context, body []byte) *envelope.Envelope {
	req := c.Request()

	userValues := make(map[string]string, len(c.ParamNames()))
	for _, name := range c.ParamNames() {
		userValues[name] = c.Param(name)
	}

	query := req.URL.Query()
	args := make(map[string][]byte, len(query))
	for k, values := range query {
		if len(values) > 0 {
			args[k] = []byte(values[0])
		}
	}

	return &envelope.Envelope{
		Type:        routeTemplate(c),
		AccessToken: bearerToken(req.Header.Get(echo.HeaderAuthorization)),
		Method:      req.Method,
		UserValues:  userValues,
		URI: envelope.URI{
			PathOriginal: []byte(req.RequestURI),
			Scheme:       []byte(scheme(req)),
			Path:         []byte(req.URL.Path),
			QueryString:  []byte(req.URL.RawQuery),
			Host:         []byte(req.Host),
			Hash:         []byte{},
			Args:         args,
		},
		Body:     body,
		ClientIP: clientip.Extract(req.Header),
	}
}

// routeTemplate returns the route pattern echo matched (e.g.
// "/api/v1/portfolios/:pid/securities/:sid"), not the literal request path.
func routeTemplate(c echo.Context) string {
	return c.Path()
}

func bearerToken(authHeader string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(authHeader, prefix) {
		return strings.TrimPrefix(authHeader, prefix)
	}
	return ""
}

func scheme(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// writeError renders a JSON:API error document with the JSON:API media
// type; echo's c.JSON always sets application/json instead.
func writeError(c echo.Context, httpStatus int, code, title, detail string) error {
	body, err := json.Marshal(jsonapi.NewErrorDocument(code, title, detail))
	if err != nil {
		return err
	}
	return c.Blob(httpStatus, jsonapi.ContentType, body)
}

// httpStatusFromCode parses the ASCII decimal status code a backend
// worker reported. An unparseable code is treated as a backend fault.
func httpStatusFromCode(code string) int {
	n := 0
	for _, r := range code {
		if r < '0' || r > '9' {
			return http.StatusInternalServerError
		}
		n = n*10 + int(r-'0')
	}
	if n < 100 || n > 599 {
		return http.StatusInternalServerError
	}
	return n
}
