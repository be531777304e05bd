// Package httpserver wires the fixed JSON:API route table to the proxy
// handler and runs the echo HTTP server.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/chris-alexander-pop/busgateway/internal/config"
	"github.com/chris-alexander-pop/busgateway/internal/proxy"
	"github.com/chris-alexander-pop/busgateway/pkg/jsonapi"
)

// New builds the echo instance with every route registered, the fixed
// body-size cap, and CORS if enabled.
func New(cfg *config.Config, handler *proxy.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware("busgateway"))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: bodyLimit(cfg.BodyLimitBytes),
	}))

	if cfg.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: corsOrigins(cfg.AllowedOrigins),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		}))
	}

	e.HTTPErrorHandler = jsonAPIErrorHandler

	registerRoutes(e, handler)
	return e
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func bodyLimit(n int) string {
	if n <= 0 {
		n = 256000
	}
	return itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 12)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// writeJSONAPI marshals doc and writes it with the JSON:API media type,
// since echo's c.JSON always sets application/json instead.
func writeJSONAPI(c echo.Context, status int, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.Blob(status, jsonapi.ContentType, body)
}

func healthCheck(c echo.Context) error {
	return writeJSONAPI(c, http.StatusOK, jsonapi.NewStatusDocument("1", "statuses", "success"))
}

func notFound(c echo.Context) error {
	return writeJSONAPI(c, http.StatusNotFound, jsonapi.NewErrorDocument("404", "Not found", "no route matches "+c.Request().URL.Path))
}

func jsonAPIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		_ = writeJSONAPI(c, http.StatusInternalServerError, jsonapi.NewErrorDocument("500", "Internal Server Error", err.Error()))
		return
	}
	msg, _ := httpErr.Message.(string)
	if msg == "" {
		msg = http.StatusText(httpErr.Code)
	}
	if httpErr.Code == http.StatusNotFound {
		notFound(c)
		return
	}
	_ = writeJSONAPI(c, httpErr.Code, jsonapi.NewErrorDocument(itoa(httpErr.Code), http.StatusText(httpErr.Code), msg))
}

// registerRoutes wires the full fixed REST surface the gateway fronts.
// Every route but the health check is relayed to the message bus
// verbatim; the proxy handler doesn't know or care what each route means.
func registerRoutes(e *echo.Echo, h *proxy.Handler) {
	v1 := e.Group("/api/v1")

	v1.GET("/statuses", healthCheck)

	v1.POST("/users", h.Proxy)
	v1.GET("/users/:uid", h.Proxy)
	v1.GET("/users/:uid/news", h.Proxy)
	v1.GET("/users/:uid/earnings", h.Proxy)
	v1.GET("/users/:uid/dividends", h.Proxy)
	v1.GET("/users/:uid/day-prices", h.Proxy)
	v1.GET("/users/:uid/day-price-periods", h.Proxy)
	v1.GET("/users/:uid/view-history", h.Proxy)

	v1.POST("/refresh-tokens", h.Proxy)
	v1.DELETE("/refresh-tokens/:refresh-token", h.Proxy)

	v1.POST("/sessions", h.Proxy)

	v1.GET("/confirmation-codes", h.Proxy)
	v1.POST("/confirmation-codes/:id", h.Proxy)

	v1.POST("/password-confirmation-codes", h.Proxy)
	v1.POST("/password-confirmation-codes/:id", h.Proxy)

	v1.GET("/plans", h.Proxy)

	v1.GET("/portfolios", h.Proxy)
	v1.POST("/portfolios", h.Proxy)
	v1.GET("/portfolios/:pid", h.Proxy)
	v1.PATCH("/portfolios/:pid", h.Proxy)
	v1.DELETE("/portfolios/:pid", h.Proxy)
	v1.POST("/portfolios/:pid/relationships/securities", h.Proxy)
	v1.DELETE("/portfolios/:pid/relationships/securities", h.Proxy)
	v1.GET("/portfolios/:pid/securities/:sid/transactions", h.Proxy)
	v1.POST("/portfolios/:pid/securities/:sid/transactions", h.Proxy)
	v1.GET("/portfolios/:pid/securities/:sid/transactions/:tid", h.Proxy)
	v1.PATCH("/portfolios/:pid/securities/:sid/transactions/:tid", h.Proxy)
	v1.DELETE("/portfolios/:pid/securities/:sid/transactions/:tid", h.Proxy)
	v1.GET("/portfolios/:pid/securities", h.Proxy)
	v1.GET("/portfolios/:pid/news", h.Proxy)
	v1.GET("/portfolios/:pid/earnings", h.Proxy)
	v1.GET("/portfolios/:pid/dividends", h.Proxy)
	v1.GET("/portfolios/:pid/day-prices", h.Proxy)
	v1.GET("/portfolios/:pid/day-price-periods", h.Proxy)

	v1.GET("/securities", h.Proxy)
	v1.GET("/securities/:sid", h.Proxy)
	v1.GET("/securities/:sid/news", h.Proxy)
	v1.GET("/securities/:sid/day-prices", h.Proxy)
	v1.GET("/securities/:sid/day-price-periods", h.Proxy)
	v1.GET("/securities/:sid/quarterly-balance-sheet", h.Proxy)
	v1.GET("/securities/:sid/annual-balance-sheet", h.Proxy)
	v1.GET("/securities/:sid/quarterly-income-statements", h.Proxy)
	v1.GET("/securities/:sid/annual-income-statements", h.Proxy)

	v1.GET("/countries", h.Proxy)
	v1.GET("/currencies", h.Proxy)
	v1.GET("/sectors", h.Proxy)
	v1.GET("/industries", h.Proxy)
	v1.GET("/exchanges", h.Proxy)

	e.Any("/*", notFound)
}
