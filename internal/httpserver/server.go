package httpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chris-alexander-pop/busgateway/pkg/logger"
)

// Run starts e and blocks until ctx is canceled, then drains in-flight
// requests (bounded by the per-request timeout, since each handler can
// wait at most that long on its correlated response) before returning.
func Run(ctx context.Context, e *echo.Echo, port int) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("http server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
