// Command gateway runs the HTTP-to-message-bus gateway: it terminates a
// fixed JSON:API route table, relays every non-health request to the
// message bus as a correlated request/response round trip, and returns
// the backend worker's response verbatim.
package main

import (
	"context"
	"os"
	"sync"

	"github.com/chris-alexander-pop/busgateway/internal/config"
	"github.com/chris-alexander-pop/busgateway/internal/httpserver"
	"github.com/chris-alexander-pop/busgateway/internal/proxy"
	"github.com/chris-alexander-pop/busgateway/internal/publisher"
	"github.com/chris-alexander-pop/busgateway/internal/shutdown"
	"github.com/chris-alexander-pop/busgateway/internal/subscriber"
	"github.com/chris-alexander-pop/busgateway/pkg/correlate"
	"github.com/chris-alexander-pop/busgateway/pkg/logger"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
	amqptransport "github.com/chris-alexander-pop/busgateway/pkg/messaging/adapters/amqp"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging/adapters/memory"
	natstransport "github.com/chris-alexander-pop/busgateway/pkg/messaging/adapters/nats"
	"github.com/chris-alexander-pop/busgateway/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// ConfigError at startup: log + exit, per the gateway's error
		// handling design.
		logger.Init(logger.Config{Level: "ERROR", Format: "JSON"})
		logger.L().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	shutdownTracing, err := telemetry.Init(telemetry.Config{ServiceName: "busgateway"})
	if err != nil {
		logger.L().Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.L().Error("failed to shut down tracing", "error", err)
		}
	}()

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	// Construction order: transport → publisher → correlation broker →
	// subscriber → HTTP server. Teardown runs in reverse via ctx cancellation
	// and the deferred Close calls below.
	broker, err := newTransport(ctx, cfg)
	if err != nil {
		logger.L().Error("failed to connect to message broker", "error", err)
		os.Exit(1)
	}
	instrumented := messaging.NewInstrumentedBroker(broker)
	defer func() {
		if err := instrumented.Close(); err != nil {
			logger.L().Error("failed to close message broker", "error", err)
		}
	}()

	// NATS takes requests on the "http" subject; AMQP and the in-memory
	// broker use the http.requests queue.
	requestTopic := publisher.RequestTopic
	if cfg.Messaging.Driver == "nats" {
		requestTopic = "http"
	}
	requestProducer, err := instrumented.Producer(requestTopic)
	if err != nil {
		logger.L().Error("failed to create request producer", "error", err)
		os.Exit(1)
	}
	pub := publisher.New(requestProducer)

	// wg tracks the broker-owning background goroutines so main can wait
	// for both to actually exit before the deferred broker Close runs: the
	// broker's connection pool must outlive anything still trying to use
	// it.
	var wg sync.WaitGroup

	correlationBroker := correlate.New()
	wg.Add(1)
	go func() {
		defer wg.Done()
		correlationBroker.Run(ctx)
	}()

	sub := subscriber.New(correlationBroker)
	wg.Add(1)
	go func() {
		defer wg.Done()
		subscriber.Supervise(ctx, sub, instrumented)
	}()

	handler := proxy.New(pub, correlationBroker, cfg.RequestTimeout)
	e := httpserver.New(cfg, handler)

	logger.L().Info("gateway starting", "port", cfg.ListenPort, "driver", cfg.Messaging.Driver)

	runErr := httpserver.Run(ctx, e, cfg.ListenPort)

	// The HTTP server has stopped accepting new work. Cancel ctx (already
	// done if a signal ended Run, not yet if Run returned on a listener
	// error) so both goroutines above unwind, and wait for them before the
	// deferred broker Close fires.
	cancel()
	wg.Wait()

	if runErr != nil {
		logger.L().Error("http server exited with error", "error", runErr)
		os.Exit(1)
	}

	logger.L().Info("gateway stopped cleanly")
}

// newTransport constructs the configured message broker driver.
func newTransport(ctx context.Context, cfg *config.Config) (messaging.Broker, error) {
	switch cfg.Messaging.Driver {
	case "amqp":
		return amqptransport.New(ctx, amqptransport.Config{URL: cfg.AMQP.URL})
	case "nats":
		return natstransport.New(ctx, natstransport.Config{Host: cfg.NATS.Host})
	default:
		return memory.New(memory.Config{BufferSize: 128}), nil
	}
}
