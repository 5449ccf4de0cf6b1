package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/shopbridge/order-service/internal/config"
	"github.com/shopbridge/order-service/internal/customer"
	"github.com/shopbridge/order-service/internal/db"
	"github.com/shopbridge/order-service/internal/events"
	"github.com/shopbridge/order-service/internal/handler"
	"github.com/shopbridge/order-service/internal/order"
	"github.com/shopbridge/order-service/internal/telemetry"
	"github.com/shopbridge/order-service/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to ./config.yaml when present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg)
	log.Info().Msg("Order service starting...")

	// money travels as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Order service stopped with error")
	}
	log.Info().Msg("Order service stopped gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(cfg.DB); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.DB.Driver).Msg("Database migrations applied")
	}

	conn, err := db.New(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	shutdownTracing, err := telemetry.InitTracing(cfg.Tracing)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer publisher.Close()

	orderService := order.NewService(order.NewRepository(conn), order.WithPublisher(publisher))
	customerService := customer.NewService(customer.NewRepository(conn))

	router := transport.NewRouter(cfg, telemetry.NewServerMetrics("order_service"), transport.Routes{
		Orders:    handler.NewOrderHandler(orderService),
		Customers: handler.NewCustomerHandler(customerService, orderService),
	})
	server := transport.NewServer(cfg.App, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return shutdownTracing(shutdownCtx)
	})

	return g.Wait()
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return nil, err
	}
	log.Info().Str("queue", cfg.Queue).Msg("Publishing order events to AMQP")
	return p, nil
}
