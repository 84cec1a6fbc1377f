package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	appinv "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/rabbitmq"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	grpcpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/grpc"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, baseLogger); err != nil {
		systemLogger.Error("service_failed", zap.Error(err))
		os.Exit(1)
	}
	systemLogger.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	metrics := prometrics.New(prometheus.DefaultRegisterer, "")
	if err := metrics.Register(observability.CounterSpecs, observability.HistogramSpecs); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	logger := zaplogger.New(baseLogger)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, metrics)

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	if cfg.SeedCatalog {
		if err := be.seed(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info("catalog_seeded", observability.F("driver", cfg.StoreDriver))
	}

	guard, closeGuard, err := openGuard(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGuard()

	bus := outbox.NewBus(logger, outbox.Options{})
	closeRelay, err := startRelay(ctx, cfg, bus, tel)
	if err != nil {
		return err
	}
	defer closeRelay()
	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = bus.Stop(stopCtx)
	}()

	ids := id.UUIDGenerator{}
	ledger := appinv.LedgerConfig{
		MaxAttempts: cfg.ReserveMaxAttempts,
		Retries:     metrics.Counter(observability.MStockReserveRetries),
	}
	handler := httppresentation.NewHandler(httppresentation.Services{
		Cart: appcart.NewService(be.uow, ids, ledger, tel),
		Checkout: checkout.New(checkout.Deps{
			UnitOfWork: be.uow,
			Catalog:    be.catalog,
			IDs:        ids,
			Guard:      guard,
			Publisher:  bus,
			Ledger:     ledger,
		}, tel),
		Cancel: apporder.NewCancelOrderUseCase(be.uow, bus, ledger, tel),
		Orders: apporder.NewQueries(be.uow, tel),
	}, tel, httppresentation.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        promhttp.Handler(),
		Ready:          be.ping,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcServer := grpcpresentation.NewServer(be.ping, 5*time.Second, tel)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		return grpcServer.Serve(gctx, lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http_server_shutdown_error", observability.F("error", err))
			return err
		}
		logger.Info("http_server_stopped")
		return nil
	})
	return g.Wait()
}

// startRelay forwards bus events to RabbitMQ when RABBITMQ_URL is set.
func startRelay(ctx context.Context, cfg *config.Config, bus *outbox.Bus, tel observability.Observability) (func(), error) {
	if cfg.RabbitURL == "" {
		return func() {}, nil
	}
	conn, ch, err := rabbitmq.SetupConn(ctx, rabbitmq.Config{URL: cfg.RabbitURL, Exchange: cfg.RabbitExchange}, tel.Logger())
	if err != nil {
		return nil, err
	}
	workerpresentation.NewRelay(rabbitmq.NewPublisher(ch, cfg.RabbitExchange), tel).Register(bus)
	tel.Logger().Info("event_relay_started", observability.F("exchange", cfg.RabbitExchange))
	return func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}
