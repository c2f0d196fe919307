// Package app собирает зависимости сервиса и управляет жизненным циклом
// HTTP-серверов.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/mealorders/internal/health"
	"github.com/vladislavdragonenkov/mealorders/internal/mealdb"
	"github.com/vladislavdragonenkov/mealorders/internal/metrics"
	"github.com/vladislavdragonenkov/mealorders/internal/service/janitor"
	"github.com/vladislavdragonenkov/mealorders/internal/service/orders"
	"github.com/vladislavdragonenkov/mealorders/internal/service/outbox"
	"github.com/vladislavdragonenkov/mealorders/internal/tracing"
	"github.com/vladislavdragonenkov/mealorders/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/mealorders/internal/version"
	"github.com/vladislavdragonenkov/mealorders/internal/view"
)

const shutdownTimeout = 5 * time.Second

// Run запускает UI-сервер и сервер метрик и блокируется до отмены ctx
// или ошибки UI-сервера.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.WithField("component", "app")

	_, shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "meal-orders",
		Endpoint:    cfg.TracingEndpoint,
		Probability: cfg.TracingProbability,
	}, logger.WithField("layer", "tracing"))
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close session storage")
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()

	lookup := mealdb.NewClient(
		mealdb.WithBaseURL(cfg.MealDBBaseURL),
		mealdb.WithHTTPClient(&http.Client{Timeout: cfg.MealDBTimeout}),
		mealdb.WithMetrics(orderMetrics),
		mealdb.WithLogger(logger.WithField("layer", "mealdb")),
	)

	serviceOptions := []orders.Option{
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger.WithField("layer", "orders")),
	}
	kafkaProducer, err := initKafkaProducer(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
	}
	defer closeKafka(kafkaProducer, logger)
	if kafkaProducer != nil {
		dispatcher := outbox.NewDispatcher(kafkaProducer,
			outbox.WithMetrics(orderMetrics),
			outbox.WithLogger(logger.WithField("layer", "events")),
		)
		dispatcherCtx, stopDispatcher := context.WithCancel(ctx)
		dispatcherDone := make(chan struct{})
		go func() {
			defer close(dispatcherDone)
			dispatcher.Run(dispatcherCtx)
		}()
		// очередь досылается до закрытия producer
		defer func() {
			stopDispatcher()
			<-dispatcherDone
		}()
		serviceOptions = append(serviceOptions, orders.WithPublisher(dispatcher))
	}

	orderService := orders.NewService(deps.storage, lookup, serviceOptions...)

	pages, err := view.NewPageRenderer()
	if err != nil {
		return err
	}
	handler := httpapi.NewHandler(orderService, pages, logger.WithField("layer", "http"), version.GetVersion())

	if deps.evictor != nil {
		sweeper := janitor.New(deps.evictor,
			janitor.WithInterval(cfg.SessionSweepInterval),
			janitor.WithMetrics(orderMetrics),
			janitor.WithLogger(logger.WithField("layer", "janitor")),
		)
		go sweeper.Run(ctx)
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewPingChecker("storage", deps.storage))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
