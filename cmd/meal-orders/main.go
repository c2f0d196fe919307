package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/app"
	"github.com/vladislavdragonenkov/mealorders/internal/version"
)

const (
	envHTTPAddr             = "HTTP_ADDR"
	envMetricsAddr          = "METRICS_ADDR"
	envMealDBBaseURL        = "MEALDB_BASE_URL"
	envMealDBTimeout        = "MEALDB_TIMEOUT"
	envStorageDriver        = "STORAGE_DRIVER"
	envRedisAddr            = "REDIS_ADDR"
	envRedisPassword        = "REDIS_PASSWORD"
	envRedisDB              = "REDIS_DB"
	envSessionTTL           = "SESSION_TTL"
	envSessionSweepInterval = "SESSION_SWEEP_INTERVAL"
	envKafkaBrokers         = "KAFKA_BROKERS"
	envKafkaTopic           = "KAFKA_TOPIC"
	envPostgresDSN          = "POSTGRES_DSN"
	envPostgresMigrate      = "POSTGRES_MIGRATE"
	envTracingEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envTracingSampleRatio   = "OTEL_TRACES_SAMPLER_ARG"
	envLogLevel             = "LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", envLogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на конфигурацию по умолчанию.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию,
// а в warnings попадает описание проблемы.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = d
	}

	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	setString(envMealDBBaseURL, &cfg.MealDBBaseURL)
	setDuration(envMealDBTimeout, &cfg.MealDBTimeout)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		driver := app.StorageDriver(strings.ToLower(strings.TrimSpace(v)))
		switch driver {
		case app.StorageDriverMemory, app.StorageDriverRedis, app.StorageDriverPostgres:
			cfg.StorageDriver = driver
		default:
			warnings = append(warnings, fmt.Sprintf("%s: unsupported driver %q", envStorageDriver, v))
		}
	}
	setString(envRedisAddr, &cfg.RedisAddr)
	if v, ok := lookup(envRedisPassword); ok {
		cfg.RedisPassword = v
	}
	if v, ok := lookup(envRedisDB); ok && strings.TrimSpace(v) != "" {
		db, err := parseInt(v, func(n int) bool { return n >= 0 }, "must be >= 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envRedisDB, err))
		} else {
			cfg.RedisDB = db
		}
	}

	setString(envPostgresDSN, &cfg.PostgresDSN)
	if v, ok := lookup(envPostgresMigrate); ok && strings.TrimSpace(v) != "" {
		migrate, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPostgresMigrate, err))
		} else {
			cfg.PostgresMigrate = migrate
		}
	}

	setDuration(envSessionTTL, &cfg.SessionTTL)
	setDuration(envSessionSweepInterval, &cfg.SessionSweepInterval)

	setString(envKafkaBrokers, &cfg.KafkaBrokers)
	setString(envKafkaTopic, &cfg.KafkaTopic)

	setString(envTracingEndpoint, &cfg.TracingEndpoint)
	if v, ok := lookup(envTracingSampleRatio); ok && strings.TrimSpace(v) != "" {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("%s: %v", envTracingSampleRatio, err))
		case ratio < 0 || ratio > 1:
			warnings = append(warnings, fmt.Sprintf("%s: %v must be within [0, 1]", envTracingSampleRatio, ratio))
		default:
			cfg.TracingProbability = ratio
		}
	}

	return cfg, warnings
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s %s", value, rule)
	}
	return value, nil
}

func main() {
	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Warn("некорректный уровень логирования, используем info")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn("конфигурация: " + w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields(version.Fields())).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka_enabled":  cfg.KafkaBrokers != "",
		"tracing":        cfg.TracingEndpoint != "",
	}).Info("запускаем meal-orders")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("meal-orders остановлен")
}
