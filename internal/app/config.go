package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/mealorders/internal/mealdb"
	"github.com/vladislavdragonenkov/mealorders/internal/messaging/kafka"
)

// StorageDriver выбирает бэкенд сессионного хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverRedis    StorageDriver = "redis"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	MealDBBaseURL string
	MealDBTimeout time.Duration

	StorageDriver StorageDriver
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN     string
	// PostgresMigrate применяет встроенные миграции при старте.
	PostgresMigrate bool

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	// KafkaBrokers — список брокеров через запятую; если пусто, события не публикуются.
	KafkaBrokers string
	KafkaTopic   string

	// TracingEndpoint — адрес OTLP/gRPC коллектора; если пусто, трейсы не экспортируются.
	TracingEndpoint    string
	TracingProbability float64
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей
// (кроме TheMealDB).
func DefaultConfig() Config {
	return Config{
		HTTPAddr:             ":8080",
		MetricsAddr:          ":9090",
		MealDBBaseURL:        mealdb.DefaultBaseURL,
		MealDBTimeout:        10 * time.Second,
		StorageDriver:        StorageDriverMemory,
		RedisAddr:            "localhost:6379",
		SessionTTL:           12 * time.Hour,
		SessionSweepInterval: 5 * time.Minute,
		PostgresMigrate:      true,
		KafkaTopic:           kafka.TopicOrderEvents,
		TracingProbability:   1,
	}
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if strings.TrimSpace(c.MealDBBaseURL) == "" {
		errs = append(errs, errors.New("mealdb base url is required"))
	}
	if c.MealDBTimeout <= 0 {
		errs = append(errs, fmt.Errorf("mealdb timeout must be > 0, got %s", c.MealDBTimeout))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be > 0, got %s", c.SessionTTL))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session sweep interval must be > 0, got %s", c.SessionSweepInterval))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis addr is required for redis storage"))
		}
		if c.RedisDB < 0 {
			errs = append(errs, fmt.Errorf("redis db must be >= 0, got %d", c.RedisDB))
		}
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.TracingProbability < 0 || c.TracingProbability > 1 {
		errs = append(errs, fmt.Errorf("tracing probability must be within [0, 1], got %v", c.TracingProbability))
	}

	return errors.Join(errs...)
}

// brokerList разбирает KafkaBrokers, отбрасывая пустые элементы.
func (c Config) brokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
