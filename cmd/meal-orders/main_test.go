package main

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/app"
)

func TestReadConfigFromEnv_Defaults(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(nil))

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if cfg != app.DefaultConfig() {
		t.Fatalf("expected default config, got %#v", cfg)
	}
}

func TestReadConfigFromEnv_ValidOverrides(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{
		envHTTPAddr:             "localhost:8081",
		envMetricsAddr:          "localhost:9091",
		envMealDBBaseURL:        " http://mealdb.local/api ",
		envMealDBTimeout:        "3s",
		envStorageDriver:        " ReDiS ",
		envRedisAddr:            "redis:6379",
		envRedisPassword:        "secret",
		envRedisDB:              "2",
		envSessionTTL:           "30m",
		envSessionSweepInterval: "1m",
		envKafkaBrokers:         "kafka1:9092,kafka2:9092",
		envKafkaTopic:           "custom.events",
	}))

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if cfg.HTTPAddr != "localhost:8081" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != "localhost:9091" {
		t.Fatalf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.MealDBBaseURL != "http://mealdb.local/api" {
		t.Fatalf("unexpected mealdb url: %s", cfg.MealDBBaseURL)
	}
	if cfg.MealDBTimeout != 3*time.Second {
		t.Fatalf("unexpected mealdb timeout: %s", cfg.MealDBTimeout)
	}
	if cfg.StorageDriver != app.StorageDriverRedis {
		t.Fatalf("unexpected storage driver: %s", cfg.StorageDriver)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisPassword != "secret" || cfg.RedisDB != 2 {
		t.Fatalf("unexpected redis settings: %s %s %d", cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected session ttl: %s", cfg.SessionTTL)
	}
	if cfg.SessionSweepInterval != time.Minute {
		t.Fatalf("unexpected sweep interval: %s", cfg.SessionSweepInterval)
	}
	if cfg.KafkaBrokers != "kafka1:9092,kafka2:9092" || cfg.KafkaTopic != "custom.events" {
		t.Fatalf("unexpected kafka settings: %s %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
}

func TestReadConfigFromEnv_PostgresAndTracing(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{
		envStorageDriver:      "postgres",
		envPostgresDSN:        "postgres://mealorders@db:5432/mealorders",
		envPostgresMigrate:    "false",
		envTracingEndpoint:    "otel-collector:4317",
		envTracingSampleRatio: "0.25",
	}))

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if cfg.StorageDriver != app.StorageDriverPostgres || cfg.PostgresDSN != "postgres://mealorders@db:5432/mealorders" {
		t.Fatalf("unexpected postgres settings: %s %s", cfg.StorageDriver, cfg.PostgresDSN)
	}
	if cfg.PostgresMigrate {
		t.Fatal("expected migrations to be disabled")
	}
	if cfg.TracingEndpoint != "otel-collector:4317" || cfg.TracingProbability != 0.25 {
		t.Fatalf("unexpected tracing settings: %s %v", cfg.TracingEndpoint, cfg.TracingProbability)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config must be valid: %v", err)
	}
}

func TestReadConfigFromEnv_InvalidValuesFallbackToDefaults(t *testing.T) {
	defaultCfg := app.DefaultConfig()
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{
		envMealDBTimeout:        "soon",
		envStorageDriver:        "sqlite",
		envRedisDB:              "-1",
		envSessionTTL:           "-1h",
		envSessionSweepInterval: "0s",
		envPostgresMigrate:      "maybe",
		envTracingSampleRatio:   "2",
	}))

	if len(warnings) != 7 {
		t.Fatalf("expected 7 warnings, got %d: %v", len(warnings), warnings)
	}
	if cfg != defaultCfg {
		t.Fatalf("expected defaults to be kept, got %#v", cfg)
	}
}

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	if err := setupLogger(mapLookup(map[string]string{envLogLevel: " debug "})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	if err := setupLogger(mapLookup(map[string]string{envLogLevel: "loud"})); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level after invalid value, got %s", log.GetLevel())
	}
}

func TestParseInt(t *testing.T) {
	value, err := parseInt(" 12 ", func(v int) bool { return v > 0 }, "must be > 0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 12 {
		t.Fatalf("unexpected value: %d", value)
	}
	if _, err := parseInt("0", func(v int) bool { return v > 0 }, "must be > 0"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestParseDuration(t *testing.T) {
	value, err := parseDuration(" 250ms ", func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 250*time.Millisecond {
		t.Fatalf("unexpected value: %s", value)
	}
	if _, err := parseDuration("-1ms", func(v time.Duration) bool { return v >= 0 }, "must be >= 0"); err == nil {
		t.Fatal("expected validation error")
	}
}

func mapLookup(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
