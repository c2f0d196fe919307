package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/service/janitor"
	"github.com/vladislavdragonenkov/mealorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/mealorders/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/mealorders/internal/storage/redis"
)

// runtimeDependencies держит хранилище, выбранное по StorageDriver.
type runtimeDependencies struct {
	storage domain.SessionStorage
	// evictor != nil, если просроченные сессии нужно удалять вручную.
	// Redis справляется сам через TTL ключей.
	evictor janitor.Evictor
	close   func() error
}

// initRuntimeDependencies создаёт сессионное хранилище. Для Redis и PostgreSQL
// соединение проверяется сразу, чтобы не стартовать с недоступным бэкендом.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		storage := memory.NewSessionStorage(cfg.SessionTTL)
		logger.WithField("ttl", cfg.SessionTTL).Info("using in-memory session storage")
		return &runtimeDependencies{
			storage: storage,
			evictor: storage,
			close:   func() error { return nil },
		}, nil

	case StorageDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		storage := redisstore.NewSessionStorage(client, redisstore.DefaultKeyPrefix, cfg.SessionTTL)
		if err := storage.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init redis storage: %w", err)
		}
		logger.WithFields(log.Fields{
			"addr": cfg.RedisAddr,
			"db":   cfg.RedisDB,
			"ttl":  cfg.SessionTTL,
		}).Info("using redis session storage")
		return &runtimeDependencies{
			storage: storage,
			close:   client.Close,
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres storage: %w", err)
			}
		}
		storage := postgres.NewSessionStorage(store, cfg.SessionTTL)
		logger.WithFields(log.Fields{
			"migrate": cfg.PostgresMigrate,
			"ttl":     cfg.SessionTTL,
		}).Info("using postgres session storage")
		return &runtimeDependencies{
			storage: storage,
			evictor: storage,
			close:   store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
