// Package redis хранит сессионные данные в Redis: каждый ключ сессии живёт
// не дольше ttl и продлевается при каждой записи.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

const (
	// DefaultKeyPrefix — пространство имён ключей сервиса.
	DefaultKeyPrefix = "mealorders"
	// DefaultSessionTTL — время жизни ключей сессии без обращений.
	DefaultSessionTTL = 12 * time.Hour
)

// SessionStorage реализует domain.SessionStorage поверх redis.Client.
type SessionStorage struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewSessionStorage создаёт хранилище сессий. Пустой prefix и ttl <= 0 заменяются значениями по умолчанию.
func NewSessionStorage(client redis.Cmdable, prefix string, ttl time.Duration) *SessionStorage {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStorage{client: client, prefix: prefix, ttl: ttl}
}

// Session возвращает key/value пространство сессии id.
func (s *SessionStorage) Session(id string) domain.KeyValue {
	return &sessionKeyValue{storage: s, id: strings.TrimSpace(id)}
}

// Ping проверяет соединение с Redis.
func (s *SessionStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Key возвращает полное имя ключа Redis для ключа сессии.
func (s *SessionStorage) Key(sessionID, key string) string {
	return s.prefix + ":session:" + sessionID + ":" + key
}

type sessionKeyValue struct {
	storage *SessionStorage
	id      string
}

func (kv *sessionKeyValue) Get(ctx context.Context, key string) (string, bool, error) {
	if kv.id == "" {
		return "", false, domain.ErrSessionRequired
	}

	value, err := kv.storage.client.Get(ctx, kv.storage.Key(kv.id, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (kv *sessionKeyValue) Set(ctx context.Context, key, value string) error {
	if kv.id == "" {
		return domain.ErrSessionRequired
	}

	if err := kv.storage.client.Set(ctx, kv.storage.Key(kv.id, key), value, kv.storage.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (kv *sessionKeyValue) Delete(ctx context.Context, keys ...string) error {
	if kv.id == "" {
		return domain.ErrSessionRequired
	}
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		fullKeys = append(fullKeys, kv.storage.Key(kv.id, key))
	}
	if err := kv.storage.client.Del(ctx, fullKeys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var (
	_ domain.SessionStorage = (*SessionStorage)(nil)
	_ domain.KeyValue       = (*sessionKeyValue)(nil)
)
