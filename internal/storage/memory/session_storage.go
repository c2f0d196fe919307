package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

// DefaultSessionTTL — время жизни неактивной сессии по умолчанию.
const DefaultSessionTTL = 12 * time.Hour

type sessionBucket struct {
	values    map[string]string
	touchedAt time.Time
}

// SessionStorage — in-memory реализация SessionStorage для локального запуска и тестов.
// Сессия живёт, пока к ней обращаются чаще, чем раз в ttl.
type SessionStorage struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*sessionBucket
}

// NewSessionStorage создаёт хранилище сессий с заданным ttl (при ttl <= 0 берётся значение по умолчанию).
func NewSessionStorage(ttl time.Duration) *SessionStorage {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStorage{
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*sessionBucket),
	}
}

// Session возвращает key/value пространство сессии id.
func (s *SessionStorage) Session(id string) domain.KeyValue {
	return &sessionKeyValue{storage: s, id: strings.TrimSpace(id)}
}

// Ping всегда успешен: память доступна, пока жив процесс.
func (s *SessionStorage) Ping(context.Context) error {
	return nil
}

// Len возвращает количество живых сессий.
func (s *SessionStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// DeleteExpired удаляет сессии, к которым не обращались с момента before-ttl.
// limit > 0 ограничивает количество удалений за вызов.
func (s *SessionStorage) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, bucket := range s.sessions {
		if !s.expired(bucket, before) {
			continue
		}

		delete(s.sessions, id)
		removed++
		if limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

func (s *SessionStorage) expired(bucket *sessionBucket, at time.Time) bool {
	return !bucket.touchedAt.Add(s.ttl).After(at)
}

// bucket возвращает живую сессию, продлевая её. create=true создаёт отсутствующую.
// Вызывается под s.mu.
func (s *SessionStorage) bucket(id string, create bool) *sessionBucket {
	now := s.now()
	b, ok := s.sessions[id]
	if ok && s.expired(b, now) {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		b = &sessionBucket{values: make(map[string]string)}
		s.sessions[id] = b
	}
	b.touchedAt = now
	return b
}

type sessionKeyValue struct {
	storage *SessionStorage
	id      string
}

func (kv *sessionKeyValue) Get(ctx context.Context, key string) (string, bool, error) {
	if err := kv.check(ctx); err != nil {
		return "", false, err
	}

	kv.storage.mu.Lock()
	defer kv.storage.mu.Unlock()

	b := kv.storage.bucket(kv.id, false)
	if b == nil {
		return "", false, nil
	}
	value, ok := b.values[key]
	return value, ok, nil
}

func (kv *sessionKeyValue) Set(ctx context.Context, key, value string) error {
	if err := kv.check(ctx); err != nil {
		return err
	}

	kv.storage.mu.Lock()
	defer kv.storage.mu.Unlock()

	kv.storage.bucket(kv.id, true).values[key] = value
	return nil
}

func (kv *sessionKeyValue) Delete(ctx context.Context, keys ...string) error {
	if err := kv.check(ctx); err != nil {
		return err
	}

	kv.storage.mu.Lock()
	defer kv.storage.mu.Unlock()

	b := kv.storage.bucket(kv.id, false)
	if b == nil {
		return nil
	}
	for _, key := range keys {
		delete(b.values, key)
	}
	if len(b.values) == 0 {
		delete(kv.storage.sessions, kv.id)
	}
	return nil
}

func (kv *sessionKeyValue) check(ctx context.Context) error {
	if kv.id == "" {
		return domain.ErrSessionRequired
	}
	return ctx.Err()
}

var (
	_ domain.SessionStorage = (*SessionStorage)(nil)
	_ domain.KeyValue       = (*sessionKeyValue)(nil)
)
