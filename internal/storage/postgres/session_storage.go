package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

// DefaultSessionTTL — время жизни сессии без записей.
const DefaultSessionTTL = 12 * time.Hour

// SessionStorage хранит значения сессий в таблице session_values.
// Любая запись продлевает всю сессию; просроченные строки невидимы для чтения
// и удаляются через DeleteExpired.
type SessionStorage struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionStorage создаёт хранилище поверх открытого Store (при ttl <= 0 берётся значение по умолчанию).
func NewSessionStorage(store *Store, ttl time.Duration) *SessionStorage {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStorage{
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStorage) Session(id string) domain.KeyValue {
	return &sessionKeyValue{storage: s, id: strings.TrimSpace(id)}
}

func (s *SessionStorage) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DeleteExpired удаляет сессии, последняя запись в которые была не позже before-ttl.
// limit > 0 ограничивает число сессий за вызов. Возвращает количество удалённых сессий.
func (s *SessionStorage) DeleteExpired(before time.Time, limit int) (int, error) {
	if s.store == nil || s.store.db == nil {
		return 0, errNotInitialized
	}
	if before.IsZero() {
		before = s.now()
	}

	var batch any
	if limit > 0 {
		batch = limit
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var removed int
	err := s.store.db.QueryRowContext(ctx, `
		WITH expired AS (
			SELECT session_id
			FROM session_values
			GROUP BY session_id
			HAVING MAX(updated_at) <= $1
			LIMIT $2
		), deleted AS (
			DELETE FROM session_values
			WHERE session_id IN (SELECT session_id FROM expired)
			RETURNING session_id
		)
		SELECT COUNT(DISTINCT session_id) FROM deleted
	`, before.Add(-s.ttl), batch).Scan(&removed)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return removed, nil
}

type sessionKeyValue struct {
	storage *SessionStorage
	id      string
}

func (kv *sessionKeyValue) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := kv.db()
	if err != nil {
		return "", false, err
	}

	var value string
	err = db.QueryRowContext(ctx, `
		SELECT value
		FROM session_values
		WHERE session_id = $1 AND key = $2 AND updated_at > $3
	`, kv.id, key, kv.storage.now().Add(-kv.storage.ttl)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, true, nil
}

// Set записывает значение и продлевает остальные ключи сессии в той же транзакции.
func (kv *sessionKeyValue) Set(ctx context.Context, key, value string) error {
	db, err := kv.db()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres set %s: begin: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := kv.storage.now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_values (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, kv.id, key, value, now); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE session_values SET updated_at = $2
		WHERE session_id = $1 AND updated_at < $2
	`, kv.id, now); err != nil {
		return fmt.Errorf("postgres touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres set %s: commit: %w", key, err)
	}
	return nil
}

func (kv *sessionKeyValue) Delete(ctx context.Context, keys ...string) error {
	db, err := kv.db()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if _, err := db.ExecContext(ctx, `
		DELETE FROM session_values
		WHERE session_id = $1 AND key = ANY($2)
	`, kv.id, keys); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (kv *sessionKeyValue) db() (*sql.DB, error) {
	if kv.id == "" {
		return nil, domain.ErrSessionRequired
	}
	if kv.storage.store == nil || kv.storage.store.db == nil {
		return nil, errNotInitialized
	}
	return kv.storage.store.db, nil
}

var (
	_ domain.SessionStorage = (*SessionStorage)(nil)
	_ domain.KeyValue       = (*sessionKeyValue)(nil)
)
