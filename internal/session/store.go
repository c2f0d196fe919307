// Package session хранит заказы одной пользовательской сессии поверх
// key/value хранилища и выдаёт номера заказов.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

const (
	// OrdersKey — ключ коллекции заказов (JSON-массив).
	OrdersKey = "orders"
	// LastOrderNumberKey — ключ high-water mark (целое число строкой).
	LastOrderNumberKey = "lastOrderNumber"
)

// Store — единственный владелец коллекции заказов сессии.
// Остальные компоненты работают с копиями, полученными через ReadAll.
type Store struct {
	kv     domain.KeyValue
	logger *log.Entry
}

// NewStore оборачивает key/value пространство сессии.
func NewStore(kv domain.KeyValue, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.WithField("component", "session-store")
	}
	return &Store{kv: kv, logger: logger}
}

// ReadAll возвращает заказы в порядке вставки. Отсутствующие или повреждённые
// данные читаются как пустая коллекция; ошибкой считается только сбой хранилища.
func (s *Store) ReadAll(ctx context.Context) ([]domain.Order, error) {
	raw, ok, err := s.kv.Get(ctx, OrdersKey)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []domain.Order{}, nil
	}

	var orders []domain.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		s.logger.WithError(err).Warn("stored orders are malformed, treating as empty")
		return []domain.Order{}, nil
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// WriteAll заменяет коллекцию и поднимает high-water mark до максимального
// номера в ней. Метка никогда не уменьшается.
func (s *Store) WriteAll(ctx context.Context, orders []domain.Order) error {
	if orders == nil {
		orders = []domain.Order{}
	}
	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}
	if err := s.kv.Set(ctx, OrdersKey, string(data)); err != nil {
		return fmt.Errorf("write orders: %w", err)
	}

	mark, err := s.HighWaterMark(ctx)
	if err != nil {
		return err
	}
	if last := domain.MaxOrderNumber(orders); last > mark {
		return s.setHighWaterMark(ctx, last)
	}
	return nil
}

// Clear стирает коллекцию и high-water mark, то есть полностью сбрасывает сессию.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, OrdersKey, LastOrderNumberKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// HighWaterMark возвращает последний выданный номер; отсутствие или мусор читаются как 0.
func (s *Store) HighWaterMark(ctx context.Context) (int, error) {
	raw, ok, err := s.kv.Get(ctx, LastOrderNumberKey)
	if err != nil {
		return 0, fmt.Errorf("read last order number: %w", err)
	}
	if !ok {
		return 0, nil
	}

	mark, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || mark < 0 {
		s.logger.WithField("value", raw).Warn("stored last order number is malformed, treating as 0")
		return 0, nil
	}
	return mark, nil
}

func (s *Store) setHighWaterMark(ctx context.Context, mark int) error {
	if err := s.kv.Set(ctx, LastOrderNumberKey, strconv.Itoa(mark)); err != nil {
		return fmt.Errorf("write last order number: %w", err)
	}
	return nil
}
