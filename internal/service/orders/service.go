// Package orders создаёт и завершает заказы поверх хранилища сессии и
// сервиса поиска блюд.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/mealdb"
	"github.com/vladislavdragonenkov/mealorders/internal/metrics"
	"github.com/vladislavdragonenkov/mealorders/internal/session"
)

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Selector  domain.Selector
	Publisher domain.EventPublisher
	Metrics   *metrics.OrderMetrics
	Logger    *log.Entry
}

// Option настраивает Service.
type Option func(*Options)

// WithSelector задаёт стратегию выбора блюда из кандидатов.
func WithSelector(selector domain.Selector) Option {
	return func(opts *Options) {
		opts.Selector = selector
	}
}

// WithPublisher задаёт публикатор событий заказов.
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(opts *Options) {
		opts.Publisher = publisher
	}
}

// WithMetrics задаёт метрики сервиса.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Service оркестрирует создание, завершение и очистку заказов сессии.
type Service struct {
	storage   domain.SessionStorage
	lookup    domain.MealLookup
	selector  domain.Selector
	publisher domain.EventPublisher
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	guards    *sessionGuards
}

// NewService конструирует сервис с зависимостями.
func NewService(storage domain.SessionStorage, lookup domain.MealLookup, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	if opts.Selector == nil {
		opts.Selector = mealdb.RandomSelector{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "order-service")
	}

	return &Service{
		storage:   storage,
		lookup:    lookup,
		selector:  opts.Selector,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		guards:    newSessionGuards(),
	}
}

// Store возвращает хранилище заказов сессии. Каждый вызов отдаёт новый
// дескриптор поверх одного и того же key/value пространства.
func (s *Service) Store(sessionID string) *session.Store {
	return session.NewStore(s.storage.Session(sessionID), s.logger.WithField("session_id", sessionID))
}

// CreateOrder ищет блюдо по ингредиенту и записывает его как новый незавершённый заказ.
//
// Возвращает domain.ErrValidation для пустого ввода (без обращения к сети),
// domain.ErrNoMatch если блюд нет, domain.ErrRemote при сбое сервиса и
// domain.ErrLookupInFlight если в сессии уже идёт создание заказа.
func (s *Service) CreateOrder(ctx context.Context, sessionID, rawIngredient string) (domain.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Order{}, domain.ErrSessionRequired
	}
	if strings.TrimSpace(rawIngredient) == "" {
		return domain.Order{}, fmt.Errorf("ingredient is required: %w", domain.ErrValidation)
	}

	token := mealdb.NormalizeIngredient(rawIngredient)
	logger := s.logger.WithFields(log.Fields{
		"session_id": sessionID,
		"ingredient": token,
	})

	guard := s.guards.acquire(sessionID)
	defer s.guards.release(sessionID, guard)

	if !guard.inflight.TryAcquire(1) {
		logger.Debug("rejecting overlapping order creation")
		return domain.Order{}, domain.ErrLookupInFlight
	}
	defer guard.inflight.Release(1)

	meals, err := s.lookup.FetchByIngredient(ctx, rawIngredient)
	if err != nil {
		if !errors.Is(err, domain.ErrRemote) {
			err = fmt.Errorf("%w: %v", domain.ErrRemote, err)
		}
		return domain.Order{}, err
	}
	if len(meals) == 0 {
		return domain.Order{}, fmt.Errorf("ingredient %s: %w", token, domain.ErrNoMatch)
	}

	meal := meals[clampIndex(s.selector.Pick(len(meals)), len(meals))]

	guard.mu.Lock()
	defer guard.mu.Unlock()

	store := s.Store(sessionID)
	number, err := store.NextOrderNumber(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to issue order number")
		return domain.Order{}, err
	}

	order := domain.Order{
		Number:      number,
		Description: meal.Name,
		Status:      domain.OrderStatusIncomplete,
	}

	current, err := store.ReadAll(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to read orders")
		return domain.Order{}, err
	}
	if err := store.WriteAll(ctx, append(current, order)); err != nil {
		logger.WithError(err).Error("failed to persist order")
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated()
	logger.WithFields(log.Fields{
		"order_number": order.Number,
		"description":  order.Description,
	}).Info("order created")
	s.publish(ctx, sessionID, domain.EventTypeOrderCreated, order)

	return order, nil
}

// CompleteOrder переводит заказ в completed.
//
// rawNumber, который не разбирается как конечное число, даёт domain.ErrValidation;
// 0 даёт успешный no-op (CompletionNothing) без обращения к хранилищу;
// любой другой номер без заказа, включая отрицательные и дробные, даёт
// *domain.OrderNotFoundError (errors.Is с domain.ErrOrderNotFound). Повторное завершение
// возвращает CompletionAlreadyCompleted и ничего не записывает.
func (s *Service) CompleteOrder(ctx context.Context, sessionID, rawNumber string) (domain.Completion, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Completion{}, domain.ErrSessionRequired
	}

	value, err := ParseOrderNumber(rawNumber)
	if err != nil {
		return domain.Completion{}, err
	}
	if value == 0 {
		return domain.Completion{Outcome: domain.CompletionNothing}, nil
	}
	number, ok := orderNumber(value)
	if !ok {
		return domain.Completion{}, &domain.OrderNotFoundError{Number: value}
	}

	logger := s.logger.WithFields(log.Fields{
		"session_id":   sessionID,
		"order_number": number,
	})

	guard := s.guards.acquire(sessionID)
	defer s.guards.release(sessionID, guard)
	guard.mu.Lock()
	defer guard.mu.Unlock()

	store := s.Store(sessionID)
	current, err := store.ReadAll(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to read orders")
		return domain.Completion{}, err
	}

	idx := indexOf(current, number)
	if idx < 0 {
		return domain.Completion{}, &domain.OrderNotFoundError{Number: value}
	}
	if current[idx].IsCompleted() {
		return domain.Completion{Outcome: domain.CompletionAlreadyCompleted, Order: current[idx]}, nil
	}

	current[idx].Complete()
	if err := store.WriteAll(ctx, current); err != nil {
		logger.WithError(err).Error("failed to persist completed order")
		return domain.Completion{}, err
	}

	s.metrics.RecordOrderCompleted()
	logger.Info("order completed")
	s.publish(ctx, sessionID, domain.EventTypeOrderCompleted, current[idx])

	return domain.Completion{Outcome: domain.CompletionCompleted, Order: current[idx]}, nil
}

// ClearAll стирает все заказы и счётчик номеров сессии.
func (s *Service) ClearAll(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrSessionRequired
	}

	guard := s.guards.acquire(sessionID)
	defer s.guards.release(sessionID, guard)
	guard.mu.Lock()
	defer guard.mu.Unlock()

	if err := s.Store(sessionID).Clear(ctx); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("failed to clear session")
		return err
	}

	s.metrics.RecordSessionCleared()
	s.logger.WithField("session_id", sessionID).Info("session cleared")
	s.publish(ctx, sessionID, domain.EventTypeSessionCleared, domain.Order{})
	return nil
}

// publish отправляет событие; ошибки публикации не влияют на результат операции.
func (s *Service) publish(ctx context.Context, sessionID string, eventType domain.EventType, order domain.Order) {
	if s.publisher == nil {
		return
	}

	event := domain.OrderEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		SessionID:   sessionID,
		OrderNumber: order.Number,
		Description: order.Description,
		Status:      order.Status,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordEventPublishFailed()
		s.logger.WithError(err).WithFields(log.Fields{
			"session_id": sessionID,
			"event_type": eventType,
		}).Warn("failed to publish order event")
	}
}

func indexOf(orders []domain.Order, number int) int {
	for i, o := range orders {
		if o.Number == number {
			return i
		}
	}
	return -1
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
