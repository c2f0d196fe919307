// Package outbox доставляет события заказов в брокер в фоне: обработчики
// запросов только кладут событие в очередь и не ждут Kafka.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/metrics"
)

const (
	defaultQueueSize      = 1024
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultDrainTimeout   = 5 * time.Second
)

// ErrQueueFull возвращается, когда очередь доставки переполнена и событие отброшено.
var ErrQueueFull = errors.New("event queue is full")

// Options задаёт параметры Dispatcher.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.OrderMetrics
	QueueSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	DrainTimeout   time.Duration
}

// Option настраивает Dispatcher.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithQueueSize задаёт ёмкость очереди.
func WithQueueSize(size int) Option {
	return func(opts *Options) {
		opts.QueueSize = size
	}
}

// WithMaxAttempts задаёт число попыток доставки одного события.
func WithMaxAttempts(attempts int) Option {
	return func(opts *Options) {
		opts.MaxAttempts = attempts
	}
}

// WithRetryBaseDelay задаёт первую паузу exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *Options) {
		opts.RetryBaseDelay = delay
	}
}

// WithDrainTimeout ограничивает досылку очереди после остановки.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.DrainTimeout = timeout
	}
}

// Dispatcher реализует EventPublisher с очередью и повторными попытками.
type Dispatcher struct {
	publisher      domain.EventPublisher
	queue          chan domain.OrderEvent
	logger         *log.Entry
	metrics        *metrics.OrderMetrics
	maxAttempts    int
	retryBaseDelay time.Duration
	drainTimeout   time.Duration
}

// NewDispatcher создаёт Dispatcher поверх publisher.
func NewDispatcher(publisher domain.EventPublisher, options ...Option) *Dispatcher {
	opts := Options{
		QueueSize:      defaultQueueSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
		DrainTimeout:   defaultDrainTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "event-dispatcher")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}

	return &Dispatcher{
		publisher:      publisher,
		queue:          make(chan domain.OrderEvent, opts.QueueSize),
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		drainTimeout:   opts.DrainTimeout,
	}
}

// Publish ставит событие в очередь и не блокируется.
func (d *Dispatcher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case d.queue <- event:
		d.metrics.SetEventQueueDepth(len(d.queue))
		return nil
	default:
		d.metrics.RecordEventDelivery(metrics.DeliveryDropped)
		return fmt.Errorf("enqueue %s: %w", event.Type, ErrQueueFull)
	}
}

// Pending возвращает число событий в очереди.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run доставляет события до отмены ctx, затем пытается досылать остаток
// очереди не дольше drainTimeout. Начатая доставка не прерывается отменой ctx.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.publisher == nil {
		d.logger.Warn("event dispatcher is disabled: publisher is nil")
		return
	}

	deliveryCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case event := <-d.queue:
			d.metrics.SetEventQueueDepth(len(d.queue))
			d.deliver(deliveryCtx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	pending := len(d.queue)
	if pending == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	d.logger.WithField("pending", pending).Info("draining event queue")
	for {
		select {
		case event := <-d.queue:
			d.metrics.SetEventQueueDepth(len(d.queue))
			d.deliver(ctx, event)
		default:
			return
		}
		if ctx.Err() != nil {
			d.logger.WithField("left", len(d.queue)).Warn("event queue drain timed out")
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.OrderEvent) {
	if err := d.publishWithRetry(ctx, event); err != nil {
		d.metrics.RecordEventDelivery(metrics.DeliveryFailed)
		d.logger.WithError(err).WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"session_id": event.SessionID,
		}).Error("order event delivery failed")
	}
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, event domain.OrderEvent) error {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := d.publisher.Publish(ctx, event)
		if err == nil {
			d.metrics.RecordEventDelivery(metrics.DeliverySent)
			return nil
		}
		lastErr = err
		d.metrics.RecordEventDelivery(metrics.DeliveryRetryError)

		if attempt == d.maxAttempts {
			break
		}

		delay := d.backoff(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", d.maxAttempts, lastErr)
}

// backoff удваивает базовую паузу на каждой попытке с защитой от переполнения.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if d.retryBaseDelay <= 0 {
		return 0
	}

	const maxDelay = time.Duration(1<<63 - 1)
	delay := d.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return delay
}

var _ domain.EventPublisher = (*Dispatcher)(nil)
