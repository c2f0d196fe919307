// Package janitor вычищает истёкшие сессии из in-memory хранилища.
// Redis удаляет ключи сам по TTL, поэтому там janitor не запускается.
package janitor

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/metrics"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultBatchSize = 500
)

// Evictor удаляет до limit сессий, истёкших к моменту before.
type Evictor interface {
	DeleteExpired(before time.Time, limit int) (int, error)
}

// Options задает параметры janitor.
type Options struct {
	Logger    *log.Entry
	Metrics   *metrics.OrderMetrics
	Interval  time.Duration
	BatchSize int
}

// Option настраивает Janitor.
type Option func(*Options)

// WithLogger задает logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задает метрики для учёта удалённых сессий.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithInterval задает интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задает размер порции удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// Janitor периодически удаляет сессии, к которым давно не обращались.
type Janitor struct {
	storage   Evictor
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
	interval  time.Duration
	batchSize int
}

// New создает janitor поверх хранилища.
func New(storage Evictor, options ...Option) *Janitor {
	opts := Options{
		Interval:  defaultInterval,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-janitor")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Janitor{
		storage:   storage,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
}

// Run выполняет проходы до отмены ctx. Первый проход выполняется сразу.
func (j *Janitor) Run(ctx context.Context) {
	if j.storage == nil {
		j.logger.Warn("session janitor is disabled: storage is nil")
		return
	}

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	evicted, err := j.Sweep(ctx, time.Now())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		j.logger.WithError(err).Warn("session sweep failed")
		return
	}
	if evicted > 0 {
		j.logger.WithField("evicted", evicted).Info("expired sessions evicted")
	}
}

// Sweep удаляет все сессии, истёкшие к before, порциями batchSize.
func (j *Janitor) Sweep(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		evicted, err := j.storage.DeleteExpired(before, j.batchSize)
		if err != nil {
			return total, err
		}

		total += evicted
		j.metrics.RecordSessionsEvicted(evicted)

		if evicted < j.batchSize {
			return total, nil
		}
	}
}
