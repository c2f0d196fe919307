package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты обращения к сервису рецептов для метки result.
const (
	LookupResultMatch   = "match"
	LookupResultNoMatch = "no_match"
	LookupResultError   = "error"
)

// Исходы доставки события для метки result.
const (
	DeliverySent       = "sent"
	DeliveryRetryError = "retry_error"
	DeliveryFailed     = "failed"
	DeliveryDropped    = "dropped"
)

// OrderMetrics содержит метрики заказов и обращений к сервису рецептов.
// Методы безопасно вызывать на nil-получателе: метрики тогда не пишутся.
type OrderMetrics struct {
	// Счётчики операций над заказами
	ordersCreated   prometheus.Counter
	ordersCompleted prometheus.Counter
	sessionsCleared prometheus.Counter

	// Обращения к сервису рецептов
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram

	eventsPublishFailed prometheus.Counter
	sessionsEvicted     prometheus.Counter

	// Фоновая доставка событий
	eventDeliveries *prometheus.CounterVec
	eventQueueDepth prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "mealorders_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "mealorders_orders_completed_total",
			Help: "Total number of orders marked as completed",
		}),
		sessionsCleared: registerCounter(registerer, prometheus.CounterOpts{
			Name: "mealorders_sessions_cleared_total",
			Help: "Total number of clear-all operations",
		}),
		lookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "mealorders_lookups_total",
			Help: "Total number of meal lookups grouped by result",
		}, []string{"result"}),
		lookupDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "mealorders_lookup_duration_seconds",
			Help:    "Duration of meal lookups in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		eventsPublishFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "mealorders_events_publish_failed_total",
			Help: "Total number of order events that failed to publish",
		}),
		sessionsEvicted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "mealorders_sessions_evicted_total",
			Help: "Total number of expired sessions evicted",
		}),
		eventDeliveries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "mealorders_event_deliveries_total",
			Help: "Order event delivery attempts grouped by result",
		}, []string{"result"}),
		eventQueueDepth: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "mealorders_event_queue_depth",
			Help: "Number of order events waiting for delivery",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderCompleted увеличивает счётчик завершённых заказов.
func (m *OrderMetrics) RecordOrderCompleted() {
	if m == nil {
		return
	}
	m.ordersCompleted.Inc()
}

// RecordSessionCleared увеличивает счётчик очисток сессии.
func (m *OrderMetrics) RecordSessionCleared() {
	if m == nil {
		return
	}
	m.sessionsCleared.Inc()
}

// RecordLookup записывает результат и длительность обращения к сервису рецептов.
func (m *OrderMetrics) RecordLookup(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
	m.lookupDuration.Observe(duration.Seconds())
}

// RecordEventPublishFailed увеличивает счётчик неудачных публикаций событий.
func (m *OrderMetrics) RecordEventPublishFailed() {
	if m == nil {
		return
	}
	m.eventsPublishFailed.Inc()
}

// RecordSessionsEvicted добавляет количество удалённых просроченных сессий.
func (m *OrderMetrics) RecordSessionsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

// RecordEventDelivery учитывает попытку доставки события с исходом result.
func (m *OrderMetrics) RecordEventDelivery(result string) {
	if m == nil {
		return
	}
	m.eventDeliveries.WithLabelValues(result).Inc()
}

// SetEventQueueDepth выставляет текущую длину очереди событий.
func (m *OrderMetrics) SetEventQueueDepth(n int) {
	if m == nil {
		return
	}
	m.eventQueueDepth.Set(float64(n))
}
