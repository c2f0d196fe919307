// Команда events-tail читает события заказов из Kafka и печатает их в stdout
// по одному JSON на строку. Чтение ограничено -limit и не коммитит офсеты.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/messaging/kafka"
)

const (
	defaultLimit       = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	topic       string
	sessionID   string
	eventType   domain.EventType
	limit       int
	fromNewest  bool
	idleTimeout time.Duration
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

var newTailDependencies = func(cfg config) (offsetClient, partitionConsumerSource, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return client, saramaConsumerAdapter{consumer: consumer}, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stderr)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		fail("events tail failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		eventType  string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.topic, "topic", kafka.TopicOrderEvents, "order events topic")
	flag.StringVar(&cfg.sessionID, "session", "", "print only events of this session")
	flag.StringVar(&eventType, "type", "", "print only events of this type (order.created, order.completed, session.cleared)")
	flag.IntVar(&cfg.limit, "limit", defaultLimit, "max number of messages to scan")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}

	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if strings.TrimSpace(cfg.topic) == "" {
		return config{}, fmt.Errorf("topic is required")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}
	if cfg.idleTimeout <= 0 {
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}

	switch t := domain.EventType(strings.TrimSpace(eventType)); t {
	case "", domain.EventTypeOrderCreated, domain.EventTypeOrderCompleted, domain.EventTypeSessionCleared:
		cfg.eventType = t
	default:
		return config{}, fmt.Errorf("unsupported event type %q", eventType)
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	log.WithFields(log.Fields{
		"topic":       cfg.topic,
		"limit":       cfg.limit,
		"from_newest": cfg.fromNewest,
		"session":     cfg.sessionID,
		"type":        cfg.eventType,
	}).Info("starting events tail")

	client, consumer, err := newTailDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	return runTail(ctx, cfg, client, consumer, out)
}

type tailStats struct {
	scanned int
	printed int
	skipped int
}

func runTail(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, out io.Writer) error {
	if client == nil || consumer == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}

	partitions, err := client.Partitions(cfg.topic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.topic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.topic).Warn("topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total tailStats
	encoder := json.NewEncoder(out)
	for _, partition := range partitions {
		if total.scanned >= cfg.limit {
			break
		}

		stats, err := tailPartition(ctx, consumer, client, encoder, cfg, partition, cfg.limit-total.scanned)
		if err != nil {
			return err
		}
		total.scanned += stats.scanned
		total.printed += stats.printed
		total.skipped += stats.skipped
	}

	log.WithFields(log.Fields{
		"scanned": total.scanned,
		"printed": total.printed,
		"skipped": total.skipped,
	}).Info("events tail finished")

	return nil
}

func tailPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	encoder *json.Encoder,
	cfg config,
	partition int32,
	limit int,
) (tailStats, error) {
	var stats tailStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.topic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.topic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		startOffset = max(newest-int64(limit), oldest)
	}

	pc, err := consumer.ConsumePartition(cfg.topic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-pc.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil {
				return stats, nil
			}

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(cfg.idleTimeout)

			if msg.Offset >= newest {
				return stats, nil
			}
			stats.scanned++

			event, err := decodeEvent(msg)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip undecodable message")
			} else if matches(event, cfg) {
				if err := encoder.Encode(event); err != nil {
					return stats, fmt.Errorf("write event: %w", err)
				}
				stats.printed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

// decodeEvent разбирает значение сообщения; тип из заголовка дополняет
// событие, если в теле он не указан.
func decodeEvent(msg *sarama.ConsumerMessage) (domain.OrderEvent, error) {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.OrderEvent{}, fmt.Errorf("decode order event: %w", err)
	}
	if event.Type == "" {
		for _, h := range msg.Headers {
			if h != nil && string(h.Key) == kafka.HeaderEventType {
				event.Type = domain.EventType(h.Value)
			}
		}
	}
	if event.Type == "" {
		return domain.OrderEvent{}, fmt.Errorf("event type is missing")
	}
	if event.SessionID == "" {
		event.SessionID = string(msg.Key)
	}
	return event, nil
}

func matches(event domain.OrderEvent, cfg config) bool {
	if cfg.sessionID != "" && event.SessionID != cfg.sessionID {
		return false
	}
	if cfg.eventType != "" && event.Type != cfg.eventType {
		return false
	}
	return true
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
