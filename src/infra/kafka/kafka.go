package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

var ErrClientClosed = errors.New("kafka client closed")

type Config struct {
	Brokers  []string
	GroupID  string
	ClientID string
	// RetryInitial/RetryMax bound the in-place redelivery of a failed message.
	RetryInitial time.Duration
	RetryMax     time.Duration
}

type KafkaClient struct {
	logger   *slog.Logger
	consumer sarama.ConsumerGroup
	producer sarama.AsyncProducer
	backoff  exponentialBackoff

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
}

// Handler processes one message. A nil return acknowledges it (the offset is
// marked); an error leaves it unacknowledged and it is delivered again.
type Handler func(ctx context.Context, msg Message) error

func NewSaramaConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	if clientID != "" {
		config.ClientID = clientID
	}

	// Consumer: deleções não podem ser perdidas no primeiro deploy
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Offsets.AutoCommit.Enable = true
	config.Consumer.Group.Session.Timeout = 30 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 10 * time.Second
	config.Consumer.MaxProcessingTime = 60 * time.Second
	config.Consumer.MaxWaitTime = 100 * time.Millisecond

	// Producer: idempotente com uma requisição em voo, preserva a ordem por chave mesmo com retries
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 50 * time.Millisecond
	config.Producer.Flush.Messages = 50
	config.Producer.MaxMessageBytes = 1024 * 1024

	return config
}

// NewKafkaClient builds the async producer and, when cfg.GroupID is set, the consumer group.
func NewKafkaClient(logger *slog.Logger, cfg Config) (*KafkaClient, error) {
	config := NewSaramaConfig(cfg.ClientID)

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	var consumer sarama.ConsumerGroup
	if cfg.GroupID != "" {
		consumer, err = sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
		if err != nil {
			producer.Close()
			return nil, fmt.Errorf("failed to create consumer group: %w", err)
		}
	}

	client := NewKafkaClientWith(logger, consumer, producer)
	if cfg.RetryInitial > 0 {
		client.backoff = exponentialBackoff{initial: cfg.RetryInitial, max: cfg.RetryMax}
	}

	logger.Info("Kafka client initialized", "brokers", cfg.Brokers, "group_id", cfg.GroupID)

	return client, nil
}

// NewKafkaClientWith wires already built sarama parts; consumer may be nil for publish-only processes.
func NewKafkaClientWith(logger *slog.Logger, consumer sarama.ConsumerGroup, producer sarama.AsyncProducer) *KafkaClient {
	k := &KafkaClient{
		logger:   logger,
		consumer: consumer,
		producer: producer,
		backoff:  exponentialBackoff{initial: 200 * time.Millisecond, max: defaultRetryMax},
	}

	k.wg.Add(2)
	go k.drainSuccesses()
	go k.drainErrors()

	return k
}

// Publish enqueues msg and returns without waiting for the broker. Delivery
// outcome is only logged, asynchronously.
func (k *KafkaClient) Publish(ctx context.Context, msg Message) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return ErrClientClosed
	}

	producerMessage := &sarama.ProducerMessage{
		Topic:    msg.Topic,
		Key:      sarama.StringEncoder(msg.Key),
		Value:    sarama.ByteEncoder(msg.Value),
		Metadata: msg.Key,
	}
	for name, value := range msg.Headers {
		producerMessage.Headers = append(producerMessage.Headers, sarama.RecordHeader{
			Key:   []byte(name),
			Value: []byte(value),
		})
	}

	select {
	case k.producer.Input() <- producerMessage:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to enqueue message for topic %s: %w", msg.Topic, ctx.Err())
	}
}

func (k *KafkaClient) drainSuccesses() {
	defer k.wg.Done()
	for msg := range k.producer.Successes() {
		k.logger.Debug("Message delivered",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Metadata)
	}
}

func (k *KafkaClient) drainErrors() {
	defer k.wg.Done()
	for producerErr := range k.producer.Errors() {
		k.logger.Error("Failed to deliver message",
			"error", producerErr.Err,
			"topic", producerErr.Msg.Topic,
			"key", producerErr.Msg.Metadata)
	}
}

// Consume blocks until ctx is cancelled, re-joining the group after every rebalance.
func (k *KafkaClient) Consume(ctx context.Context, topics []string, handler Handler) error {
	if k.consumer == nil {
		return fmt.Errorf("kafka client has no consumer group configured")
	}

	consumerHandler := &consumerGroupHandler{
		logger:  k.logger,
		handler: handler,
		backoff: k.backoff,
	}

	for {
		if err := k.consumer.Consume(ctx, topics, consumerHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			k.logger.Error("Error consuming from topics", "topics", topics, "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}

		if ctx.Err() != nil {
			k.logger.Info("Kafka consumer context cancelled")
			return nil
		}
	}
}

func (k *KafkaClient) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	var errs []error

	if k.consumer != nil {
		if err := k.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
		}
	}

	// Close flushes buffered messages; the drain goroutines exit when the channels close.
	if err := k.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	k.wg.Wait()

	return errors.Join(errs...)
}

// consumerGroupHandler implementa sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	logger  *slog.Logger
	handler Handler
	backoff exponentialBackoff
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup", "claims", session.Claims())
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

// ConsumeClaim processes one partition strictly in order. A message is marked
// only after the handler accepted it.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	h.logger.Info("Starting consumer for partition", "topic", claim.Topic(), "partition", claim.Partition())

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg := toMessage(message)
			if !h.deliver(session.Context(), msg) {
				// Session ended before the handler succeeded: leave the offset unmarked.
				return nil
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// deliver retries the handler in place until it succeeds or the session ends.
func (h *consumerGroupHandler) deliver(sessionCtx context.Context, msg Message) bool {
	// The handler must not be interrupted half way through a local transaction.
	handlerCtx := context.WithoutCancel(sessionCtx)

	for attempt := 1; ; attempt++ {
		err := h.handler(handlerCtx, msg)
		if err == nil {
			return true
		}

		delay := h.backoff.Delay(attempt)
		h.logger.Error("Handler failed, message will be redelivered",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"attempt", attempt,
			"retry_in", delay)

		select {
		case <-sessionCtx.Done():
			return false
		case <-time.After(delay):
		}
	}
}

func toMessage(message *sarama.ConsumerMessage) Message {
	headers := make(map[string]string, len(message.Headers))
	for _, header := range message.Headers {
		if header != nil {
			headers[string(header.Key)] = string(header.Value)
		}
	}

	return Message{
		Topic:     message.Topic,
		Key:       string(message.Key),
		Value:     message.Value,
		Headers:   headers,
		Partition: message.Partition,
		Offset:    message.Offset,
	}
}
