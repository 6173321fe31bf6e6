package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storebot/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sink delivers serialized events to their consumers
type Sink interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer}
}

// PublishEvent publishes an event to Kafka
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	util.GetLogger().Debug("Published event", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{reader: reader}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming starts consuming messages with a handler
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	logger := util.GetLogger()
	logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			logger.Error("Error fetching message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			// notifications are best effort, a failing message is skipped
			logger.Error("Error handling message", zap.Error(err), zap.ByteString("key", msg.Key))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error committing message", zap.Error(err))
		}
	}
}

// LocalSink delivers events to an in-process handler when Kafka is disabled.
// Messages are queued so that publishing never waits on the handler.
type LocalSink struct {
	queue   chan kafka.Message
	handler MessageHandler
	done    chan struct{}
}

// NewLocalSink creates a queue of the given capacity feeding handler
func NewLocalSink(handler MessageHandler, capacity int) *LocalSink {
	return &LocalSink{
		queue:   make(chan kafka.Message, capacity),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// PublishEvent queues an event; it fails when the queue is full
func (s *LocalSink) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{Key: []byte(key), Value: eventBytes, Time: time.Now()}
	select {
	case <-s.done:
		return errors.New("local sink closed")
	default:
	}

	select {
	case s.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("local event queue full")
	}
}

// Run hands queued events to the handler until ctx is done or the sink is closed
func (s *LocalSink) Run(ctx context.Context) {
	logger := util.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.queue:
			if err := s.handler(ctx, msg); err != nil {
				logger.Error("Error handling local event", zap.Error(err), zap.ByteString("key", msg.Key))
			}
		}
	}
}

// Close stops Run
func (s *LocalSink) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}
