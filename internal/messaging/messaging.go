package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
)

// EventHeader names the header carrying the event type.
const EventHeader = "event"

// handlerAttempts bounds how often one message is handed to a failing
// handler before it is committed and dropped.
const handlerAttempts = 3

// Message is one event on the bus. Values are JSON documents.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// NewEvent encodes v as the value of an event message. The current trace
// context travels in the headers.
func NewEvent(ctx context.Context, event, key string, v any) (Message, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", event, err)
	}
	msg := Message{
		Key:     []byte(key),
		Value:   value,
		Headers: map[string]string{EventHeader: event},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Headers))
	return msg, nil
}

// Event returns the event type header, or "" for untyped messages.
func (m Message) Event() string {
	return m.Headers[EventHeader]
}

// Decode unmarshals the message value into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Value, v)
}

// Context returns ctx carrying the trace context found in the headers.
func (m Message) Context(ctx context.Context) context.Context {
	if len(m.Headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m.Headers))
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Permanent marks a handler error that retrying cannot fix, such as a
// value that does not decode. The message is dropped on first failure.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	switch cfg.Messaging.Driver {
	case "noop":
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Message) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	kc := cfg.Messaging.Kafka
	client := &kafkaClient{
		topic:  kc.Topic,
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(kc.Brokers...),
			Topic:        kc.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Logger:       kafkaLogger{logger},
			ErrorLogger:  kafkaLogger{logger},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        kc.Brokers,
			GroupID:        cfg.Messaging.ConsumerGroup,
			Topic:          kc.Topic,
			MinBytes:       kc.MinBytes,
			MaxBytes:       kc.MaxBytes,
			CommitInterval: kc.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  kc.ConnectTimeout,
				ClientID: kc.ClientID,
			},
		}),
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Info("closing kafka client")
			return errors.Join(client.writer.Close(), client.reader.Close())
		},
	})
	return client
}

// Publish writes msg keyed by its key, so runs of one scenario stay ordered.
func (k *kafkaClient) Publish(ctx context.Context, msg Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	for key, value := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return k.writer.WriteMessages(ctx, out)
}

// Consume fetches until ctx ends. Fetch errors back off and retry; a
// handler gets handlerAttempts tries before the message is committed anyway.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	fetchRetry := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(0),
		backoff.WithMaxInterval(15*time.Second),
	), ctx)

	for {
		km, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := fetchRetry.NextBackOff()
			if wait == backoff.Stop {
				return ctx.Err()
			}
			k.logger.Error("kafka fetch failed", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		fetchRetry.Reset()

		msg := fromKafka(km)
		handle := func() error { return handler(msg.Context(ctx), msg) }
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), handlerAttempts-1), ctx)
		if err := backoff.Retry(handle, policy); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Error("dropping message after failed attempts",
				zap.Error(err),
				zap.String("event", msg.Event()),
				zap.Int64("offset", km.Offset),
				zap.Int("attempts", handlerAttempts),
			)
		}

		if err := k.reader.CommitMessages(ctx, km); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", km.Offset))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func fromKafka(km kafka.Message) Message {
	msg := Message{
		Topic:  km.Topic,
		Key:    append([]byte(nil), km.Key...),
		Value:  append([]byte(nil), km.Value...),
		Offset: km.Offset,
		Time:   km.Time,
	}
	if len(km.Headers) > 0 {
		msg.Headers = make(map[string]string, len(km.Headers))
		for _, h := range km.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...any) {
	k.logger.Sugar().Debugf(msg, args...)
}
