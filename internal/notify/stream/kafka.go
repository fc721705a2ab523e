// Package stream produces collection notifications to a Kafka topic.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"taproom/internal/beers/store"
	"taproom/internal/notify"
	"taproom/internal/notify/metrics"
)

// Producer is the subset of *kgo.Client the stream needs. TryProduce never
// waits for buffer space; a full buffer fails the record with kgo.ErrMaxBuffered.
type Producer interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Kafka produces one record per notification without waiting for the ack.
type Kafka struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Kafka)

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) {
		k.logger = logger
	}
}

// WithMetrics counts failed deliveries as listener failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(k *Kafka) {
		k.metrics = m
	}
}

// New creates a stream listener producing to topic.
func New(producer Producer, topic string, opts ...Option) (*Kafka, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	k := &Kafka{
		producer: producer,
		topic:    topic,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

func (k *Kafka) Name() string { return "kafka-stream" }

// OnNotify hands the record to the client's buffer without waiting, since it
// runs while the collection is locked. Delivery failures, including a full
// buffer, are reported through the promise.
func (k *Kafka) OnNotify(ctx context.Context, snap store.Snapshot, message string) error {
	ev := notify.NewEvent(ctx, snap, message)
	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	record := &kgo.Record{Topic: k.topic, Value: payload, Timestamp: ev.At}
	k.producer.TryProduce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if errors.Is(err, kgo.ErrMaxBuffered) {
			k.metrics.IncrementListenerFailures(k.Name())
			k.logger.Warn("kafka buffer full, notification dropped", "topic", r.Topic)
			return
		}
		if err != nil {
			k.metrics.IncrementListenerFailures(k.Name())
			k.logger.Error("notification not delivered to kafka",
				"topic", r.Topic,
				"error", err,
			)
			return
		}
		k.logger.Debug("notification delivered to kafka",
			"topic", r.Topic,
			"partition", r.Partition,
			"offset", r.Offset,
		)
	})
	return nil
}
