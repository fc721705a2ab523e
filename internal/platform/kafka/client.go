package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"taproom/internal/platform/config"
	"taproom/pkg/platform/sentinel"
)

// Client wraps a franz-go client together with its admin client.
type Client struct {
	*kgo.Client
	admin *kadm.Client
	topic string
}

// New creates a producer client for cfg.Topic.
// Returns nil if no brokers are configured (Kafka disabled).
func New(ctx context.Context, cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ClientID("taproom"),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	return &Client{Client: cl, admin: kadm.NewClient(cl), topic: cfg.Topic}, nil
}

// Topic is the default produce topic.
func (c *Client) Topic() string {
	return c.topic
}

// EnsureTopic creates the produce topic with broker-default partitions and
// replication. An existing topic is not an error.
func (c *Client) EnsureTopic(ctx context.Context) error {
	resp, err := c.admin.CreateTopic(ctx, -1, -1, nil, c.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure topic %s: %w", c.topic, err)
	}
	return nil
}

// Health checks that at least one broker is reachable. Failures wrap
// sentinel.ErrUnavailable.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("kafka %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (c *Client) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.Client.Close()
	return err
}
