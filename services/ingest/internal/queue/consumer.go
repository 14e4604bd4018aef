// Package queue consumes bucket-notification messages from RabbitMQ.
// MinIO is configured with an AMQP notification target; every object-created
// event in the books prefix lands on a durable queue this consumer drains.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one raw notification payload. A non-nil error means the
// payload could not be handled at all; malformed messages should not be
// redelivered, so the consumer acks either way and logs the failure.
type Handler func(ctx context.Context, body []byte) error

// Config holds connection settings for the consumer.
type Config struct {
	URL            string
	Queue          string
	ReconnectDelay time.Duration
}

// Consumer is a reconnecting AMQP consumer bound to a single durable queue.
type Consumer struct {
	url            string
	queue          string
	consumerBase   string
	reconnectDelay time.Duration
}

// New validates config and constructs a consumer.
func New(cfg Config) (*Consumer, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	queueName := strings.TrimSpace(cfg.Queue)
	if queueName == "" {
		return nil, errors.New("queue name required")
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Consumer{
		url:            url,
		queue:          queueName,
		consumerBase:   "ingest-" + uuid.NewString(),
		reconnectDelay: delay,
	}, nil
}

// Run consumes until ctx is cancelled, reconnecting after broker failures.
func (c *Consumer) Run(ctx context.Context, handler Handler) {
	for {
		if err := c.consumeOnce(ctx, handler); err != nil {
			slog.Error("amqp consume session ended", "queue", c.queue, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, handler Handler) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.queue, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, c.consumerBase, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	slog.Info("consuming bucket notifications", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				slog.Error("notification handling failed", "queue", c.queue, "err", err)
			}
			// Ack unconditionally: record-level failures are isolated and
			// logged upstream, and a poison message must not loop forever.
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("ack delivery: %w", err)
			}
		}
	}
}
