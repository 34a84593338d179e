package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const consumerTag = "notification-worker"

// Config carries the broker settings the connection needs.
type Config struct {
	URL          string
	Queue        string
	Prefetch     int
	RetryBackoff time.Duration
}

// Connection is the single broker resource shared by the worker pool.
// It owns the AMQP connection and channel, redials indefinitely on
// transient network loss, and declares the queue topology on every
// (re)connect:
//
//	<queue>        — main work queue; rejected jobs dead-letter into retry
//	<queue>.retry  — holds jobs for RetryBackoff, then routes them back
//	<queue>.dead   — parking lot for jobs that exhausted their attempts
//
// Retry delay and redelivery are therefore broker-owned; consumers only
// ack, reject, or publish to the parking lot.
type Connection struct {
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker, retrying until it succeeds or ctx is
// cancelled. The returned Connection is ready to consume.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Connection, error) {
	c := &Connection{cfg: cfg, logger: logger}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials and prepares a channel, retrying with capped exponential
// backoff. It only gives up when ctx is cancelled; the connection layer is
// what keeps protocol commands from being lost during a network blip.
func (c *Connection) connect(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err == nil {
			var ch *amqp.Channel
			if ch, err = c.prepareChannel(conn); err == nil {
				c.mu.Lock()
				c.conn, c.ch = conn, ch
				c.mu.Unlock()
				c.logger.Info("broker connected", zap.String("queue", c.cfg.Queue))
				return nil
			}
			conn.Close()
		}

		c.logger.Warn("broker connect failed, retrying",
			zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (c *Connection) prepareChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Prefetch bounds the number of unacked jobs handed to this worker,
	// matching the pool's concurrency.
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := c.declareTopology(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

func (c *Connection) declareTopology(ch *amqp.Channel) error {
	queue := c.cfg.Queue
	retry := queue + ".retry"
	dead := queue + ".dead"

	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": retry,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	_, err = ch.QueueDeclare(retry, true, false, false, false, amqp.Table{
		"x-message-ttl":             c.cfg.RetryBackoff.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", retry, err)
	}

	if _, err = ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dead, err)
	}
	return nil
}

func (c *Connection) channel() *amqp.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// Consume returns a delivery stream that survives reconnects. The stream is
// closed only after ctx is cancelled and all already-prefetched deliveries
// have been forwarded, so the pool can finish in-flight work before exit.
func (c *Connection) Consume(ctx context.Context) <-chan amqp.Delivery {
	out := make(chan amqp.Delivery)
	go c.consumeLoop(ctx, out)
	return out
}

func (c *Connection) consumeLoop(ctx context.Context, out chan<- amqp.Delivery) {
	defer close(out)
	for {
		deliveries, err := c.channel().Consume(
			c.cfg.Queue, consumerTag, false, false, false, false, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("consume failed, reconnecting", zap.Error(err))
			if err := c.connect(ctx); err != nil {
				return
			}
			continue
		}

		if !c.forward(ctx, deliveries, out) {
			return
		}

		// Stream ended because the connection dropped.
		c.logger.Warn("delivery stream closed, reconnecting")
		if err := c.connect(ctx); err != nil {
			return
		}
	}
}

// forward pumps deliveries into out. It returns false when the consumer
// should exit (shutdown), true when the underlying stream closed and a
// reconnect is warranted.
func (c *Connection) forward(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- amqp.Delivery) bool {
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return ctx.Err() == nil
			}
			out <- d
		case <-ctx.Done():
			// Stop pulling new jobs, then hand over what the broker
			// already pushed into the prefetch window.
			if err := c.channel().Cancel(consumerTag, false); err != nil {
				c.logger.Warn("cancel consumer", zap.Error(err))
			}
			for d := range deliveries {
				out <- d
			}
			return false
		}
	}
}

// DeadLetter parks a poisoned delivery on the <queue>.dead queue, keeping
// its body and headers for operator inspection.
func (c *Connection) DeadLetter(d amqp.Delivery) error {
	return c.channel().Publish("", c.cfg.Queue+".dead", false, false, amqp.Publishing{
		ContentType:   d.ContentType,
		CorrelationId: d.CorrelationId,
		Headers:       d.Headers,
		Body:          d.Body,
		Timestamp:     time.Now().UTC(),
	})
}

// Close releases the channel and connection. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
