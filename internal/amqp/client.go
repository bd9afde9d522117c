package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ErrReject marks a delivery as permanently unprocessable. A consume handler
// returning an error wrapping ErrReject gets the message dropped instead of
// requeued.
var ErrReject = errors.New("reject delivery")

// Client wraps one AMQP connection with the archive's topology: a direct
// exchange, an ingest queue carrying recognizer payloads, and an events queue
// carrying archived/deleted notifications.
type Client struct {
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	exchange    string
	ingestQueue string
	eventsQueue string
}

func NewClient(url, exchange, ingestQueue, eventsQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:        conn,
		channel:     channel,
		exchange:    exchange,
		ingestQueue: ingestQueue,
		eventsQueue: eventsQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.ingestQueue, c.eventsQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// PublishArchived publishes an archived event for a stored receipt.
func (c *Client) PublishArchived(ctx context.Context, id int64, vendor string, totalCents int64, currency string) error {
	return c.publishEvent(ctx, NewArchivedEvent(id, vendor, totalCents, currency))
}

// PublishDeleted publishes a deleted event for a removed receipt.
func (c *Client) PublishDeleted(ctx context.Context, id int64) error {
	return c.publishEvent(ctx, NewDeletedEvent(id))
}

func (c *Client) publishEvent(ctx context.Context, event *ReceiptEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchange,    // exchange
		c.eventsQueue, // routing key
		false,         // mandatory
		false,         // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Action, err)
	}

	slog.InfoContext(ctx, "Published receipt event",
		"action", event.Action,
		"receipt_id", event.ReceiptID,
		"exchange", c.exchange,
		"queue", c.eventsQueue)

	return nil
}

// ConsumeIngest delivers raw ingest payloads to handler until ctx is done.
// A nil handler error acks the delivery. An error wrapping ErrReject drops
// the message; any other error requeues it for a later attempt.
func (c *Client) ConsumeIngest(ctx context.Context, handler func(context.Context, []byte) error) error {
	msgs, err := c.channel.Consume(
		c.ingestQueue, // queue
		"",            // consumer
		false,         // auto-ack (we want manual ack)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ingest payloads", "queue", c.ingestQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping ingest consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			err := handler(ctx, delivery.Body)
			switch {
			case err == nil:
				delivery.Ack(false)
			case errors.Is(err, ErrReject):
				slog.WarnContext(ctx, "Dropping unprocessable ingest payload", "error", err)
				delivery.Nack(false, false)
			default:
				slog.ErrorContext(ctx, "Requeueing ingest payload", "error", err)
				delivery.Nack(false, true)
			}
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns the reconnect delay for the given attempt,
// capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	return time.Duration(1<<attempt) * time.Second
}

// isConnectionError reports whether err looks like a broken connection, as
// opposed to a protocol or application failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, fragment := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Dial retries NewClient with exponential backoff until ctx is done or a
// non-connection error occurs. Used by the worker at startup, when the
// broker may not be up yet.
func Dial(ctx context.Context, url, exchange, ingestQueue, eventsQueue string) (*Client, error) {
	for attempt := 0; ; attempt++ {
		client, err := NewClient(url, exchange, ingestQueue, eventsQueue)
		if err == nil {
			return client, nil
		}
		if !isConnectionError(err) {
			return nil, err
		}

		delay := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connect failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
