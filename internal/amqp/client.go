package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finance/internal/core"
)

const (
	publishTimeout = 5 * time.Second
	dialTimeout    = 3 * time.Second
)

// ErrReconnecting is returned to publishers while another goroutine is
// redialing the broker.
var ErrReconnecting = errors.New("amqp reconnect in progress")

// connection and channel are the parts of *amqp091.Connection and
// *amqp091.Channel the client uses.
type connection interface {
	IsClosed() bool
	Close() error
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

type dialFunc func() (connection, channel, error)

// Client publishes transaction events to a durable direct exchange and
// consumes them from a queue bound with the queue name as routing key.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	// reconnectMu serializes dials; mu guards conn and channel.
	reconnectMu sync.Mutex
	mu          sync.Mutex
	conn        connection
	channel     channel
	dial        dialFunc

	breaker *breaker
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		breaker:      newBreaker(),
	}
	c.dial = c.dialBroker
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	if _, err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// dialBroker connects with a bounded dial timeout and declares the topology.
func (c *Client) dialBroker() (connection, channel, error) {
	conn, err := amqp091.DialConfig(c.url, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, c.exchangeName, c.queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return conn, ch, nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// connect dials and swaps in the new session, closing the one it replaces.
// Callers hold reconnectMu.
func (c *Client) connect() (channel, error) {
	conn, ch, err := c.dial()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	oldConn, oldCh := c.conn, c.channel
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	if oldCh != nil {
		oldCh.Close()
	}
	if oldConn != nil {
		oldConn.Close()
	}
	return ch, nil
}

func (c *Client) live() (channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, true
	}
	return nil, false
}

// currentChannel returns the live channel or redials. When wait is false
// and a reconnect is already running it returns ErrReconnecting instead of
// queueing behind it.
func (c *Client) currentChannel(wait bool) (channel, error) {
	if ch, ok := c.live(); ok {
		return ch, nil
	}

	if wait {
		c.reconnectMu.Lock()
	} else if !c.reconnectMu.TryLock() {
		return nil, ErrReconnecting
	}
	defer c.reconnectMu.Unlock()

	if ch, ok := c.live(); ok {
		return ch, nil
	}
	return c.connect()
}

// PublishTransactionEvent implements ports.EventPublisher. It fails fast
// while the breaker is open or another request is redialing.
func (c *Client) PublishTransactionEvent(ctx context.Context, e core.TransactionEvent) error {
	body, err := NewTransactionEventMessage(e).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if c.breaker.isOpen() {
		return ErrCircuitOpen
	}

	ch, err := c.currentChannel(false)
	if err != nil {
		c.breaker.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Type:         string(e.Type),
		Body:         body,
	})
	if err != nil {
		c.breaker.recordFailure()
		if isConnectionError(err) {
			c.dropChannel()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.breaker.recordSuccess()

	slog.DebugContext(ctx, "Published transaction event",
		"type", e.Type,
		"transaction_id", e.TransactionID,
		"exchange", c.exchangeName)
	return nil
}

func (c *Client) dropChannel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Handler processes one event. Returning an error requeues the delivery.
type Handler func(ctx context.Context, msg *TransactionEventMessage) error

var errDeliveriesClosed = errors.New("delivery channel closed")

// ConsumeTransactionEvents blocks until ctx is done, redialing with
// exponential backoff when the broker connection drops.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, errDeliveriesClosed) && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		c.dropChannel()
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler, onConnected func()) error {
	ch, err := c.currentChannel(true)
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	onConnected()
	slog.InfoContext(ctx, "Started consuming transaction events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			handleDelivery(ctx, d, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery handleDelivery needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type delivery interface {
	acknowledger
	body() []byte
}

type amqpDelivery struct{ amqp091.Delivery }

func (d amqpDelivery) body() []byte { return d.Body }

func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	process(ctx, amqpDelivery{d}, handler)
}

// process acks on success, requeues on handler failure and drops messages
// that cannot be decoded.
func process(ctx context.Context, d delivery, handler Handler) {
	msg, err := TransactionEventMessageFromJSON(d.body())
	if err != nil {
		slog.ErrorContext(ctx, "Dropping undecodable message", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle transaction event",
			"error", err,
			"type", msg.Type,
			"transaction_id", msg.TransactionID)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
