package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "finanzas/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrPermanent marks handler failures that must not be retried; the message
// is rejected instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// Client publishes and consumes sync requests on a durable direct exchange.
// A broken connection is re-established on the next publish or by the
// consumer loop; repeated publish failures open a circuit breaker.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *applog.Logger

	mu          sync.Mutex
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	lastFailure time.Time

	failureCount int64
	state        int32
}

func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}
	if _, err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) log() *applog.Logger {
	if c.logger == nil {
		return applog.Discard()
	}
	return c.logger.WithComponent(applog.ComponentAMQP)
}

// ensureChannel returns the open channel, dialing again when needed.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel = conn, channel
	return channel, nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishSyncRequest publishes a persistent request to run the sync job
// named label (or LabelAll) and returns the published message.
func (c *Client) PublishSyncRequest(ctx context.Context, label string) (*SyncRequestMessage, error) {
	if c.isCircuitOpen() {
		return nil, fmt.Errorf("publish sync request: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := NewSyncRequestMessage(label)
	body, err := msg.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(pubCtx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.RequestID.String(),
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.dropChannel()
		}
		return nil, fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.log().InfoContext(ctx, "Published sync request",
		applog.FieldSyncLabel, msg.Label,
		applog.FieldRequestID, msg.RequestID.String(),
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return msg, nil
}

// SyncRequestHandler processes one request. Returning an error wrapping
// ErrPermanent rejects the message; any other error requeues it.
type SyncRequestHandler func(ctx context.Context, msg *SyncRequestMessage) error

// ConsumeSyncRequests processes messages one at a time until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) ConsumeSyncRequests(ctx context.Context, handler SyncRequestHandler) error {
	for attempt := 0; ; {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			c.log().InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}

		wait := exponentialBackoff(attempt)
		c.log().WarnContext(ctx, "Consumer interrupted, reconnecting",
			applog.FieldError, err, "attempt", attempt+1, "backoff", wait.String())
		c.dropChannel()
		if err == nil {
			attempt = 0
		} else {
			attempt++
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// consumeOnce returns nil when the delivery channel closes after a working
// subscription, or the error that prevented consuming.
func (c *Client) consumeOnce(ctx context.Context, handler SyncRequestHandler) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log().InfoContext(ctx, "Started consuming sync requests", "queue", c.queueName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler SyncRequestHandler) {
	logger := c.log()
	msg, err := SyncRequestMessageFromJSON(d.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Rejecting malformed message", applog.FieldError, err)
		if rejErr := d.Reject(false); rejErr != nil {
			logger.ErrorContext(ctx, "Failed to reject message", applog.FieldError, rejErr)
		}
		return
	}

	fields := []any{applog.FieldSyncLabel, msg.Label, applog.FieldRequestID, msg.RequestID.String()}
	logger.InfoContext(ctx, "Processing sync request", fields...)

	if err := handler(ctx, msg); err != nil {
		requeue := !errors.Is(err, ErrPermanent)
		logger.ErrorContext(ctx, "Failed to handle sync request",
			append(fields, applog.FieldError, err, "requeue", requeue)...)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			logger.ErrorContext(ctx, "Failed to nack message", applog.FieldError, nackErr)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logger.ErrorContext(ctx, "Failed to ack message", applog.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Processed sync request", fields...)
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"connection", "EOF", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isCircuitOpen moves an open circuit to half-open once openTimeout has
// passed since the last failure, letting one attempt through.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) dropChannel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		err = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, amqp091.ErrClosed) {
			err = cerr
		}
		c.conn = nil
	}
	return err
}
