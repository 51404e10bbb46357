package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	amqp "github.com/streadway/amqp"

	"productapi/internal/models"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  zerolog.Logger
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string
	Queue    string
}

// NewClient creates a new RabbitMQ client.
// It connects to RabbitMQ, declares the product events exchange and binds
// the events queue to it.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With().Str("component", "rabbitmq").Logger()
	logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.Queue).
		Msg("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, RoutingPattern, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// RoutingPattern matches every product event routing key.
const RoutingPattern = "product.*"

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishProductEvent publishes event to the products exchange, routed by
// its type.
func (c *Client) PublishProductEvent(ctx context.Context, event models.ProductEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := NewPublishing(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.channel.Publish(
		c.cfg.Exchange, // exchange
		event.Type,     // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	c.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int64("product_id", event.ProductID).
		Msg("published product event")
	return nil
}

// NewPublishing encodes event as a persistent JSON message.
func NewPublishing(event models.ProductEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal product event: %w", err)
	}

	messageID := event.ID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Type:         event.Type,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}, nil
}

// ConsumeProductEvents starts a goroutine that decodes messages from the
// events queue and passes them to handler. Messages are acked when handler
// succeeds and requeued when it fails. Undecodable messages are dropped.
// The goroutine exits when ctx is done or the channel closes.
func (c *Client) ConsumeProductEvents(ctx context.Context, handler func(ctx context.Context, event models.ProductEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info().Str("queue", c.cfg.Queue).Msg("waiting for product events")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("product event delivery channel closed")
					return
				}
				Dispatch(ctx, c.logger, msg.Body, msg.DeliveryTag, msg, handler)
			}
		}
	}()

	return nil
}

// Acknowledger is the subset of amqp.Delivery used to settle a message.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Dispatch decodes body and settles the message through ack according to
// handler's result.
func Dispatch(
	ctx context.Context,
	logger zerolog.Logger,
	body []byte,
	tag uint64,
	ack Acknowledger,
	handler func(context.Context, models.ProductEvent) error,
) {
	var event models.ProductEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Error().Err(err).Uint64("delivery_tag", tag).Msg("dropping undecodable product event")
		if nackErr := ack.Nack(false, false); nackErr != nil {
			logger.Error().Err(nackErr).Uint64("delivery_tag", tag).Msg("error nacking message")
		}
		return
	}

	if err := handler(ctx, event); err != nil {
		logger.Error().Err(err).
			Uint64("delivery_tag", tag).
			Str("event_type", event.Type).
			Msg("error processing product event")
		if nackErr := ack.Nack(false, true); nackErr != nil {
			logger.Error().Err(nackErr).Uint64("delivery_tag", tag).Msg("error nacking message")
		}
		return
	}

	if ackErr := ack.Ack(false); ackErr != nil {
		logger.Error().Err(ackErr).Uint64("delivery_tag", tag).Msg("error acking message")
	}
}

// LogProductEvent is a handler for ConsumeProductEvents that records each
// event it receives.
func LogProductEvent(logger zerolog.Logger) func(context.Context, models.ProductEvent) error {
	return func(_ context.Context, event models.ProductEvent) error {
		logger.Info().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Int64("product_id", event.ProductID).
			Time("occurred_at", event.OccurredAt).
			Msg("received product event")
		return nil
	}
}
