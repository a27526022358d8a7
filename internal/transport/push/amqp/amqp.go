// Package amqp implements the push channel on a RabbitMQ topic exchange.
//
// Every client consumes from its own exclusive queue. Joining a room binds the
// queue with the room key as routing key; the event name travels in the message
// Type property and the payload in the body.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corray333/backend-labs/kds/internal/rabbitmq"
	"github.com/corray333/backend-labs/kds/internal/transport/push"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// Channel is a push.Channel over RabbitMQ.
type Channel struct {
	dial       func() (*rabbitmq.Client, error)
	exchange   string
	newBackoff func() retry.Backoff
	log        *slog.Logger

	mu     sync.Mutex
	client *rabbitmq.Client
	queue  string
	room   string
}

type option func(*Channel)

// WithDialer overrides how broker connections are opened.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDialer(dial func() (*rabbitmq.Client, error)) option {
	return func(c *Channel) {
		c.dial = dial
	}
}

// WithExchange sets the topic exchange the backend publishes order events to.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithExchange(exchange string) option {
	return func(c *Channel) {
		c.exchange = exchange
	}
}

// WithBackoff overrides the reconnect schedule.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBackoff(newBackoff func() retry.Backoff) option {
	return func(c *Channel) {
		c.newBackoff = newBackoff
	}
}

// NewChannel creates a channel that dials rabbitmq.URL() and listens on rabbitmq.exchange.
func NewChannel(opts ...option) *Channel {
	c := &Channel{
		dial: func() (*rabbitmq.Client, error) {
			return rabbitmq.NewClient(rabbitmq.URL())
		},
		exchange:   viper.GetString("rabbitmq.exchange"),
		newBackoff: push.NewBackoff,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("push", "amqp", "exchange", c.exchange)

	return c
}

// Run implements push.Channel.
func (c *Channel) Run(ctx context.Context, out chan<- push.Event) error {
	return push.RunWithReconnect(ctx, c.newBackoff, func(ctx context.Context) (bool, error) {
		return c.session(ctx, out)
	})
}

func (c *Channel) session(ctx context.Context, out chan<- push.Event) (bool, error) {
	client, err := c.dial()
	if err != nil {
		c.log.Warn("Push channel dial failed", "error", err)

		return false, err
	}
	deliveries, queue, err := c.setup(client)
	if err != nil {
		client.Close()
		c.log.Warn("Push channel setup failed", "error", err)

		return false, err
	}

	c.mu.Lock()
	c.client = client
	c.queue = queue
	c.room = ""
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer func() {
		stop()
		c.detach(client)
		client.Close()
	}()

	c.log.Info("Push channel connected", "queue", queue)
	if !push.Emit(ctx, out, push.Event{Kind: push.KindConnected}) {
		return true, nil
	}

	for msg := range deliveries {
		ev, err := decodeDelivery(msg)
		if err != nil {
			c.log.Warn("Push event dropped", "event", msg.Type, "error", err)
			continue
		}
		if !push.Emit(ctx, out, ev) {
			return true, nil
		}
	}

	if ctx.Err() == nil {
		c.log.Warn("Push channel connection lost")
	}
	c.detach(client)
	push.Emit(ctx, out, push.Event{Kind: push.KindDisconnected})

	return true, fmt.Errorf("amqp deliveries closed")
}

func (c *Channel) setup(client *rabbitmq.Client) (<-chan amqp.Delivery, string, error) {
	if err := client.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    c.exchange,
		Kind:    amqp.ExchangeTopic,
		Durable: true,
	}); err != nil {
		return nil, "", fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       "",
		Durable:    false,
		AutoDelete: true,
		Exclusive:  true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to declare queue: %w", err)
	}

	deliveries, err := client.Consume(rabbitmq.ConsumeConfig{
		Queue:     queue.Name,
		Consumer:  "kds",
		AutoAck:   true,
		Exclusive: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to consume: %w", err)
	}

	return deliveries, queue.Name, nil
}

func (c *Channel) detach(client *rabbitmq.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == client {
		c.client = nil
		c.queue = ""
		c.room = ""
	}
}

// Join implements push.Channel. An empty room only leaves the current one.
func (c *Channel) Join(_ context.Context, room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return push.ErrNotConnected
	}
	if c.room == room {
		return nil
	}
	if c.room != "" {
		if err := c.client.UnbindQueue(c.queue, c.room, c.exchange); err != nil {
			return fmt.Errorf("failed to leave room %s: %w", c.room, err)
		}
		c.room = ""
	}
	if room != "" {
		if err := c.client.BindQueue(c.queue, room, c.exchange); err != nil {
			return fmt.Errorf("failed to join room %s: %w", room, err)
		}
		c.room = room
		c.log.Info("Push channel room joined", "room", room)
	}

	return nil
}

// Close drops the live connection, if any.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}

	return c.client.Close()
}

func decodeDelivery(msg amqp.Delivery) (push.Event, error) {
	name := msg.Type
	if name == "" {
		if v, ok := msg.Headers["event"].(string); ok {
			name = v
		}
	}

	return push.Decode(name, msg.Body)
}
