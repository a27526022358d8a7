package rabbitmq

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// Client represents a RabbitMQ client.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Channel returns the underlying AMQP channel.
func (r *Client) Channel() *amqp.Channel {
	return r.channel
}

// Connection returns the underlying AMQP connection.
func (r *Client) Connection() *amqp.Connection {
	return r.conn
}

// Close closes the channel and connection for graceful shutdown.
func (r *Client) Close() error {
	if r.channel != nil {
		if err := ignoreClosed(r.channel.Close()); err != nil {
			return err
		}
	}
	if r.conn != nil {
		if err := ignoreClosed(r.conn.Close()); err != nil {
			return err
		}
	}

	return nil
}

// ignoreClosed drops amqp.ErrClosed, which the broker reports for an already closed handle.
func ignoreClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}

	return err
}

// URL builds the broker address from rabbitmq.* settings. Credentials fall back
// to RABBITMQ_DEFAULT_USER and RABBITMQ_DEFAULT_PASS.
func URL() string {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")
	user := viper.GetString("rabbitmq.user")
	password := viper.GetString("rabbitmq.password")

	if host == "" {
		host = "rabbitmq"
	}
	if port == 0 {
		port = 5672
	}
	if user == "" {
		user = os.Getenv("RABBITMQ_DEFAULT_USER")
	}
	if password == "" {
		password = os.Getenv("RABBITMQ_DEFAULT_PASS")
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%d/", user, password, host, port)
}

// NewClient dials the broker and opens a channel.
func NewClient(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("Failed to close a connection", "error", closeErr)
		}

		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return &Client{
		conn:    conn,
		channel: channel,
	}, nil
}

// MustNewClient creates a new RabbitMQ client.
func MustNewClient() *Client {
	client, err := NewClient(URL())
	if err != nil {
		panic(err.Error())
	}
	slog.Info("RabbitMQ connected", "host", viper.GetString("rabbitmq.host"), "port", viper.GetInt("rabbitmq.port"))

	return client
}

type DeclareExchangeConfig struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareExchange declares an exchange with the given configuration.
func (r *Client) DeclareExchange(cfg DeclareExchangeConfig) error {
	return r.channel.ExchangeDeclare(
		cfg.Name,
		cfg.Kind,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Internal,
		cfg.NoWait,
		cfg.Args,
	)
}

type DeclareQueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareQueue declares a queue with the given configuration.
func (r *Client) DeclareQueue(cfg DeclareQueueConfig) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		cfg.Name,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Exclusive,
		cfg.NoWait,
		cfg.Args,
	)
}

// BindQueue routes messages published to exchange with key into queue.
func (r *Client) BindQueue(queue, key, exchange string) error {
	return r.channel.QueueBind(queue, key, exchange, false, nil)
}

// UnbindQueue removes a binding created by BindQueue.
func (r *Client) UnbindQueue(queue, key, exchange string) error {
	return r.channel.QueueUnbind(queue, key, exchange, nil)
}

type ConsumeConfig struct {
	Queue     string
	Consumer  string
	AutoAck   bool
	Exclusive bool
	NoLocal   bool
	NoWait    bool
	Args      amqp.Table
}

// Consume starts consuming messages from the queue.
func (r *Client) Consume(cfg ConsumeConfig) (<-chan amqp.Delivery, error) {
	return r.channel.Consume(
		cfg.Queue,
		cfg.Consumer,
		cfg.AutoAck,
		cfg.Exclusive,
		cfg.NoLocal,
		cfg.NoWait,
		cfg.Args,
	)
}
