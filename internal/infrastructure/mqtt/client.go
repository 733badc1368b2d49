package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
)

// Client publishes and receives prodev change events over one broker
// connection. It is safe for concurrent use. Subscriptions survive
// reconnects.
type Client struct {
	paho   pahomqtt.Client
	opts   *pahomqtt.ClientOptions
	cfg    config.MQTTConfig
	topics Topics
	hooks  hooks

	connected atomic.Bool
	subs      *xsync.MapOf[string, subscription]
}

// Logger receives handler failures and connection loss.
// *logging.Logger and *slog.Logger satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler handles one message. Handlers run on paho's goroutines
// and should return quickly; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Option configures a Client at Connect time.
type Option func(*hooks)

type hooks struct {
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// WithLogger reports handler errors, handler panics and connection loss.
func WithLogger(l Logger) Option {
	return func(h *hooks) { h.logger = l }
}

// WithOnConnect runs fn after every connect and reconnect, once
// subscriptions have been restored.
func WithOnConnect(fn func()) Option {
	return func(h *hooks) { h.onConnect = fn }
}

// WithOnDisconnect runs fn when the connection is lost.
func WithOnDisconnect(fn func(err error)) Option {
	return func(h *hooks) { h.onDisconnect = fn }
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and waits for the first connection.
//
// The broker publishes a retained offline status on the client's behalf if
// it vanishes; an online status replaces it on every (re)connect.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := newClient(cfg, opts...)

	c.opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	c.opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	c.paho = pahomqtt.NewClient(c.opts)

	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no answer from broker within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler may still be pending.
	c.connected.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		subs:   xsync.NewMapOf[string, subscription](),
	}
	for _, opt := range opts {
		opt(&c.hooks)
	}

	c.opts = clientOptions(cfg, c.topics)
	return c
}

// Topics returns the topic layout under this client's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) onConnect() {
	c.connected.Store(true)

	c.subs.Range(func(topic string, sub subscription) bool {
		c.paho.Subscribe(topic, sub.qos, c.deliver(sub.handler))
		return true
	})
	c.paho.Publish(c.topics.Status(), byte(c.cfg.QoS), true, newStatus(StateOnline, c.opts.ClientID, "").payload())

	if c.hooks.onConnect != nil {
		c.hooks.onConnect()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)

	if c.hooks.logger != nil {
		c.hooks.logger.Warn("MQTT connection lost", "error", err)
	}
	if c.hooks.onDisconnect != nil {
		c.hooks.onDisconnect(err)
	}
}

// deliver adapts handler to paho, recovering panics and logging errors.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		log := c.hooks.logger
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && log != nil {
			log.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// HealthCheck returns ErrNotConnected while the connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close announces a graceful offline status and disconnects. Closing an
// unconnected client is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.paho.Publish(c.topics.Status(), byte(c.cfg.QoS), true, newStatus(StateOffline, c.opts.ClientID, ReasonShutdown).payload()).
			WaitTimeout(ackTimeout)
	}
	c.connected.Store(false)
	c.paho.Disconnect(disconnectQuiesce)
	return nil
}
