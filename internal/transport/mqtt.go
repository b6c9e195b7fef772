package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConn is a Conn over an MQTT broker
type MQTTConn struct {
	broker   string
	clientID string
	qos      byte
	client   mqtt.Client

	mu        sync.RWMutex
	subs      map[string]Handler
	published map[string]uint64
	received  uint64
	errors    uint64
	connected bool
}

// NewMQTTConn creates an MQTT connection to broker (tcp://host:port)
func NewMQTTConn(broker, clientID string, qos byte) *MQTTConn {
	return &MQTTConn{
		broker:    broker,
		clientID:  clientID,
		qos:       qos,
		subs:      make(map[string]Handler),
		published: make(map[string]uint64),
	}
}

// Connect establishes the connection with automatic reconnects
func (c *MQTTConn) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.broker)
	opts.SetClientID(c.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(client mqtt.Client) {
		c.mu.Lock()
		c.connected = true
		subs := make(map[string]Handler, len(c.subs))
		for topic, h := range c.subs {
			subs[topic] = h
		}
		c.mu.Unlock()

		slog.Info("mqtt connection established",
			"broker", c.broker,
			"client_id", c.clientID,
			"auto_reconnect", "enabled")

		for topic, h := range subs {
			if err := c.subscribe(client, topic, h); err != nil {
				slog.Error("mqtt resubscribe failed", "topic", topic, "error", err)
			}
		}
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", c.broker,
			"max_retry_interval", "30s")
	}

	c.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", c.broker)

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
func (c *MQTTConn) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		c.countError()
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		c.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		c.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	c.mu.Lock()
	c.published[topic]++
	c.mu.Unlock()

	slog.Debug("mqtt message published", "topic", topic, "qos", c.qos, "size", len(payload))
	return nil
}

// Subscribe registers handler; it is (re)installed on every connect
func (c *MQTTConn) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.subscribe(c.client, topic, handler)
}

func (c *MQTTConn) subscribe(client mqtt.Client, topic string, handler Handler) error {
	slog.Info("subscribing", "transport", "mqtt", "topic", topic, "qos", c.qos)

	token := client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.mu.Lock()
		c.received++
		c.mu.Unlock()
		handler(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription failed: %w", err)
	}
	return nil
}

// Disconnect closes the connection with a short grace period
func (c *MQTTConn) Disconnect() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *MQTTConn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MQTTConn) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	published := make(map[string]uint64, len(c.published))
	for k, v := range c.published {
		published[k] = v
	}
	return Stats{
		Connected: c.connected,
		Published: published,
		Received:  c.received,
		Errors:    c.errors,
	}
}

func (c *MQTTConn) countError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}
