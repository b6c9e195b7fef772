package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConn is a Conn over a NATS server. Topics are NATS subjects.
type NATSConn struct {
	url  string
	name string
	nc   *nats.Conn

	mu        sync.RWMutex
	subs      map[string]*nats.Subscription
	published map[string]uint64
	received  uint64
	errors    uint64
}

// NewNATSConn creates a NATS connection to url (nats://host:port)
func NewNATSConn(url, name string) *NATSConn {
	return &NATSConn{
		url:       url,
		name:      name,
		subs:      make(map[string]*nats.Subscription),
		published: make(map[string]uint64),
	}
}

// Connect dials the server. The nats client reconnects on its own and keeps
// subscriptions across reconnects.
func (c *NATSConn) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats connection lost, will auto-reconnect", "error", err, "url", c.url)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	slog.Info("connecting to nats server", "url", c.url)
	nc, err := nats.Connect(c.url, opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}

	c.mu.Lock()
	c.nc = nc
	c.mu.Unlock()

	slog.Info("nats connection established", "url", nc.ConnectedUrl(), "name", c.name)
	return nil
}

func (c *NATSConn) Publish(subject string, payload []byte) error {
	c.mu.RLock()
	nc := c.nc
	c.mu.RUnlock()

	if nc == nil || !nc.IsConnected() {
		c.countError()
		return ErrNotConnected
	}
	if err := nc.Publish(subject, payload); err != nil {
		c.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	c.mu.Lock()
	c.published[subject]++
	c.mu.Unlock()

	slog.Debug("nats message published", "subject", subject, "size", len(payload))
	return nil
}

func (c *NATSConn) Subscribe(subject string, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil {
		return ErrNotConnected
	}
	if old, ok := c.subs[subject]; ok {
		_ = old.Unsubscribe()
	}

	slog.Info("subscribing", "transport", "nats", "subject", subject)
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		c.mu.Lock()
		c.received++
		c.mu.Unlock()
		handler(m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscription failed: %w", err)
	}
	c.subs[subject] = sub
	return nil
}

// Disconnect drains subscriptions and closes the connection
func (c *NATSConn) Disconnect() error {
	c.mu.Lock()
	nc := c.nc
	c.nc = nil
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("nats drain failed: %w", err)
	}
	slog.Info("nats disconnected")
	return nil
}

func (c *NATSConn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

func (c *NATSConn) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	published := make(map[string]uint64, len(c.published))
	for k, v := range c.published {
		published[k] = v
	}
	return Stats{
		Connected: c.nc != nil && c.nc.IsConnected(),
		Published: published,
		Received:  c.received,
		Errors:    c.errors,
	}
}

func (c *NATSConn) countError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}
