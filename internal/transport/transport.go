// Package transport carries chat traffic between the bot bridge and this
// process over a message broker.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
)

// ErrNotConnected is returned by Publish before Connect or after Disconnect
var ErrNotConnected = errors.New("transport not connected")

// Handler receives the payload of a message on a subscribed topic
type Handler func(payload []byte)

// Conn is a publish/subscribe connection to a broker
type Conn interface {
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte) error
	// Subscribe registers handler for topic. Subscriptions survive
	// reconnects.
	Subscribe(topic string, handler Handler) error
	Disconnect() error
	IsConnected() bool
	Stats() Stats
}

// Stats contains connection statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Received  uint64            `json:"received"`
	Errors    uint64            `json:"errors"`
}

// New creates the connection selected by cfg. It is not connected yet.
func New(cfg config.BotConfig) (Conn, error) {
	switch cfg.Transport {
	case "mqtt":
		return NewMQTTConn(cfg.Broker, cfg.ClientID, cfg.QoS), nil
	case "nats":
		return NewNATSConn(cfg.Broker, cfg.ClientID), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
}
