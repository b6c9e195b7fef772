package transport

import (
	"context"
	"sync"
)

// Loopback is an in-process Conn: published messages are recorded and
// delivered synchronously to local subscribers. Used for dry runs and tests.
type Loopback struct {
	mu        sync.Mutex
	connected bool
	subs      map[string][]Handler
	messages  []Message
	published map[string]uint64
	received  uint64
}

// Message is a recorded publication
type Message struct {
	Topic   string
	Payload []byte
}

func NewLoopback() *Loopback {
	return &Loopback{
		subs:      make(map[string][]Handler),
		published: make(map[string]uint64),
	}
}

func (l *Loopback) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Publish(topic string, payload []byte) error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return ErrNotConnected
	}
	l.messages = append(l.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	l.published[topic]++
	handlers := append([]Handler(nil), l.subs[topic]...)
	l.received += uint64(len(handlers))
	l.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (l *Loopback) Subscribe(topic string, handler Handler) error {
	l.mu.Lock()
	l.subs[topic] = append(l.subs[topic], handler)
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Disconnect() error {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	return nil
}

func (l *Loopback) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Loopback) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	published := make(map[string]uint64, len(l.published))
	for k, v := range l.published {
		published[k] = v
	}
	return Stats{Connected: l.connected, Published: published, Received: l.received}
}

// Messages returns the messages published on topic so far
func (l *Loopback) Messages(topic string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Message
	for _, m := range l.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
