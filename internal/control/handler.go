// Package control receives chat messages from the bot bridge and answers
// the commands among them.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/transport"
)

// ChatMessage is one chat line forwarded by the bot bridge. Bridges may
// send the flags as strings or numbers.
type ChatMessage struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Mod       bool   `json:"mod"`
	SuperUser bool   `json:"superuser"`
}

// Commander answers chat commands
type Commander interface {
	ProcessCommand(user, cmd string, isMod, isSuperUser bool) string
}

// Replier sends a reply to chat
type Replier interface {
	Message(text string)
}

// Stats contains handler counters
type Stats struct {
	Received uint64 `json:"received"`
	Replied  uint64 `json:"replied"`
	Invalid  uint64 `json:"invalid"`
	Dropped  uint64 `json:"dropped"`
}

// Handler handles inbound chat
type Handler struct {
	conn      transport.Conn
	topic     string
	commander Commander
	replier   Replier
	messages  chan ChatMessage

	done     chan struct{}
	stopOnce sync.Once

	received atomic.Uint64
	replied  atomic.Uint64
	invalid  atomic.Uint64
	dropped  atomic.Uint64
}

// NewHandler creates a handler for chat arriving on topic
func NewHandler(conn transport.Conn, topic string, commander Commander, replier Replier) *Handler {
	return &Handler{
		conn:      conn,
		topic:     topic,
		commander: commander,
		replier:   replier,
		messages:  make(chan ChatMessage, 32),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the chat topic and processes messages until ctx is
// cancelled or Stop is called
func (h *Handler) Start(ctx context.Context) error {
	slog.Info("subscribing to chat", "topic", h.topic)
	if err := h.conn.Subscribe(h.topic, h.messageHandler); err != nil {
		return fmt.Errorf("chat subscription failed: %w", err)
	}

	go h.processMessages(ctx)

	slog.Info("chat handler started")
	return nil
}

// Stop stops processing. Messages still queued are discarded.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		slog.Info("chat handler stopped")
	})
}

// Stats returns the handler counters
func (h *Handler) Stats() Stats {
	return Stats{
		Received: h.received.Load(),
		Replied:  h.replied.Load(),
		Invalid:  h.invalid.Load(),
		Dropped:  h.dropped.Load(),
	}
}

// messageHandler is called by the transport for every chat payload
func (h *Handler) messageHandler(payload []byte) {
	select {
	case <-h.done:
		return
	default:
	}

	msg, err := Decode(payload)
	if err != nil {
		h.invalid.Add(1)
		slog.Warn("failed to parse chat message", "error", err)
		return
	}
	h.received.Add(1)

	select {
	case h.messages <- msg:
	default:
		h.dropped.Add(1)
		slog.Warn("chat queue full, dropping message", "user", msg.User)
	}
}

func (h *Handler) processMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case msg := <-h.messages:
			h.handleMessage(msg)
		}
	}
}

func (h *Handler) handleMessage(msg ChatMessage) {
	reply := h.commander.ProcessCommand(msg.User, msg.Text, msg.Mod, msg.SuperUser)
	if reply == "" {
		return
	}
	h.replier.Message(reply)
	h.replied.Add(1)
}

// Decode parses a chat payload. The payload is a JSON object; field values
// are converted to the field types where possible.
func Decode(payload []byte) (ChatMessage, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ChatMessage{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var msg ChatMessage
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &msg,
	})
	if err != nil {
		return ChatMessage{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return ChatMessage{}, fmt.Errorf("invalid chat message: %w", err)
	}
	if msg.User == "" {
		return ChatMessage{}, fmt.Errorf("chat message without user")
	}
	return msg, nil
}
