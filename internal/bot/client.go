// Package bot sends chat messages through the chat bridge. Messages are
// published as JSON on the outgoing topic of a transport connection.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/transport"
)

// OutgoingMessage is the payload published for every chat line
type OutgoingMessage struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Config configures a Client
type Config struct {
	Topic      string
	RatePerSec float64
	Burst      int
	TimeUnit   time.Duration // unit of delays, spans and offsets
}

// Client delivers messages immediately, after a delay, or repeatedly.
// Delays are expressed in time units so that chat pacing can be tuned in
// configuration.
type Client struct {
	conn    transport.Conn
	cfg     Config
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[*time.Timer]struct{}

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewClient creates a client publishing on conn
func NewClient(conn transport.Conn, cfg Config) *Client {
	if cfg.TimeUnit <= 0 {
		cfg.TimeUnit = time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:    conn,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[*time.Timer]struct{}),
	}
}

// Message sends text now
func (c *Client) Message(text string) {
	if err := c.send(text); err != nil {
		slog.Warn("bot message failed", "error", err, "text", text)
	}
}

// MessageAfter sends text after delay time units
func (c *Client) MessageAfter(text string, delay int) {
	c.schedule(text, c.units(float64(delay)))
}

// RepeatMessage sends text count times, spread evenly over span units and
// starting offset units from now
func (c *Client) RepeatMessage(text string, count, span, offset int) {
	if count <= 0 {
		return
	}
	for i := 0; i < count; i++ {
		at := float64(offset) + float64(i)*float64(span)/float64(count)
		c.schedule(text, c.units(at))
	}
}

func (c *Client) units(n float64) time.Duration {
	return time.Duration(n * float64(c.cfg.TimeUnit))
}

func (c *Client) schedule(text string, after time.Duration) {
	if after <= 0 {
		c.Message(text)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(after, func() {
		c.mu.Lock()
		delete(c.pending, t)
		c.mu.Unlock()
		c.Message(text)
	})
	c.pending[t] = struct{}{}
}

func (c *Client) send(text string) error {
	if err := c.limiter.Wait(c.ctx); err != nil {
		c.failed.Add(1)
		return fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(OutgoingMessage{Text: text, SentAt: time.Now().UTC()})
	if err != nil {
		c.failed.Add(1)
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := c.conn.Publish(c.cfg.Topic, payload); err != nil {
		c.failed.Add(1)
		return err
	}

	c.sent.Add(1)
	slog.Debug("bot message sent", "topic", c.cfg.Topic, "text", text)
	return nil
}

// Pending returns the number of scheduled messages not yet sent
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Counts returns sent and failed message counts
func (c *Client) Counts() (sent, failed uint64) {
	return c.sent.Load(), c.failed.Load()
}

// Close drops scheduled messages and unblocks rate-limited sends
func (c *Client) Close() {
	c.mu.Lock()
	c.cancel()
	dropped := len(c.pending)
	for t := range c.pending {
		t.Stop()
	}
	c.pending = make(map[*time.Timer]struct{})
	c.mu.Unlock()

	if dropped > 0 {
		slog.Info("bot closed with scheduled messages dropped", "dropped", dropped)
	}
}
