package fanout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// Backoff doubles the wait after each consecutive failed session, from Min
// up to Max.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

func (b Backoff) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := b.Min
	for i := 1; i < failures && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max)
}

// ClientStats counts what a Client has seen across sessions.
type ClientStats struct {
	Connected bool
	Sessions  int64
	Frames    int64
	BadFrames int64
}

// Client follows a bridge's /ws/ticks stream and republishes each frame onto
// a local bus. It reconnects until its context ends and remembers the last
// ticker status the bridge announced.
type Client struct {
	url    string
	bus    *events.Bus
	dialer websocket.Dialer
	retry  Backoff

	// A session with no frame or ping for this long is treated as dead.
	idle time.Duration

	connected atomic.Bool
	sessions  atomic.Int64
	frames    atomic.Int64
	badFrames atomic.Int64

	mu     sync.Mutex
	status *events.TickerStatusEvent
}

// NewClient takes the full stream URL, e.g. ws://localhost:8000/ws/ticks.
func NewClient(url string, bus *events.Bus) *Client {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = 10 * time.Second
	return &Client{
		url:    url,
		bus:    bus,
		dialer: d,
		retry:  Backoff{Min: time.Second, Max: 30 * time.Second},
		idle:   pongWait + pingInterval,
	}
}

// Run follows the stream until ctx ends. A session that delivered frames
// resets the backoff.
func (c *Client) Run(ctx context.Context) {
	failures := 0
	for ctx.Err() == nil {
		frames, err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if frames > 0 {
			failures = 0
		}
		failures++

		wait := c.retry.Delay(failures)
		telemetry.Warnf("fanout: %s lost after %d frames: %v, retrying in %s", c.url, frames, err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (c *Client) session(ctx context.Context) (frames int, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.sessions.Add(1)
	c.connected.Store(true)
	defer c.connected.Store(false)
	telemetry.Infof("fanout: following %s", c.url)

	conn.SetReadDeadline(time.Now().Add(c.idle))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.idle))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeDeadline))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return frames, ctx.Err()
			}
			return frames, fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(c.idle))
		frames++
		c.frames.Add(1)

		evt, err := UnmarshalEvent(msg)
		if err != nil {
			c.badFrames.Add(1)
			telemetry.Warnf("fanout: %v", err)
			continue
		}
		if st, ok := evt.Payload.(events.TickerStatusEvent); ok {
			c.mu.Lock()
			c.status = &st
			c.mu.Unlock()
		}
		c.bus.Publish(evt)
	}
}

// TickerStatus returns the last status frame received, if any.
func (c *Client) TickerStatus() (events.TickerStatusEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return events.TickerStatusEvent{}, false
	}
	return *c.status, true
}

func (c *Client) Stats() ClientStats {
	return ClientStats{
		Connected: c.connected.Load(),
		Sessions:  c.sessions.Load(),
		Frames:    c.frames.Load(),
		BadFrames: c.badFrames.Load(),
	}
}
