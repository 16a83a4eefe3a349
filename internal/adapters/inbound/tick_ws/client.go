package tick_ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/kite-terminal/internal/core/terminal"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

var _ terminal.StreamDialer = (*Dialer)(nil)

const writeWait = 5 * time.Second

// Dialer opens tick stream connections with gorilla/websocket.
type Dialer struct {
	ws *websocket.Dialer
}

func NewDialer() *Dialer {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = 10 * time.Second
	return &Dialer{ws: &d}
}

// Dial connects to url and starts delivering frames to h on a dedicated
// goroutine, in arrival order. There is no reconnect: once the read loop
// ends the connection reports closed and h.OnClose fires exactly once.
func (d *Dialer) Dial(ctx context.Context, url string, h terminal.StreamHandlers) (terminal.StreamConn, error) {
	ws, _, err := d.ws.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	c := &Conn{ws: ws, handlers: h, done: make(chan struct{})}
	c.open.Store(true)

	ws.SetPingHandler(func(appData string) error {
		err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	if h.OnOpen != nil {
		h.OnOpen()
	}
	go c.readLoop()
	return c, nil
}

// Conn is one live tick stream connection.
//
// Gorilla/websocket supports one concurrent reader and one concurrent
// writer; reads happen only in readLoop and the only write is the close
// frame, serialized by closeOnce.
type Conn struct {
	ws       *websocket.Conn
	handlers terminal.StreamHandlers
	open     atomic.Bool
	done     chan struct{}

	closeOnce sync.Once
}

func (c *Conn) IsOpen() bool { return c.open.Load() }

// Done is closed once the read loop has exited.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a normal close frame and tears the connection down.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)

	var readErr error
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(data)
		}
	}

	c.open.Store(false)
	_ = c.ws.Close()

	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		readErr = nil
	} else {
		telemetry.Debugf("tick_ws: read loop ended: %v", readErr)
	}
	if c.handlers.OnClose != nil {
		c.handlers.OnClose(readErr)
	}
}
