package fanout

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type tickClient struct {
	addr string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Server fans out bus events to every connected terminal. A client that
// connects after the ticker changed state is sent the latest status first.
type Server struct {
	mu         sync.Mutex
	clients    map[*tickClient]struct{}
	lastStatus []byte
}

func NewServer(bus *events.Bus) *Server {
	s := &Server{
		clients: make(map[*tickClient]struct{}),
	}
	for typ := range wireTypes {
		bus.Subscribe(typ, s.forward)
	}
	return s
}

// Clients returns the number of connected terminals.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// forward is called on the publisher's goroutine. It serializes the event
// and enqueues it to every client's send channel (non-blocking).
func (s *Server) forward(evt events.Event) error {
	data, err := MarshalEvent(evt)
	if err != nil {
		telemetry.Warnf("fanout: marshal error: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Type == events.EventTickerStatus {
		s.lastStatus = data
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			telemetry.Metrics.FanoutDrops.Inc()
			telemetry.Warnf("fanout: dropping message for slow client %s", c.addr)
		}
	}
	return nil
}

// HandleWS is the HTTP handler for WebSocket upgrade requests on /ws/ticks.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	c := &tickClient{
		addr: r.RemoteAddr,
		conn: conn,
		send: make(chan []byte, clientSendBuf),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.lastStatus != nil {
		c.send <- s.lastStatus
	}
	s.mu.Unlock()
	telemetry.Metrics.FanoutClients.Inc()

	telemetry.Plainf("Fanout: Client Connected [%s]", c.addr)

	go s.writePump(c)
	go s.readPump(c)
}

// writePump drains the client's send channel and writes to the WS connection.
// It owns the client lifecycle: on exit it removes the client from the map
// (so forward never sends to a stale channel) and closes the connection.
func (s *Server) writePump(c *tickClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("fanout: write error %s: %v", c.addr, err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by reading pongs / close frames.
// Anything a terminal sends is read and discarded.
// On exit it signals writePump via c.done (never closes c.send).
func (s *Server) readPump(c *tickClient) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (s *Server) removeClient(c *tickClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	telemetry.Metrics.FanoutClients.Dec()
	telemetry.Plainf("Fanout: Client Disconnected [%s]", c.addr)
}
