package terminal

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/charleschow/kite-terminal/internal/telemetry"
)

const (
	StreamPort = 8000
	StreamPath = "/ws/ticks"
)

// StreamURL derives the tick stream endpoint from the page origin: same host,
// fixed port, wss when the page itself is served over https.
func StreamURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("page url %q has no host", pageURL)
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	stream := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(u.Hostname(), strconv.Itoa(StreamPort)),
		Path:   StreamPath,
	}
	return stream.String(), nil
}

// StreamListener owns the single tick stream connection and plots the first
// tick of every "ticks" message onto the chart series.
//
// The connection is created lazily, reused while open and replaced once it
// is not. connecting guards the window between deciding to dial and the dial
// completing, so overlapping Connect calls produce one connection.
type StreamListener struct {
	url    string
	dialer StreamDialer
	series ChartSeries

	mu         sync.Mutex
	conn       StreamConn
	connecting bool
}

func NewStreamListener(pageURL string, dialer StreamDialer, series ChartSeries) (*StreamListener, error) {
	streamURL, err := StreamURL(pageURL)
	if err != nil {
		return nil, err
	}
	return &StreamListener{
		url:    streamURL,
		dialer: dialer,
		series: series,
	}, nil
}

// URL returns the stream endpoint this listener dials.
func (l *StreamListener) URL() string { return l.url }

// Connect opens the stream unless one is already open or being opened.
// Dial failures are logged and returned; nothing else observes them.
func (l *StreamListener) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.connecting || (l.conn != nil && l.conn.IsOpen()) {
		l.mu.Unlock()
		return nil
	}
	l.connecting = true
	stale := l.conn
	l.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}

	conn, err := l.dialer.Dial(ctx, l.url, StreamHandlers{
		OnOpen:    l.onOpen,
		OnMessage: l.onMessage,
		OnClose:   l.onClose,
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.connecting = false
	if err != nil {
		telemetry.Warnf("stream: dial %s failed: %v", l.url, err)
		return fmt.Errorf("dial %s: %w", l.url, err)
	}
	l.conn = conn
	telemetry.Metrics.StreamConnects.Inc()
	return nil
}

// IsOpen reports whether the current connection is usable.
func (l *StreamListener) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil && l.conn.IsOpen()
}

func (l *StreamListener) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (l *StreamListener) onOpen() {
	telemetry.Infof("stream: opened %s", l.url)
}

func (l *StreamListener) onClose(err error) {
	if err != nil {
		telemetry.Infof("stream: closed (%v)", err)
		return
	}
	telemetry.Infof("stream: closed")
}

// onMessage handles one frame. A bad frame only loses itself.
func (l *StreamListener) onMessage(raw []byte) {
	telemetry.Metrics.StreamMessages.Inc()

	p, ok, err := ParseTickMessage(raw)
	if err != nil {
		telemetry.Metrics.StreamBadFrames.Inc()
		telemetry.Debugf("stream: dropping frame: %v", err)
		return
	}
	if !ok {
		return
	}

	if err := l.series.Update(p); err != nil {
		telemetry.Debugf("stream: series update: %v", err)
		return
	}
	telemetry.Metrics.SeriesUpdates.Inc()
}
