package terminal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charleschow/kite-terminal/internal/adapters/outbound/trading_http"
	"github.com/charleschow/kite-terminal/internal/core/chart"
)

type fakeConn struct {
	open atomic.Bool
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.open.Store(true)
	return c
}

func (c *fakeConn) IsOpen() bool { return c.open.Load() }
func (c *fakeConn) Close() error { c.open.Store(false); return nil }

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	urls     []string
	handlers StreamHandlers
	conns    []*fakeConn
	err      error
	gate     chan struct{} // when set, Dial blocks until it is closed
}

func (d *fakeDialer) Dial(ctx context.Context, url string, h StreamHandlers) (StreamConn, error) {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	d.handlers = h
	c := newFakeConn()
	d.conns = append(d.conns, c)
	if h.OnOpen != nil {
		h.OnOpen()
	}
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type recordingSeries struct {
	mu     sync.Mutex
	points []chart.Point
}

func (s *recordingSeries) Update(p chart.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
	return nil
}

func (s *recordingSeries) all() []chart.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chart.Point(nil), s.points...)
}

type mapForm map[string]string

func (f mapForm) Value(id string) string { return f[id] }

type fakePage struct {
	mu     sync.Mutex
	texts  map[string]string
	alerts []string
}

func newFakePage() *fakePage { return &fakePage{texts: map[string]string{}} }

func (p *fakePage) SetText(id, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[id] = text
}

func (p *fakePage) Alert(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, msg)
}

type fakeAPI struct {
	mu        sync.Mutex
	orders    []trading_http.PlaceOrderRequest
	symbols   []string
	orderBody []byte
	ltpBody   []byte
	err       error
}

func (a *fakeAPI) PlaceOrder(_ context.Context, req trading_http.PlaceOrderRequest) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, req)
	return a.orderBody, a.err
}

func (a *fakeAPI) LTP(_ context.Context, symbol string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.symbols = append(a.symbols, symbol)
	return a.ltpBody, a.err
}

var errNetwork = errors.New("Failed to fetch")
