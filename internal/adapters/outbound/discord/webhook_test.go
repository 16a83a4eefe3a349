package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/kite-terminal/internal/events"
)

func TestNotifier_Disabled(t *testing.T) {
	n := NewNotifier("")
	assert.False(t, n.Enabled())
	assert.NoError(t, n.SendText(context.Background(), "hello"))
}

func TestOrderFill_PostsEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).OrderFill(context.Background(), events.OrderFilled{
		OrderID: "o-1", Symbol: "NIFTY 50", Side: "SELL", Qty: 1500, Price: 22001.5, Cash: 33012250,
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "Paper SELL NIFTY 50", e.Title)
	assert.Equal(t, ColorRed, e.Color)
	assert.NotEmpty(t, e.Timestamp)
	assert.Equal(t, []Field{
		{Name: "Qty", Value: "1,500", Inline: true},
		{Name: "Price", Value: "22,001.5", Inline: true},
		{Name: "Cash", Value: "33,012,250", Inline: true},
		{Name: "Order ID", Value: "o-1"},
	}, e.Fields)
}

func TestStrategyHalted_PostsEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).StrategyHalted(context.Background(), events.StrategyHalted{Symbol: "NIFTY 50", DayPnL: -21050.25, Limit: 20000})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Strategy halted: NIFTY 50", got.Embeds[0].Title)
	assert.Equal(t, ColorRed, got.Embeds[0].Color)
	assert.Equal(t, []Field{
		{Name: "Day PnL", Value: "-21,050.25", Inline: true},
		{Name: "Limit", Value: "20,000", Inline: true},
	}, got.Embeds[0].Fields)
}

func TestSend_StatusErrors(t *testing.T) {
	var code atomic.Int32
	code.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(code.Load()))
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	assert.ErrorContains(t, n.SendText(context.Background(), "x"), "rate limited")

	code.Store(http.StatusInternalServerError)
	assert.ErrorContains(t, n.SendText(context.Background(), "x"), "status=500")
}

func TestAttach_PostsFills(t *testing.T) {
	var (
		mu     sync.Mutex
		titles []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		for _, e := range p.Embeds {
			titles = append(titles, e.Title)
		}
		mu.Unlock()
	}))
	defer srv.Close()

	bus := events.NewBus()
	NewNotifier(srv.URL).Attach(bus)
	bus.Publish(events.Event{Type: events.EventOrderFilled, Payload: events.OrderFilled{Symbol: "NIFTY 50", Side: "BUY", Qty: 1}})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(titles) == 1 && titles[0] == "Paper BUY NIFTY 50"
	}, 2*time.Second, 5*time.Millisecond)
}
