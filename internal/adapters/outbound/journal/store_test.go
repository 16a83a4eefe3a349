package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/core/broker"
	"github.com/charleschow/kite-terminal/internal/core/instruments"
	"github.com/charleschow/kite-terminal/internal/core/quotes"
	"github.com/charleschow/kite-terminal/internal/events"
)

var _ broker.PriceHistory = (*Store)(nil)

func openTemp(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "sub", "journal.db"), maxBytes)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTemp(t, 0)

	require.NoError(t, s.Append(KindTicks, []byte(`[{"tradingsymbol":"NIFTY 50","last_price":1}]`)))
	require.NoError(t, s.Append(KindOrder, []byte(`{"order_id":"a","symbol":"NIFTY 50"}`)))
	require.NoError(t, s.Append(KindTicks, []byte(`[{"tradingsymbol":"NIFTY BANK","last_price":2}]`)))

	all, err := s.Recent(Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, KindTicks, all[0].Kind)
	assert.Contains(t, string(all[0].Raw), "NIFTY BANK")
	assert.False(t, all[0].Received.IsZero())

	orders, err := s.Recent(Query{Kind: KindOrder})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, `{"order_id":"a","symbol":"NIFTY 50"}`, string(orders[0].Raw))

	bank, err := s.Recent(Query{Contains: "nifty bank"})
	require.NoError(t, err)
	assert.Len(t, bank, 1)
}

func TestAppend_EvictsOldest(t *testing.T) {
	s := openTemp(t, 1000)

	payload := []byte(strings.Repeat("x", 100))
	for i := 0; i < 60; i++ {
		require.NoError(t, s.Append(KindTicks, payload))
	}

	assert.LessOrEqual(t, s.Size(), int64(1000))

	entries, err := s.Recent(Query{Limit: 100})
	require.NoError(t, err)
	assert.Less(t, len(entries), 60)
	assert.Equal(t, int64(60), entries[0].ID)
}

func TestAttach_JournalsBusEvents(t *testing.T) {
	s := openTemp(t, 0)
	bus := events.NewBus()
	s.Attach(bus)

	bus.Publish(events.Event{Type: events.EventTicks, Payload: []events.Tick{{InstrumentToken: 256265, LastPrice: 5}}})
	bus.Publish(events.Event{Type: events.EventOrderFilled, Payload: events.OrderFilled{OrderID: "o-9"}})
	bus.Publish(events.Event{Type: events.EventBar, Payload: events.Bar{InstrumentToken: 256265, Start: 1, Close: 5}})
	s.pending.Wait()

	entries, err := s.Recent(Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	kinds := []string{entries[0].Kind, entries[1].Kind, entries[2].Kind}
	assert.ElementsMatch(t, []string{KindTicks, KindOrder, KindBar}, kinds)
}

func TestLastTick(t *testing.T) {
	s := openTemp(t, 0)
	ctx := context.Background()

	_, ok, err := s.LastTick(ctx, 256265)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Append(KindTicks, []byte(`[{"instrument_token":256265,"timestamp":1,"last_price":100},{"instrument_token":260105,"timestamp":1,"last_price":470}]`)))
	require.NoError(t, s.Append(KindTicks, []byte(`[{"instrument_token":256265,"timestamp":2,"last_price":101}]`)))
	require.NoError(t, s.Append(KindOrder, []byte(`{"order_id":"x","instrument_token":260105,"price":1}`)))
	require.NoError(t, s.Append(KindTicks, []byte(`not json`)))

	tick, ok, err := s.LastTick(ctx, 256265)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 101.0, tick.LastPrice)
	assert.Equal(t, int64(2), tick.Timestamp)

	tick, ok, err = s.LastTick(ctx, 260105)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 470.0, tick.LastPrice)

	_, ok, err = s.LastTick(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastTick_PricesPaperAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	before, err := OpenStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, before.Append(KindTicks, []byte(`[{"instrument_token":256265,"tradingsymbol":"NIFTY 50","timestamp":1700000000000,"last_price":22105.35}]`)))
	require.NoError(t, before.Close())

	after, err := OpenStore(path, 0)
	require.NoError(t, err)
	defer after.Close()

	reg, err := instruments.NewRegistry([]config.Instrument{{Symbol: "NIFTY 50", Token: 256265, Exchange: "NSE"}}, nil)
	require.NoError(t, err)
	paper := broker.NewPaper(reg, quotes.NewBook(), nil, 0).WithHistory(after)

	q, err := paper.LTP(context.Background(), "nifty")
	require.NoError(t, err)
	assert.Equal(t, 22105.35, q.LastPrice)
}

func TestOpenStore_RestoresSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := OpenStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Append(KindOrder, []byte(`{"a":1}`)))
	require.NoError(t, s.Close())

	reopened, err := OpenStore(path, 0)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, int64(len(`{"a":1}`)), reopened.Size())
}
