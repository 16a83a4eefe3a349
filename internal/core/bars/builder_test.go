package bars

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/kite-terminal/internal/events"
)

func tk(ms int64, price, cumVolume float64) events.Tick {
	return events.Tick{InstrumentToken: 256265, TradingSymbol: "NIFTY 50", Timestamp: ms, LastPrice: price, Volume: cumVolume}
}

func TestIngest_Rollover(t *testing.T) {
	tests := []struct {
		name   string
		period time.Duration
		ticks  []events.Tick
		want   []events.Bar
		open   events.Bar
	}{
		{
			name:   "single bucket stays open",
			period: time.Second,
			ticks:  []events.Tick{tk(1000, 10, 100), tk(1200, 12, 110), tk(1999, 9, 130)},
			open:   events.Bar{Start: 1, Open: 10, High: 12, Low: 9, Close: 9, Volume: 30, Ticks: 3},
		},
		{
			name:   "next bucket closes the previous bar",
			period: time.Second,
			ticks:  []events.Tick{tk(1000, 10, 100), tk(1500, 11, 105), tk(2000, 12, 120)},
			want:   []events.Bar{{Start: 1, Open: 10, High: 11, Low: 10, Close: 11, Volume: 5, Ticks: 2}},
			open:   events.Bar{Start: 2, Open: 12, High: 12, Low: 12, Close: 12, Volume: 15, Ticks: 1},
		},
		{
			name:   "gap skips empty buckets",
			period: time.Second,
			ticks:  []events.Tick{tk(1000, 10, 1), tk(7400, 8, 4)},
			want:   []events.Bar{{Start: 1, Open: 10, High: 10, Low: 10, Close: 10, Volume: 0, Ticks: 1}},
			open:   events.Bar{Start: 7, Open: 8, High: 8, Low: 8, Close: 8, Volume: 3, Ticks: 1},
		},
		{
			name:   "wider period",
			period: 5 * time.Second,
			ticks:  []events.Tick{tk(10_000, 5, 0), tk(14_999, 6, 2), tk(15_000, 7, 3)},
			want:   []events.Bar{{Start: 10, Open: 5, High: 6, Low: 5, Close: 6, Volume: 2, Ticks: 2}},
			open:   events.Bar{Start: 15, Open: 7, High: 7, Low: 7, Close: 7, Volume: 1, Ticks: 1},
		},
		{
			name:   "older tick dropped",
			period: time.Second,
			ticks:  []events.Tick{tk(3000, 10, 50), tk(2500, 99, 60), tk(3100, 11, 55)},
			open:   events.Bar{Start: 3, Open: 10, High: 11, Low: 10, Close: 11, Volume: 5, Ticks: 2},
		},
		{
			name:   "volume reset counts from zero",
			period: time.Second,
			ticks:  []events.Tick{tk(1000, 10, 500), tk(1100, 10, 7)},
			open:   events.Bar{Start: 1, Open: 10, High: 10, Low: 10, Close: 10, Volume: 7, Ticks: 2},
		},
		{
			name:   "sub-second period widened",
			period: 200 * time.Millisecond,
			ticks:  []events.Tick{tk(1000, 1, 0), tk(1800, 2, 0)},
			open:   events.Bar{Start: 1, Open: 1, High: 2, Low: 1, Close: 2, Volume: 0, Ticks: 2},
		},
		{
			name:   "pre-epoch timestamps floor down",
			period: time.Second,
			ticks:  []events.Tick{tk(-1500, 4, 0), tk(-1000, 5, 0)},
			want:   []events.Bar{{Start: -2, Open: 4, High: 4, Low: 4, Close: 4, Volume: 0, Ticks: 1}},
			open:   events.Bar{Start: -1, Open: 5, High: 5, Low: 5, Close: 5, Volume: 0, Ticks: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.period)
			var got []events.Bar
			for _, tick := range tt.ticks {
				if bar, closed := b.Ingest(tick); closed {
					got = append(got, bar)
				}
			}

			for i := range tt.want {
				tt.want[i].InstrumentToken, tt.want[i].TradingSymbol = 256265, "NIFTY 50"
			}
			tt.open.InstrumentToken, tt.open.TradingSymbol = 256265, "NIFTY 50"

			assert.Equal(t, tt.want, got)
			open, ok := b.Current(256265)
			require.True(t, ok)
			assert.Equal(t, tt.open, open)
		})
	}
}

func TestIngest_InstrumentsIndependent(t *testing.T) {
	b := NewBuilder(time.Second)
	other := events.Tick{InstrumentToken: 260105, Timestamp: 1000, LastPrice: 47000, Volume: 1}

	b.Ingest(tk(1000, 10, 0))
	_, closed := b.Ingest(other)
	assert.False(t, closed)

	other.Timestamp = 2000
	bar, closed := b.Ingest(other)
	require.True(t, closed)
	assert.Equal(t, int64(260105), bar.InstrumentToken)

	cur, _ := b.Current(256265)
	assert.Equal(t, int64(1), cur.Start)
}

func TestAttach_PublishesClosedBars(t *testing.T) {
	bus := events.NewBus()
	b := NewBuilder(time.Second)
	detach := b.Attach(bus)

	var bars []events.Event
	bus.Subscribe(events.EventBar, func(e events.Event) error {
		bars = append(bars, e)
		return nil
	})

	bus.Publish(events.Event{Type: events.EventTicks, Payload: []events.Tick{tk(1000, 10, 0)}})
	bus.Publish(events.Event{Type: events.EventTicks, Payload: []events.Tick{tk(1400, 11, 3)}})
	bus.Publish(events.Event{Type: events.EventTicks, Payload: []events.Tick{tk(2100, 12, 4)}})

	require.Len(t, bars, 1)
	bar := bars[0].Payload.(events.Bar)
	assert.Equal(t, 11.0, bar.Close)
	assert.Equal(t, 3.0, bar.Volume)
	assert.Equal(t, time.Unix(2, 0), bars[0].Timestamp)

	detach()
	bus.Publish(events.Event{Type: events.EventTicks, Payload: []events.Tick{tk(3100, 13, 5)}})
	assert.Len(t, bars, 1)
}
