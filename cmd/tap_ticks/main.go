// tap_ticks connects to a running bridge's tick stream and prints every
// event it receives, reconnecting when the bridge restarts.
//
// Usage:
//
//	go run ./cmd/tap_ticks -url ws://localhost:8000/ws/ticks
package main

import (
	"context"
	"flag"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/charleschow/kite-terminal/internal/core/terminal"
	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/fanout"
	"github.com/charleschow/kite-terminal/internal/process"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

func main() {
	cfg := process.Boot("tap_ticks")

	defaultURL, err := terminal.StreamURL(cfg.PageURL)
	if err != nil {
		process.Fatalf("Stream URL: %v", err)
	}
	url := flag.String("url", defaultURL, "bridge tick stream URL")
	flag.Parse()

	ctx, cancel := process.SignalContext(context.Background())
	defer cancel()

	bus := events.NewBus()
	bus.Subscribe(events.EventTicks, func(e events.Event) error {
		for _, t := range e.Payload.([]events.Tick) {
			telemetry.Plainf("%s  %-12s %10s  vol %s",
				time.UnixMilli(t.Timestamp).Format("15:04:05.000"), t.TradingSymbol,
				humanize.CommafWithDigits(t.LastPrice, 2), humanize.Comma(int64(t.Volume)))
		}
		return nil
	})
	bus.Subscribe(events.EventOrderFilled, func(e events.Event) error {
		of := e.Payload.(events.OrderFilled)
		telemetry.Plainf("FILL  %s %d %s @ %s  id=%s", of.Side, of.Qty, of.Symbol, humanize.CommafWithDigits(of.Price, 2), of.OrderID)
		return nil
	})
	bus.Subscribe(events.EventTickerStatus, func(e events.Event) error {
		st := e.Payload.(events.TickerStatusEvent)
		telemetry.Plainf("TICKER running=%t tokens=%v", st.Running, st.Tokens)
		return nil
	})

	bus.Subscribe(events.EventBar, func(e events.Event) error {
		b := e.Payload.(events.Bar)
		telemetry.Plainf("BAR   %s  %-12s O %s  H %s  L %s  C %s  vol %s",
			time.Unix(b.Start, 0).Format("15:04:05"), b.TradingSymbol,
			humanize.CommafWithDigits(b.Open, 2), humanize.CommafWithDigits(b.High, 2),
			humanize.CommafWithDigits(b.Low, 2), humanize.CommafWithDigits(b.Close, 2),
			humanize.Comma(int64(b.Volume)))
		return nil
	})
	bus.Subscribe(events.EventStrategyHalted, func(e events.Event) error {
		h := e.Payload.(events.StrategyHalted)
		telemetry.Plainf("HALT  %s  day pnl %s  limit %s", h.Symbol,
			humanize.CommafWithDigits(h.DayPnL, 2), humanize.CommafWithDigits(h.Limit, 2))
		return nil
	})

	client := fanout.NewClient(*url, bus)
	client.Run(ctx)

	st := client.Stats()
	telemetry.Infof("tap_ticks: sessions=%d frames=%s bad=%d", st.Sessions, humanize.Comma(st.Frames), st.BadFrames)
}
