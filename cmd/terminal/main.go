package main

import (
	"context"
	"os"

	"github.com/charleschow/kite-terminal/internal/adapters/inbound/tick_ws"
	"github.com/charleschow/kite-terminal/internal/adapters/outbound/console"
	"github.com/charleschow/kite-terminal/internal/adapters/outbound/trading_http"
	"github.com/charleschow/kite-terminal/internal/core/chart"
	"github.com/charleschow/kite-terminal/internal/core/terminal"
	"github.com/charleschow/kite-terminal/internal/process"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

func main() {
	cfg := process.Boot("terminal")
	telemetry.InitWriter(os.Stdout, telemetry.ParseLogLevel(cfg.LogLevel))

	ctx, cancel := process.SignalContext(context.Background())
	defer cancel()

	page := console.NewPage(os.Stdout)

	// ── Chart ──────────────────────────────────────────────────
	series := chart.NewSeries(0)
	console.NewChartRenderer(page).Attach(series)

	// ── Stream listener ────────────────────────────────────────
	listener, err := terminal.NewStreamListener(cfg.PageURL, tick_ws.NewDialer(), series)
	if err != nil {
		process.Fatalf("Stream listener: %v", err)
	}
	defer listener.Close()

	// ── Trading API ────────────────────────────────────────────
	api := trading_http.NewClient(cfg.APIBase, cfg.RequestTimeout)
	orders := terminal.NewOrderSubmitter(page, api, page)
	prices := terminal.NewPriceFetcher(page, api, page, page)

	// ── Buttons ────────────────────────────────────────────────
	page.Bind(terminal.ButtonConnectWS, func(ctx context.Context) {
		_ = listener.Connect(ctx)
	})
	page.Bind(terminal.ButtonBuy, func(ctx context.Context) { orders.PlaceOrder(ctx, terminal.SideBuy) })
	page.Bind(terminal.ButtonSell, func(ctx context.Context) { orders.PlaceOrder(ctx, terminal.SideSell) })
	page.Bind(terminal.ButtonGetLTP, prices.GetLTP)

	telemetry.Infof("Terminal ready  api=%s  stream=%s  (type help)", cfg.APIBase, listener.URL())

	if err := page.Run(ctx, os.Stdin); err != nil {
		telemetry.Warnf("Console: %v", err)
	}

	telemetry.Infof("Terminal closed  ticks=%d  points=%d  orders=%d  order_errors=%d  ltp=%d  p50=%s",
		telemetry.Metrics.StreamMessages.Value(),
		telemetry.Metrics.SeriesUpdates.Value(),
		telemetry.Metrics.OrdersSubmitted.Value(),
		telemetry.Metrics.OrderFailures.Value(),
		telemetry.Metrics.LTPRequests.Value(),
		telemetry.Metrics.RequestLatency.P50(),
	)
}
