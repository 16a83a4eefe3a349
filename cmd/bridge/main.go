package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charleschow/kite-terminal/internal/adapters/inbound/bridge_http"
	"github.com/charleschow/kite-terminal/internal/adapters/inbound/ticksim"
	"github.com/charleschow/kite-terminal/internal/adapters/outbound/discord"
	"github.com/charleschow/kite-terminal/internal/adapters/outbound/journal"
	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/core/bars"
	"github.com/charleschow/kite-terminal/internal/core/broker"
	"github.com/charleschow/kite-terminal/internal/core/instruments"
	"github.com/charleschow/kite-terminal/internal/core/quotes"
	"github.com/charleschow/kite-terminal/internal/core/strategy"
	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/fanout"
	"github.com/charleschow/kite-terminal/internal/process"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

func main() {
	cfg := process.Boot("bridge")
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := process.SignalContext(context.Background())
	defer cancel()

	bus := events.NewBus()

	// ── Instruments ────────────────────────────────────────────
	list, err := config.LoadInstruments(cfg.InstrumentsPath)
	if err != nil {
		process.Fatalf("Failed to load instruments: %v", err)
	}
	registry, err := instruments.NewRegistry(list, instruments.IndexAliases)
	if err != nil {
		process.Fatalf("Instrument registry: %v", err)
	}

	// ── Quote book + bars ──────────────────────────────────────
	book := quotes.NewBook()
	book.Attach(bus)
	barBuilder := bars.NewBuilder(cfg.BarPeriod)
	barBuilder.Attach(bus)

	// ── Journal ────────────────────────────────────────────────
	store, err := journal.OpenStore(cfg.JournalPath, cfg.JournalMaxBytes)
	if err != nil {
		telemetry.Warnf("Journal disabled: %v", err)
	} else {
		store.Attach(bus)
	}

	// ── Paper broker ───────────────────────────────────────────
	paper := broker.NewPaper(registry, book, bus, cfg.PaperCash)
	if store != nil {
		paper.WithHistory(store)
	}

	// ── Strategy ───────────────────────────────────────────────
	engineDone := make(chan struct{})
	if cfg.StrategyEnabled {
		inst, ok := registry.Lookup(cfg.StrategySymbol)
		if !ok {
			process.Fatalf("Strategy symbol %q is not a known instrument", cfg.StrategySymbol)
		}
		params := strategy.DefaultParams(inst.Symbol)
		params.TradeSizePct = cfg.StrategyTradePct
		params.MaxDailyLossPct = cfg.StrategyMaxDailyLossPct
		engine := strategy.NewEngine(bus, strategy.New(params, paper), inst.Token)
		go func() {
			defer close(engineDone)
			engine.Run(ctx)
		}()
		telemetry.Infof("Strategy enabled on %s  bar=%s  trade=%.2f%%  max_daily_loss=%.2f%%",
			inst.Symbol, barBuilder.Period(), params.TradeSizePct*100, params.MaxDailyLossPct*100)
	} else {
		close(engineDone)
	}

	// ── Discord ────────────────────────────────────────────────
	notifier := discord.NewNotifier(cfg.DiscordWebhook)
	notifier.Attach(bus)
	if notifier.Enabled() {
		telemetry.Infof("Discord notifications enabled")
	}

	// ── Tick source + fanout ───────────────────────────────────
	generator := ticksim.NewGenerator(bus, registry.All(), cfg.TickInterval, time.Now().UnixNano())
	fan := fanout.NewServer(bus)

	// ── HTTP ───────────────────────────────────────────────────
	handler := bridge_http.NewHandler(ctx, paper, paper, generator, fan.HandleWS, cfg.OrderRatePerSec)

	addr := fmt.Sprintf("%s:%d", cfg.BridgeHost, cfg.BridgePort)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			process.Fatalf("HTTP server: %v", err)
		}
	}()
	telemetry.Infof("Bridge listening on %q  instruments=%d  (GET /start_ticker to begin streaming)", addr, len(list))

	// ── Shutdown ───────────────────────────────────────────────
	<-ctx.Done()
	generator.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	<-engineDone

	if store != nil {
		store.Close()
	}

	telemetry.Infof("Shutdown complete  batches=%d  bars=%d  fills=%d  strategy_orders=%d  rejected=%d  throttled=%d  dropped=%d  journaled=%d",
		telemetry.Metrics.TicksPublished.Value(),
		telemetry.Metrics.BarsClosed.Value(),
		telemetry.Metrics.OrdersFilled.Value(),
		telemetry.Metrics.StrategyOrders.Value(),
		telemetry.Metrics.OrdersRejected.Value(),
		telemetry.Metrics.OrdersThrottled.Value(),
		telemetry.Metrics.FanoutDrops.Value(),
		telemetry.Metrics.JournalWrites.Value(),
	)
}
