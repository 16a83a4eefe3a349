package strategy

import (
	"context"
	"math"

	"github.com/charleschow/kite-terminal/internal/core/broker"
	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// Signal is what a bar close made the strategy do.
type Signal string

const (
	SignalNone  Signal = ""
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalExit  Signal = "EXIT"
	SignalHalt  Signal = "HALT"
)

type exitPlan struct {
	long   bool
	stop   float64
	target float64
}

// Strategy trades one instrument on bar closes. It enters when the fast EMA
// crosses the slow EMA on a volume spike with momentum in the same
// direction, exits at a stop or target checked on the close, and stops
// entering once the day's realized loss reaches its limit. Entries resume
// when the account's day PnL resets.
//
// A Strategy is not safe for concurrent use; Engine owns it.
type Strategy struct {
	params  Params
	account Account

	fast   *EMA
	slow   *EMA
	volume *RollingMean
	bars   int

	prevClose float64
	prevFast  float64
	prevSlow  float64

	exit   *exitPlan
	halted bool
	halt   events.StrategyHalted
}

func New(params Params, account Account) *Strategy {
	return &Strategy{
		params:  params,
		account: account,
		fast:    NewEMA(params.FastPeriod),
		slow:    NewEMA(params.SlowPeriod),
		volume:  NewRollingMean(params.VolumeWindow, params.VolumeMinBars),
	}
}

// OnBar evaluates one closed bar and reports what it did.
func (s *Strategy) OnBar(ctx context.Context, bar events.Bar) Signal {
	fast := s.fast.Update(bar.Close)
	slow := s.slow.Update(bar.Close)
	volMean := s.volume.Update(bar.Volume)
	s.bars++

	prevClose, prevFast, prevSlow := s.prevClose, s.prevFast, s.prevSlow
	s.prevClose, s.prevFast, s.prevSlow = bar.Close, fast, slow

	s.maybeResume()

	sig := s.manageExit(ctx, bar)
	if sig == SignalNone && !s.halted && s.bars >= s.params.warmup() && prevClose != 0 {
		crossUp := prevFast <= prevSlow && fast > slow
		crossDown := prevFast >= prevSlow && fast < slow
		spike := bar.Volume > volMean*s.params.VolumeMultiplier
		momentum := (bar.Close - prevClose) / prevClose

		switch {
		case crossUp && spike && momentum > 0:
			sig = s.enter(ctx, bar, true)
		case crossDown && spike && momentum < 0:
			sig = s.enter(ctx, bar, false)
		}
	}

	if s.checkDailyLoss(ctx) {
		return SignalHalt
	}
	return sig
}

// Halted reports whether entries are stopped, and the event that stopped them.
func (s *Strategy) Halted() (events.StrategyHalted, bool) {
	return s.halt, s.halted
}

func (s *Strategy) enter(ctx context.Context, bar events.Bar, long bool) Signal {
	sym := s.params.Symbol
	pos := s.account.Position(sym)
	if (long && pos.Qty > 0) || (!long && pos.Qty < 0) {
		return SignalNone
	}
	if pos.Qty != 0 {
		if _, _, err := s.account.Flatten(ctx, sym); err != nil {
			telemetry.Warnf("[STRATEGY] %s reverse: %v", sym, err)
			return SignalNone
		}
		s.exit = nil
	}

	price := bar.Close
	equity := s.account.Equity()
	if price <= 0 {
		return SignalNone
	}
	qty := int(math.Floor(equity * s.params.TradeSizePct / price))
	if qty <= 0 || equity < s.params.MinEquity {
		telemetry.Infof("[STRATEGY] %s signal skipped: qty=%d equity=%.2f", sym, qty, equity)
		return SignalNone
	}

	risk := s.params.RiskPerTradePct
	plan := exitPlan{long: long}
	side, sig := broker.SideBuy, SignalLong
	if long {
		plan.stop = price * (1 - risk)
		plan.target = price * (1 + risk*s.params.RewardRatio)
	} else {
		side, sig = broker.SideSell, SignalShort
		plan.stop = price * (1 + risk)
		plan.target = price * (1 - risk*s.params.RewardRatio)
	}

	fill, err := s.account.PlaceOrder(ctx, broker.OrderRequest{Symbol: sym, Qty: qty, Side: side})
	if err != nil {
		telemetry.Warnf("[STRATEGY] %s %s entry: %v", sym, sig, err)
		return SignalNone
	}
	s.exit = &plan
	telemetry.Metrics.StrategyOrders.Inc()
	telemetry.Infof("[STRATEGY] %s %s %d @ %.2f  stop=%.2f  target=%.2f",
		sig, sym, fill.Qty, fill.Price, plan.stop, plan.target)
	return sig
}

func (s *Strategy) manageExit(ctx context.Context, bar events.Bar) Signal {
	if s.exit == nil {
		return SignalNone
	}
	sym := s.params.Symbol
	if s.account.Position(sym).Qty == 0 {
		// Closed from outside, e.g. a manual order.
		s.exit = nil
		return SignalNone
	}

	hit := bar.Close <= s.exit.stop || bar.Close >= s.exit.target
	if !s.exit.long {
		hit = bar.Close >= s.exit.stop || bar.Close <= s.exit.target
	}
	if !hit {
		return SignalNone
	}

	fill, ok, err := s.account.Flatten(ctx, sym)
	if err != nil {
		telemetry.Warnf("[STRATEGY] %s exit: %v", sym, err)
		return SignalNone
	}
	s.exit = nil
	if !ok {
		return SignalNone
	}
	telemetry.Metrics.StrategyOrders.Inc()
	telemetry.Infof("[STRATEGY] EXIT %s %s %d @ %.2f  day_pnl=%+.2f", sym, fill.Side, fill.Qty, fill.Price, s.account.DayPnL())
	return SignalExit
}

func (s *Strategy) lossLimit() float64 {
	return s.params.MaxDailyLossPct * s.account.Equity()
}

// checkDailyLoss halts entries and flattens once the day's realized loss
// reaches the limit. It reports true on the bar that halts.
func (s *Strategy) checkDailyLoss(ctx context.Context) bool {
	if s.halted || s.params.MaxDailyLossPct <= 0 {
		return false
	}
	limit := s.lossLimit()
	dayPnL := s.account.DayPnL()
	if dayPnL > -limit {
		return false
	}

	s.halted = true
	s.exit = nil
	if _, _, err := s.account.Flatten(ctx, s.params.Symbol); err != nil {
		telemetry.Warnf("[STRATEGY] %s flatten on halt: %v", s.params.Symbol, err)
	}
	s.halt = events.StrategyHalted{Symbol: s.params.Symbol, DayPnL: s.account.DayPnL(), Limit: limit}
	telemetry.Warnf("[STRATEGY] %s day loss %.2f reached limit %.2f, entries halted", s.params.Symbol, dayPnL, limit)
	return true
}

func (s *Strategy) maybeResume() {
	if !s.halted || s.account.DayPnL() <= -s.lossLimit() {
		return
	}
	s.halted = false
	telemetry.Infof("[STRATEGY] %s day PnL reset, entries resumed", s.params.Symbol)
}
