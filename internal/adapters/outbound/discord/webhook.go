package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// Notifier posts bridge activity to a Discord channel webhook.
// With no URL configured every send is a no-op.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	timeout    time.Duration
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		timeout:    10 * time.Second,
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

const (
	ColorGreen = 0x2ECC71
	ColorRed   = 0xE74C3C
	ColorBlue  = 0x3498DB
)

// Attach posts every fill and ticker status change published on bus.
// Posting happens off the publisher's goroutine.
func (n *Notifier) Attach(bus *events.Bus) {
	if !n.Enabled() {
		return
	}
	bus.Subscribe(events.EventOrderFilled, func(e events.Event) error {
		of, ok := e.Payload.(events.OrderFilled)
		if !ok {
			return nil
		}
		n.async(func(ctx context.Context) error { return n.OrderFill(ctx, of) })
		return nil
	})
	bus.Subscribe(events.EventTickerStatus, func(e events.Event) error {
		st, ok := e.Payload.(events.TickerStatusEvent)
		if !ok {
			return nil
		}
		n.async(func(ctx context.Context) error { return n.TickerStatus(ctx, st) })
		return nil
	})
	bus.Subscribe(events.EventStrategyHalted, func(e events.Event) error {
		h, ok := e.Payload.(events.StrategyHalted)
		if !ok {
			return nil
		}
		n.async(func(ctx context.Context) error { return n.StrategyHalted(ctx, h) })
		return nil
	})
}

func (n *Notifier) async(send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			telemetry.Warnf("discord: %v", err)
		}
	}()
}

func (n *Notifier) OrderFill(ctx context.Context, of events.OrderFilled) error {
	color := ColorGreen
	if of.Side == "SELL" {
		color = ColorRed
	}
	return n.SendEmbed(ctx, Embed{
		Title: fmt.Sprintf("Paper %s %s", of.Side, of.Symbol),
		Color: color,
		Fields: []Field{
			{Name: "Qty", Value: humanize.Comma(int64(of.Qty)), Inline: true},
			{Name: "Price", Value: humanize.CommafWithDigits(of.Price, 2), Inline: true},
			{Name: "Cash", Value: humanize.CommafWithDigits(of.Cash, 2), Inline: true},
			{Name: "Order ID", Value: of.OrderID, Inline: false},
		},
	})
}

func (n *Notifier) TickerStatus(ctx context.Context, st events.TickerStatusEvent) error {
	state := "stopped"
	if st.Running {
		state = "started"
	}
	return n.SendEmbed(ctx, Embed{
		Title:       "Ticker " + state,
		Description: fmt.Sprintf("tokens %v", st.Tokens),
		Color:       ColorBlue,
	})
}

func (n *Notifier) StrategyHalted(ctx context.Context, h events.StrategyHalted) error {
	return n.SendEmbed(ctx, Embed{
		Title:       "Strategy halted: " + h.Symbol,
		Description: "Daily loss limit reached, no new entries until the day PnL resets.",
		Color:       ColorRed,
		Fields: []Field{
			{Name: "Day PnL", Value: humanize.CommafWithDigits(h.DayPnL, 2), Inline: true},
			{Name: "Limit", Value: humanize.CommafWithDigits(h.Limit, 2), Inline: true},
		},
	})
}

func (n *Notifier) SendText(ctx context.Context, msg string) error {
	return n.send(ctx, webhookPayload{Content: msg})
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}
	return nil
}
