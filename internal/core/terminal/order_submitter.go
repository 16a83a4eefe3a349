package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/charleschow/kite-terminal/internal/adapters/outbound/trading_http"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderSubmitter turns a buy/sell click into a single order request and
// shows whatever the backend answered.
type OrderSubmitter struct {
	form   Form
	api    TradingAPI
	alerts Alerter
}

func NewOrderSubmitter(form Form, api TradingAPI, alerts Alerter) *OrderSubmitter {
	return &OrderSubmitter{form: form, api: api, alerts: alerts}
}

// PlaceOrder sends one order built from the form. Any response with a JSON
// body is reported as a result, including rejections; transport failures and
// non-JSON bodies are reported as errors. Calls may overlap freely.
func (o *OrderSubmitter) PlaceOrder(ctx context.Context, side Side) {
	req := trading_http.PlaceOrderRequest{
		Symbol: o.form.Value(FieldOrderSymbol),
		Qty:    ParseQty(o.form.Value(FieldOrderQty)),
		Side:   string(side),
	}
	telemetry.Metrics.OrdersSubmitted.Inc()

	body, err := o.api.PlaceOrder(ctx, req)
	if err == nil {
		body, err = compactJSON(body)
	}
	if err != nil {
		telemetry.Metrics.OrderFailures.Inc()
		o.alerts.Alert("Order error: " + err.Error())
		return
	}

	o.alerts.Alert("Order result: " + string(body))
}

func compactJSON(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(body)); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return buf.Bytes(), nil
}
