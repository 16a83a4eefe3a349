package trading_http

import (
	"context"

	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// PlaceOrderRequest is the payload for POST /api/place_order.
type PlaceOrderRequest struct {
	Symbol string `json:"symbol"`
	Qty    int    `json:"qty"`
	Side   string `json:"side"` // "BUY" or "SELL"
}

// PlaceOrder posts req and returns the response body for any status code.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) ([]byte, error) {
	body, status, err := c.Post(ctx, "/api/place_order", req)
	if err != nil {
		return nil, err
	}
	telemetry.Infof("trading_http: order symbol=%s side=%s qty=%d -> %d", req.Symbol, req.Side, req.Qty, status)
	return body, nil
}
