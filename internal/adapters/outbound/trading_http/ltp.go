package trading_http

import (
	"context"
	"net/url"
)

// LTP fetches GET /api/ltp/<symbol> and returns the body for any status code.
func (c *Client) LTP(ctx context.Context, symbol string) ([]byte, error) {
	body, _, err := c.Get(ctx, "/api/ltp/"+url.PathEscape(symbol))
	return body, err
}
