package terminal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/kite-terminal/internal/adapters/outbound/trading_http"
)

func TestPlaceOrder_BuildsRequest(t *testing.T) {
	tests := []struct {
		name string
		form mapForm
		side Side
		want trading_http.PlaceOrderRequest
	}{
		{
			name: "buy with qty",
			form: mapForm{FieldOrderSymbol: "ABC", FieldOrderQty: "5"},
			side: SideBuy,
			want: trading_http.PlaceOrderRequest{Symbol: "ABC", Qty: 5, Side: "BUY"},
		},
		{
			name: "sell with empty qty",
			form: mapForm{FieldOrderSymbol: "XYZ", FieldOrderQty: ""},
			side: SideSell,
			want: trading_http.PlaceOrderRequest{Symbol: "XYZ", Qty: 1, Side: "SELL"},
		},
		{
			name: "empty symbol is sent as is",
			form: mapForm{},
			side: SideBuy,
			want: trading_http.PlaceOrderRequest{Symbol: "", Qty: 1, Side: "BUY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{orderBody: []byte(`{"status":"success"}`)}
			page := newFakePage()

			NewOrderSubmitter(tt.form, api, page).PlaceOrder(context.Background(), tt.side)

			require.Len(t, api.orders, 1)
			assert.Equal(t, tt.want, api.orders[0])
		})
	}
}

func TestPlaceOrder_AlertsCompactResult(t *testing.T) {
	api := &fakeAPI{orderBody: []byte("{\n  \"status\": \"success\",\n  \"data\": {\"order_id\": \"1\"}\n}\n")}
	page := newFakePage()

	NewOrderSubmitter(mapForm{FieldOrderSymbol: "ABC"}, api, page).PlaceOrder(context.Background(), SideBuy)

	assert.Equal(t, []string{`Order result: {"status":"success","data":{"order_id":"1"}}`}, page.alerts)
}

func TestPlaceOrder_ErrorBodyIsStillAResult(t *testing.T) {
	api := &fakeAPI{orderBody: []byte(`{"status":"error","message":"unknown symbol"}`)}
	page := newFakePage()

	NewOrderSubmitter(mapForm{}, api, page).PlaceOrder(context.Background(), SideSell)

	require.Len(t, page.alerts, 1)
	assert.Equal(t, `Order result: {"status":"error","message":"unknown symbol"}`, page.alerts[0])
}

func TestPlaceOrder_Failures(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		page := newFakePage()
		NewOrderSubmitter(mapForm{}, &fakeAPI{err: errNetwork}, page).PlaceOrder(context.Background(), SideBuy)
		assert.Equal(t, []string{"Order error: Failed to fetch"}, page.alerts)
	})

	t.Run("non-json body", func(t *testing.T) {
		page := newFakePage()
		NewOrderSubmitter(mapForm{}, &fakeAPI{orderBody: []byte("Internal Server Error")}, page).PlaceOrder(context.Background(), SideBuy)
		require.Len(t, page.alerts, 1)
		assert.Contains(t, page.alerts[0], "Order error: ")
	})
}
