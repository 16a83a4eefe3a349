package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// PriceFetcher looks up the last traded price for the symbol in the form and
// renders the raw response.
type PriceFetcher struct {
	form    Form
	api     TradingAPI
	display Display
	alerts  Alerter
}

func NewPriceFetcher(form Form, api TradingAPI, display Display, alerts Alerter) *PriceFetcher {
	return &PriceFetcher{form: form, api: api, display: display, alerts: alerts}
}

// GetLTP writes the response, indented by two spaces, into the LTP output
// element. On failure the output element keeps its previous content.
func (f *PriceFetcher) GetLTP(ctx context.Context) {
	telemetry.Metrics.LTPRequests.Inc()

	body, err := f.api.LTP(ctx, f.form.Value(FieldLTPSymbol))
	if err != nil {
		telemetry.Metrics.LTPFailures.Inc()
		f.alerts.Alert("LTP error: " + err.Error())
		return
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		telemetry.Metrics.LTPFailures.Inc()
		f.alerts.Alert("LTP error: " + fmt.Errorf("decode response: %w", err).Error())
		return
	}

	f.display.SetText(FieldLTPOutput, buf.String())
}
