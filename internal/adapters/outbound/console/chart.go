package console

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/charleschow/kite-terminal/internal/core/chart"
)

// ChartRenderer prints every applied chart update as one line.
type ChartRenderer struct {
	page *Page
	prev float64
	have bool
}

func NewChartRenderer(page *Page) *ChartRenderer {
	return &ChartRenderer{page: page}
}

// Attach subscribes the renderer to s.
func (r *ChartRenderer) Attach(s *chart.Series) {
	s.OnUpdate(r.Render)
}

// Render formats p. Updates come from the single stream read loop.
func (r *ChartRenderer) Render(p chart.Point, replaced bool) {
	ts := time.Unix(p.Time, 0).Format("15:04:05")

	mark := "+"
	if replaced {
		mark = "~"
	}

	change := ""
	if r.have {
		diff := p.Value - r.prev
		sign := "+"
		if diff < 0 {
			sign = "-"
			diff = -diff
		}
		change = fmt.Sprintf("  (%s%s)", sign, humanize.CommafWithDigits(diff, 2))
	}
	r.prev, r.have = p.Value, true

	r.page.Printf("chart %s %s  %s%s\n", mark, ts, humanize.CommafWithDigits(p.Value, 2), change)
}
