package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charleschow/kite-terminal/internal/core/terminal"
)

var (
	_ terminal.Form    = (*Page)(nil)
	_ terminal.Display = (*Page)(nil)
	_ terminal.Alerter = (*Page)(nil)
)

const (
	dividerHeavy = "════════════════════════════════════════════════════════"
	dividerLight = "────────────────────────────────────────────────────────"
)

// Action is what a button does when clicked.
type Action func(ctx context.Context)

// Page is the terminal stand-in for the trading page: named text elements,
// buttons bound to actions, and an alert channel. All output goes to out.
type Page struct {
	outMu sync.Mutex
	out   io.Writer

	mu      sync.RWMutex
	values  map[string]string
	buttons map[string]Action

	inflight sync.WaitGroup
}

func NewPage(out io.Writer) *Page {
	return &Page{
		out:     out,
		values:  make(map[string]string),
		buttons: make(map[string]Action),
	}
}

// Value returns the current content of element id, "" if never set.
func (p *Page) Value(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[id]
}

// Set changes an element's content without echoing it.
func (p *Page) Set(id, value string) {
	p.mu.Lock()
	p.values[id] = value
	p.mu.Unlock()
}

// SetText replaces an output element's content and prints it.
func (p *Page) SetText(id, text string) {
	p.Set(id, text)

	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s]\n%s\n%s\n%s\n", id, dividerLight, text, dividerLight)
	p.write(b.String())
}

// Alert prints msg framed so it stands out from chart output.
func (p *Page) Alert(msg string) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n  %s\n%s\n", dividerHeavy, msg, dividerHeavy)
	p.write(b.String())
}

// Bind attaches action to button id, replacing any earlier binding.
func (p *Page) Bind(id string, action Action) {
	p.mu.Lock()
	p.buttons[id] = action
	p.mu.Unlock()
}

// Click runs the action bound to id on its own goroutine. Clicks never wait
// for each other, so overlapping requests complete in any order.
func (p *Page) Click(ctx context.Context, id string) error {
	p.mu.RLock()
	action, ok := p.buttons[id]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no button %q", id)
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		action(ctx)
	}()
	return nil
}

// Wait blocks until every clicked action has returned.
func (p *Page) Wait() { p.inflight.Wait() }

// Printf writes a line to the page output.
func (p *Page) Printf(format string, args ...any) {
	p.write(fmt.Sprintf(format, args...))
}

func (p *Page) buttonIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.buttons))
	for id := range p.buttons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Page) write(s string) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	_, _ = io.WriteString(p.out, s)
}
