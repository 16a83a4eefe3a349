package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charleschow/kite-terminal/internal/core/terminal"
)

// shortcuts map single-word commands onto button clicks.
var shortcuts = map[string]string{
	"buy":     terminal.ButtonBuy,
	"sell":    terminal.ButtonSell,
	"ltp":     terminal.ButtonGetLTP,
	"connect": terminal.ButtonConnectWS,
}

// Run reads commands from in until "quit", EOF or ctx is cancelled, then
// waits for clicked actions still in flight. "quit" cancels the context the
// actions were started with first, so a hung request cannot hold it open.
//
//	set <id> <value...>   fill an input element
//	click <id>            press a button
//	buy | sell | ltp | connect
//	show <id>             print an element's content
//	help
//	quit
func (p *Page) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.Wait()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read commands: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := p.exec(ctx, line); quit {
				cancel()
				return nil
			}
		}
	}
}

// exec runs one command line. It reports true when the loop should stop.
func (p *Page) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		p.Printf("commands: set <id> <value>, click <id>, buy, sell, ltp, connect, show <id>, quit\n")
		p.Printf("buttons: %s\n", strings.Join(p.buttonIDs(), ", "))
	case "set":
		if len(fields) < 2 {
			p.Printf("usage: set <id> <value>\n")
			return false
		}
		p.Set(fields[1], setValue(line, fields[1]))
	case "click":
		if len(fields) != 2 {
			p.Printf("usage: click <id>\n")
			return false
		}
		if err := p.Click(ctx, fields[1]); err != nil {
			p.Printf("%v\n", err)
		}
	case "show":
		if len(fields) != 2 {
			p.Printf("usage: show <id>\n")
			return false
		}
		p.Printf("%s = %q\n", fields[1], p.Value(fields[1]))
	default:
		id, ok := shortcuts[cmd]
		if !ok {
			p.Printf("unknown command %q (try help)\n", cmd)
			return false
		}
		if err := p.Click(ctx, id); err != nil {
			p.Printf("%v\n", err)
		}
	}
	return false
}

// setValue returns everything after "set <id>", keeping inner spaces so
// symbols like "NIFTY 50" survive.
func setValue(line, id string) string {
	rest := strings.TrimSpace(line)
	rest = strings.TrimSpace(rest[len("set"):])
	return strings.TrimSpace(strings.TrimPrefix(rest, id))
}
