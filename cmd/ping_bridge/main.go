// Ping a running bridge to measure API and tick stream latency.
//
// Measures cold and warm HTTP round-trip times for /health and
// /api/ltp/<symbol>, and WebSocket ping/pong latency on /ws/ticks.
//
// Usage:
//
//	go run ./cmd/ping_bridge                 # default: 20 requests
//	go run ./cmd/ping_bridge -n 50           # 50 requests per endpoint
//	go run ./cmd/ping_bridge -symbol "NIFTY BANK"
//	go run ./cmd/ping_bridge --ws            # also test WebSocket latency
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/core/terminal"
)

const httpTimeout = 10 * time.Second

func main() {
	n := flag.Int("n", 20, "Number of requests per endpoint")
	symbol := flag.String("symbol", "NIFTY 50", "Symbol for the LTP endpoint")
	ws := flag.Bool("ws", false, "Also measure tick stream ping/pong latency")
	flag.Parse()

	cfg := config.Load()
	base := strings.TrimRight(cfg.APIBase, "/")

	fmt.Printf("\nPinging bridge at %s\n", base)

	pingHTTP("HEALTH", base+"/health", *n)
	pingHTTP("LTP "+*symbol, base+"/api/ltp/"+url.PathEscape(*symbol), *n)

	if *ws {
		streamURL, err := terminal.StreamURL(cfg.PageURL)
		if err != nil {
			fmt.Printf("  [!] Stream URL: %v\n", err)
			return
		}
		pingStream(streamURL, *n)
	}
	fmt.Println()
}

func header(title string) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  %s\n", title)
	fmt.Printf("%s\n", strings.Repeat("=", 55))
}

func pingHTTP(label, target string, n int) {
	header(label + " - " + target)

	fmt.Println("\n  Cold-start request (TCP + HTTP):")
	if ms, code, err := measureHTTP(target, nil); err != nil {
		fmt.Printf("    FAILED - %v\n", err)
	} else {
		fmt.Printf("    %.1f ms  (HTTP %d)\n", ms, code)
	}

	fmt.Printf("\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: httpTimeout}
	if _, _, err := measureHTTP(target, client); err != nil {
		fmt.Printf("  [!] Warm-up request failed: %v\n", err)
		return
	}

	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		ms, code, err := measureHTTP(target, client)
		if err != nil {
			fmt.Printf("  [%*d/%d]  FAILED - %v\n", pad, i, n, err)
			continue
		}
		latencies = append(latencies, ms)
		fmt.Printf("  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
	}
	printStats(latencies, label)
}

func pingStream(streamURL string, n int) {
	header("TICK STREAM - " + streamURL)
	fmt.Printf("\n  WebSocket ping/pong latency (%d pings):\n", n)

	latencies := measureWSLatency(streamURL, n)
	pad := len(fmt.Sprintf("%d", n))
	for i, ms := range latencies {
		fmt.Printf("  [%*d/%d]  %7.1f ms  (WS ping/pong)\n", pad, i+1, n, ms)
	}
	printStats(latencies, "Tick stream")
}

func measureHTTP(target string, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	c := client
	if c == nil {
		c = &http.Client{Timeout: httpTimeout, Transport: &http.Transport{DisableKeepAlives: true}}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

func measureWSLatency(streamURL string, n int) []float64 {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		fmt.Printf("  [!] WebSocket dial failed: %v\n", err)
		return nil
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	// Control frames are only processed while reading; tick frames are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second)); err != nil {
			fmt.Printf("  [!] WS ping failed: %v\n", err)
			break
		}
		select {
		case <-pongCh:
			latencies = append(latencies, float64(time.Since(start).Microseconds())/1000)
		case <-time.After(5 * time.Second):
			fmt.Printf("  [!] WS pong timeout\n")
			return latencies
		}
	}
	return latencies
}

func printStats(latencies []float64, label string) {
	if len(latencies) < 2 {
		fmt.Printf("\n  Not enough %s samples for statistics.\n", label)
		return
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range latencies {
		mean += v
	}
	mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(variance / float64(len(latencies)-1))

	pct := func(p float64) float64 {
		idx := int(float64(len(sorted)) * p)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}

	fmt.Printf("\n  --- %s Stats (%d samples) ---\n", label, len(latencies))
	fmt.Printf("  Min:    %7.1f ms\n", sorted[0])
	fmt.Printf("  Max:    %7.1f ms\n", sorted[len(sorted)-1])
	fmt.Printf("  Mean:   %7.1f ms\n", mean)
	fmt.Printf("  Median: %7.1f ms\n", pct(0.5))
	fmt.Printf("  Stdev:  %7.1f ms\n", stdev)
	fmt.Printf("  p95:    %7.1f ms\n", pct(0.95))
	fmt.Printf("  p99:    %7.1f ms\n", pct(0.99))
}
