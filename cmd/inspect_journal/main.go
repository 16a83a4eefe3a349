package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/charleschow/kite-terminal/internal/adapters/outbound/journal"

	_ "modernc.org/sqlite"
)

func main() {
	kind := flag.String("kind", "", "filter by kind (ticks, bar, order)")
	match := flag.String("match", "", "substring to search for in the payload (case-insensitive)")
	n := flag.Int("n", 10, "max results to return")
	pretty := flag.Bool("pretty", false, "pretty-print JSON")
	dbPath := flag.String("db", "data/journal.db", "path to journal database")
	flag.Parse()

	db, err := sql.Open("sqlite", *dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(10000)&mode=ro")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	entries, err := journal.Recent(db, journal.Query{Kind: *kind, Contains: *match, Limit: *n})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	for _, e := range entries {
		raw := string(e.Raw)
		if *pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, e.Raw, "", "  "); err == nil {
				raw = buf.String()
			}
		}
		fmt.Printf("--- id=%d kind=%s received=%s (%s) size=%s ---\n%s\n\n",
			e.ID, e.Kind, e.Received.Format("2006-01-02 15:04:05.000"), humanize.Time(e.Received),
			humanize.Bytes(uint64(e.ByteSize)), raw)
	}
	if len(entries) == 0 {
		fmt.Println("(no journal entries found)")
	} else {
		fmt.Printf("(%d results)\n", len(entries))
	}
}
