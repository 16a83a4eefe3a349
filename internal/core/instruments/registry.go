package instruments

import (
	"fmt"
	"sort"

	"github.com/charleschow/kite-terminal/internal/config"
)

// Registry maps trading symbols to instruments. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	bySymbol map[string]config.Instrument
	byToken  map[int64]config.Instrument
	aliases  map[string]string
}

// NewRegistry indexes list by normalized symbol and by token. Duplicate
// symbols or tokens are rejected.
func NewRegistry(list []config.Instrument, aliases map[string]string) (*Registry, error) {
	if aliases == nil {
		aliases = IndexAliases
	}
	r := &Registry{
		bySymbol: make(map[string]config.Instrument, len(list)),
		byToken:  make(map[int64]config.Instrument, len(list)),
		aliases:  aliases,
	}
	for _, inst := range list {
		key := Normalize(inst.Symbol, aliases)
		if _, dup := r.bySymbol[key]; dup {
			return nil, fmt.Errorf("duplicate instrument symbol %q", inst.Symbol)
		}
		if _, dup := r.byToken[inst.Token]; dup {
			return nil, fmt.Errorf("duplicate instrument token %d", inst.Token)
		}
		inst.Symbol = key
		r.bySymbol[key] = inst
		r.byToken[inst.Token] = inst
	}
	return r, nil
}

// Lookup resolves a user-typed symbol ("nifty", "NIFTY  50") to its instrument.
func (r *Registry) Lookup(symbol string) (config.Instrument, bool) {
	inst, ok := r.bySymbol[Normalize(symbol, r.aliases)]
	return inst, ok
}

func (r *Registry) ByToken(token int64) (config.Instrument, bool) {
	inst, ok := r.byToken[token]
	return inst, ok
}

// All returns every instrument ordered by token.
func (r *Registry) All() []config.Instrument {
	out := make([]config.Instrument, 0, len(r.byToken))
	for _, inst := range r.byToken {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func (r *Registry) Tokens() []int64 {
	all := r.All()
	tokens := make([]int64, len(all))
	for i, inst := range all {
		tokens[i] = inst.Token
	}
	return tokens
}
