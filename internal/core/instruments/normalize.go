package instruments

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// exchanges are the segment prefixes a symbol may carry, as in "NSE:INFY".
var exchanges = map[string]bool{
	"NSE": true, "BSE": true, "NFO": true, "BFO": true, "MCX": true, "CDS": true,
}

// Normalize folds a user-typed symbol onto its registry key. Compatibility
// forms and accents are folded, an exchange prefix is dropped, underscores
// count as spaces, and the alias map is consulted last.
func Normalize(s string, aliases map[string]string) string {
	s = strings.ToUpper(fold(s))
	if prefix, rest, ok := strings.Cut(s, ":"); ok && exchanges[strings.TrimSpace(prefix)] {
		s = rest
	}
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	}), " ")
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return s
}

// fold applies NFKD, drops combining marks and recomposes. A transform.Chain
// keeps state, so each call builds its own.
func fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
