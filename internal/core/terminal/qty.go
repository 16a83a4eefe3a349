package terminal

import (
	"strconv"
	"strings"
	"unicode"
)

// DefaultQty is used when the quantity field holds no usable integer.
const DefaultQty = 1

// ParseQty reads the leading integer of s, ignoring anything after it
// ("5 lots" is 5, "3.9" is 3). No digits, zero, or overflow yield DefaultQty.
// Negative values pass through unchanged; the backend decides what to do with them.
func ParseQty(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsAt := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsAt {
		return DefaultQty
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil || n == 0 {
		return DefaultQty
	}
	return n
}
