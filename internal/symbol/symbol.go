// Package symbol assigns short ticker symbols to company names.
package symbol

import (
	"fmt"
	"strings"
	"unicode"
)

const maxSymbolLen = 4

// Generator produces deterministic, collision-free tickers from company
// names. Collisions on the same initials are disambiguated with a
// zero-padded counter suffix. The counter table is per-Generator state:
// a new simulation gets a fresh Generator (or calls Reset) so tickers do
// not drift across unrelated games.
type Generator struct {
	counters map[string]int
}

// NewGenerator creates an empty symbol generator.
func NewGenerator() *Generator {
	return &Generator{counters: make(map[string]int)}
}

// Next derives the ticker for a company name: the uppercased initials of
// its whitespace-separated words. The first name with a given initials
// string gets the suffix "01", the next "02", and so on; past 99 the
// suffix overflows to letter-led base-36 pairs, so the result never
// exceeds 4 characters.
func (g *Generator) Next(name string) string {
	initials := extractInitials(name)
	// Leave room for the suffix so collisions stay distinguishable.
	if len(initials) > maxSymbolLen-2 {
		initials = initials[:maxSymbolLen-2]
	}
	g.counters[initials]++
	return initials + suffix(g.counters[initials])
}

const suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// suffix renders a collision counter in exactly two characters: 01-99
// decimal, then pairs with a leading letter ("A0", "A1", ... "ZZ"). The
// letter-led pairs never collide with the decimal range, giving 1035
// distinct listings per initials string.
func suffix(n int) string {
	if n < 100 {
		return fmt.Sprintf("%02d", n)
	}
	n -= 100
	return string([]byte{'A' + byte(n/36), suffixAlphabet[n%36]})
}

// Reset clears the collision counters for a new simulation.
func (g *Generator) Reset() {
	g.counters = make(map[string]int)
}

func extractInitials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToUpper(r))
				break
			}
		}
	}
	return b.String()
}
