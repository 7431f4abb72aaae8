// Package color assigns and validates #RRGGBB category colors.
package color

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultColor labels categories that can no longer be resolved.
const DefaultColor = "#E5E7EB"

var hexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Valid reports whether s is a #RRGGBB color.
func Valid(s string) bool {
	return hexPattern.MatchString(s)
}

// Normalize trims and uppercases a color code.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Generator produces random colors from an injectable source.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a generator seeded with seed. Two generators built
// with the same seed yield the same sequence.
func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Default returns a generator seeded from the wall clock.
func Default() *Generator {
	return NewGenerator(time.Now().UnixNano())
}

// Next returns the next color in the sequence.
func (g *Generator) Next() string {
	g.mu.Lock()
	n := g.rnd.Intn(0x1000000)
	g.mu.Unlock()
	return fmt.Sprintf("#%06X", n)
}
