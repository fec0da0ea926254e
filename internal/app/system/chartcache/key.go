package chartcache

import (
	"slices"
	"strings"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

// Key identifies one cached batch. Two keys with different statistic sets are
// distinct even when the sets overlap, and compression is part of the
// identity.
type Key struct {
	Scope      string
	Mains      []models.MainOption
	Range      string
	Compressed bool
}

// NewKey returns a key with Mains sorted and deduplicated so that the order a
// caller lists statistics in does not matter.
func NewKey(scope string, mains []models.MainOption, rng string, compressed bool) Key {
	m := slices.Clone(mains)
	slices.Sort(m)
	return Key{
		Scope:      scope,
		Mains:      slices.Compact(m),
		Range:      rng,
		Compressed: compressed,
	}
}

// String renders the key as "scope|main,main|range|c" (or "|r" when raw).
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Scope)
	b.WriteByte('|')
	for i, m := range k.Mains {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(m))
	}
	b.WriteByte('|')
	b.WriteString(k.Range)
	if k.Compressed {
		b.WriteString("|c")
	} else {
		b.WriteString("|r")
	}
	return b.String()
}
