// Package namegen mints the unique identifiers the resolver and the TACKY
// lowering pass need for renamed variables, temporaries, and labels.
//
// The source this compiler is modeled on keeps a single process-wide
// counter (see original_source/src/utility.py's itertools.count). Per the
// "Shared monotonic counter" design note, this package models that counter
// as an explicit value threaded through the passes instead of true global
// state, so that independent compilations (and their tests) never share
// a counter.
package namegen

import "fmt"

// Gen produces strictly increasing unique names within one compilation.
// It is not safe for concurrent use; the compiler pipeline is single
// threaded by design (spec §5), so it needs no locking.
type Gen struct {
	n uint64
}

// New returns a generator whose counter starts at zero.
func New() *Gen {
	return &Gen{}
}

// Next returns a fresh name built from prefix and the next counter value.
// The prefix groups related temporaries for readability; it carries no
// semantic meaning.
func (g *Gen) Next(prefix string) string {
	name := fmt.Sprintf("%s.%d", prefix, g.n)
	g.n++
	return name
}
