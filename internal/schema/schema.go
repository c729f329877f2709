// Package schema builds reflection-free, type-specialised codecs from
// per-type field metadata and memoises them in a process-wide cache
// (spec.md §4.1 "Codec cache", §9 "reflective schema -> precompiled
// codecs"). Each concrete record type supplies a field list once, at
// package init or first use; the resulting closures are type-specialised
// via Go generics rather than reflection, and are safe to share across
// goroutines once built (read-many, write-once).
package schema

import (
	"sync"

	"odin-dobj/internal/wire"
)

// FieldIO describes one field of record type T: its static id, the single
// wire type its value form uses, and the closures that write/measure/read
// just that value (no tag, no framing — the struct codec supplies those).
type FieldIO[T any] struct {
	ID       uint32
	WireType wire.Type
	Write    func(w *wire.Writer, obj *T)
	Size     func(obj *T) int
	Read     func(r *wire.Reader, obj *T) error
}

// Lazy builds a *V exactly once, on first Get, and memoises it — the
// process-wide codec cache of spec.md §4.1. Warm-up is never required;
// construction happens on first use, and concurrent first-callers block
// on the same sync.Once rather than racing the builder.
type Lazy[V any] struct {
	once  sync.Once
	build func() *V
	val   *V
}

// NewLazy returns a Lazy that will call build() exactly once.
func NewLazy[V any](build func() *V) *Lazy[V] {
	return &Lazy[V]{build: build}
}

// Get returns the memoised value, constructing it on the first call.
func (l *Lazy[V]) Get() *V {
	l.once.Do(func() { l.val = l.build() })
	return l.val
}
