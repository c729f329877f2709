// Package dispose implements reference-counted handles for client-side
// DObjects. Go has no portable weak reference outside a handle-counting
// scheme, so this is the "reference-counted handles where the last drop
// runs a disposer" strategy spec.md §9 names as the port alternative to
// the original's weak references.
package dispose

import "sync/atomic"

// Handle is a reference-counted lease on some resource. The zero value is
// not usable; construct with New.
type Handle struct {
	count   int32
	release func()
	done    int32
}

// New returns a Handle with an initial reference count of 1. release is
// invoked exactly once, when the count reaches zero.
func New(release func()) *Handle {
	return &Handle{count: 1, release: release}
}

// Retain increments the reference count. Calling Retain after the handle
// has already been disposed is a programming error and panics.
func (h *Handle) Retain() {
	for {
		c := atomic.LoadInt32(&h.count)
		if c <= 0 {
			panic("dispose: Retain on a disposed handle")
		}
		if atomic.CompareAndSwapInt32(&h.count, c, c+1) {
			return
		}
	}
}

// Release decrements the reference count, running the disposer exactly
// once when it reaches zero (spec.md §4.3: "the last drop runs a
// disposer that unmaps and posts Unsubscribe").
func (h *Handle) Release() {
	c := atomic.AddInt32(&h.count, -1)
	if c == 0 && atomic.CompareAndSwapInt32(&h.done, 0, 1) {
		h.release()
	}
}

// Disposed reports whether the reference count has reached zero.
func (h *Handle) Disposed() bool {
	return atomic.LoadInt32(&h.count) <= 0
}
