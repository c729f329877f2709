package dobject

import (
	"context"
	"sync"
)

// Collection is a resolve-oriented field: a named subtree of children
// keyed by string, with no wire representation of its own (spec.md §3.4
// "Collection<T>" / §4.3 "Resolve"). EncodeSync/ApplySync keep
// unsupportedField's no-op defaults.
//
// T is the caller's typed wrapper around an *Object (e.g. a generated
// RoomObject embedding *Object); Collection only needs to construct one
// per key and memoise it.
type Collection[T any] struct {
	unsupportedField

	mu      sync.Mutex
	entries map[string]*collectionEntry[T]

	// canAccess, if set, gates Resolve: a false result denies the key with
	// a *FriendlyException (spec.md §4.3, §7); an error it returns is
	// passed back from Resolve unchanged.
	canAccess func(ctx context.Context, subscriber any, key string) (bool, error)

	// newChild constructs the child object for a key that has not been
	// resolved before.
	newChild func(key string) T

	// populate, if set, runs once per freshly constructed child before
	// any subscriber sees it (spec.md §4.3 "optionally running an async
	// populate over the fresh object").
	populate func(ctx context.Context, child T) error

	subscribedListeners []func(child T)
}

type collectionEntry[T any] struct {
	once  sync.Once
	child T
	err   error
}

// NewCollection constructs a Collection field. canAccess and populate may
// be nil to skip those steps.
func NewCollection[T any](id uint32, newChild func(key string) T,
	canAccess func(ctx context.Context, subscriber any, key string) (bool, error),
	populate func(ctx context.Context, child T) error,
) *Collection[T] {
	c := &Collection[T]{
		entries:   make(map[string]*collectionEntry[T]),
		canAccess: canAccess,
		newChild:  newChild,
		populate:  populate,
	}
	c.id = id
	return c
}

// Resolvable is implemented by generated DObject wrapper types (those
// embedding *Object) so the resolver can keep walking a Path one hop at a
// time without knowing each hop's concrete type.
type Resolvable interface {
	Obj() *Object
}

// CollectionField is the type-erased surface the path resolver walks: it
// can't know a Collection[T]'s T, so it resolves through this interface
// and type-asserts the result (spec.md §4.3).
type CollectionField interface {
	Field
	ResolveAny(ctx context.Context, subscriber any, key string) (any, error)
}

// ResolveAny is Resolve with the result boxed as any, for CollectionField.
func (f *Collection[T]) ResolveAny(ctx context.Context, subscriber any, key string) (any, error) {
	return f.Resolve(ctx, subscriber, key)
}

// OnSubscribed registers a listener fired once per key, by the Resolve
// call that first constructs (and populates) that key's child; later
// Resolve calls for the same key do not fire it. Returns a disposer.
func (f *Collection[T]) OnSubscribed(l func(child T)) func() {
	f.mu.Lock()
	f.subscribedListeners = append(f.subscribedListeners, l)
	idx := len(f.subscribedListeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.subscribedListeners) {
			f.subscribedListeners[idx] = nil
		}
	}
}

func (f *Collection[T]) fireSubscribed(child T) {
	f.mu.Lock()
	listeners := append([]func(T)(nil), f.subscribedListeners...)
	f.mu.Unlock()
	for i := len(listeners) - 1; i >= 0; i-- {
		if listeners[i] != nil {
			listeners[i](child)
		}
	}
}

// Resolve returns the child at key, checking access and running populate
// at most once per key (spec.md §4.3 "Resolve"). subscriber is passed
// through to canAccess uninterpreted; callers that don't need access
// control may pass nil.
func (f *Collection[T]) Resolve(ctx context.Context, subscriber any, key string) (T, error) {
	var zero T
	if f.canAccess != nil {
		ok, err := f.canAccess(ctx, subscriber, key)
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, &FriendlyException{Cause: "Access denied."}
		}
	}

	f.mu.Lock()
	entry, exists := f.entries[key]
	if !exists {
		entry = &collectionEntry[T]{}
		f.entries[key] = entry
	}
	f.mu.Unlock()

	var fresh bool
	entry.once.Do(func() {
		entry.child = f.newChild(key)
		if f.populate != nil {
			entry.err = f.populate(ctx, entry.child)
		}
		fresh = true
	})
	if entry.err != nil {
		return zero, entry.err
	}
	if fresh {
		f.fireSubscribed(entry.child)
	}
	return entry.child, nil
}
