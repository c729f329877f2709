package dobject

import (
	"sync"

	"odin-dobj/internal/schema"
	"odin-dobj/internal/wire"
)

// Map is a key/value dictionary field; emits MapSet/MapRemove (spec.md
// §3.4 "Map<K,V>"). K must be comparable to key a plain Go map.
type Map[K comparable, V any] struct {
	unsupportedField

	mu      sync.RWMutex
	entries map[K]V

	keyWT wire.Type
	valWT wire.Type

	writeKey func(w *wire.Writer, k K)
	readKey  func(r *wire.Reader) (K, error)
	sizeKey  func(k K) int

	writeVal func(w *wire.Writer, v V)
	readVal  func(r *wire.Reader) (V, error)
	sizeVal  func(v V) int
	equalVal func(a, b V) bool

	setListeners    []func(k K, v V)
	removeListeners []func(k K)
}

// NewMap constructs a Map field over key type K and value type V. equalVal
// is used by ApplySync to suppress no-op MapSet events for unchanged
// entries; pass a function that compares by value (e.g. == for comparable
// V, or a deep-equal for structs).
func NewMap[K comparable, V any](id uint32, keyWT, valWT wire.Type,
	writeKey func(*wire.Writer, K), readKey func(*wire.Reader) (K, error), sizeKey func(K) int,
	writeVal func(*wire.Writer, V), readVal func(*wire.Reader) (V, error), sizeVal func(V) int,
	equalVal func(a, b V) bool,
) *Map[K, V] {
	m := &Map[K, V]{
		entries:  make(map[K]V),
		keyWT:    keyWT,
		valWT:    valWT,
		writeKey: writeKey, readKey: readKey, sizeKey: sizeKey,
		writeVal: writeVal, readVal: readVal, sizeVal: sizeVal,
		equalVal: equalVal,
	}
	m.id = id
	return m
}

// Snapshot returns a copy of the current entries.
func (f *Map[K, V]) Snapshot() map[K]V {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[K]V, len(f.entries))
	for k, v := range f.entries {
		out[k] = v
	}
	return out
}

func (f *Map[K, V]) Get(k K) (V, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.entries[k]
	return v, ok
}

func (f *Map[K, V]) OnSet(l func(k K, v V)) func() {
	f.mu.Lock()
	f.setListeners = append(f.setListeners, l)
	idx := len(f.setListeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.setListeners) {
			f.setListeners[idx] = nil
		}
	}
}

func (f *Map[K, V]) OnRemove(l func(k K)) func() {
	f.mu.Lock()
	f.removeListeners = append(f.removeListeners, l)
	idx := len(f.removeListeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.removeListeners) {
			f.removeListeners[idx] = nil
		}
	}
}

// Set inserts or updates k->v, emitting MapSet, unless the entry already
// holds an equal value (spec.md §4.2 "Collection deltas short-circuit
// no-ops").
func (f *Map[K, V]) Set(k K, v V) {
	f.owner.checkAuthority(f.id, "Map.Set")
	f.mu.Lock()
	if cur, exists := f.entries[k]; exists && f.equalVal(cur, v) {
		f.mu.Unlock()
		return
	}
	f.entries[k] = v
	f.mu.Unlock()
	f.fireSet(k, v)

	body := wire.NewWriter(f.sizeKey(k) + f.sizeVal(v) + 4)
	body.WriteMapTag(uint64(f.id), f.keyWT, f.valWT)
	f.writeKey(body, k)
	f.writeVal(body, v)
	f.emit(MsgMapSet, body)
}

// Remove deletes k, emitting MapRemove, unless k is absent.
func (f *Map[K, V]) Remove(k K) {
	f.owner.checkAuthority(f.id, "Map.Remove")
	f.mu.Lock()
	if _, exists := f.entries[k]; !exists {
		f.mu.Unlock()
		return
	}
	delete(f.entries, k)
	f.mu.Unlock()
	f.fireRemove(k)

	body := wire.NewWriter(f.sizeKey(k) + 4)
	body.WriteTag(uint64(f.id), f.keyWT)
	f.writeKey(body, k)
	f.emit(MsgMapRemove, body)
}

func (f *Map[K, V]) fireSet(k K, v V) {
	f.mu.RLock()
	listeners := append([]func(K, V)(nil), f.setListeners...)
	f.mu.RUnlock()
	for i := len(listeners) - 1; i >= 0; i-- {
		if listeners[i] != nil {
			listeners[i](k, v)
		}
	}
}

func (f *Map[K, V]) fireRemove(k K) {
	f.mu.RLock()
	listeners := append([]func(K)(nil), f.removeListeners...)
	f.mu.RUnlock()
	for i := len(listeners) - 1; i >= 0; i-- {
		if listeners[i] != nil {
			listeners[i](k)
		}
	}
}

func (f *Map[K, V]) EncodeSync(w *wire.Writer) {
	snap := f.Snapshot()
	entries := make([]schema.MapEntry[K, V], 0, len(snap))
	for k, v := range snap {
		entries = append(entries, schema.MapEntry[K, V]{Key: k, Value: v})
	}
	w.WriteTag(uint64(f.id), wire.ByteLength)
	schema.EncodeMapValue(w, true, f.keyWT, f.valWT, entries, f.sizeKey, f.writeKey, f.sizeVal, f.writeVal)
}

func (f *Map[K, V]) ApplySync(r *wire.Reader) error {
	decoded, present, err := schema.DecodeMapValue(r, f.readKey, f.readVal)
	if err != nil {
		return err
	}
	next := make(map[K]V, len(decoded))
	if present {
		for _, e := range decoded {
			next[e.Key] = e.Value
		}
	}

	f.mu.Lock()
	prev := f.entries
	f.entries = next
	f.mu.Unlock()

	for k := range prev {
		if _, still := next[k]; !still {
			f.fireRemove(k)
		}
	}
	for k, v := range next {
		if old, existed := prev[k]; !existed || !f.equalVal(old, v) {
			f.fireSet(k, v)
		}
	}
	return nil
}

func (f *Map[K, V]) ApplyMapSet(r *wire.Reader) error {
	k, err := f.readKey(r)
	if err != nil {
		return err
	}
	v, err := f.readVal(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if cur, exists := f.entries[k]; exists && f.equalVal(cur, v) {
		f.mu.Unlock()
		return nil
	}
	f.entries[k] = v
	f.mu.Unlock()
	f.fireSet(k, v)
	return nil
}

func (f *Map[K, V]) ApplyMapRemove(r *wire.Reader) error {
	k, err := f.readKey(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if _, exists := f.entries[k]; !exists {
		f.mu.Unlock()
		return nil
	}
	delete(f.entries, k)
	f.mu.Unlock()
	f.fireRemove(k)
	return nil
}
