package schema

import (
	"fmt"

	"odin-dobj/internal/wire"
)

// StructCodec is a type-specialised, cached codec for a record type T:
// concatenation of (field_id<<2)|wire_type tags and values, with unknown
// ids skipped by wire type alone (spec.md §4.1 "Record" > "Struct").
type StructCodec[T any] struct {
	fields []FieldIO[T]
	byID   map[uint32]FieldIO[T]
	ctx    string
}

// NewStructCodec builds the lookup table once from fields. ctx is used as
// the base context string in codec warnings.
func NewStructCodec[T any](ctx string, fields []FieldIO[T]) *StructCodec[T] {
	byID := make(map[uint32]FieldIO[T], len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	return &StructCodec[T]{fields: fields, byID: byID, ctx: ctx}
}

// Encode writes every field of obj, each preceded by its tag.
func (c *StructCodec[T]) Encode(w *wire.Writer, obj *T) {
	for _, f := range c.fields {
		w.WriteTag(uint64(f.ID), f.WireType)
		f.Write(w, obj)
	}
}

// Size mirrors Encode's byte count, computed ahead of writing.
func (c *StructCodec[T]) Size(obj *T) int {
	total := 0
	for _, f := range c.fields {
		total += wire.SizeTag(uint64(f.ID), f.WireType) + f.Size(obj)
	}
	return total
}

// Decode reads fields until r is exhausted, applying known fields to obj
// and skipping unknown ones or wire-type mismatches via warner.
func (c *StructCodec[T]) Decode(r *wire.Reader, obj *T, warner wire.Warner) error {
	for !r.Done() {
		id, wt, err := r.ReadTag()
		if err != nil {
			return err
		}
		f, ok := c.byID[uint32(id)]
		if !ok {
			if err := r.Skip(wt); err != nil {
				return err
			}
			warnSkip(warner, c.ctx, "unknown field", wt, id)
			continue
		}
		if f.WireType != wt {
			if err := r.Skip(wt); err != nil {
				return err
			}
			warnSkip(warner, c.ctx, "wire-type mismatch", wt, id)
			continue
		}
		if err := f.Read(r, obj); err != nil {
			return err
		}
	}
	return nil
}

// EncodeOneField writes a single field's tag+value rather than the whole
// record. Nothing in the tree calls it; the DObject delta messages
// (ValueChange/SetAdd/.../QueueReceive) write their tag and value directly.
func EncodeOneField[T any](w *wire.Writer, f FieldIO[T], obj *T) {
	w.WriteTag(uint64(f.ID), f.WireType)
	f.Write(w, obj)
}

// SizeOneField mirrors EncodeOneField.
func SizeOneField[T any](f FieldIO[T], obj *T) int {
	return wire.SizeTag(uint64(f.ID), f.WireType) + f.Size(obj)
}

func warnSkip(w wire.Warner, ctx, cause string, wt wire.Type, id uint64) {
	if w == nil {
		return
	}
	w.Warn(&wire.Warning{Context: ctx, Cause: cause, Err: fmt.Errorf("field id=%d wire=%v", id, wt)})
}
