package schema

import "odin-dobj/internal/wire"

// SimpleClassCodec wraps a StructCodec with the nullable single-varint
// prefix of spec.md §4.1 "Record" > "Simple class": 0 means null,
// otherwise a fixed 1 precedes the field stream.
type SimpleClassCodec[T any] struct {
	Struct *StructCodec[T]
}

func NewSimpleClassCodec[T any](s *StructCodec[T]) *SimpleClassCodec[T] {
	return &SimpleClassCodec[T]{Struct: s}
}

// Encode writes the null/1 prefix then, if present, the struct fields.
func (c *SimpleClassCodec[T]) Encode(w *wire.Writer, obj *T, present bool) {
	if !present {
		w.WriteVarUint(0)
		return
	}
	w.WriteVarUint(1)
	c.Struct.Encode(w, obj)
}

// Size mirrors Encode.
func (c *SimpleClassCodec[T]) Size(obj *T, present bool) int {
	if !present {
		return wire.SizeVarUint(0)
	}
	return wire.SizeVarUint(1) + c.Struct.Size(obj)
}

// Decode reads the prefix and, if non-null, decodes the struct into obj.
// Returns present=false for a null value, leaving obj untouched.
func (c *SimpleClassCodec[T]) Decode(r *wire.Reader, obj *T, warner wire.Warner) (present bool, err error) {
	prefix, err := r.ReadVarUint()
	if err != nil {
		return false, err
	}
	if prefix == 0 {
		return false, nil
	}
	if err := c.Struct.Decode(r, obj, warner); err != nil {
		return false, err
	}
	return true, nil
}
