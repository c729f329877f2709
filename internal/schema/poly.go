package schema

import (
	"fmt"

	"odin-dobj/internal/wire"
)

// Subtype binds one concrete variant of a polymorphic base type I to its
// numeric subtype id (spec.md §3.5: "for polymorphic base types, the
// explicit closed set of subtype ids").
type Subtype[I any] struct {
	ID     uint32
	Encode func(w *wire.Writer, v I)
	Size   func(v I) int
	Decode func(r *wire.Reader, warner wire.Warner) (I, error)
}

// PolyCodec dispatches a closed set of subtypes by a leading numeric id;
// 0 always means null (spec.md §4.1 "Record" > "Polymorphic class").
type PolyCodec[I any] struct {
	byID map[uint32]Subtype[I]
	ctx  string
}

func NewPolyCodec[I any](ctx string, subtypes []Subtype[I]) *PolyCodec[I] {
	byID := make(map[uint32]Subtype[I], len(subtypes))
	for _, st := range subtypes {
		byID[st.ID] = st
	}
	return &PolyCodec[I]{byID: byID, ctx: ctx}
}

// Encode writes the subtype id (0 for absent) followed by that subtype's
// fields. The caller supplies subtypeID=0 to mean null.
func (c *PolyCodec[I]) Encode(w *wire.Writer, v I, subtypeID uint32) {
	w.WriteVarUint(uint64(subtypeID))
	if subtypeID == 0 {
		return
	}
	st, ok := c.byID[subtypeID]
	if !ok {
		// Programming error: encoding a subtype id this codec doesn't
		// know about. There is nothing sensible to write for the
		// fields, so the frame ends right after the id.
		return
	}
	st.Encode(w, v)
}

// Size mirrors Encode.
func (c *PolyCodec[I]) Size(v I, subtypeID uint32) int {
	total := wire.SizeVarUint(uint64(subtypeID))
	if subtypeID == 0 {
		return total
	}
	if st, ok := c.byID[subtypeID]; ok {
		total += st.Size(v)
	}
	return total
}

// Decode reads the subtype id and dispatches. An unknown id is a codec
// warning (spec.md §4.1: "Unknown ids => seek to the frame's end and
// yield null"); r is expected to be scoped to exactly this record's
// ByteLength frame, so "seek to end" is r.Skip-to-exhaustion.
func (c *PolyCodec[I]) Decode(r *wire.Reader, warner wire.Warner) (v I, subtypeID uint32, err error) {
	id, err := r.ReadVarUint()
	if err != nil {
		return v, 0, err
	}
	if id == 0 {
		return v, 0, nil
	}
	st, ok := c.byID[uint32(id)]
	if !ok {
		if warner != nil {
			warner.Warn(&wire.Warning{
				Context: c.ctx,
				Cause:   "unknown subtype id",
				Err:     fmt.Errorf("id=%d", id),
			})
		}
		if err := skipToEnd(r); err != nil {
			return v, 0, err
		}
		return v, 0, nil
	}
	v, err = st.Decode(r, warner)
	if err != nil {
		return v, 0, err
	}
	return v, uint32(id), nil
}

func skipToEnd(r *wire.Reader) error {
	if r.Remaining() <= 0 {
		return nil
	}
	_, err := r.Sub(r.Remaining())
	return err
}
