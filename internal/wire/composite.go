package wire

// This file holds the generic framing helpers for the three container
// composites of spec.md §4.1: tuples, arrays/lists/sets/bags, and
// maps/dictionaries. Callers supply the per-element wire type(s) and a
// closure that writes/reads one element; the framing (presence header,
// length prefix) is handled here once.

// NullPresence / NonNullPresence are the id values used in the 0/1
// presence header of arrays and dictionaries (spec.md §4.1 Composites).
const (
	NullPresence    uint64 = 0
	NonNullPresence uint64 = 1
)

// WriteArrayHeader writes the presence+wire-type header for a non-null
// array/list/set/bag whose elements share wt.
func (w *Writer) WriteArrayHeader(wt Type) {
	w.WriteTag(NonNullPresence, wt)
}

// WriteNullArray writes the header for a null collection (zero length
// means null per spec.md §4.1).
func (w *Writer) WriteNullArray() {
	w.WriteTag(NullPresence, VarInt)
}

// ReadArrayHeader reads the presence+wire-type header, reporting whether
// the collection is present (non-null) and its element wire type.
func (r *Reader) ReadArrayHeader() (present bool, elemWT Type, err error) {
	id, wt, err := r.ReadTag()
	if err != nil {
		return false, 0, err
	}
	return id != NullPresence, wt, nil
}

// WriteMapHeader writes the presence+key/value-wire-type header for a
// non-null map/dictionary.
func (w *Writer) WriteMapHeader(keyWT, valWT Type) {
	w.WriteMapTag(NonNullPresence, keyWT, valWT)
}

// WriteNullMap writes the header for a null map.
func (w *Writer) WriteNullMap() {
	w.WriteMapTag(NullPresence, VarInt, VarInt)
}

// ReadMapHeader reads the presence+key/value-wire-type header.
func (r *Reader) ReadMapHeader() (present bool, keyWT, valWT Type, err error) {
	id, kwt, vwt, err := r.ReadMapTag()
	if err != nil {
		return false, 0, 0, err
	}
	return id != NullPresence, kwt, vwt, nil
}
