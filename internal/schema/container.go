package schema

import "odin-dobj/internal/wire"

// EncodeArrayValue writes the full ByteLength-framed value form of an
// array/list/set/bag field (spec.md §4.1 "Array / list / set / bag"): the
// presence+wire-type header followed by each element, with no separate
// element count — decoding reads elements until the frame is exhausted.
func EncodeArrayValue[E any](w *wire.Writer, present bool, elemWT wire.Type, elems []E, sizeElem func(E) int, writeElem func(*wire.Writer, E)) {
	if !present {
		w.WriteFramed(wire.SizeTag(wire.NullPresence, wire.VarInt), func(w *wire.Writer) {
			w.WriteNullArray()
		})
		return
	}
	inner := wire.SizeTag(wire.NonNullPresence, elemWT)
	for _, e := range elems {
		inner += sizeElem(e)
	}
	w.WriteFramed(inner, func(w *wire.Writer) {
		w.WriteArrayHeader(elemWT)
		for _, e := range elems {
			writeElem(w, e)
		}
	})
}

// SizeArrayValue mirrors EncodeArrayValue.
func SizeArrayValue[E any](present bool, elemWT wire.Type, elems []E, sizeElem func(E) int) int {
	if !present {
		return wire.SizeFramed(wire.SizeTag(wire.NullPresence, wire.VarInt))
	}
	inner := wire.SizeTag(wire.NonNullPresence, elemWT)
	for _, e := range elems {
		inner += sizeElem(e)
	}
	return wire.SizeFramed(inner)
}

// DecodeArrayValue reads a ByteLength-framed array field, returning
// present=false for a null collection.
func DecodeArrayValue[E any](r *wire.Reader, readElem func(*wire.Reader) (E, error)) (elems []E, present bool, err error) {
	frame, err := r.ReadBytesFrame()
	if err != nil {
		return nil, false, err
	}
	if len(frame) == 0 {
		return nil, false, nil
	}
	sub := wire.NewReader(frame)
	present, _, err = sub.ReadArrayHeader()
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	for !sub.Done() {
		e, err := readElem(sub)
		if err != nil {
			return nil, false, err
		}
		elems = append(elems, e)
	}
	return elems, true, nil
}

// MapEntry is one key/value pair, used only to describe map field values
// to EncodeMapValue in iteration order.
type MapEntry[K comparable, V any] struct {
	Key   K
	Value V
}

// EncodeMapValue writes the full ByteLength-framed value form of a
// map/dictionary field (spec.md §4.1 "Map / dictionary").
func EncodeMapValue[K comparable, V any](w *wire.Writer, present bool, keyWT, valWT wire.Type, entries []MapEntry[K, V], sizeKey func(K) int, writeKey func(*wire.Writer, K), sizeVal func(V) int, writeVal func(*wire.Writer, V)) {
	if !present {
		w.WriteFramed(wire.SizeMapTag(wire.NullPresence, wire.VarInt, wire.VarInt), func(w *wire.Writer) {
			w.WriteNullMap()
		})
		return
	}
	inner := wire.SizeMapTag(wire.NonNullPresence, keyWT, valWT)
	for _, e := range entries {
		inner += sizeKey(e.Key) + sizeVal(e.Value)
	}
	w.WriteFramed(inner, func(w *wire.Writer) {
		w.WriteMapHeader(keyWT, valWT)
		for _, e := range entries {
			writeKey(w, e.Key)
			writeVal(w, e.Value)
		}
	})
}

// SizeMapValue mirrors EncodeMapValue.
func SizeMapValue[K comparable, V any](present bool, keyWT, valWT wire.Type, entries []MapEntry[K, V], sizeKey func(K) int, sizeVal func(V) int) int {
	if !present {
		return wire.SizeFramed(wire.SizeMapTag(wire.NullPresence, wire.VarInt, wire.VarInt))
	}
	inner := wire.SizeMapTag(wire.NonNullPresence, keyWT, valWT)
	for _, e := range entries {
		inner += sizeKey(e.Key) + sizeVal(e.Value)
	}
	return wire.SizeFramed(inner)
}

// DecodeMapValue reads a ByteLength-framed map field, returning
// present=false for a null map.
func DecodeMapValue[K comparable, V any](r *wire.Reader, readKey func(*wire.Reader) (K, error), readVal func(*wire.Reader) (V, error)) (entries []MapEntry[K, V], present bool, err error) {
	frame, err := r.ReadBytesFrame()
	if err != nil {
		return nil, false, err
	}
	sub := wire.NewReader(frame)
	present, _, _, err = sub.ReadMapHeader()
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	for !sub.Done() {
		k, err := readKey(sub)
		if err != nil {
			return nil, false, err
		}
		v, err := readVal(sub)
		if err != nil {
			return nil, false, err
		}
		entries = append(entries, MapEntry[K, V]{Key: k, Value: v})
	}
	return entries, true, nil
}

// EncodeTupleValue writes the full ByteLength-framed value form of an
// N-tuple (spec.md §4.1 "Tuple"): a packed wire-type header followed by
// each component's value form, in order.
func EncodeTupleValue(w *wire.Writer, elemWTs []wire.Type, sizes []int, writeElems func(*wire.Writer)) {
	headerSize := wire.SizeVarUint(wire.PackTupleHeader(elemWTs))
	inner := headerSize
	for _, s := range sizes {
		inner += s
	}
	w.WriteFramed(inner, func(w *wire.Writer) {
		w.WriteVarUint(wire.PackTupleHeader(elemWTs))
		writeElems(w)
	})
}

// DecodeTupleHeader reads a tuple frame's header, returning a Reader
// scoped to the remaining component bytes and the per-component wire
// types. An empty (zero-length) frame is a valid zero-initialised tuple
// (spec.md §4.1: "Empty (length 0) is treated as a valid zero-initialised
// tuple with a warning").
func DecodeTupleHeader(r *wire.Reader, n int, ctx string, warner wire.Warner) (sub *wire.Reader, wts []wire.Type, err error) {
	frame, err := r.ReadBytesFrame()
	if err != nil {
		return nil, nil, err
	}
	if len(frame) == 0 {
		if warner != nil {
			warner.Warn(&wire.Warning{Context: ctx, Cause: "empty tuple frame treated as zero-initialised"})
		}
		return wire.NewReader(nil), make([]wire.Type, n), nil
	}
	inner := wire.NewReader(frame)
	header, err := inner.ReadVarUint()
	if err != nil {
		return nil, nil, err
	}
	return inner, wire.UnpackTupleHeader(header, n), nil
}
