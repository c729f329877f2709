package wire

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates the unframed byte form of a value. Callers that need
// a length-prefixed ByteLength frame use WriteFramed (or WriteBytesFrame
// for an already-serialised blob).
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with an empty buffer, optionally pre-sized.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated bytes. The slice is owned by the Writer;
// copy it before reuse if the Writer will be reset.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset clears the buffer for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteVarUint appends an unsigned LEB128 varint.
func (w *Writer) WriteVarUint(v uint64) {
	w.buf = AppendVarUint(w.buf, v)
}

// WriteVarInt appends a zig-zag signed varint.
func (w *Writer) WriteVarInt(v int64) {
	w.buf = AppendVarInt(w.buf, v)
}

// WriteBool appends a VarInt-encoded boolean (0 or 1).
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteVarUint(1)
	} else {
		w.WriteVarUint(0)
	}
}

// WriteFixed4 appends 4 little-endian bytes.
func (w *Writer) WriteFixed4(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteFixed8 appends 8 little-endian bytes.
func (w *Writer) WriteFixed8(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteRaw appends raw bytes with no framing at all.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteTag appends a single-type field tag.
func (w *Writer) WriteTag(id uint64, wt Type) {
	w.WriteVarUint(PackTag(id, wt))
}

// WriteMapTag appends a map-entry field tag.
func (w *Writer) WriteMapTag(id uint64, keyWT, valWT Type) {
	w.WriteVarUint(PackMapTag(id, keyWT, valWT))
}

// WriteFramed writes a ByteLength frame: a varint length prefix equal to
// the caller's precomputed size, followed by the bytes written by fn; it
// panics if fn writes a different number of bytes than size. This is
// the "size pre-computation" spec.md §4.1 requires: the length is known
// before any frame bytes are emitted.
func (w *Writer) WriteFramed(size int, fn func(w *Writer)) {
	w.WriteVarUint(uint64(size))
	before := len(w.buf)
	fn(w)
	if got := len(w.buf) - before; got != size {
		panic(sizeMismatchError{want: size, got: got})
	}
}

// WriteBytesFrame writes a ByteLength frame containing exactly b (used for
// strings, GUIDs, vec3, and any pre-serialised blob).
func (w *Writer) WriteBytesFrame(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

type sizeMismatchError struct{ want, got int }

func (e sizeMismatchError) Error() string {
	return fmt.Sprintf("wire: size calculator mismatch: want %d got %d", e.want, e.got)
}
