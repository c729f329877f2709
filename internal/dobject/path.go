package dobject

import (
	"strconv"
	"strings"

	"odin-dobj/internal/schema"
	"odin-dobj/internal/wire"
)

// PathElem is one (collection_id, key) hop of a Path (spec.md §3.3).
type PathElem struct {
	CollectionID uint32
	Key          string
}

// Path is an ordered, root-relative sequence of collection hops. Paths are
// value types: two equal Paths are interchangeable, and the empty Path
// names the root object.
type Path []PathElem

// Equal compares two Paths positionally.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Key renders a Path as a stable map key for dedup tables, since Go slices
// cannot be map keys directly.
func (p Path) Key() string {
	var b strings.Builder
	for _, e := range p {
		b.WriteString(strconv.FormatUint(uint64(e.CollectionID), 10))
		b.WriteByte('/')
		b.WriteString(e.Key)
		b.WriteByte('\x00')
	}
	return b.String()
}

// String renders a human-readable form, mainly for logging.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, e := range p {
		b.WriteByte('/')
		b.WriteString(e.Key)
	}
	return b.String()
}

// writePathElem/readPathElem/sizePathElem frame each hop as a nested
// ByteLength value so the homogeneous-element array codec in
// internal/schema can carry them (a path hop is a (varint, string) pair,
// not a single wire primitive).
func writePathElem(w *wire.Writer, e PathElem) {
	size := wire.SizeVarUint(uint64(e.CollectionID)) + wire.SizeString(e.Key)
	w.WriteFramed(size, func(w *wire.Writer) {
		w.WriteVarUint(uint64(e.CollectionID))
		w.WriteString(e.Key)
	})
}

func sizePathElem(e PathElem) int {
	inner := wire.SizeVarUint(uint64(e.CollectionID)) + wire.SizeString(e.Key)
	return wire.SizeFramed(inner)
}

func readPathElem(r *wire.Reader) (PathElem, error) {
	frame, err := r.ReadBytesFrame()
	if err != nil {
		return PathElem{}, err
	}
	sub := wire.NewReader(frame)
	cid, err := sub.ReadVarUint()
	if err != nil {
		return PathElem{}, err
	}
	key, err := sub.ReadString()
	if err != nil {
		return PathElem{}, err
	}
	return PathElem{CollectionID: uint32(cid), Key: key}, nil
}

// WritePath appends a Path's full ByteLength-framed array value form
// (spec.md §4.3 "Subscribe(id, path)" carries the path over the wire).
func WritePath(w *wire.Writer, p Path) {
	schema.EncodeArrayValue(w, true, wire.ByteLength, []PathElem(p), sizePathElem, writePathElem)
}

// SizePath mirrors WritePath.
func SizePath(p Path) int {
	return schema.SizeArrayValue(true, wire.ByteLength, []PathElem(p), sizePathElem)
}

// ReadPath reads a Path written by WritePath.
func ReadPath(r *wire.Reader) (Path, error) {
	elems, _, err := schema.DecodeArrayValue(r, readPathElem)
	if err != nil {
		return nil, err
	}
	return Path(elems), nil
}
