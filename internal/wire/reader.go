package wire

import "encoding/binary"

// Reader walks an unframed byte stream (the contents of a ByteLength frame,
// or a top-level message) consuming one primitive/tag at a time.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for reading. buf is not copied.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Done reports whether the reader has consumed the whole buffer.
func (r *Reader) Done() bool { return r.pos >= len(r.buf) }

// Pos returns the current read offset, for tests asserting skip-discipline
// position invariants.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) ReadVarUint() (uint64, error) {
	v, n := ConsumeVarUint(r.buf[r.pos:])
	if n < 0 {
		return 0, ErrMalformedVarint
	}
	r.pos += n
	return v, nil
}

func (r *Reader) ReadVarInt() (int64, error) {
	v, n := ConsumeVarInt(r.buf[r.pos:])
	if n < 0 {
		return 0, ErrMalformedVarint
	}
	r.pos += n
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) ReadFixed4() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrBufferUnderrun
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadFixed8() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrBufferUnderrun
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// ReadBytesFrame reads a varint length prefix then returns that many bytes
// as a sub-slice of the underlying buffer (not copied).
func (r *Reader) ReadBytesFrame() ([]byte, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if uint64(r.Remaining()) < n {
		return nil, ErrBufferUnderrun
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// Sub returns a Reader over exactly the next n bytes and advances past
// them, for recursing into a ByteLength frame's contents.
func (r *Reader) Sub(n int) (*Reader, error) {
	if r.Remaining() < n {
		return nil, ErrBufferUnderrun
	}
	sub := NewReader(r.buf[r.pos : r.pos+n])
	r.pos += n
	return sub, nil
}

// ReadTag reads a single-type field tag and splits it.
func (r *Reader) ReadTag() (id uint64, wt Type, err error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return 0, 0, err
	}
	id, wt = UnpackTag(v)
	return id, wt, nil
}

// ReadMapTag reads a map-entry field tag and splits it.
func (r *Reader) ReadMapTag() (id uint64, keyWT, valWT Type, err error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return 0, 0, 0, err
	}
	id, keyWT, valWT = UnpackMapTag(v)
	return id, keyWT, valWT, nil
}

// Skip consumes exactly the bytes indicated by wt, with no interpretation
// of their contents. This is the mechanism that lets an unknown field id
// be ignored without knowing its declared type (spec.md §3.1, §4.1 "Skip
// discipline").
func (r *Reader) Skip(wt Type) error {
	switch wt {
	case VarInt:
		_, err := r.ReadVarUint()
		return err
	case FourByte:
		_, err := r.ReadFixed4()
		return err
	case EightByte:
		_, err := r.ReadFixed8()
		return err
	case ByteLength:
		_, err := r.ReadBytesFrame()
		return err
	default:
		return ErrMalformedVarint
	}
}
