package wire

import (
	"fmt"
	"math"
)

// Vec3Size is the fixed byte length of a Vec3 ByteLength frame payload:
// three little-endian f32s.
const Vec3Size = 12

// GUIDSize is the fixed byte length of a GUID ByteLength frame payload.
const GUIDSize = 16

// Vec3 is three packed single-precision floats.
type Vec3 [3]float32

// GUID is a 16-byte globally unique identifier, carried as an opaque blob.
type GUID [16]byte

// WriteString appends a length-prefixed UTF-8 string (a ByteLength value).
func (w *Writer) WriteString(s string) {
	w.WriteBytesFrame([]byte(s))
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytesFrame()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SizeString mirrors WriteString's byte count.
func SizeString(s string) int {
	return SizeBytesFrame(len(s))
}

// WriteF32 appends a 4-byte little-endian float.
func (w *Writer) WriteF32(v float32) {
	w.WriteFixed4(math.Float32bits(v))
}

// ReadF32 reads a 4-byte little-endian float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadFixed4()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// WriteF64 appends an 8-byte little-endian double.
func (w *Writer) WriteF64(v float64) {
	w.WriteFixed8(math.Float64bits(v))
}

// ReadF64 reads an 8-byte little-endian double.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadFixed8()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// WriteVec3 appends a 12-byte ByteLength frame of three f32s.
func (w *Writer) WriteVec3(v Vec3) {
	w.WriteFramed(Vec3Size, func(w *Writer) {
		w.WriteFixed4(math.Float32bits(v[0]))
		w.WriteFixed4(math.Float32bits(v[1]))
		w.WriteFixed4(math.Float32bits(v[2]))
	})
}

// ReadVec3 reads a Vec3 ByteLength frame, warning and returning the zero
// value if its length is not exactly Vec3Size.
func (r *Reader) ReadVec3(ctx string, warner Warner) (Vec3, error) {
	b, err := r.ReadBytesFrame()
	if err != nil {
		return Vec3{}, err
	}
	if len(b) != Vec3Size {
		warn(warner, ctx, "bad vec3 frame length", fmt.Errorf("got %d bytes, want %d", len(b), Vec3Size))
		return Vec3{}, nil
	}
	sub := NewReader(b)
	var v Vec3
	for i := 0; i < 3; i++ {
		u, _ := sub.ReadFixed4()
		v[i] = math.Float32frombits(u)
	}
	return v, nil
}

// WriteGUID appends a 16-byte ByteLength frame.
func (w *Writer) WriteGUID(g GUID) {
	w.WriteBytesFrame(g[:])
}

// ReadGUID reads a GUID ByteLength frame, warning and returning the zero
// value if its length is not exactly GUIDSize.
func (r *Reader) ReadGUID(ctx string, warner Warner) (GUID, error) {
	b, err := r.ReadBytesFrame()
	if err != nil {
		return GUID{}, err
	}
	if len(b) != GUIDSize {
		warn(warner, ctx, "bad GUID frame length", fmt.Errorf("got %d bytes, want %d", len(b), GUIDSize))
		return GUID{}, nil
	}
	var g GUID
	copy(g[:], b)
	return g, nil
}

func warn(w Warner, ctx, cause string, err error) {
	if w == nil {
		return
	}
	w.Warn(&Warning{Context: ctx, Cause: cause, Err: err})
}
