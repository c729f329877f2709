package wire

import (
	"math"
	"testing"
)

func TestVarUintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1}
	for _, v := range cases {
		b := AppendVarUint(nil, v)
		got, n := ConsumeVarUint(b)
		if n != len(b) {
			t.Fatalf("consumed %d, want %d", n, len(b))
		}
		if got != v {
			t.Fatalf("round trip %d -> %d", v, got)
		}
		if len(b) != SizeVarUint(v) {
			t.Fatalf("size mismatch for %d: got %d want %d", v, SizeVarUint(v), len(b))
		}
	}
}

func TestVarIntZigZagRoundTrip(t *testing.T) {
	cases := []int64{0, -1, 1, -1 << 30, 1<<30 - 1, math.MinInt32, math.MaxInt32}
	for _, v := range cases {
		b := AppendVarInt(nil, v)
		got, n := ConsumeVarInt(b)
		if n != len(b) {
			t.Fatalf("consumed %d, want %d", n, len(b))
		}
		if got != v {
			t.Fatalf("round trip %d -> %d", v, got)
		}
	}
}

func TestTagPackUnpack(t *testing.T) {
	tag := PackTag(1234, ByteLength)
	id, wt := UnpackTag(tag)
	if id != 1234 || wt != ByteLength {
		t.Fatalf("got id=%d wt=%v", id, wt)
	}
}

func TestMapTagPackUnpack(t *testing.T) {
	tag := PackMapTag(42, VarInt, ByteLength)
	id, kwt, vwt := UnpackMapTag(tag)
	if id != 42 || kwt != VarInt || vwt != ByteLength {
		t.Fatalf("got id=%d kwt=%v vwt=%v", id, kwt, vwt)
	}
}

func TestTupleHeaderPackUnpack(t *testing.T) {
	elems := []Type{ByteLength, VarInt, FourByte, EightByte}
	h := PackTupleHeader(elems)
	got := UnpackTupleHeader(h, len(elems))
	for i := range elems {
		if got[i] != elems[i] {
			t.Fatalf("elem %d: got %v want %v", i, got[i], elems[i])
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.WriteString("hello, dobj")
	if w.Len() != SizeString("hello, dobj") {
		t.Fatalf("size mismatch: got %d want %d", w.Len(), SizeString("hello, dobj"))
	}
	r := NewReader(w.Bytes())
	s, err := r.ReadString()
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello, dobj" {
		t.Fatalf("got %q", s)
	}
	if !r.Done() {
		t.Fatalf("reader has %d bytes left", r.Remaining())
	}
}

func TestF32F64RoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.WriteF32(3.25)
	w.WriteF64(-12.5)
	r := NewReader(w.Bytes())
	f32, err := r.ReadF32()
	if err != nil || f32 != 3.25 {
		t.Fatalf("f32: got %v err %v", f32, err)
	}
	f64, err := r.ReadF64()
	if err != nil || f64 != -12.5 {
		t.Fatalf("f64: got %v err %v", f64, err)
	}
}

func TestVec3RoundTrip(t *testing.T) {
	w := NewWriter(0)
	v := Vec3{1, 2, 3}
	w.WriteVec3(v)
	if w.Len() != SizeFramed(Vec3Size) {
		t.Fatalf("size mismatch")
	}
	r := NewReader(w.Bytes())
	got, err := r.ReadVec3("test", DiscardWarner)
	if err != nil || got != v {
		t.Fatalf("got %v err %v", got, err)
	}
}

func TestGUIDRoundTrip(t *testing.T) {
	w := NewWriter(0)
	var g GUID
	for i := range g {
		g[i] = byte(i)
	}
	w.WriteGUID(g)
	r := NewReader(w.Bytes())
	got, err := r.ReadGUID("test", DiscardWarner)
	if err != nil || got != g {
		t.Fatalf("got %v err %v", got, err)
	}
}

func TestSkipDiscipline(t *testing.T) {
	w := NewWriter(0)
	w.WriteVarUint(42)
	w.WriteFixed4(7)
	w.WriteFixed8(9)
	w.WriteBytesFrame([]byte("abc"))

	r := NewReader(w.Bytes())
	for _, wt := range []Type{VarInt, FourByte, EightByte, ByteLength} {
		before := r.Pos()
		if err := r.Skip(wt); err != nil {
			t.Fatalf("skip %v: %v", wt, err)
		}
		if r.Pos() <= before {
			t.Fatalf("skip %v made no progress", wt)
		}
	}
	if !r.Done() {
		t.Fatalf("reader has %d bytes left after skipping all fields", r.Remaining())
	}
}

func TestArrayHeaderNullAndPresent(t *testing.T) {
	w := NewWriter(0)
	w.WriteNullArray()
	w.WriteArrayHeader(VarInt)

	r := NewReader(w.Bytes())
	present, _, err := r.ReadArrayHeader()
	if err != nil || present {
		t.Fatalf("expected null, got present=%v err=%v", present, err)
	}
	present, wt, err := r.ReadArrayHeader()
	if err != nil || !present || wt != VarInt {
		t.Fatalf("expected present VarInt, got %v %v %v", present, wt, err)
	}
}

func TestMapHeaderNullAndPresent(t *testing.T) {
	w := NewWriter(0)
	w.WriteNullMap()
	w.WriteMapHeader(VarInt, ByteLength)

	r := NewReader(w.Bytes())
	present, _, _, err := r.ReadMapHeader()
	if err != nil || present {
		t.Fatalf("expected null, got present=%v err=%v", present, err)
	}
	present, kwt, vwt, err := r.ReadMapHeader()
	if err != nil || !present || kwt != VarInt || vwt != ByteLength {
		t.Fatalf("got %v %v %v %v", present, kwt, vwt, err)
	}
}
