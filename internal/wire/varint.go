package wire

import "google.golang.org/protobuf/encoding/protowire"

// AppendVarUint appends the LEB128 encoding of v to b.
func AppendVarUint(b []byte, v uint64) []byte {
	return protowire.AppendVarint(b, v)
}

// ConsumeVarUint reads a LEB128 varint from b, returning the value and the
// number of bytes consumed, or n < 0 on malformed input.
func ConsumeVarUint(b []byte) (v uint64, n int) {
	return protowire.ConsumeVarint(b)
}

// SizeVarUint returns the number of bytes AppendVarUint would write for v,
// counted in groups of 7 bits as spec.md's size calculators require.
func SizeVarUint(v uint64) int {
	return protowire.SizeVarint(v)
}

// AppendVarInt zig-zags a signed value and appends it as a varint.
func AppendVarInt(b []byte, v int64) []byte {
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// ConsumeVarInt reads a zig-zag varint, undoing the encoding.
func ConsumeVarInt(b []byte) (v int64, n int) {
	raw, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, n
	}
	return protowire.DecodeZigZag(raw), n
}

// SizeVarInt mirrors AppendVarInt's byte count.
func SizeVarInt(v int64) int {
	return protowire.SizeVarint(protowire.EncodeZigZag(v))
}
