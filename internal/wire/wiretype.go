// Package wire implements the self-describing tag/length binary format
// used to replicate DObjects between client and server: four wire types,
// varint/zig-zag integers, id-tagged fields, tuple packing and length
// framing for everything else.
package wire

import "fmt"

// Type is the 2-bit wire type carried in the low bits of every field tag.
// It is the minimum information needed to skip an unknown field.
type Type uint8

const (
	VarInt     Type = 0
	FourByte   Type = 1
	EightByte  Type = 2
	ByteLength Type = 3
)

func (t Type) String() string {
	switch t {
	case VarInt:
		return "VarInt"
	case FourByte:
		return "FourByte"
	case EightByte:
		return "EightByte"
	case ByteLength:
		return "ByteLength"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the four defined wire types.
func (t Type) Valid() bool {
	return t <= ByteLength
}
