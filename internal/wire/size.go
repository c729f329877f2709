package wire

// Size* helpers mirror the Writer's structure so callers can precompute a
// ByteLength frame's size before writing it (spec.md §4.1 "Size
// pre-computation").

// SizeTag returns the encoded size of a single-type field tag.
func SizeTag(id uint64, wt Type) int {
	return SizeVarUint(PackTag(id, wt))
}

// SizeMapTag returns the encoded size of a map-entry field tag.
func SizeMapTag(id uint64, keyWT, valWT Type) int {
	return SizeVarUint(PackMapTag(id, keyWT, valWT))
}

// SizeBytesFrame returns the encoded size of a ByteLength frame wrapping n
// raw bytes: the varint length prefix plus n.
func SizeBytesFrame(n int) int {
	return SizeVarUint(uint64(n)) + n
}

// SizeFramed returns the encoded size of a ByteLength frame wrapping a
// payload of the given size.
func SizeFramed(payloadSize int) int {
	return SizeVarUint(uint64(payloadSize)) + payloadSize
}
