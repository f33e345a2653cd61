package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// UintLE decodes up to the first 8 bytes of b as a little-endian unsigned integer.
//
// Parameter channels return registers of device-defined width, so short reads are widened
// and longer reads are truncated to 64 bits.
func UintLE(b []byte) uint64 {
	if len(b) > 8 {
		b = b[:8]
	}

	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}
