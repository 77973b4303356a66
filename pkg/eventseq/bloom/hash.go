package bloom

import "unicode/utf16"

// HashInt32 hashes a 32-bit signed integer using Thomas Wang's method v3.1.
// Arithmetic right shifts and wrapping signed overflow are part of the
// algorithm.
func HashInt32(x int32) uint32 {
	x = ^x + (x << 15) // x = (x << 15) - x - 1
	x = x ^ (x >> 12)
	x = x + (x << 2)
	x = x ^ (x >> 4)
	x = x * 2057 // x = (x + (x << 3)) + (x << 11)
	x = x ^ (x >> 16)
	return uint32(x)
}

// HashString hashes a string using Bob Jenkins' one-at-a-time method.
// The string is consumed as UTF-16 code units so results match
// implementations that hash 16-bit characters.
func HashString(s string) uint32 {
	var hash int32
	mix := func(c int32) {
		hash += c
		hash += hash << 10
		hash ^= hash >> 6
	}
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			mix(int32(hi))
			mix(int32(lo))
			continue
		}
		mix(int32(r))
	}
	hash += hash << 3
	hash ^= hash >> 11
	hash += hash << 15
	return uint32(hash)
}
