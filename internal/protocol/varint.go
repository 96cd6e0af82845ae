package protocol

import "fmt"

// MaxVarIntLen is the longest valid encoding of a 32-bit VarInt.
const MaxVarIntLen = 5

// EncodeVarInt encodes v as 7-bit groups, least significant group first.
func EncodeVarInt(v uint32) []byte {
	var buf [MaxVarIntLen]byte
	n := PutVarInt(buf[:], v)
	out := make([]byte, n)
	copy(out, buf[:n])
	return out
}

// PutVarInt writes v into buf and returns the number of bytes written.
// buf must hold at least VarIntSize(v) bytes.
func PutVarInt(buf []byte, v uint32) int {
	n := 0
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if v == 0 {
			return n
		}
	}
}

// VarIntSize returns the encoded length of v.
func VarIntSize(v uint32) int {
	size := 0
	for {
		size++
		v >>= 7
		if v == 0 {
			return size
		}
	}
}

// DecodeVarInt reads a VarInt from buf starting at offset. It returns the
// value and the number of bytes consumed.
func DecodeVarInt(buf []byte, offset int) (uint32, int, error) {
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: negative offset %d", ErrMalformedVarInt, offset)
	}

	var result uint32
	for n := 0; ; n++ {
		if n >= MaxVarIntLen {
			return 0, n, fmt.Errorf("%w: more than %d bytes", ErrMalformedVarInt, MaxVarIntLen)
		}
		if offset+n >= len(buf) {
			return 0, n, ErrVarIntTruncated
		}

		b := buf[offset+n]
		// The fifth byte carries only the top 4 bits of a 32-bit value.
		if n == MaxVarIntLen-1 && b > 0x0F {
			return 0, n + 1, fmt.Errorf("%w: value exceeds 32 bits", ErrMalformedVarInt)
		}
		result |= uint32(b&0x7F) << (7 * n)
		if b&0x80 == 0 {
			return result, n + 1, nil
		}
	}
}

// appendVarInt appends the encoding of v to dst.
func appendVarInt(dst []byte, v uint32) []byte {
	var buf [MaxVarIntLen]byte
	n := PutVarInt(buf[:], v)
	return append(dst, buf[:n]...)
}
