// Package checksum implements the 32-bit mixing hash used to sign toolbar
// rank queries. The output is an opaque token checked by the remote service,
// so every step has to match the reference bit for bit.
package checksum

import (
	"encoding/binary"
	"strconv"
)

const (
	golden = 0x9e3779b9
	seed   = 0xe6359a60

	blockSize  = 12
	derivedLen = 20
)

// Mix runs the nine subtract/xor-shift rounds over the triple. All arithmetic
// is modulo 2^32 and all right shifts are unsigned.
func Mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= b
	a -= c
	a ^= c >> 13
	b -= c
	b -= a
	b ^= a << 8
	c -= a
	c -= b
	c ^= b >> 13
	a -= b
	a -= c
	a ^= c >> 12
	b -= c
	b -= a
	b ^= a << 16
	c -= a
	c -= b
	c ^= b >> 5
	a -= b
	a -= c
	a ^= c >> 3
	b -= c
	b -= a
	b ^= a << 10
	c -= a
	c -= b
	c ^= b >> 15
	return a, b, c
}

// Sum computes the checksum of data.
func Sum(data []byte) uint32 {
	a, b, c := uint32(golden), uint32(golden), uint32(seed)

	k := 0
	for n := len(data); n >= blockSize; n -= blockSize {
		a += binary.LittleEndian.Uint32(data[k:])
		b += binary.LittleEndian.Uint32(data[k+4:])
		c += binary.LittleEndian.Uint32(data[k+8:])
		a, b, c = Mix(a, b, c)
		k += blockSize
	}

	c += uint32(len(data))

	// Tail bytes go into c, then b, then a, highest significance first.
	// The low byte of c is reserved for the length.
	tail := data[k:]
	switch n := len(tail); {
	case n > 10:
		c += uint32(tail[10]) << 24
		fallthrough
	case n > 9:
		c += uint32(tail[9]) << 16
		fallthrough
	case n > 8:
		c += uint32(tail[8]) << 8
		fallthrough
	case n > 7:
		b += uint32(tail[7]) << 24
		fallthrough
	case n > 6:
		b += uint32(tail[6]) << 16
		fallthrough
	case n > 5:
		b += uint32(tail[5]) << 8
		fallthrough
	case n > 4:
		b += uint32(tail[4])
		fallthrough
	case n > 3:
		a += uint32(tail[3]) << 24
		fallthrough
	case n > 2:
		a += uint32(tail[2]) << 16
		fallthrough
	case n > 1:
		a += uint32(tail[1]) << 8
		fallthrough
	case n > 0:
		a += uint32(tail[0])
	}

	_, _, c = Mix(a, b, c)
	return c
}

// Derived is the two-stage transform expected by the toolbar endpoint: the
// checksum of data is folded and expanded into twenty little-endian words,
// which are checksummed again.
func Derived(data []byte) uint32 {
	return Sum(derivedBuffer(fold(Sum(data))))
}

// DerivedToken renders Derived(data) the way the toolbar query carries it.
func DerivedToken(data []byte) string {
	return "6" + strconv.FormatUint(uint64(Derived(data)), 10)
}

func fold(h uint32) uint32 {
	return ((h % 13) & 7) | ((h / 7) << 2)
}

func derivedBuffer(h uint32) []byte {
	buf := make([]byte, derivedLen*4)
	for i := 0; i < derivedLen; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], h-uint32(i*9))
	}
	return buf
}
