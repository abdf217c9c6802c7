package common

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EncodeUint32 encodes a uint32 value into a byte slice in LittleEndian order
func EncodeUint32(num uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, num)
	return buf
}

// Words packs bytes into little-endian 32-bit words, zero padding the tail.
func Words(data []byte) []uint32 {
	out := make([]uint32, (len(data)+3)/4)
	for i := range out {
		var chunk [4]byte
		copy(chunk[:], data[4*i:])
		out[i] = binary.LittleEndian.Uint32(chunk[:])
	}
	return out
}

// Hex32 formats an address the way traces and logs print it.
func Hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

// MIPS returns millions of instructions per second, 0 for an empty interval.
func MIPS(instructions uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(instructions) / elapsed.Seconds() / 1e6
}
