// Package scale is the compact binary codec used for serialized IR modules.
package scale

import (
	"bytes"
	"errors"
)

var (
	ErrShortInput = errors.New("scale: input too short")
	ErrOverflow   = errors.New("scale: length exceeds input")
)

// EncodeTuple encodes anonymous tuples by concatenating their encoded elements
func EncodeTuple(elements ...[]byte) []byte {
	return bytes.Join(elements, []byte{})
}

// EncodeInteger encodes a natural number in l little-endian bytes.
func EncodeInteger(x uint64, l int) []byte {
	out := make([]byte, l)
	for i := 0; i < l; i++ {
		out[i] = byte(x)
		x >>= 8
	}
	return out
}

// EncodeGeneralInteger encodes natural numbers of up to 2^64 - 1 with a
// prefix byte whose leading ones count the trailing little-endian bytes.
func EncodeGeneralInteger(x uint64) []byte {
	for l := 0; l < 8; l++ {
		if x < 1<<(7*(l+1)) {
			prefix := byte(0xff<<(8-l)) + byte(x>>(8*l))
			return append([]byte{prefix}, EncodeInteger(x, l)...)
		}
	}
	return append([]byte{0xff}, EncodeInteger(x, 8)...)
}

// DecodeGeneralInteger returns the value and the number of bytes consumed.
func DecodeGeneralInteger(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrShortInput
	}
	first := data[0]
	if first == 0xff {
		if len(data) < 9 {
			return 0, 0, ErrShortInput
		}
		return decodeLE(data[1:9]), 9, nil
	}
	l := 0
	for l < 8 && first&(0x80>>l) != 0 {
		l++
	}
	if len(data) < 1+l {
		return 0, 0, ErrShortInput
	}
	high := uint64(first) & (1<<(7-l) - 1)
	return high<<(8*l) | decodeLE(data[1:1+l]), 1 + l, nil
}

func decodeLE(b []byte) uint64 {
	var x uint64
	for i := len(b) - 1; i >= 0; i-- {
		x = x<<8 | uint64(b[i])
	}
	return x
}

// EncodeDiscriminated prefixes value with its length
func EncodeDiscriminated(value []byte) []byte {
	return append(EncodeGeneralInteger(uint64(len(value))), value...)
}

// EncodeBitSequence packs bits LSB first, preceded by the bit count.
func EncodeBitSequence(bits []bool) []byte {
	result := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			result[i/8] |= 1 << (i % 8)
		}
	}
	return append(EncodeGeneralInteger(uint64(len(bits))), result...)
}

// Encoder appends encoded values to a buffer.
type Encoder struct {
	buf []byte
}

func (e *Encoder) Uint(x uint64)    { e.buf = append(e.buf, EncodeGeneralInteger(x)...) }
func (e *Encoder) Byte(b byte)      { e.buf = append(e.buf, b) }
func (e *Encoder) Bytes(b []byte)   { e.buf = append(e.buf, EncodeDiscriminated(b)...) }
func (e *Encoder) String(s string)  { e.Bytes([]byte(s)) }
func (e *Encoder) Bits(bits []bool) { e.buf = append(e.buf, EncodeBitSequence(bits)...) }
func (e *Encoder) Raw(b []byte)     { e.buf = append(e.buf, b...) }
func (e *Encoder) Out() []byte      { return e.buf }
func (e *Encoder) Bool(v bool)      { e.Byte(boolByte(v)) }
func (e *Encoder) Int(x int)        { e.Uint(uint64(x)) }

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Decoder reads values written by Encoder. The first error sticks and
// later reads return zero values.
type Decoder struct {
	data []byte
	off  int
	err  error
}

func NewDecoder(data []byte) *Decoder { return &Decoder{data: data} }

func (d *Decoder) Err() error { return d.err }

// Done reports whether all input was consumed without error.
func (d *Decoder) Done() bool { return d.err == nil && d.off == len(d.data) }

func (d *Decoder) Uint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := DecodeGeneralInteger(d.data[d.off:])
	if err != nil {
		d.err = err
		return 0
	}
	d.off += n
	return v
}

func (d *Decoder) Int() int { return int(d.Uint()) }

func (d *Decoder) Byte() byte {
	if d.err != nil {
		return 0
	}
	if d.off >= len(d.data) {
		d.err = ErrShortInput
		return 0
	}
	b := d.data[d.off]
	d.off++
	return b
}

func (d *Decoder) Bool() bool { return d.Byte() != 0 }

func (d *Decoder) take(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.data)-d.off) {
		d.err = ErrOverflow
		return nil
	}
	b := d.data[d.off : d.off+int(n)]
	d.off += int(n)
	return b
}

func (d *Decoder) Bytes() []byte {
	n := d.Uint()
	return append([]byte(nil), d.take(n)...)
}

func (d *Decoder) String() string { return string(d.take(d.Uint())) }

func (d *Decoder) Bits() []bool {
	n := d.Uint()
	if n > uint64(8*(len(d.data)-d.off)) {
		if d.err == nil {
			d.err = ErrOverflow
		}
		return nil
	}
	packed := d.take((n + 7) / 8)
	if packed == nil && n > 0 {
		return nil
	}
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}
	return bits
}
