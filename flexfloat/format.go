// Package flexfloat implements IEEE-754 style arithmetic over arbitrary
// small binary formats (8, 16, 32 and 64 bit, plus the alternate 8- and
// 16-bit flavours) on raw bit patterns, with RISC-V rounding modes and
// accrued exception flags.
package flexfloat

import (
	"math"
)

// Format describes a binary floating-point encoding with Exp exponent bits
// and Man explicit fraction bits.
type Format struct {
	Name string
	Exp  uint
	Man  uint
}

var (
	F8     = Format{"e5m2", 5, 2}
	F8Alt  = Format{"e4m3", 4, 3}
	F16    = Format{"binary16", 5, 10}
	F16Alt = Format{"bfloat16", 8, 7}
	F32    = Format{"binary32", 8, 23}
	F64    = Format{"binary64", 11, 52}
)

// Flags are the RISC-V fflags bits.
type Flags uint8

const (
	NX Flags = 1 << iota // inexact
	UF                   // underflow
	OF                   // overflow
	DZ                   // divide by zero
	NV                   // invalid
)

// RoundingMode follows the RISC-V rm encoding.
type RoundingMode uint8

const (
	RNE RoundingMode = 0
	RTZ RoundingMode = 1
	RDN RoundingMode = 2
	RUP RoundingMode = 3
	RMM RoundingMode = 4
)

func (f Format) Width() uint { return 1 + f.Exp + f.Man }

func (f Format) bias() int { return 1<<(f.Exp-1) - 1 }

func (f Format) emin() int { return 1 - f.bias() }

func (f Format) expMax() uint64 { return 1<<f.Exp - 1 }

func (f Format) mask() uint64 {
	if f.Width() == 64 {
		return math.MaxUint64
	}
	return 1<<f.Width() - 1
}

func (f Format) signBit() uint64 { return 1 << (f.Exp + f.Man) }

func (f Format) fracMask() uint64 { return 1<<f.Man - 1 }

// CanonicalNaN returns the quiet NaN with a clear sign and payload.
func (f Format) CanonicalNaN() uint64 {
	return f.expMax()<<f.Man | 1<<(f.Man-1)
}

// Inf returns the signed infinity.
func (f Format) Inf(neg bool) uint64 {
	v := f.expMax() << f.Man
	if neg {
		v |= f.signBit()
	}
	return v
}

// MaxFinite returns the signed largest finite value.
func (f Format) MaxFinite(neg bool) uint64 {
	v := (f.expMax()-1)<<f.Man | f.fracMask()
	if neg {
		v |= f.signBit()
	}
	return v
}

func (f Format) Zero(neg bool) uint64 {
	if neg {
		return f.signBit()
	}
	return 0
}

type kind uint8

const (
	kZero kind = iota
	kSubnormal
	kNormal
	kInf
	kQNaN
	kSNaN
)

type unpacked struct {
	kind kind
	neg  bool
	// value of finite operands; every supported format embeds exactly into binary64
	val float64
}

func (f Format) unpack(bits uint64) unpacked {
	bits &= f.mask()
	neg := bits&f.signBit() != 0
	e := bits >> f.Man & f.expMax()
	m := bits & f.fracMask()
	switch {
	case e == f.expMax() && m == 0:
		return unpacked{kind: kInf, neg: neg}
	case e == f.expMax():
		if m>>(f.Man-1) != 0 {
			return unpacked{kind: kQNaN, neg: neg}
		}
		return unpacked{kind: kSNaN, neg: neg}
	case e == 0 && m == 0:
		return unpacked{kind: kZero, neg: neg}
	}
	var v float64
	k := kNormal
	if e == 0 {
		k = kSubnormal
		v = math.Ldexp(float64(m), f.emin()-int(f.Man))
	} else {
		v = math.Ldexp(float64(m|1<<f.Man), int(e)-f.bias()-int(f.Man))
	}
	if neg {
		v = -v
	}
	return unpacked{kind: k, neg: neg, val: v}
}

func (u unpacked) isNaN() bool    { return u.kind == kQNaN || u.kind == kSNaN }
func (u unpacked) isFinite() bool { return u.kind <= kNormal }

// IsNaN reports whether bits encode a NaN in f.
func (f Format) IsNaN(bits uint64) bool { return f.unpack(bits).isNaN() }

// IsSignalingNaN reports whether bits encode a signaling NaN in f.
func (f Format) IsSignalingNaN(bits uint64) bool { return f.unpack(bits).kind == kSNaN }

// Float64 returns the exact binary64 value of bits; NaNs map to NaN.
func (f Format) Float64(bits uint64) float64 {
	u := f.unpack(bits)
	switch u.kind {
	case kInf:
		return math.Inf(boolSign(u.neg))
	case kQNaN, kSNaN:
		return math.NaN()
	case kZero:
		if u.neg {
			return math.Copysign(0, -1)
		}
		return 0
	}
	return u.val
}

func boolSign(neg bool) int {
	if neg {
		return -1
	}
	return 1
}

// NaNBox places a narrow value in the low bits of a 64-bit register with
// all upper bits set.
func NaNBox(width uint, bits uint64) uint64 {
	if width >= 64 {
		return bits
	}
	return ^uint64(0)<<width | bits&(1<<width-1)
}

// Unbox extracts a narrow value from a 64-bit register. Values that are
// not properly NaN-boxed read as the canonical NaN of f.
func (f Format) Unbox(reg uint64) uint64 {
	w := f.Width()
	if w >= 64 {
		return reg
	}
	if reg>>w != ^uint64(0)>>w {
		return f.CanonicalNaN()
	}
	return reg & f.mask()
}
