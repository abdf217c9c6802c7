package flexfloat

import (
	"math"
)

type fastOp uint8

const (
	opAdd fastOp = iota
	opSub
	opMul
	opDiv
	opSqrt
)

// FastPath enables host floating-point evaluation of binary32 and binary64
// operations under round-to-nearest-even when the result is a normal number.
var FastPath = true

// window keeps operands and results far from the binary64 subnormal range
// so that the residual computations below stay exact.
const (
	fastMinExp = -900
	fastMaxExp = 900
)

func inWindow(v float64) bool {
	if v == 0 {
		return true
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return false
	}
	_, e := math.Frexp(v)
	return e > fastMinExp && e < fastMaxExp
}

func (f Format) isF64() bool { return f.Exp == 11 && f.Man == 52 }
func (f Format) isF32() bool { return f.Exp == 8 && f.Man == 23 }

// twoSumErr returns the rounding error of s = x + y.
func twoSumErr(x, y, s float64) float64 {
	bb := s - x
	return (x - (s - bb)) + (y - bb)
}

// fast evaluates op on the host. ok is false whenever the exact slow path is
// needed: other formats or rounding modes, non-finite values, zeros that need
// sign handling, or results outside the normal range.
func (f Format) fast(op fastOp, a, b uint64, rm RoundingMode) (uint64, Flags, bool) {
	if !FastPath || rm != RNE || !(f.isF64() || f.isF32()) {
		return 0, 0, false
	}
	var x, y float64
	if f.isF64() {
		x, y = math.Float64frombits(a), math.Float64frombits(b)
	} else {
		x, y = float64(math.Float32frombits(uint32(a))), float64(math.Float32frombits(uint32(b)))
	}
	if !inWindow(x) || !inWindow(y) || x == 0 {
		return 0, 0, false
	}
	if op != opSqrt && y == 0 {
		return 0, 0, false
	}

	var r float64
	var inexact bool
	switch op {
	case opAdd:
		r = x + y
		inexact = twoSumErr(x, y, r) != 0
	case opSub:
		r = x - y
		inexact = twoSumErr(x, -y, r) != 0
	case opMul:
		r = float64(x * y)
		inexact = math.FMA(x, y, -r) != 0
	case opDiv:
		r = x / y
		inexact = math.FMA(-r, y, x) != 0
	case opSqrt:
		if x < 0 {
			return 0, 0, false
		}
		r = math.Sqrt(x)
		inexact = math.FMA(-r, r, x) != 0
	}
	if r == 0 || !inWindow(r) {
		return 0, 0, false
	}

	var fl Flags
	if f.isF64() {
		if inexact {
			fl = NX
		}
		return math.Float64bits(r), fl, true
	}
	r32 := float32(r)
	if math.IsInf(float64(r32), 0) || math.Abs(float64(r32)) < 0x1p-126 {
		return 0, 0, false
	}
	if inexact || float64(r32) != r {
		fl = NX
	}
	return uint64(math.Float32bits(r32)), fl, true
}
