package flexfloat

import (
	"math/big"
)

func (u unpacked) negate() unpacked {
	u.neg = !u.neg
	u.val = -u.val
	return u
}

func (u unpacked) big() *big.Float {
	return exactFrom(u.val)
}

// propagateNaN returns the canonical NaN when any operand is a NaN, with NV
// raised for signaling inputs.
func (f Format) propagateNaN(us ...unpacked) (uint64, Flags, bool) {
	var fl Flags
	nan := false
	for _, u := range us {
		if u.kind == kSNaN {
			fl |= NV
		}
		if u.isNaN() {
			nan = true
		}
	}
	if nan {
		return f.CanonicalNaN(), fl, true
	}
	return 0, 0, false
}

func (f Format) Add(a, b uint64, rm RoundingMode) (uint64, Flags) {
	return f.add(a, b, false, rm)
}

func (f Format) Sub(a, b uint64, rm RoundingMode) (uint64, Flags) {
	return f.add(a, b, true, rm)
}

func (f Format) add(a, b uint64, sub bool, rm RoundingMode) (uint64, Flags) {
	op := opAdd
	if sub {
		op = opSub
	}
	if r, fl, ok := f.fast(op, a, b, rm); ok {
		return r, fl
	}
	x, y := f.unpack(a), f.unpack(b)
	if sub {
		y = y.negate()
	}
	if r, fl, ok := f.propagateNaN(x, y); ok {
		return r, fl
	}
	if x.kind == kInf || y.kind == kInf {
		if x.kind == kInf && y.kind == kInf && x.neg != y.neg {
			return f.CanonicalNaN(), NV
		}
		if x.kind == kInf {
			return f.Inf(x.neg), 0
		}
		return f.Inf(y.neg), 0
	}
	s := exact().Add(x.big(), y.big())
	if s.Sign() == 0 {
		if x.kind == kZero && y.kind == kZero && x.neg == y.neg {
			return f.Zero(x.neg), 0
		}
		return f.Zero(rm == RDN), 0
	}
	return f.round(s, false, rm)
}

func (f Format) Mul(a, b uint64, rm RoundingMode) (uint64, Flags) {
	if r, fl, ok := f.fast(opMul, a, b, rm); ok {
		return r, fl
	}
	x, y := f.unpack(a), f.unpack(b)
	if r, fl, ok := f.propagateNaN(x, y); ok {
		return r, fl
	}
	neg := x.neg != y.neg
	if (x.kind == kInf && y.kind == kZero) || (x.kind == kZero && y.kind == kInf) {
		return f.CanonicalNaN(), NV
	}
	if x.kind == kInf || y.kind == kInf {
		return f.Inf(neg), 0
	}
	if x.kind == kZero || y.kind == kZero {
		return f.Zero(neg), 0
	}
	return f.round(exact().Mul(x.big(), y.big()), false, rm)
}

func (f Format) Div(a, b uint64, rm RoundingMode) (uint64, Flags) {
	if r, fl, ok := f.fast(opDiv, a, b, rm); ok {
		return r, fl
	}
	x, y := f.unpack(a), f.unpack(b)
	if r, fl, ok := f.propagateNaN(x, y); ok {
		return r, fl
	}
	neg := x.neg != y.neg
	switch {
	case x.kind == kInf && y.kind == kInf, x.kind == kZero && y.kind == kZero:
		return f.CanonicalNaN(), NV
	case x.kind == kInf:
		return f.Inf(neg), 0
	case y.kind == kInf:
		return f.Zero(neg), 0
	case y.kind == kZero:
		return f.Inf(neg), DZ
	case x.kind == kZero:
		return f.Zero(neg), 0
	}
	q := new(big.Float).SetPrec(quotPrec).SetMode(big.ToZero)
	q.Quo(x.big(), y.big())
	return f.round(q, q.Acc() != big.Exact, rm)
}

func (f Format) Sqrt(a uint64, rm RoundingMode) (uint64, Flags) {
	if r, fl, ok := f.fast(opSqrt, a, 0, rm); ok {
		return r, fl
	}
	x := f.unpack(a)
	if r, fl, ok := f.propagateNaN(x); ok {
		return r, fl
	}
	switch {
	case x.kind == kZero:
		return f.Zero(x.neg), 0
	case x.neg:
		return f.CanonicalNaN(), NV
	case x.kind == kInf:
		return f.Inf(false), 0
	}
	xv := x.big()
	s := new(big.Float).SetPrec(quotPrec + 64).Sqrt(xv)
	sq := exact().Mul(s, s)
	t := new(big.Float).SetPrec(quotPrec).SetMode(big.ToZero).Set(s)
	sticky := sq.Cmp(xv) != 0 || t.Acc() != big.Exact
	return f.round(t, sticky, rm)
}

func (f Format) FMAdd(a, b, c uint64, rm RoundingMode) (uint64, Flags) {
	return f.fma(a, b, c, false, false, rm)
}

func (f Format) FMSub(a, b, c uint64, rm RoundingMode) (uint64, Flags) {
	return f.fma(a, b, c, false, true, rm)
}

// FNMSub computes -(a*b) + c.
func (f Format) FNMSub(a, b, c uint64, rm RoundingMode) (uint64, Flags) {
	return f.fma(a, b, c, true, false, rm)
}

// FNMAdd computes -(a*b) - c.
func (f Format) FNMAdd(a, b, c uint64, rm RoundingMode) (uint64, Flags) {
	return f.fma(a, b, c, true, true, rm)
}

func (f Format) fma(a, b, c uint64, negProd, negC bool, rm RoundingMode) (uint64, Flags) {
	x, y, z := f.unpack(a), f.unpack(b), f.unpack(c)
	if negC {
		z = z.negate()
	}
	if (x.kind == kInf && y.kind == kZero) || (x.kind == kZero && y.kind == kInf) {
		_, fl, _ := f.propagateNaN(x, y, z)
		return f.CanonicalNaN(), fl | NV
	}
	if r, fl, ok := f.propagateNaN(x, y, z); ok {
		return r, fl
	}
	prodNeg := (x.neg != y.neg) != negProd
	if x.kind == kInf || y.kind == kInf {
		if z.kind == kInf && z.neg != prodNeg {
			return f.CanonicalNaN(), NV
		}
		return f.Inf(prodNeg), 0
	}
	if z.kind == kInf {
		return f.Inf(z.neg), 0
	}
	p := exact().Mul(x.big(), y.big())
	if negProd {
		p.Neg(p)
	}
	s := exact().Add(p, z.big())
	if s.Sign() == 0 {
		prodZero := x.kind == kZero || y.kind == kZero
		if prodZero && z.kind == kZero && prodNeg == z.neg {
			return f.Zero(z.neg), 0
		}
		return f.Zero(rm == RDN), 0
	}
	return f.round(s, false, rm)
}
