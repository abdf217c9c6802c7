package flexfloat

import (
	"math/big"
)

// workPrec holds any exact sum or product of two binary64 values.
const workPrec = 3000

// quotPrec is the truncated precision used for division and square root.
const quotPrec = 160

var half = big.NewFloat(0.5)

func exact() *big.Float {
	return new(big.Float).SetPrec(workPrec)
}

func exactFrom(v float64) *big.Float {
	return exact().SetFloat64(v)
}

// roundInt rounds a*2^-q to an integer. It returns the integer and whether
// any bits were discarded.
func roundInt(a *big.Float, q int, sticky bool, rm RoundingMode, neg bool) (uint64, bool) {
	t := new(big.Float).SetPrec(a.Prec()).SetMantExp(a, -q)
	ip, _ := t.Int(nil)
	frac := new(big.Float).SetPrec(a.Prec()).Sub(t, new(big.Float).SetInt(ip))
	inexact := frac.Sign() != 0 || sticky
	cmp := frac.Cmp(half)
	up := false
	switch rm {
	case RNE:
		up = cmp > 0 || (cmp == 0 && sticky) || (cmp == 0 && ip.Bit(0) == 1)
	case RMM:
		up = cmp >= 0
	case RDN:
		up = neg && inexact
	case RUP:
		up = !neg && inexact
	}
	i := ip.Uint64()
	if up {
		i++
	}
	return i, inexact
}

// round packs r into f. sticky marks a nonzero tail below the magnitude of
// r that was lost by an earlier truncation.
func (f Format) round(r *big.Float, sticky bool, rm RoundingMode) (uint64, Flags) {
	neg := r.Signbit()
	if r.Sign() == 0 {
		return f.Zero(neg), 0
	}
	if r.IsInf() {
		return f.Inf(neg), 0
	}
	a := new(big.Float).SetPrec(r.Prec()).Abs(r)
	e := a.MantExp(nil) - 1
	emin := f.emin()
	man := int(f.Man)

	q := max(e, emin) - man
	i, inexact := roundInt(a, q, sticky, rm, neg)
	if i>>(f.Man+1) != 0 {
		i >>= 1
		q++
	}

	var flags Flags
	if inexact {
		flags |= NX
		tiny := e < emin-1
		if e == emin-1 {
			n, _ := roundInt(a, e-man, sticky, rm, neg)
			tiny = n>>(f.Man+1) == 0
		}
		if tiny {
			flags |= UF
		}
	}

	var bits uint64
	if i>>f.Man == 0 {
		bits = i
	} else {
		biased := q + man + f.bias()
		if biased >= int(f.expMax()) {
			return f.overflow(neg, rm), OF | NX
		}
		bits = uint64(biased)<<f.Man | i&f.fracMask()
	}
	if neg {
		bits |= f.signBit()
	}
	return bits, flags
}

func (f Format) overflow(neg bool, rm RoundingMode) uint64 {
	switch rm {
	case RTZ:
		return f.MaxFinite(neg)
	case RDN:
		if !neg {
			return f.MaxFinite(false)
		}
	case RUP:
		if neg {
			return f.MaxFinite(true)
		}
	}
	return f.Inf(neg)
}

// fromFloat64 rounds an exactly representable binary64 value into f.
func (f Format) fromFloat64(v float64, rm RoundingMode) (uint64, Flags) {
	return f.round(exactFrom(v), false, rm)
}
