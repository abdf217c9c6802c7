package flexfloat

import (
	"math"
)

// Convert rounds a value of format src into dst.
func Convert(dst, src Format, a uint64, rm RoundingMode) (uint64, Flags) {
	u := src.unpack(a)
	switch u.kind {
	case kSNaN:
		return dst.CanonicalNaN(), NV
	case kQNaN:
		return dst.CanonicalNaN(), 0
	case kInf:
		return dst.Inf(u.neg), 0
	case kZero:
		return dst.Zero(u.neg), 0
	}
	return dst.fromFloat64(u.val, rm)
}

// toInteger rounds a finite magnitude to an integer, saturating the result
// at limit+1 so that callers can detect overflow without wrapping.
func toInteger(v float64, rm RoundingMode, neg bool, limit uint64) (uint64, bool) {
	if v >= math.Ldexp(1, 40) {
		return limit + 1, true
	}
	return roundInt(exactFrom(v), 0, false, rm, neg)
}

// ToInt32 converts to a signed word, saturating with NV on overflow and NaN.
func (f Format) ToInt32(a uint64, rm RoundingMode) (uint32, Flags) {
	u := f.unpack(a)
	switch u.kind {
	case kQNaN, kSNaN:
		return math.MaxInt32, NV
	case kInf:
		if u.neg {
			return 1 << 31, NV
		}
		return math.MaxInt32, NV
	case kZero:
		return 0, 0
	}
	mag, inexact := toInteger(math.Abs(u.val), rm, u.neg, 1<<31)
	var fl Flags
	if inexact {
		fl = NX
	}
	if u.neg {
		if mag > 1<<31 {
			return 1 << 31, NV
		}
		return uint32(-int64(mag)), fl
	}
	if mag > math.MaxInt32 {
		return math.MaxInt32, NV
	}
	return uint32(mag), fl
}

// ToUint32 converts to an unsigned word, saturating with NV.
func (f Format) ToUint32(a uint64, rm RoundingMode) (uint32, Flags) {
	u := f.unpack(a)
	switch u.kind {
	case kQNaN, kSNaN:
		return math.MaxUint32, NV
	case kInf:
		if u.neg {
			return 0, NV
		}
		return math.MaxUint32, NV
	case kZero:
		return 0, 0
	}
	mag, inexact := toInteger(math.Abs(u.val), rm, u.neg, math.MaxUint32)
	var fl Flags
	if inexact {
		fl = NX
	}
	if u.neg {
		if mag != 0 {
			return 0, NV
		}
		return 0, fl
	}
	if mag > math.MaxUint32 {
		return math.MaxUint32, NV
	}
	return uint32(mag), fl
}

func (f Format) FromInt32(v int32, rm RoundingMode) (uint64, Flags) {
	if v == 0 {
		return 0, 0
	}
	return f.fromFloat64(float64(v), rm)
}

func (f Format) FromUint32(v uint32, rm RoundingMode) (uint64, Flags) {
	if v == 0 {
		return 0, 0
	}
	return f.fromFloat64(float64(v), rm)
}

// FromFloat64 rounds a host binary64 value into f.
func (f Format) FromFloat64(v float64, rm RoundingMode) (uint64, Flags) {
	return Convert(f, F64, math.Float64bits(v), rm)
}
