package flexfloat

// Min returns the smaller operand. A single NaN operand is ignored, two NaNs
// give the canonical NaN, and -0 orders below +0.
func (f Format) Min(a, b uint64) (uint64, Flags) {
	return f.minmax(a, b, true)
}

func (f Format) Max(a, b uint64) (uint64, Flags) {
	return f.minmax(a, b, false)
}

func (f Format) minmax(a, b uint64, wantMin bool) (uint64, Flags) {
	x, y := f.unpack(a), f.unpack(b)
	var fl Flags
	if x.kind == kSNaN || y.kind == kSNaN {
		fl = NV
	}
	switch {
	case x.isNaN() && y.isNaN():
		return f.CanonicalNaN(), fl
	case x.isNaN():
		return b & f.mask(), fl
	case y.isNaN():
		return a & f.mask(), fl
	}
	xv, yv := f.Float64(a), f.Float64(b)
	if xv == yv {
		// only distinguishes signed zeros
		if x.neg == wantMin {
			return a & f.mask(), fl
		}
		return b & f.mask(), fl
	}
	if (xv < yv) == wantMin {
		return a & f.mask(), fl
	}
	return b & f.mask(), fl
}

func (f Format) Eq(a, b uint64) (bool, Flags) {
	x, y := f.unpack(a), f.unpack(b)
	if x.isNaN() || y.isNaN() {
		if x.kind == kSNaN || y.kind == kSNaN {
			return false, NV
		}
		return false, 0
	}
	return f.Float64(a) == f.Float64(b), 0
}

func (f Format) Lt(a, b uint64) (bool, Flags) {
	if f.IsNaN(a) || f.IsNaN(b) {
		return false, NV
	}
	return f.Float64(a) < f.Float64(b), 0
}

func (f Format) Le(a, b uint64) (bool, Flags) {
	if f.IsNaN(a) || f.IsNaN(b) {
		return false, NV
	}
	return f.Float64(a) <= f.Float64(b), 0
}

func (f Format) Ne(a, b uint64) (bool, Flags) {
	eq, fl := f.Eq(a, b)
	return !eq, fl
}

func (f Format) Gt(a, b uint64) (bool, Flags) { return f.Lt(b, a) }

func (f Format) Ge(a, b uint64) (bool, Flags) { return f.Le(b, a) }

func (f Format) SgnJ(a, b uint64) uint64 {
	s := f.signBit()
	return (a&^s | b&s) & f.mask()
}

func (f Format) SgnJN(a, b uint64) uint64 {
	s := f.signBit()
	return (a&^s | ^b&s) & f.mask()
}

func (f Format) SgnJX(a, b uint64) uint64 {
	return (a ^ b&f.signBit()) & f.mask()
}

// Classify returns the RISC-V fclass bit mask.
func (f Format) Classify(a uint64) uint32 {
	u := f.unpack(a)
	switch u.kind {
	case kInf:
		if u.neg {
			return 1 << 0
		}
		return 1 << 7
	case kNormal:
		if u.neg {
			return 1 << 1
		}
		return 1 << 6
	case kSubnormal:
		if u.neg {
			return 1 << 2
		}
		return 1 << 5
	case kZero:
		if u.neg {
			return 1 << 3
		}
		return 1 << 4
	case kSNaN:
		return 1 << 8
	}
	return 1 << 9
}
