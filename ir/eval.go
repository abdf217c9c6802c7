package ir

// SignExtend interprets the low Bits() of v as a signed value of type t.
func SignExtend(t Type, v uint64) int64 {
	sh := 64 - t.Bits()
	if sh == 64 {
		return 0
	}
	return int64(v<<sh) >> sh
}

// EvalBinary computes a binary op on canonical (zero-extended) operands.
// Division follows RISC-V: x/0 is all ones, x%0 is x, and signed overflow
// yields the dividend (quotient) or zero (remainder).
func EvalBinary(op Op, t Type, x, y uint64) uint64 {
	mask := t.Mask()
	bits := uint64(t.Bits())
	switch op {
	case OpAdd:
		return (x + y) & mask
	case OpSub:
		return (x - y) & mask
	case OpMul:
		return (x * y) & mask
	case OpAnd:
		return x & y
	case OpOr:
		return x | y
	case OpXor:
		return x ^ y
	case OpShl:
		return (x << (y % bits)) & mask
	case OpLShr:
		return x >> (y % bits)
	case OpAShr:
		return uint64(SignExtend(t, x)>>(y%bits)) & mask
	case OpDivU:
		if y == 0 {
			return mask
		}
		return x / y
	case OpRemU:
		if y == 0 {
			return x
		}
		return x % y
	case OpDivS:
		sx, sy := SignExtend(t, x), SignExtend(t, y)
		if sy == 0 {
			return mask
		}
		if sy == -1 && x == 1<<(bits-1) {
			return x
		}
		return uint64(sx/sy) & mask
	case OpRemS:
		sx, sy := SignExtend(t, x), SignExtend(t, y)
		if sy == 0 {
			return x
		}
		if sy == -1 {
			return 0
		}
		return uint64(sx%sy) & mask
	}
	return 0
}

// EvalICmp compares canonical operands of type t.
func EvalICmp(p Pred, t Type, x, y uint64) bool {
	switch p {
	case EQ:
		return x == y
	case NE:
		return x != y
	case ULT:
		return x < y
	case ULE:
		return x <= y
	case UGT:
		return x > y
	case UGE:
		return x >= y
	}
	sx, sy := SignExtend(t, x), SignExtend(t, y)
	switch p {
	case SLT:
		return sx < sy
	case SLE:
		return sx <= sy
	case SGT:
		return sx > sy
	case SGE:
		return sx >= sy
	}
	return false
}

// EvalCast applies zext, sext or trunc from type from to type to.
func EvalCast(op Op, from, to Type, v uint64) uint64 {
	switch op {
	case OpSExt:
		return uint64(SignExtend(from, v)) & to.Mask()
	case OpZExt:
		return v & from.Mask()
	}
	return v & to.Mask()
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
