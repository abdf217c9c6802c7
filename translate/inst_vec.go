package translate

import (
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/riscv"
)

// Packed SIMD operates lane by lane on 64-bit float registers through the
// scalar helpers of the lane format, always with the dynamic rounding mode.

func init() {
	register(lowerVecBinary, riscv.VFADD, riscv.VFSUB, riscv.VFMUL, riscv.VFDIV, riscv.VFMIN, riscv.VFMAX,
		riscv.VFSGNJ, riscv.VFSGNJN, riscv.VFSGNJX)
	register(lowerVecSqrt, riscv.VFSQRT)
	register(lowerVecFused, riscv.VFMAC, riscv.VFMRE)
	register(lowerVecCompare, riscv.VFEQ, riscv.VFLT, riscv.VFLE)
	register(lowerVecPack, riscv.VFCPKA, riscv.VFCPKB)
	register(lowerVecSum, riscv.VFSUM)
	register(lowerVecDot, riscv.VFDOTPEX)
}

var vecHelperOps = map[riscv.Opcode]string{
	riscv.VFADD: "add", riscv.VFSUB: "sub", riscv.VFMUL: "mul", riscv.VFDIV: "div",
	riscv.VFMIN: "min", riscv.VFMAX: "max",
	riscv.VFSGNJ: "sgnj", riscv.VFSGNJN: "sgnjn", riscv.VFSGNJX: "sgnjx",
	riscv.VFMAC: "fmadd", riscv.VFMRE: "fnmsub",
	riscv.VFEQ: "eq", riscv.VFLT: "lt", riscv.VFLE: "le",
}

func (e *emitter) dyn() ir.Value { return e.c32(uint32(riscv.RmDYN)) }

// lane extracts lane i of a packed register.
func (e *emitter) lane(v ir.Value, i, width int) ir.Value {
	if i > 0 {
		v = e.b.LShr(v, e.c64(uint64(i*width)))
	}
	return e.narrow(v, width)
}

// second returns lane i of the second operand, or lane 0 when it is
// replicated.
func (e *emitter) second(v ir.Value, i, width int) ir.Value {
	if e.inst.Rep {
		i = 0
	}
	return e.lane(v, i, width)
}

// insert replaces lane i of packed with v.
func (e *emitter) insert(packed, v ir.Value, i, width int) ir.Value {
	m := mask[uint64](width) << uint(i*width)
	cleared := e.b.And(packed, e.c64(^m))
	return e.b.Or(cleared, e.b.Shl(e.narrow(v, width), e.c64(uint64(i*width))))
}

// pack assembles lanes into one register.
func (e *emitter) pack(lanes []ir.Value, width int) ir.Value {
	acc := e.c64(0)
	for i, v := range lanes {
		acc = e.insert(acc, v, i, width)
	}
	return acc
}

func lowerVecBinary(e *emitter) {
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	ops := e.fregs(e.inst.Rs1, e.inst.Rs2)
	name := fname(w, vecHelperOps[e.inst.Op])
	lanes := make([]ir.Value, n)
	for i := range lanes {
		lanes[i] = e.b.Call(name, e.lane(ops[0], i, w), e.second(ops[1], i, w), e.dyn())
	}
	e.setF(e.inst.Rd, e.pack(lanes, w))
}

func lowerVecSqrt(e *emitter) {
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	a := e.fregs(e.inst.Rs1)[0]
	lanes := make([]ir.Value, n)
	for i := range lanes {
		lanes[i] = e.b.Call(fname(w, "sqrt"), e.lane(a, i, w), e.dyn())
	}
	e.setF(e.inst.Rd, e.pack(lanes, w))
}

// lowerVecFused accumulates into rd: vfmac is rd + a*b, vfmre is rd - a*b.
func lowerVecFused(e *emitter) {
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	ops := e.fregs(e.inst.Rs1, e.inst.Rs2, e.inst.Rd)
	name := fname(w, vecHelperOps[e.inst.Op])
	lanes := make([]ir.Value, n)
	for i := range lanes {
		lanes[i] = e.b.Call(name, e.lane(ops[0], i, w), e.second(ops[1], i, w), e.lane(ops[2], i, w), e.dyn())
	}
	e.setF(e.inst.Rd, e.pack(lanes, w))
}

// lowerVecCompare writes one result bit per lane to an integer register.
func lowerVecCompare(e *emitter) {
	b := e.b
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	ops := e.fregs(e.inst.Rs1, e.inst.Rs2)
	name := fname(w, vecHelperOps[e.inst.Op])
	bits := e.c32(0)
	for i := 0; i < n; i++ {
		r := b.Call(name, e.lane(ops[0], i, w), e.second(ops[1], i, w))
		bits = b.Or(bits, b.Shl(r, e.c32(uint32(i))))
	}
	e.setX(e.inst.Rd, bits)
}

// lowerVecPack converts the binary32 values in rs1 and rs2 into lanes 0-1
// (vfcpka) or 2-3 (vfcpkb) of rd. Lanes past the register are dropped.
func lowerVecPack(e *emitter) {
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	ops := e.fregs(e.inst.Rs1, e.inst.Rs2, e.inst.Rd)
	base := 0
	if e.inst.Op == riscv.VFCPKB {
		base = 2
	}
	out := ops[2]
	for k := 0; k < 2; k++ {
		if base+k >= n {
			break
		}
		v := e.narrow(ops[k], 32)
		if w != 32 {
			v = e.b.Call(cvtName(32, w), v, e.dyn())
		}
		out = e.insert(out, v, base+k, w)
	}
	e.setF(e.inst.Rd, out)
}

// lowerVecSum adds every lane of rs1 into lane 0 of rd.
func lowerVecSum(e *emitter) {
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	ops := e.fregs(e.inst.Rs1, e.inst.Rd)
	acc := e.lane(ops[1], 0, w)
	for i := 0; i < n; i++ {
		acc = e.b.Call(fname(w, "add"), acc, e.lane(ops[0], i, w), e.dyn())
	}
	e.setF(e.inst.Rd, e.insert(ops[1], acc, 0, w))
}

// lowerVecDot is the expanding dot product: each wide lane j of rd
// accumulates the products of narrow lanes 2j and 2j+1, computed in the
// wider format.
func lowerVecDot(e *emitter) {
	b := e.b
	w, n := e.inst.Vfmt.Width(), e.inst.Vfmt.Lanes()
	ww := riscv.Wider(e.inst.Vfmt.Scalar()).Width()
	ops := e.fregs(e.inst.Rs1, e.inst.Rs2, e.inst.Rd)
	widen := func(v ir.Value) ir.Value {
		if ww == w {
			return v
		}
		return b.Call(cvtName(w, ww), v, e.dyn())
	}
	out := ops[2]
	for j := 0; j < n/2; j++ {
		acc := e.lane(ops[2], j, ww)
		for _, i := range []int{2 * j, 2*j + 1} {
			x, y := widen(e.lane(ops[0], i, w)), widen(e.second(ops[1], i, w))
			acc = b.Call(fname(ww, "fmadd"), x, y, acc, e.dyn())
		}
		out = e.insert(out, acc, j, ww)
	}
	e.setF(e.inst.Rd, out)
}
