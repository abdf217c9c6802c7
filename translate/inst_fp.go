package translate

import (
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/riscv"
)

func init() {
	register(lowerFPBinary, riscv.FADD, riscv.FSUB, riscv.FMUL, riscv.FDIV, riscv.FMIN, riscv.FMAX,
		riscv.FSGNJ, riscv.FSGNJN, riscv.FSGNJX)
	register(lowerFSqrt, riscv.FSQRT)
	register(lowerFPFused, riscv.FMADD, riscv.FMSUB, riscv.FNMSUB, riscv.FNMADD)
	register(lowerFCvt, riscv.FCVT_FF)
	register(lowerFCvtToInt, riscv.FCVT_W, riscv.FCVT_WU)
	register(lowerFCvtFromInt, riscv.FCVT_F_W, riscv.FCVT_F_WU)
	register(lowerFMvToInt, riscv.FMV_X)
	register(lowerFMvFromInt, riscv.FMV_F_X)
	register(lowerFClass, riscv.FCLASS)
	register(lowerFCompare, riscv.FEQ, riscv.FLT, riscv.FLE)
}

var fpHelperOps = map[riscv.Opcode]string{
	riscv.FADD: "add", riscv.FSUB: "sub", riscv.FMUL: "mul", riscv.FDIV: "div",
	riscv.FMIN: "min", riscv.FMAX: "max",
	riscv.FSGNJ: "sgnj", riscv.FSGNJN: "sgnjn", riscv.FSGNJX: "sgnjx",
	riscv.FMADD: "fmadd", riscv.FMSUB: "fmsub", riscv.FNMSUB: "fnmsub", riscv.FNMADD: "fnmadd",
	riscv.FEQ: "eq", riscv.FLT: "lt", riscv.FLE: "le",
	riscv.FCVT_W: "to_i32", riscv.FCVT_WU: "to_u32",
	riscv.FCVT_F_W: "from_i32", riscv.FCVT_F_WU: "from_u32",
}

// fname names the float helper of op at a storage width.
func fname(width int, op string) string {
	return machine.FloatPrefix(width) + "_" + op
}

func cvtName(from, to int) string {
	return machine.FloatPrefix(from) + "_cvt_" + machine.FloatPrefix(to)
}

func lowerFPBinary(e *emitter) {
	w := e.inst.Fmt.Width()
	ops := e.fregsN(w, e.inst.Rs1, e.inst.Rs2)
	r := e.b.Call(fname(w, fpHelperOps[e.inst.Op]), ops[0], ops[1], e.rm())
	e.setFN(e.inst.Rd, r, w)
}

func lowerFSqrt(e *emitter) {
	w := e.inst.Fmt.Width()
	a := e.fregsN(w, e.inst.Rs1)[0]
	e.setFN(e.inst.Rd, e.b.Call(fname(w, "sqrt"), a, e.rm()), w)
}

func lowerFPFused(e *emitter) {
	w := e.inst.Fmt.Width()
	ops := e.fregsN(w, e.inst.Rs1, e.inst.Rs2, e.inst.Rs3)
	r := e.b.Call(fname(w, fpHelperOps[e.inst.Op]), ops[0], ops[1], ops[2], e.rm())
	e.setFN(e.inst.Rd, r, w)
}

func lowerFCvt(e *emitter) {
	w, sw := e.inst.Fmt.Width(), e.inst.SrcFmt.Width()
	a := e.fregsN(sw, e.inst.Rs1)[0]
	if sw != w {
		a = e.b.Call(cvtName(sw, w), a, e.rm())
	}
	e.setFN(e.inst.Rd, a, w)
}

func lowerFCvtToInt(e *emitter) {
	w := e.inst.Fmt.Width()
	a := e.fregsN(w, e.inst.Rs1)[0]
	e.setX(e.inst.Rd, e.b.Call(fname(w, fpHelperOps[e.inst.Op]), a, e.rm()))
}

func lowerFCvtFromInt(e *emitter) {
	w := e.inst.Fmt.Width()
	r := e.b.Call(fname(w, fpHelperOps[e.inst.Op]), e.x(e.inst.Rs1), e.rm())
	e.setFN(e.inst.Rd, r, w)
}

// lowerFMvToInt moves the raw bits; narrow formats are sign-extended.
func lowerFMvToInt(e *emitter) {
	b := e.b
	a := e.fregs(e.inst.Rs1)[0]
	var v ir.Value
	switch e.inst.Fmt {
	case riscv.FmtH:
		v = b.SExt(ir.I32, b.Trunc(ir.I16, a))
	case riscv.FmtB:
		v = b.SExt(ir.I32, b.Trunc(ir.I8, a))
	default:
		v = b.Trunc(ir.I32, a)
	}
	e.setX(e.inst.Rd, v)
}

func lowerFMvFromInt(e *emitter) {
	w := e.inst.Fmt.Width()
	e.setFN(e.inst.Rd, e.narrow(e.b.ZExt(ir.I64, e.x(e.inst.Rs1)), w), w)
}

func lowerFClass(e *emitter) {
	w := e.inst.Fmt.Width()
	a := e.fregsN(w, e.inst.Rs1)[0]
	e.setX(e.inst.Rd, e.b.Call(fname(w, "classify"), a))
}

func lowerFCompare(e *emitter) {
	w := e.inst.Fmt.Width()
	ops := e.fregsN(w, e.inst.Rs1, e.inst.Rs2)
	e.setX(e.inst.Rd, e.b.Call(fname(w, fpHelperOps[e.inst.Op]), ops[0], ops[1]))
}
