package translate

import (
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/riscv"
)

func init() {
	register(lowerLUI, riscv.LUI)
	register(lowerAUIPC, riscv.AUIPC)
	register(lowerJAL, riscv.JAL)
	register(lowerJALR, riscv.JALR)
	register(lowerBranch, riscv.BEQ, riscv.BNE, riscv.BLT, riscv.BGE, riscv.BLTU, riscv.BGEU)
	register(lowerOpImm, riscv.ADDI, riscv.SLTI, riscv.SLTIU, riscv.XORI, riscv.ORI, riscv.ANDI,
		riscv.SLLI, riscv.SRLI, riscv.SRAI)
	register(lowerOp, riscv.ADD, riscv.SUB, riscv.SLL, riscv.SLT, riscv.SLTU, riscv.XOR,
		riscv.SRL, riscv.SRA, riscv.OR, riscv.AND,
		riscv.MUL, riscv.DIV, riscv.DIVU, riscv.REM, riscv.REMU)
	register(lowerMulHigh, riscv.MULH, riscv.MULHSU, riscv.MULHU)
}

var binaryOps = map[riscv.Opcode]ir.Op{
	riscv.ADDI: ir.OpAdd, riscv.XORI: ir.OpXor, riscv.ORI: ir.OpOr, riscv.ANDI: ir.OpAnd,
	riscv.SLLI: ir.OpShl, riscv.SRLI: ir.OpLShr, riscv.SRAI: ir.OpAShr,
	riscv.ADD: ir.OpAdd, riscv.SUB: ir.OpSub, riscv.XOR: ir.OpXor, riscv.OR: ir.OpOr, riscv.AND: ir.OpAnd,
	riscv.SLL: ir.OpShl, riscv.SRL: ir.OpLShr, riscv.SRA: ir.OpAShr,
	riscv.MUL: ir.OpMul, riscv.DIV: ir.OpDivS, riscv.DIVU: ir.OpDivU, riscv.REM: ir.OpRemS, riscv.REMU: ir.OpRemU,
}

var compareOps = map[riscv.Opcode]ir.Pred{
	riscv.SLTI: ir.SLT, riscv.SLTIU: ir.ULT, riscv.SLT: ir.SLT, riscv.SLTU: ir.ULT,
	riscv.BEQ: ir.EQ, riscv.BNE: ir.NE, riscv.BLT: ir.SLT, riscv.BGE: ir.SGE, riscv.BLTU: ir.ULT, riscv.BGEU: ir.UGE,
}

func lowerLUI(e *emitter) {
	e.setX(e.inst.Rd, e.c32(uint32(e.inst.Imm)))
}

func lowerAUIPC(e *emitter) {
	e.setX(e.inst.Rd, e.c32(e.pc+uint32(e.inst.Imm)))
}

// arith applies a binary op or a set-less-than compare.
func (e *emitter) arith(op riscv.Opcode, a, b ir.Value) ir.Value {
	if p, ok := compareOps[op]; ok {
		return e.b.ZExt(ir.I32, e.b.ICmp(p, a, b))
	}
	return e.b.Bin(binaryOps[op], a, b)
}

func lowerOpImm(e *emitter) {
	a := e.x(e.inst.Rs1)
	e.setX(e.inst.Rd, e.arith(e.inst.Op, a, e.c32(uint32(e.inst.Imm))))
}

func lowerOp(e *emitter) {
	a := e.x(e.inst.Rs1)
	b := e.x(e.inst.Rs2)
	e.setX(e.inst.Rd, e.arith(e.inst.Op, a, b))
}

// lowerMulHigh computes the upper word of the 64-bit product.
func lowerMulHigh(e *emitter) {
	b := e.b
	x, y := e.x(e.inst.Rs1), e.x(e.inst.Rs2)
	var wx, wy ir.Value
	switch e.inst.Op {
	case riscv.MULH:
		wx, wy = b.SExt(ir.I64, x), b.SExt(ir.I64, y)
	case riscv.MULHSU:
		wx, wy = b.SExt(ir.I64, x), b.ZExt(ir.I64, y)
	default:
		wx, wy = b.ZExt(ir.I64, x), b.ZExt(ir.I64, y)
	}
	hi := b.LShr(b.Mul(wx, wy), e.c64(32))
	e.setX(e.inst.Rd, b.Trunc(ir.I32, hi))
}

func lowerJAL(e *emitter) {
	target := e.pc + uint32(e.inst.Imm)
	e.setX(e.inst.Rd, e.c32(e.pc+4))
	dest := e.t.escape(target)
	e.term = func() { e.b.Br(dest) }
}

func lowerJALR(e *emitter) {
	b := e.b
	target := b.And(b.AddImm(e.x(e.inst.Rs1), uint64(uint32(e.inst.Imm))), e.c32(^uint32(1)))
	e.jumpIndirect(target)
	e.setX(e.inst.Rd, e.c32(e.pc+4))
}

func lowerBranch(e *emitter) {
	a := e.x(e.inst.Rs1)
	b := e.x(e.inst.Rs2)
	cond := e.b.ICmp(compareOps[e.inst.Op], a, b)
	taken := e.t.escape(e.pc + uint32(e.inst.Imm))
	next := e.t.blocks[e.pc+4]
	e.term = func() { e.b.CondBr(cond, taken, next) }
}
