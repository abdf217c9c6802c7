package translate

import (
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/riscv"
	"github.com/colorfulnotion/clustersim/trace"
)

func init() {
	register(lowerLoad, riscv.LB, riscv.LH, riscv.LW, riscv.LBU, riscv.LHU)
	register(lowerStore, riscv.SB, riscv.SH, riscv.SW)
	register(lowerFPLoad, riscv.FLB, riscv.FLH, riscv.FLW, riscv.FLD)
	register(lowerFPStore, riscv.FSB, riscv.FSH, riscv.FSW, riscv.FSD)
	register(lowerAMO, riscv.LR_W, riscv.SC_W, riscv.AMOSWAP_W, riscv.AMOADD_W, riscv.AMOXOR_W,
		riscv.AMOAND_W, riscv.AMOOR_W, riscv.AMOMIN_W, riscv.AMOMAX_W, riscv.AMOMINU_W, riscv.AMOMAXU_W)
}

// accessSize returns the byte width of a load or store.
func accessSize(op riscv.Opcode) uint32 {
	switch op {
	case riscv.LB, riscv.LBU, riscv.SB, riscv.FLB, riscv.FSB:
		return 1
	case riscv.LH, riscv.LHU, riscv.SH, riscv.FLH, riscv.FSH:
		return 2
	case riscv.FLD, riscv.FSD:
		return 8
	}
	return 4
}

// inTCDM tests addr against the local TCDM window with one unsigned
// compare.
func (e *emitter) inTCDM(addr ir.Value) ir.Value {
	tcdm := e.t.mem.TCDM
	off := e.b.Sub(addr, e.c32(tcdm.Start))
	return e.b.ICmp(ir.ULT, off, e.c32(tcdm.Size()))
}

// loadWord returns the aligned word containing addr and addr itself, both
// valid in the block current on return.
func (e *emitter) loadWord(addr ir.Value, size uint32) (word, at ir.Value) {
	b := e.b
	e.traceAccess(trace.ReadAddr, 0, addr)
	if !e.t.fastTCDM {
		e.regionLatency(e.t.mem.DRAM.Latency)
		return b.Call("mem_load", addr, e.c32(size)), addr
	}
	addrSlot, wordSlot := e.t.scratch("addr", ir.I32), e.t.scratch("word", ir.I32)
	b.LocalStore(addrSlot, addr)
	fast, slow, join := e.t.split(e.pc, "tcdm"), e.t.split(e.pc, "mem"), e.t.split(e.pc, "ld")
	b.CondBr(e.inTCDM(addr), fast, slow)

	b.SetBlock(fast)
	b.LocalStore(wordSlot, b.TCDMLoad(b.Sub(b.LocalLoad(addrSlot), e.c32(e.t.mem.TCDM.Start))))
	e.regionLatency(e.t.mem.TCDM.Latency)
	b.Br(join)

	b.SetBlock(slow)
	b.LocalStore(wordSlot, b.Call("mem_load", b.LocalLoad(addrSlot), e.c32(size)))
	e.regionLatency(e.t.mem.DRAM.Latency)
	b.Br(join)

	b.SetBlock(join)
	return b.LocalLoad(wordSlot), b.LocalLoad(addrSlot)
}

// storeWord merges value under mask into the word containing addr.
func (e *emitter) storeWord(addr, value, bytes ir.Value, size uint32) {
	b := e.b
	e.traceAccess(trace.WriteAddr, 0, addr)
	if !e.t.fastTCDM {
		b.Call("mem_store", addr, value, bytes, e.c32(size))
		return
	}
	addrSlot, valSlot, maskSlot := e.t.scratch("addr", ir.I32), e.t.scratch("val", ir.I32), e.t.scratch("mask", ir.I32)
	b.LocalStore(addrSlot, addr)
	b.LocalStore(valSlot, value)
	b.LocalStore(maskSlot, bytes)
	fast, slow, join := e.t.split(e.pc, "tcdm"), e.t.split(e.pc, "mem"), e.t.split(e.pc, "st")
	b.CondBr(e.inTCDM(addr), fast, slow)

	b.SetBlock(fast)
	off := b.Sub(b.LocalLoad(addrSlot), e.c32(e.t.mem.TCDM.Start))
	b.TCDMStore(off, b.LocalLoad(valSlot), b.LocalLoad(maskSlot))
	b.Br(join)

	b.SetBlock(slow)
	b.Call("mem_store", b.LocalLoad(addrSlot), b.LocalLoad(valSlot), b.LocalLoad(maskSlot), e.c32(size))
	b.Br(join)

	b.SetBlock(join)
}

// laneShift is the bit offset of addr within its word.
func (e *emitter) laneShift(addr ir.Value) ir.Value {
	return e.b.Shl(e.b.And(addr, e.c32(3)), e.c32(3))
}

// extract pulls a size-byte value out of word, zero-extended to I32.
func (e *emitter) extract(word, addr ir.Value, size uint32) ir.Value {
	if size >= 4 {
		return word
	}
	v := e.b.LShr(word, e.laneShift(addr))
	return e.b.And(v, e.c32(mask[uint32](int(8*size))))
}

// storeSub writes the low size bytes of v at addr.
func (e *emitter) storeSub(addr, v ir.Value, size uint32) {
	if size >= 4 {
		e.storeWord(addr, v, e.c32(^uint32(0)), 4)
		return
	}
	sh := e.laneShift(addr)
	bytes := e.b.Shl(e.c32(mask[uint32](int(8*size))), sh)
	e.storeWord(addr, e.b.Shl(v, sh), bytes, size)
}

func (e *emitter) effectiveAddr() ir.Value {
	return e.b.AddImm(e.x(e.inst.Rs1), uint64(uint32(e.inst.Imm)))
}

func lowerLoad(e *emitter) {
	b := e.b
	size := accessSize(e.inst.Op)
	word, at := e.loadWord(e.effectiveAddr(), size)
	v := e.extract(word, at, size)
	switch e.inst.Op {
	case riscv.LB:
		v = b.SExt(ir.I32, b.Trunc(ir.I8, v))
	case riscv.LH:
		v = b.SExt(ir.I32, b.Trunc(ir.I16, v))
	}
	e.setX(e.inst.Rd, v)
}

func lowerStore(e *emitter) {
	addr := e.effectiveAddr()
	v := e.x(e.inst.Rs2)
	e.storeSub(addr, v, accessSize(e.inst.Op))
}

func lowerFPLoad(e *emitter) {
	b := e.b
	size := accessSize(e.inst.Op)
	addr := e.effectiveAddr()
	if size == 8 {
		lo, at := e.loadWord(addr, 4)
		loSlot := e.t.scratch("lo", ir.I32)
		b.LocalStore(loSlot, lo)
		hi, _ := e.loadWord(b.AddImm(at, 4), 4)
		v := b.Or(b.ZExt(ir.I64, b.LocalLoad(loSlot)), b.Shl(b.ZExt(ir.I64, hi), e.c64(32)))
		e.setF(e.inst.Rd, v)
		return
	}
	word, at := e.loadWord(addr, size)
	e.setFN(e.inst.Rd, e.extract(word, at, size), int(8*size))
}

func lowerFPStore(e *emitter) {
	b := e.b
	f := e.fregs(e.inst.Rs2)[0]
	size := accessSize(e.inst.Op)
	addr := e.effectiveAddr()
	if size == 8 {
		a2, hi := e.t.scratch("addr2", ir.I32), e.t.scratch("hi", ir.I32)
		b.LocalStore(a2, b.AddImm(addr, 4))
		b.LocalStore(hi, b.Trunc(ir.I32, b.LShr(f, e.c64(32))))
		e.storeWord(addr, b.Trunc(ir.I32, f), e.c32(^uint32(0)), 4)
		e.storeWord(b.LocalLoad(a2), b.LocalLoad(hi), e.c32(^uint32(0)), 4)
		return
	}
	e.storeSub(addr, b.Trunc(ir.I32, f), size)
}

var amoOps = map[riscv.Opcode]machine.AMOOp{
	riscv.LR_W:      machine.AMOLR,
	riscv.SC_W:      machine.AMOSC,
	riscv.AMOSWAP_W: machine.AMOSwap,
	riscv.AMOADD_W:  machine.AMOAdd,
	riscv.AMOXOR_W:  machine.AMOXor,
	riscv.AMOAND_W:  machine.AMOAnd,
	riscv.AMOOR_W:   machine.AMOOr,
	riscv.AMOMIN_W:  machine.AMOMin,
	riscv.AMOMAX_W:  machine.AMOMax,
	riscv.AMOMINU_W: machine.AMOMinU,
	riscv.AMOMAXU_W: machine.AMOMaxU,
}

// lowerAMO goes through the amo helper, which serializes against other
// harts for every memory region.
func lowerAMO(e *emitter) {
	addr := e.x(e.inst.Rs1)
	var v ir.Value
	if e.inst.Op == riscv.LR_W {
		v = e.c32(0)
	} else {
		v = e.x(e.inst.Rs2)
	}
	e.traceAccess(trace.AMOAddr, 0, addr)
	old := e.b.Call("amo", addr, v, e.c32(uint32(amoOps[e.inst.Op])))
	e.setX(e.inst.Rd, old)
}
