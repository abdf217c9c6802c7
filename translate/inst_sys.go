package translate

import (
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/riscv"
)

func init() {
	register(lowerCSR, riscv.CSRRW, riscv.CSRRS, riscv.CSRRC, riscv.CSRRWI, riscv.CSRRSI, riscv.CSRRCI)
	register(func(*emitter) {}, riscv.FENCE)
	register(lowerWFI, riscv.WFI)
	register(lowerMRet, riscv.MRET)
	register(func(e *emitter) { e.trap("env_call") }, riscv.ECALL, riscv.EBREAK)
	register(lowerDMAConfig, riscv.DMSRC, riscv.DMDST, riscv.DMSTR, riscv.DMREP)
	register(lowerDMAStart, riscv.DMCPYI, riscv.DMCPY)
	register(lowerDMAStat, riscv.DMSTATI, riscv.DMSTAT)
	register(lowerSSRConfig, riscv.SCFGRI, riscv.SCFGWI, riscv.SCFGR, riscv.SCFGW)
}

// lowerCSR follows the Zicsr rules: csrrw skips the read when rd is x0 and
// csrrs/csrrc skip the write when the source is x0 or a zero immediate.
func lowerCSR(e *emitter) {
	b := e.b
	inst := e.inst
	addr := e.c32(uint32(inst.Imm) & 0xfff)
	var src ir.Value
	switch inst.Op {
	case riscv.CSRRWI, riscv.CSRRSI, riscv.CSRRCI:
		src = e.c32(uint32(inst.Rs1))
	default:
		src = e.x(inst.Rs1)
	}
	switch inst.Op {
	case riscv.CSRRW, riscv.CSRRWI:
		var old ir.Value
		if inst.Rd != 0 {
			old = b.Call("csr_read", addr)
		}
		b.Call("csr_write", addr, src)
		if old != nil {
			e.setX(inst.Rd, old)
		}
		return
	}
	old := b.Call("csr_read", addr)
	if inst.Rs1 != 0 {
		var v ir.Value
		if inst.Op == riscv.CSRRS || inst.Op == riscv.CSRRSI {
			v = b.Or(old, src)
		} else {
			v = b.And(old, b.Xor(src, e.c32(^uint32(0))))
		}
		b.Call("csr_write", addr, v)
	}
	e.setX(inst.Rd, old)
}

func lowerWFI(e *emitter) {
	e.b.Call("wfi", e.c32(e.pc))
}

// lowerMRet resumes at mepc through the dispatch block.
func lowerMRet(e *emitter) {
	e.jumpIndirect(e.b.Call("mret"))
}

func lowerDMAConfig(e *emitter) {
	b := e.b
	switch e.inst.Op {
	case riscv.DMSRC:
		b.Call("dma_src", e.x(e.inst.Rs1), e.x(e.inst.Rs2))
	case riscv.DMDST:
		b.Call("dma_dst", e.x(e.inst.Rs1), e.x(e.inst.Rs2))
	case riscv.DMSTR:
		b.Call("dma_str", e.x(e.inst.Rs1), e.x(e.inst.Rs2))
	case riscv.DMREP:
		b.Call("dma_rep", e.x(e.inst.Rs1))
	}
}

func lowerDMAStart(e *emitter) {
	size := e.x(e.inst.Rs1)
	var flags ir.Value
	if e.inst.Op == riscv.DMCPYI {
		flags = e.c32(uint32(e.inst.Imm))
	} else {
		flags = e.x(e.inst.Rs2)
	}
	e.setX(e.inst.Rd, e.b.Call("dma_start", size, flags))
}

func lowerDMAStat(e *emitter) {
	var what ir.Value
	if e.inst.Op == riscv.DMSTATI {
		what = e.c32(uint32(e.inst.Imm))
	} else {
		what = e.x(e.inst.Rs2)
	}
	e.setX(e.inst.Rd, e.b.Call("dma_stat", what))
}

func lowerSSRConfig(e *emitter) {
	b := e.b
	switch e.inst.Op {
	case riscv.SCFGRI:
		e.setX(e.inst.Rd, b.Call("ssr_cfg_read", e.c32(uint32(e.inst.Imm))))
	case riscv.SCFGR:
		e.setX(e.inst.Rd, b.Call("ssr_cfg_read", e.x(e.inst.Rs2)))
	case riscv.SCFGWI:
		b.Call("ssr_cfg_write", e.c32(uint32(e.inst.Imm)), e.x(e.inst.Rs1))
	case riscv.SCFGW:
		b.Call("ssr_cfg_write", e.x(e.inst.Rs2), e.x(e.inst.Rs1))
	}
}
