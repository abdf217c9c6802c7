package machine

import (
	"github.com/colorfulnotion/clustersim/riscv"
)

// mip composes the stored pending bits with the software interrupt from
// the CLINT (bit 3) and the cluster-local interrupt (bit 19).
func (h *Hart) mip() uint32 {
	v := h.IRQ.Mip
	if h.Global.CLINT[h.Index].Load()&1 != 0 {
		v |= 1 << 3
	}
	if h.Cluster.CLINT.Load()>>uint(h.Core)&1 != 0 {
		v |= 1 << 19
	}
	return v
}

// ReadCSR returns the value of csr; unknown CSRs read 0.
func (h *Hart) ReadCSR(csr uint16) uint32 {
	switch csr {
	case riscv.CSR_FFLAGS:
		return h.FFlags & 0x1f
	case riscv.CSR_FRM:
		return h.Frm & 7
	case riscv.CSR_FCSR:
		return (h.Frm&7)<<5 | h.FFlags&0x1f
	case riscv.CSR_MSTATUS:
		return h.IRQ.Mstatus
	case riscv.CSR_MIE:
		return h.IRQ.Mie
	case riscv.CSR_MIP:
		return h.mip()
	case riscv.CSR_MTVEC:
		return h.IRQ.Mtvec
	case riscv.CSR_MEPC:
		return h.IRQ.Mepc
	case riscv.CSR_MCAUSE:
		return h.IRQ.Mcause
	case riscv.CSR_MHARTID:
		return h.ID
	case riscv.CSR_MCYCLE, riscv.CSR_CYCLE:
		return uint32(h.Cycle)
	case riscv.CSR_MCYCLEH, riscv.CSR_CYCLEH:
		return uint32(h.Cycle >> 32)
	case riscv.CSR_MINSTRET, riscv.CSR_INSTRET:
		return uint32(h.Instret)
	case riscv.CSR_MINSTRETH, riscv.CSR_INSTRETH:
		return uint32(h.Instret >> 32)
	case riscv.CSR_SSR:
		return h.SSREnable
	case riscv.CSR_FPMODE:
		return h.FPMode
	}
	return 0
}

// WriteCSR updates csr; read-only and unknown CSRs ignore writes.
func (h *Hart) WriteCSR(csr uint16, v uint32) {
	switch csr {
	case riscv.CSR_FFLAGS:
		h.FFlags = v & 0x1f
	case riscv.CSR_FRM:
		h.Frm = v & 7
	case riscv.CSR_FCSR:
		h.FFlags = v & 0x1f
		h.Frm = (v >> 5) & 7
	case riscv.CSR_MSTATUS:
		h.IRQ.Mstatus = v
	case riscv.CSR_MIE:
		h.IRQ.Mie = v
	case riscv.CSR_MIP:
		h.IRQ.Mip = v
	case riscv.CSR_MTVEC:
		h.IRQ.Mtvec = v
	case riscv.CSR_MEPC:
		h.IRQ.Mepc = v
	case riscv.CSR_MCAUSE:
		h.IRQ.Mcause = v
	case riscv.CSR_MCYCLE:
		h.Cycle = h.Cycle&^0xffffffff | uint64(v)
	case riscv.CSR_MCYCLEH:
		h.Cycle = h.Cycle&0xffffffff | uint64(v)<<32
	case riscv.CSR_MINSTRET:
		h.Instret = h.Instret&^0xffffffff | uint64(v)
	case riscv.CSR_MINSTRETH:
		h.Instret = h.Instret&0xffffffff | uint64(v)<<32
	case riscv.CSR_SSR:
		h.SSREnable = v
	case riscv.CSR_FPMODE:
		h.FPMode = v & 3
	}
}
