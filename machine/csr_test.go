package machine

import (
	"testing"

	"github.com/colorfulnotion/clustersim/riscv"
	"github.com/stretchr/testify/assert"
)

func TestCSRRoundTrip(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[1].Harts[0]

	h.WriteCSR(riscv.CSR_FCSR, 3<<5|0x1f)
	assert.Equal(t, uint32(0x1f), h.ReadCSR(riscv.CSR_FFLAGS))
	assert.Equal(t, uint32(3), h.ReadCSR(riscv.CSR_FRM))
	h.WriteCSR(riscv.CSR_FFLAGS, 0xff)
	assert.Equal(t, uint32(3<<5|0x1f), h.ReadCSR(riscv.CSR_FCSR))

	h.WriteCSR(riscv.CSR_FPMODE, 0xff)
	assert.Equal(t, uint32(3), h.ReadCSR(riscv.CSR_FPMODE))
	h.WriteCSR(riscv.CSR_SSR, 1)
	assert.Equal(t, uint32(1), h.SSREnable)

	h.Cycle = 0x1_0000_0005
	assert.Equal(t, uint32(5), h.ReadCSR(riscv.CSR_MCYCLE))
	assert.Equal(t, uint32(1), h.ReadCSR(riscv.CSR_CYCLEH))
	h.WriteCSR(riscv.CSR_MCYCLEH, 7)
	assert.Equal(t, uint64(0x7_0000_0005), h.Cycle)
	h.WriteCSR(riscv.CSR_MINSTRET, 9)
	assert.Equal(t, uint32(9), h.ReadCSR(riscv.CSR_INSTRET))

	assert.Equal(t, uint32(2), h.ReadCSR(riscv.CSR_MHARTID))
	h.WriteCSR(riscv.CSR_MHARTID, 77)
	assert.Equal(t, uint32(2), h.ReadCSR(riscv.CSR_MHARTID))
	assert.Zero(t, h.ReadCSR(0x7ff))

	h.WriteCSR(riscv.CSR_MTVEC, 0x80000100)
	h.WriteCSR(riscv.CSR_MEPC, 0x80000040)
	assert.Equal(t, uint32(0x80000100), h.ReadCSR(riscv.CSR_MTVEC))
	assert.Equal(t, uint32(0x80000040), h.ReadCSR(riscv.CSR_MEPC))
}

func TestMIPSources(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[1]
	assert.Zero(t, h.ReadCSR(riscv.CSR_MIP))

	h.Store(0xffff0000+4*uint32(h.Index), 1, ^uint32(0), 4)
	assert.Equal(t, uint32(1<<3), h.ReadCSR(riscv.CSR_MIP))
	h.Store(0xffff0000+4*uint32(h.Index), 0, ^uint32(0), 4)

	h.Store(0x40000060, 1<<1, ^uint32(0), 4)
	assert.Equal(t, uint32(1<<19), h.ReadCSR(riscv.CSR_MIP))
	assert.Zero(t, g.Clusters[0].Harts[0].ReadCSR(riscv.CSR_MIP))
	h.Store(0x40000064, 1<<1, ^uint32(0), 4)
	assert.Zero(t, h.ReadCSR(riscv.CSR_MIP))
}

func TestInterruptTrapAndReturn(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	const pc = 0x80000080

	g.CLINT[h.Index].Store(1)
	assert.Zero(t, h.IRQSample(pc), "interrupts disabled")

	h.WriteCSR(riscv.CSR_MSTATUS, MstatusMIE)
	assert.Zero(t, h.IRQSample(pc), "source not enabled")

	h.WriteCSR(riscv.CSR_MIE, 1<<3|1<<19)
	g.Clusters[0].CLINT.Store(1)
	assert.Equal(t, uint32(1), h.IRQSample(pc))
	assert.Equal(t, uint32(pc), h.ReadCSR(riscv.CSR_MEPC))
	// software interrupt outranks the cluster interrupt
	assert.Equal(t, uint32(1<<31|3), h.ReadCSR(riscv.CSR_MCAUSE))
	st := h.ReadCSR(riscv.CSR_MSTATUS)
	assert.Zero(t, st&MstatusMIE)
	assert.NotZero(t, st&MstatusMPIE)
	assert.Zero(t, h.IRQSample(pc+4), "nested trap while MIE is clear")

	assert.Equal(t, uint32(pc), h.MRet())
	assert.NotZero(t, h.ReadCSR(riscv.CSR_MSTATUS)&MstatusMIE)
}

func TestInterruptSampleLatency(t *testing.T) {
	g := newTestGlobal(t)
	g.Config.InterruptLatency = 3
	h := g.Clusters[0].Harts[0]
	h.IRQ.Mstatus = MstatusMIE
	h.IRQ.Mie = 1 << 19
	g.Clusters[0].CLINT.Store(1)
	assert.Zero(t, h.IRQSample(0x10))
	assert.Zero(t, h.IRQSample(0x14))
	assert.Equal(t, uint32(1), h.IRQSample(0x18))
	assert.Equal(t, uint32(1<<31|19), h.IRQ.Mcause)
	assert.Zero(t, h.IRQ.SampleCounter)
}
