// Package machine is the runtime behind translated code: hart register
// state, cluster scratchpads, the shared memory model, SSR and DMA engines,
// CSRs, interrupts, wait-for-interrupt and the cluster barrier.
package machine

import (
	"fmt"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/trace"
)

// Field addresses a piece of hart state from IR load.state/store.state.
type Field int

const (
	FieldX Field = iota
	FieldXCycle
	FieldFCycle
	FieldF
	FieldCasValue
	FieldPC
	FieldCycle
	FieldInstret
	FieldSSREnable
	FieldFPMode
	FieldWFI
	FieldMstatus
	FieldMie
	FieldMip
	FieldMtvec
	FieldMepc
	FieldMcause
	FieldIRQSample
	FieldSSRAccessed
	NumFields
)

var fieldNames = [NumFields]string{
	"x", "x_cycle", "f_cycle", "f", "cas_value", "pc", "cycle", "instret", "ssr_enable", "fpmode", "wfi",
	"mstatus", "mie", "mip", "mtvec", "mepc", "mcause", "irq_sample", "ssr_accessed",
}

func (f Field) String() string {
	if f >= 0 && f < NumFields {
		return fieldNames[f]
	}
	return fmt.Sprintf("field%d", int(f))
}

// FieldName is installed as ir.Module.FieldName.
func FieldName(f int) string { return Field(f).String() }

// FieldType returns the IR type of a field element.
func FieldType(f Field) ir.Type {
	switch f {
	case FieldXCycle, FieldFCycle, FieldF, FieldCycle, FieldInstret:
		return ir.I64
	}
	return ir.I32
}

const (
	MstatusMIE  = 1 << 3
	MstatusMPIE = 1 << 7
)

type IRQState struct {
	Mstatus       uint32
	Mie           uint32
	Mip           uint32
	Mtvec         uint32
	Mepc          uint32
	Mcause        uint32
	SampleCounter uint32
}

// Hart is the register state of one simulated core. The fields up to IRQ
// are addressable from translated code through Field.
type Hart struct {
	X         [32]uint32
	XCycle    [32]uint64
	FCycle    [32]uint64
	F         [32]uint64
	CasValue  uint32
	PC        uint32
	Cycle     uint64
	Instret   uint64
	SSR       []SSRState
	SSREnable uint32
	FPMode    uint32
	DMA       DMAState
	WFI       uint32
	IRQ       IRQState

	ID      uint32 // mhartid
	Index   int    // position among all harts
	Core    int    // position within the cluster
	Cluster *Cluster
	Global  *Global
	FFlags  uint32
	Frm     uint32
	Halted  bool
	Err     error

	reserved    bool
	exited      bool
	uart        []byte
	steps       []trace.Access
	traceFailed bool
}

// NewHart creates a zeroed hart of cluster c starting at entry.
func NewHart(c *Cluster, core int, entry uint32) *Hart {
	g := c.Global
	idx := c.ID*g.Config.NumCores + core
	h := &Hart{
		PC:      entry,
		SSR:     make([]SSRState, g.Config.SSR.NumDM),
		ID:      g.Config.BaseHartID + uint32(idx),
		Index:   idx,
		Core:    core,
		Cluster: c,
		Global:  g,
	}
	return h
}

// LoadField reads element index of field f, zero-extended.
func (h *Hart) LoadField(f Field, index int) uint64 {
	switch f {
	case FieldX:
		return uint64(h.X[index])
	case FieldXCycle:
		return h.XCycle[index]
	case FieldFCycle:
		return h.FCycle[index]
	case FieldF:
		return h.F[index]
	case FieldCasValue:
		return uint64(h.CasValue)
	case FieldPC:
		return uint64(h.PC)
	case FieldCycle:
		return h.Cycle
	case FieldInstret:
		return h.Instret
	case FieldSSREnable:
		return uint64(h.SSREnable)
	case FieldFPMode:
		return uint64(h.FPMode)
	case FieldWFI:
		return uint64(h.WFI)
	case FieldMstatus:
		return uint64(h.IRQ.Mstatus)
	case FieldMie:
		return uint64(h.IRQ.Mie)
	case FieldMip:
		return uint64(h.IRQ.Mip)
	case FieldMtvec:
		return uint64(h.IRQ.Mtvec)
	case FieldMepc:
		return uint64(h.IRQ.Mepc)
	case FieldMcause:
		return uint64(h.IRQ.Mcause)
	case FieldIRQSample:
		return uint64(h.IRQ.SampleCounter)
	case FieldSSRAccessed:
		return uint64(h.SSR[index].Accessed)
	}
	panic(fmt.Sprintf("machine: load of unknown field %d", f))
}

// StoreField writes element index of field f. Writes to x0 are dropped.
func (h *Hart) StoreField(f Field, index int, v uint64) {
	switch f {
	case FieldX:
		if index != 0 {
			h.X[index] = uint32(v)
		}
	case FieldXCycle:
		h.XCycle[index] = v
	case FieldFCycle:
		h.FCycle[index] = v
	case FieldF:
		h.F[index] = v
	case FieldCasValue:
		h.CasValue = uint32(v)
	case FieldPC:
		h.PC = uint32(v)
	case FieldCycle:
		h.Cycle = v
	case FieldInstret:
		h.Instret = v
	case FieldSSREnable:
		h.SSREnable = uint32(v)
	case FieldFPMode:
		h.FPMode = uint32(v)
	case FieldWFI:
		h.WFI = uint32(v)
	case FieldMstatus:
		h.IRQ.Mstatus = uint32(v)
	case FieldMie:
		h.IRQ.Mie = uint32(v)
	case FieldMip:
		h.IRQ.Mip = uint32(v)
	case FieldMtvec:
		h.IRQ.Mtvec = uint32(v)
	case FieldMepc:
		h.IRQ.Mepc = uint32(v)
	case FieldMcause:
		h.IRQ.Mcause = uint32(v)
	case FieldIRQSample:
		h.IRQ.SampleCounter = uint32(v)
	case FieldSSRAccessed:
		h.SSR[index].Accessed = uint32(v)
	default:
		panic(fmt.Sprintf("machine: store of unknown field %d", f))
	}
}

// FieldLen is the number of addressable elements of f.
func (h *Hart) FieldLen(f Field) int {
	switch f {
	case FieldX, FieldXCycle, FieldFCycle, FieldF:
		return 32
	case FieldSSRAccessed:
		return len(h.SSR)
	}
	return 1
}

// Abort stops the hart after a runtime error and flags the run as failed.
func (h *Hart) Abort(err error, pc uint32) {
	if h.Err == nil {
		h.Err = fmt.Errorf("hart %d at pc %#08x: %w", h.ID, pc, err)
	}
	h.Halted = true
	h.Global.HadError.Store(true)
	log.Error(log.Runtime, "hart aborted", "hart", h.ID, "pc", common.Hex32(pc), "err", err)
}

// Exit retires the hart: it stops counting as runnable for wake-up and
// barrier accounting and flushes its console buffer. Idempotent.
func (h *Hart) Exit() {
	if h.exited {
		return
	}
	h.exited = true
	h.Halted = true
	g := h.Global
	if !g.Sleeping[h.Index].CompareAndSwap(true, false) {
		g.NumSleep.Add(1)
	}
	h.Cluster.active.Add(-1)
	h.flushUART()
	g.Retired.Add(h.Instret)
}

func (h *Hart) String() string {
	return fmt.Sprintf("hart %d (cluster %d core %d) pc=%#08x instret=%d", h.ID, h.Cluster.ID, h.Core, h.PC, h.Instret)
}
