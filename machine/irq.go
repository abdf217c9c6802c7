package machine

import (
	"github.com/colorfulnotion/clustersim/log"
)

// Interrupt causes in priority order.
var irqPriority = [...]uint32{11, 3, 7, 19}

func (h *Hart) irqPending() uint32 {
	return h.IRQ.Mie & h.mip()
}

// IRQSample is called before every instruction at pc. Every
// interrupt_latency calls it checks for an enabled pending interrupt and,
// if there is one, enters the trap: mepc=pc, mcause, MPIE=MIE, MIE=0. It
// returns 1 when the trap was taken.
func (h *Hart) IRQSample(pc uint32) uint32 {
	lat := h.Global.Config.InterruptLatency
	if lat == 0 {
		return 0
	}
	h.IRQ.SampleCounter++
	if h.IRQ.SampleCounter < lat {
		return 0
	}
	h.IRQ.SampleCounter = 0
	if h.IRQ.Mstatus&MstatusMIE == 0 {
		return 0
	}
	pending := h.irqPending()
	if pending == 0 {
		return 0
	}
	for _, cause := range irqPriority {
		if pending&(1<<cause) != 0 {
			h.trap(pc, 1<<31|cause)
			return 1
		}
	}
	return 0
}

func (h *Hart) trap(pc, cause uint32) {
	st := h.IRQ.Mstatus &^ MstatusMPIE
	if st&MstatusMIE != 0 {
		st |= MstatusMPIE
	}
	h.IRQ.Mstatus = st &^ MstatusMIE
	h.IRQ.Mepc = pc
	h.IRQ.Mcause = cause
	log.Debug(log.Runtime, "interrupt taken", "hart", h.ID, "pc", pc, "cause", cause&0xff, "mtvec", h.IRQ.Mtvec)
}

// MRet leaves the trap handler and returns the resume address.
func (h *Hart) MRet() uint32 {
	st := h.IRQ.Mstatus &^ MstatusMIE
	if h.IRQ.Mstatus&MstatusMPIE != 0 {
		st |= MstatusMIE
	}
	h.IRQ.Mstatus = st | MstatusMPIE
	return h.IRQ.Mepc
}
