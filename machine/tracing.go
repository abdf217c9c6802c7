package machine

import (
	"sync"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/riscv"
	"github.com/colorfulnotion/clustersim/trace"
)

var disasmCache sync.Map // raw word -> string

func disassemble(raw uint32) string {
	if s, ok := disasmCache.Load(raw); ok {
		return s.(string)
	}
	s := riscv.Decode(raw).String()
	disasmCache.Store(raw, s)
	return s
}

// TraceAccess records one access of the current instruction.
func (h *Hart) TraceAccess(kind trace.AccessKind, reg uint8, value uint64) {
	h.steps = append(h.steps, trace.Access{Kind: kind, Reg: reg, Value: value})
}

// TraceCommit emits the current instruction and clears its access list.
func (h *Hart) TraceCommit(pc, raw uint32) {
	t := h.Global.Tracer
	if t == nil {
		h.steps = h.steps[:0]
		return
	}
	step := &trace.Step{
		Cycle:    h.Cycle,
		Instret:  h.Instret,
		Hart:     h.ID,
		PC:       pc,
		Raw:      raw,
		Disasm:   disassemble(raw),
		Accesses: append([]trace.Access(nil), h.steps...),
	}
	h.steps = h.steps[:0]
	if err := t.Commit(step); err != nil && !h.traceFailed {
		// later commits hit the same sink error; report it once per hart
		h.traceFailed = true
		log.Error(log.Runtime, "trace commit failed", "hart", h.ID, "pc", common.Hex32(pc), "err", err)
	}
}
