package translate

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"

	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/riscv"
	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/colorfulnotion/clustersim/trace"
)

const (
	fieldX           = int(machine.FieldX)
	fieldXCycle      = int(machine.FieldXCycle)
	fieldFCycle      = int(machine.FieldFCycle)
	fieldF           = int(machine.FieldF)
	fieldPC          = int(machine.FieldPC)
	fieldCycle       = int(machine.FieldCycle)
	fieldInstret     = int(machine.FieldInstret)
	fieldSSREnable   = int(machine.FieldSSREnable)
	fieldMtvec       = int(machine.FieldMtvec)
	fieldSSRAccessed = int(machine.FieldSSRAccessed)
)

// emitter lowers one instruction. Values it hands out live in the block
// that is current when they are returned.
type emitter struct {
	t    *Translator
	b    *ir.Builder
	pc   uint32
	inst riscv.Instruction
	body bool

	srcX, srcF []uint8
	dstX, dstF int
	memLat     bool
	// term ends the instruction after the accounting stanzas.
	term func()
	// done is set when the lowering already returned from the function.
	done bool
}

type lowering func(e *emitter)

var lowerings = map[riscv.Opcode]lowering{}

func register(l lowering, ops ...riscv.Opcode) {
	for _, op := range ops {
		lowerings[op] = l
	}
}

// emit translates inst at pc into the current block. Body copies of an
// FREP loop skip interrupt sampling.
func (t *Translator) emit(pc uint32, inst riscv.Instruction, body bool) error {
	e := &emitter{t: t, b: t.b, pc: pc, inst: inst, body: body, dstX: -1, dstF: -1}
	b := t.b
	b.StoreState(fieldPC, 0, e.c32(pc))
	if inst.Op == riscv.ILLEGAL {
		e.trap("illegal_instruction")
		return nil
	}
	lower, ok := lowerings[inst.Op]
	if !ok {
		return fmt.Errorf("%s: %w", inst.Mnemonic(), simerrors.ErrUnsupportedInstruction)
	}
	if !body && t.cfg.InterruptLatency > 0 {
		e.sampleIRQ()
	}
	b.StoreState(fieldInstret, 0, b.AddImm(b.LoadState(ir.I64, fieldInstret, 0), 1))
	if readsFloat(inst.Class()) {
		for r := 0; r < t.nssr; r++ {
			b.StoreState(fieldSSRAccessed, r, e.c32(0))
		}
	}
	lower(e)
	if e.done {
		return nil
	}
	e.account()
	if t.opts.Trace {
		b.Call("trace_commit", e.c32(pc), e.c32(inst.Raw))
	}
	if e.term != nil {
		e.term()
	}
	return nil
}

func readsFloat(c riscv.Class) bool {
	switch c {
	case riscv.ClassFP, riscv.ClassFPToInt, riscv.ClassFPStore, riscv.ClassVec, riscv.ClassVecToInt:
		return true
	}
	return false
}

func (e *emitter) c32(v uint32) ir.Value { return e.b.Const(ir.I32, uint64(v)) }
func (e *emitter) c64(v uint64) ir.Value { return e.b.Const(ir.I64, v) }
func (e *emitter) rm() ir.Value          { return e.c32(uint32(e.inst.Rm)) }

// sampleIRQ calls irq_sample and, when a trap was entered, jumps through
// the dispatch block to mtvec.
func (e *emitter) sampleIRQ() {
	b := e.b
	taken := b.Call("irq_sample", e.c32(e.pc))
	trapBlk, cont := e.t.split(e.pc, "irq"), e.t.split(e.pc, "run")
	b.CondBr(b.ICmp(ir.NE, taken, e.c32(0)), trapBlk, cont)
	b.SetBlock(trapBlk)
	target := b.And(b.LoadState(ir.I32, fieldMtvec, 0), e.c32(^uint32(3)))
	b.LocalStore(e.t.scratch("target", ir.I32), target)
	b.Br(e.t.dispatch)
	b.SetBlock(cont)
}

// trap calls an abort helper with (pc, raw) and returns.
func (e *emitter) trap(helper string) {
	e.b.Call(helper, e.c32(e.pc), e.c32(e.inst.Raw))
	e.b.Ret()
	e.done = true
}

// jumpIndirect ends the instruction with a branch through dispatch.
func (e *emitter) jumpIndirect(target ir.Value) {
	e.b.LocalStore(e.t.scratch("target", ir.I32), target)
	e.term = func() { e.b.Br(e.t.dispatch) }
}

func (e *emitter) traceAccess(kind trace.AccessKind, reg uint8, v ir.Value) {
	if !e.t.opts.Trace {
		return
	}
	e.b.Call("trace_access", e.c32(uint32(kind)), e.c32(uint32(reg)), e.b.ZExt(ir.I64, v))
}

// x reads an integer register; x0 is the constant zero.
func (e *emitter) x(r uint8) ir.Value {
	var v ir.Value
	if r == 0 {
		v = e.c32(0)
	} else {
		v = e.b.LoadState(ir.I32, fieldX, int(r))
		if !slices.Contains(e.srcX, r) {
			e.srcX = append(e.srcX, r)
		}
	}
	e.traceAccess(trace.XRead, r, v)
	return v
}

// setX writes an integer register; writes to x0 are dropped.
func (e *emitter) setX(r uint8, v ir.Value) {
	if r == 0 {
		return
	}
	v = e.b.ZExt(ir.I32, v)
	e.b.StoreState(fieldX, int(r), v)
	e.traceAccess(trace.XWrite, r, v)
	e.dstX = int(r)
}

// fregs reads float registers as raw 64-bit slots. Registers backed by a
// stream branch on ssr_enable, so all operands are read before any of them
// is used.
func (e *emitter) fregs(rs ...uint8) []ir.Value {
	b := e.b
	streamed := make([]int, len(rs))
	for k, r := range rs {
		streamed[k] = -1
		if int(r) >= e.t.nssr {
			continue
		}
		slot := e.t.scratch(fmt.Sprintf("fop%d", k), ir.I64)
		streamed[k] = slot
		on, off, join := e.t.split(e.pc, "ssr"), e.t.split(e.pc, "fpr"), e.t.split(e.pc, "op")
		b.CondBr(b.ICmp(ir.NE, b.LoadState(ir.I32, fieldSSREnable, 0), e.c32(0)), on, off)
		b.SetBlock(on)
		b.LocalStore(slot, b.Call("ssr_read", e.c32(uint32(r))))
		b.Br(join)
		b.SetBlock(off)
		b.LocalStore(slot, b.LoadState(ir.I64, fieldF, int(r)))
		b.Br(join)
		b.SetBlock(join)
	}
	out := make([]ir.Value, len(rs))
	for k, r := range rs {
		if streamed[k] >= 0 {
			out[k] = b.LocalLoad(streamed[k])
		} else {
			out[k] = b.LoadState(ir.I64, fieldF, int(r))
		}
		if !slices.Contains(e.srcF, r) {
			e.srcF = append(e.srcF, r)
		}
		e.traceAccess(trace.FRead, r, out[k])
	}
	return out
}

// fregsN reads float registers truncated to width bits.
func (e *emitter) fregsN(width int, rs ...uint8) []ir.Value {
	vs := e.fregs(rs...)
	for i := range vs {
		vs[i] = e.narrow(vs[i], width)
	}
	return vs
}

// setF writes a raw 64-bit slot, pushing to the stream when the register
// is stream-mapped and streams are enabled. It must be the last step of a
// lowering that reads other values.
func (e *emitter) setF(r uint8, v ir.Value) {
	b := e.b
	e.traceAccess(trace.FWrite, r, v)
	e.dstF = int(r)
	if int(r) >= e.t.nssr {
		b.StoreState(fieldF, int(r), v)
		return
	}
	slot := e.t.scratch("fwr", ir.I64)
	b.LocalStore(slot, v)
	on, off, join := e.t.split(e.pc, "ssw"), e.t.split(e.pc, "fpw"), e.t.split(e.pc, "wr")
	b.CondBr(b.ICmp(ir.NE, b.LoadState(ir.I32, fieldSSREnable, 0), e.c32(0)), on, off)
	b.SetBlock(on)
	b.Call("ssr_write", e.c32(uint32(r)), b.LocalLoad(slot))
	b.Br(join)
	b.SetBlock(off)
	b.StoreState(fieldF, int(r), b.LocalLoad(slot))
	b.Br(join)
	b.SetBlock(join)
}

// setFN NaN-boxes a width-bit result into f[r].
func (e *emitter) setFN(r uint8, v ir.Value, width int) {
	e.setF(r, e.box(v, width))
}

// mask has the low width bits set; a full-width mask is all ones since the
// shift overflows to zero.
func mask[T constraints.Unsigned](width int) T {
	return T(1)<<uint(width) - 1
}

// box fills the bits above width with ones.
func (e *emitter) box(v ir.Value, width int) ir.Value {
	v = e.b.ZExt(ir.I64, v)
	if width >= 64 {
		return v
	}
	m := mask[uint64](width)
	return e.b.Or(e.b.And(v, e.c64(m)), e.c64(^m))
}

// narrow keeps the low width bits; the boxing bits are not checked.
func (e *emitter) narrow(v ir.Value, width int) ir.Value {
	if width >= 64 {
		return v
	}
	return e.b.And(v, e.c64(mask[uint64](width)))
}

func (e *emitter) max64(a, b ir.Value) ir.Value {
	return e.b.Select(e.b.ICmp(ir.UGT, a, b), a, b)
}

// account advances the cycle counter. In latency mode an instruction
// issues once its sources are ready and its destination becomes ready
// after the configured latency, plus the region latency for loads.
func (e *emitter) account() {
	b := e.b
	cycle := b.LoadState(ir.I64, fieldCycle, 0)
	if !e.t.opts.Latency {
		b.StoreState(fieldCycle, 0, b.AddImm(cycle, 1))
		return
	}
	issue := b.AddImm(cycle, 1)
	for _, r := range e.srcX {
		issue = e.max64(issue, b.LoadState(ir.I64, fieldXCycle, int(r)))
	}
	for _, r := range e.srcF {
		issue = e.max64(issue, b.LoadState(ir.I64, fieldFCycle, int(r)))
	}
	b.StoreState(fieldCycle, 0, issue)
	ready := b.AddImm(issue, uint64(e.t.cfg.Latency(e.inst.Mnemonic())))
	if e.memLat {
		ready = b.Add(ready, b.LocalLoad(e.t.scratch("memlat", ir.I64)))
	}
	if e.dstX > 0 {
		b.StoreState(fieldXCycle, e.dstX, ready)
	}
	if e.dstF >= 0 {
		b.StoreState(fieldFCycle, e.dstF, ready)
	}
}

// regionLatency records the latency of the memory region just accessed.
func (e *emitter) regionLatency(lat uint32) {
	if !e.t.opts.Latency {
		return
	}
	e.memLat = true
	e.b.LocalStore(e.t.scratch("memlat", ir.I64), e.c64(uint64(lat)))
}
