package translate

import (
	"fmt"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/riscv"
	"github.com/colorfulnotion/clustersim/simerrors"
)

type frepState uint8

const (
	frepIdle frepState = iota
	frepBuffering
	frepEmitting
)

type buffered struct {
	pc   uint32
	inst riscv.Instruction
}

// sequencer collects the body of an outer FREP loop while the section is
// translated. Each body instruction still gets its own address block; the
// loop itself runs in separate copies emitted once the body is complete.
type sequencer struct {
	state frepState
	pc    uint32
	inst  riscv.Instruction
	body  ir.BlockID
	buf   []buffered
}

func (s *sequencer) reset() {
	*s = sequencer{}
}

func (s *sequencer) full() bool {
	return s.state == frepBuffering && len(s.buf) == int(s.inst.MaxInst)+1
}

func init() {
	register(lowerFrep, riscv.FREP)
}

// admit feeds one decoded instruction to the sequencer.
func (t *Translator) admit(pc uint32, inst riscv.Instruction) error {
	s := &t.frep
	switch s.state {
	case frepIdle:
		if inst.Op != riscv.FREP {
			return nil
		}
		if !inst.IsOuter {
			return simerrors.ErrFrepInner
		}
		if int(inst.MaxInst) > t.cfg.Frep.MaxInst {
			return fmt.Errorf("max_inst %d above %d: %w", inst.MaxInst, t.cfg.Frep.MaxInst, simerrors.ErrFrepOverflow)
		}
		*s = sequencer{state: frepBuffering, pc: pc, inst: inst}
		s.body = t.b.NewBlock(fmt.Sprintf("frep.%08x", pc))
	case frepBuffering:
		if inst.Op == riscv.FREP {
			return simerrors.ErrFrepNested
		}
		if !riscv.IsFreppable(inst.Op) {
			return simerrors.ErrFrepNotFreppable
		}
		s.buf = append(s.buf, buffered{pc, inst})
	}
	return nil
}

// lowerFrep loads the repeat count and enters the first body copy.
func lowerFrep(e *emitter) {
	e.b.LocalStore(e.t.scratch("frep", ir.I32), e.x(e.inst.Rs1))
	body := e.t.frep.body
	e.term = func() { e.b.Br(body) }
}

// emitFrepBody emits one copy of the body per stagger offset. Each copy
// ends with the counter stanza, so the copies run round robin for x[rs1]+1
// iterations in total before leaving to the instruction after the body.
func (t *Translator) emitFrepBody() error {
	s := &t.frep
	s.state = frepEmitting
	b := t.b
	copies := int(s.inst.StaggerMax) + 1
	blocks := make([]ir.BlockID, copies)
	blocks[0] = s.body
	for k := 1; k < copies; k++ {
		blocks[k] = b.NewBlock(fmt.Sprintf("frep.%08x.s%d", s.pc, k))
	}
	exit := t.blocks[s.buf[len(s.buf)-1].pc+4]
	counter := t.scratch("frep", ir.I32)
	for k, blk := range blocks {
		b.SetBlock(blk)
		for _, bi := range s.buf {
			if err := t.emit(bi.pc, bi.inst.Stagger(s.inst.StaggerMask, uint8(k)), true); err != nil {
				return err
			}
		}
		cnt := b.LocalLoad(counter)
		b.LocalStore(counter, b.Sub(cnt, b.Const(ir.I32, 1)))
		b.CondBr(b.ICmp(ir.EQ, cnt, b.Const(ir.I32, 0)), exit, blocks[(k+1)%copies])
	}
	log.Debug(log.Frep, "frep body emitted", "pc", common.Hex32(s.pc), "instructions", len(s.buf),
		"copies", copies, "mask", s.inst.StaggerMask)
	s.reset()
	return nil
}
