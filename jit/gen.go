package jit

import (
	"fmt"

	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/simerrors"
)

type compiler struct {
	opts     Options
	helpers  map[string]machine.HelperFunc
	specials int
}

// operand reads a value. Constants are folded into the closure unless
// specialisation is off.
type operand func(fr *frame) uint64

type generator func(c *compiler, in *ir.Instr) (step, error)

var generators map[ir.Op]generator

func init() {
	generators = map[ir.Op]generator{
		ir.OpConst:      generateConst,
		ir.OpLoadState:  generateLoadState,
		ir.OpStoreState: generateStoreState,
		ir.OpLocalLoad:  generateLocalLoad,
		ir.OpLocalStore: generateLocalStore,
		ir.OpICmp:       generateICmp,
		ir.OpSelect:     generateSelect,
		ir.OpZExt:       generateCast,
		ir.OpSExt:       generateCast,
		ir.OpTrunc:      generateCast,
		ir.OpCall:       generateCall,
		ir.OpTCDMLoad:   generateTCDMLoad,
		ir.OpTCDMStore:  generateTCDMStore,
	}
	for op := ir.OpAdd; op <= ir.OpAShr; op++ {
		generators[op] = generateBinary
	}
}

func (c *compiler) operand(v *ir.Instr) operand {
	if v.Op == ir.OpConst && !c.opts.Generic {
		k := v.Imm
		return func(*frame) uint64 { return k }
	}
	slot := v.ID
	return func(fr *frame) uint64 { return fr.vals[slot] }
}

func (c *compiler) function(fn *ir.Function) (*Func, error) {
	f := &Func{Name: fn.Name, nlocals: len(fn.Locals), blocks: make([]block, len(fn.Blocks))}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.ID >= f.nvals {
				f.nvals = in.ID + 1
			}
		}
	}
	for i, b := range fn.Blocks {
		if b.Dead {
			f.blocks[i] = block{term: deadBlock(b)}
			continue
		}
		blk := &f.blocks[i]
		for _, in := range b.Instrs {
			if in.Op.IsTerminator() {
				t, err := c.terminator(in, len(fn.Blocks))
				if err != nil {
					return nil, fmt.Errorf("block %s: %w", b.Name, err)
				}
				blk.term = t
				break
			}
			gen, ok := generators[in.Op]
			if !ok {
				return nil, fmt.Errorf("block %s: no generator for %s: %w", b.Name, in.Op, simerrors.ErrJITFailed)
			}
			s, err := gen(c, in)
			if err != nil {
				return nil, fmt.Errorf("block %s: %w", b.Name, err)
			}
			if s == nil {
				continue
			}
			blk.steps = append(blk.steps, s)
			blk.halt = append(blk.halt, in.Op == ir.OpCall)
		}
		if blk.term == nil {
			return nil, fmt.Errorf("block %s has no terminator: %w", b.Name, simerrors.ErrJITFailed)
		}
	}
	return f, nil
}

func deadBlock(b *ir.Block) term {
	name := b.Name
	return func(*frame) ir.BlockID {
		panic("jit: entered unreachable block " + name)
	}
}

func generateConst(c *compiler, in *ir.Instr) (step, error) {
	if !c.opts.Generic {
		c.specials++
		return nil, nil
	}
	slot, k := in.ID, in.Imm
	return func(fr *frame) { fr.vals[slot] = k }, nil
}

func generateLoadState(c *compiler, in *ir.Instr) (step, error) {
	slot := in.ID
	field, idx := machine.Field(in.Field), in.Index
	if c.opts.Generic {
		return func(fr *frame) { fr.vals[slot] = fr.h.LoadField(field, idx) }, nil
	}
	load, err := stateLoader(field, idx)
	if err != nil {
		return nil, err
	}
	c.specials++
	return func(fr *frame) { fr.vals[slot] = load(fr.h) }, nil
}

func generateStoreState(c *compiler, in *ir.Instr) (step, error) {
	v := c.operand(in.Args[0])
	field, idx := machine.Field(in.Field), in.Index
	if c.opts.Generic {
		return func(fr *frame) { fr.h.StoreField(field, idx, v(fr)) }, nil
	}
	if field == machine.FieldX && idx == 0 {
		c.specials++
		return nil, nil
	}
	store, err := stateStorer(field, idx)
	if err != nil {
		return nil, err
	}
	c.specials++
	return func(fr *frame) { store(fr.h, v(fr)) }, nil
}

func generateLocalLoad(c *compiler, in *ir.Instr) (step, error) {
	slot, l := in.ID, in.Local
	return func(fr *frame) { fr.vals[slot] = fr.locals[l] }, nil
}

func generateLocalStore(c *compiler, in *ir.Instr) (step, error) {
	v, l := c.operand(in.Args[0]), in.Local
	return func(fr *frame) { fr.locals[l] = v(fr) }, nil
}

func generateBinary(c *compiler, in *ir.Instr) (step, error) {
	slot := in.ID
	x, y := c.operand(in.Args[0]), c.operand(in.Args[1])
	if !c.opts.Generic {
		if s := specialBinary(in.Op, in.Type, slot, x, y); s != nil {
			c.specials++
			return s, nil
		}
	}
	op, t := in.Op, in.Type
	return func(fr *frame) { fr.vals[slot] = ir.EvalBinary(op, t, x(fr), y(fr)) }, nil
}

// specialBinary covers the operations that dominate translated code.
func specialBinary(op ir.Op, t ir.Type, slot int, x, y operand) step {
	switch t {
	case ir.I32:
		switch op {
		case ir.OpAdd:
			return func(fr *frame) { fr.vals[slot] = uint64(uint32(x(fr) + y(fr))) }
		case ir.OpSub:
			return func(fr *frame) { fr.vals[slot] = uint64(uint32(x(fr) - y(fr))) }
		case ir.OpShl:
			return func(fr *frame) { fr.vals[slot] = uint64(uint32(x(fr)) << (y(fr) & 31)) }
		case ir.OpLShr:
			return func(fr *frame) { fr.vals[slot] = x(fr) >> (y(fr) & 31) }
		}
	case ir.I64:
		switch op {
		case ir.OpAdd:
			return func(fr *frame) { fr.vals[slot] = x(fr) + y(fr) }
		case ir.OpSub:
			return func(fr *frame) { fr.vals[slot] = x(fr) - y(fr) }
		case ir.OpShl:
			return func(fr *frame) { fr.vals[slot] = x(fr) << (y(fr) & 63) }
		case ir.OpLShr:
			return func(fr *frame) { fr.vals[slot] = x(fr) >> (y(fr) & 63) }
		}
	}
	switch op {
	case ir.OpAnd:
		return func(fr *frame) { fr.vals[slot] = x(fr) & y(fr) }
	case ir.OpOr:
		return func(fr *frame) { fr.vals[slot] = x(fr) | y(fr) }
	case ir.OpXor:
		return func(fr *frame) { fr.vals[slot] = x(fr) ^ y(fr) }
	}
	return nil
}

func generateICmp(c *compiler, in *ir.Instr) (step, error) {
	slot := in.ID
	x, y := c.operand(in.Args[0]), c.operand(in.Args[1])
	p, t := in.Pred, in.Args[0].Type
	if !c.opts.Generic {
		var s step
		switch p {
		case ir.EQ:
			s = func(fr *frame) { fr.vals[slot] = b2u(x(fr) == y(fr)) }
		case ir.NE:
			s = func(fr *frame) { fr.vals[slot] = b2u(x(fr) != y(fr)) }
		case ir.ULT:
			s = func(fr *frame) { fr.vals[slot] = b2u(x(fr) < y(fr)) }
		case ir.UGE:
			s = func(fr *frame) { fr.vals[slot] = b2u(x(fr) >= y(fr)) }
		}
		if s != nil {
			c.specials++
			return s, nil
		}
	}
	return func(fr *frame) { fr.vals[slot] = b2u(ir.EvalICmp(p, t, x(fr), y(fr))) }, nil
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func generateSelect(c *compiler, in *ir.Instr) (step, error) {
	slot := in.ID
	cond, x, y := c.operand(in.Args[0]), c.operand(in.Args[1]), c.operand(in.Args[2])
	return func(fr *frame) {
		if cond(fr) != 0 {
			fr.vals[slot] = x(fr)
		} else {
			fr.vals[slot] = y(fr)
		}
	}, nil
}

func generateCast(c *compiler, in *ir.Instr) (step, error) {
	slot := in.ID
	v := c.operand(in.Args[0])
	op, from, to := in.Op, in.Args[0].Type, in.Type
	if op == ir.OpZExt && !c.opts.Generic {
		c.specials++
		return func(fr *frame) { fr.vals[slot] = v(fr) }, nil
	}
	return func(fr *frame) { fr.vals[slot] = ir.EvalCast(op, from, to, v(fr)) }, nil
}

func generateCall(c *compiler, in *ir.Instr) (step, error) {
	fn, ok := c.helpers[in.Callee]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", in.Callee, simerrors.ErrUnknownHelper)
	}
	if len(in.Args) > maxArgs {
		return nil, fmt.Errorf("call %s with %d arguments: %w", in.Callee, len(in.Args), simerrors.ErrJITFailed)
	}
	args := make([]operand, len(in.Args))
	for i, a := range in.Args {
		args[i] = c.operand(a)
	}
	n := len(args)
	if in.Type == ir.Void {
		return func(fr *frame) {
			for i, a := range args {
				fr.args[i] = a(fr)
			}
			fn(fr.h, fr.args[:n])
		}, nil
	}
	slot, mask := in.ID, in.Type.Mask()
	return func(fr *frame) {
		for i, a := range args {
			fr.args[i] = a(fr)
		}
		fr.vals[slot] = fn(fr.h, fr.args[:n]) & mask
	}, nil
}

func generateTCDMLoad(c *compiler, in *ir.Instr) (step, error) {
	slot := in.ID
	off := c.operand(in.Args[0])
	return func(fr *frame) { fr.vals[slot] = uint64(fr.h.Cluster.TCDMLoad(uint32(off(fr)))) }, nil
}

func generateTCDMStore(c *compiler, in *ir.Instr) (step, error) {
	off, v, mask := c.operand(in.Args[0]), c.operand(in.Args[1]), c.operand(in.Args[2])
	return func(fr *frame) {
		fr.h.Cluster.TCDMStore(uint32(off(fr)), uint32(v(fr)), uint32(mask(fr)))
	}, nil
}

func (c *compiler) terminator(in *ir.Instr, nblocks int) (term, error) {
	for _, t := range in.Targets {
		if t < 0 || int(t) >= nblocks {
			return nil, fmt.Errorf("%s to block %d: %w", in.Op, t, simerrors.ErrJITFailed)
		}
	}
	switch in.Op {
	case ir.OpRet:
		return func(*frame) ir.BlockID { return -1 }, nil
	case ir.OpBr:
		dest := in.Targets[0]
		return func(*frame) ir.BlockID { return dest }, nil
	case ir.OpCondBr:
		cond := c.operand(in.Args[0])
		then, els := in.Targets[0], in.Targets[1]
		return func(fr *frame) ir.BlockID {
			if cond(fr) != 0 {
				return then
			}
			return els
		}, nil
	case ir.OpSwitch:
		return c.switchTerm(in), nil
	}
	return nil, fmt.Errorf("unknown terminator %s: %w", in.Op, simerrors.ErrJITFailed)
}

// switchTerm dispatches through a dense table when the cases form a
// word-aligned range, as the PC dispatch block does, and a map otherwise.
func (c *compiler) switchTerm(in *ir.Instr) term {
	v := c.operand(in.Args[0])
	def := in.Targets[0]
	if !c.opts.Generic {
		if t := denseSwitch(in.Cases, in.Targets[1:], def); t != nil {
			c.specials++
			return func(fr *frame) ir.BlockID { return t.lookup(v(fr)) }
		}
	}
	m := make(map[uint64]ir.BlockID, len(in.Cases))
	for i := len(in.Cases) - 1; i >= 0; i-- {
		m[in.Cases[i]] = in.Targets[i+1]
	}
	return func(fr *frame) ir.BlockID {
		if b, ok := m[v(fr)]; ok {
			return b
		}
		return def
	}
}

type table struct {
	base    uint64
	targets []ir.BlockID
	def     ir.BlockID
}

func (t *table) lookup(v uint64) ir.BlockID {
	d := v - t.base
	if v < t.base || d&3 != 0 || d>>2 >= uint64(len(t.targets)) {
		return t.def
	}
	return t.targets[d>>2]
}

func denseSwitch(cases []uint64, targets []ir.BlockID, def ir.BlockID) *table {
	if len(cases) == 0 {
		return nil
	}
	lo, hi := cases[0], cases[0]
	for _, k := range cases {
		lo, hi = min(lo, k), max(hi, k)
	}
	for _, k := range cases {
		if (k-lo)&3 != 0 {
			return nil
		}
	}
	n := (hi-lo)>>2 + 1
	if n > 4*uint64(len(cases))+64 {
		return nil
	}
	t := &table{base: lo, targets: make([]ir.BlockID, n), def: def}
	for i := range t.targets {
		t.targets[i] = def
	}
	// the first matching case wins, as in the map form
	for i := len(cases) - 1; i >= 0; i-- {
		t.targets[(cases[i]-lo)>>2] = targets[i]
	}
	return t
}
