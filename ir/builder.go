package ir

import (
	"fmt"

	"github.com/colorfulnotion/clustersim/simerrors"
)

// Builder appends instructions to the current block of a function. The
// first misuse is kept in Err and later calls still produce placeholder
// values so that emitters need not check after every call.
type Builder struct {
	mod *Module
	fn  *Function
	cur BlockID
	err error
}

func NewBuilder(m *Module, fn *Function) *Builder {
	return &Builder{mod: m, fn: fn, cur: NoBlock}
}

func (b *Builder) Func() *Function { return b.fn }

func (b *Builder) Module() *Module { return b.mod }

func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

func (b *Builder) NewBlock(name string) BlockID {
	id := BlockID(len(b.fn.Blocks))
	b.fn.Blocks = append(b.fn.Blocks, &Block{ID: id, Name: name})
	return id
}

func (b *Builder) SetBlock(id BlockID) { b.cur = id }

func (b *Builder) Block() BlockID { return b.cur }

// Terminated reports whether the current block already ends in a terminator.
func (b *Builder) Terminated() bool {
	if b.cur == NoBlock {
		return true
	}
	return b.fn.Blocks[b.cur].Terminator() != nil
}

// NewLocal allocates a function-wide variable slot.
func (b *Builder) NewLocal(t Type) int {
	b.fn.Locals = append(b.fn.Locals, t)
	return len(b.fn.Locals) - 1
}

func (b *Builder) emit(in *Instr) *Instr {
	if b.cur == NoBlock {
		b.fail("emit %s: no current block", in.Op)
		return in
	}
	in.ID = b.fn.nextID
	b.fn.nextID++
	blk := b.fn.Blocks[b.cur]
	blk.Instrs = append(blk.Instrs, in)
	return in
}

func (b *Builder) Const(t Type, v uint64) Value {
	return b.emit(&Instr{Op: OpConst, Type: t, Imm: v & t.Mask()})
}

func (b *Builder) LoadState(t Type, field, index int) Value {
	return b.emit(&Instr{Op: OpLoadState, Type: t, Field: field, Index: index})
}

func (b *Builder) StoreState(field, index int, v Value) {
	b.emit(&Instr{Op: OpStoreState, Type: Void, Field: field, Index: index, Args: []*Instr{v}})
}

func (b *Builder) LocalLoad(local int) Value {
	t := Void
	if local >= 0 && local < len(b.fn.Locals) {
		t = b.fn.Locals[local]
	} else {
		b.fail("load of undefined local %d", local)
	}
	return b.emit(&Instr{Op: OpLocalLoad, Type: t, Local: local})
}

func (b *Builder) LocalStore(local int, v Value) {
	b.emit(&Instr{Op: OpLocalStore, Type: Void, Local: local, Args: []*Instr{v}})
}

func (b *Builder) Bin(op Op, x, y Value) Value {
	if !op.IsBinary() {
		b.fail("%s is not a binary op", op)
	}
	return b.emit(&Instr{Op: op, Type: x.Type, Args: []*Instr{x, y}})
}

func (b *Builder) Add(x, y Value) Value  { return b.Bin(OpAdd, x, y) }
func (b *Builder) Sub(x, y Value) Value  { return b.Bin(OpSub, x, y) }
func (b *Builder) Mul(x, y Value) Value  { return b.Bin(OpMul, x, y) }
func (b *Builder) And(x, y Value) Value  { return b.Bin(OpAnd, x, y) }
func (b *Builder) Or(x, y Value) Value   { return b.Bin(OpOr, x, y) }
func (b *Builder) Xor(x, y Value) Value  { return b.Bin(OpXor, x, y) }
func (b *Builder) Shl(x, y Value) Value  { return b.Bin(OpShl, x, y) }
func (b *Builder) LShr(x, y Value) Value { return b.Bin(OpLShr, x, y) }
func (b *Builder) AShr(x, y Value) Value { return b.Bin(OpAShr, x, y) }

// AddImm adds a constant of x's type.
func (b *Builder) AddImm(x Value, imm uint64) Value {
	return b.Add(x, b.Const(x.Type, imm))
}

func (b *Builder) ICmp(p Pred, x, y Value) Value {
	return b.emit(&Instr{Op: OpICmp, Type: I1, Pred: p, Args: []*Instr{x, y}})
}

func (b *Builder) Select(c, x, y Value) Value {
	return b.emit(&Instr{Op: OpSelect, Type: x.Type, Args: []*Instr{c, x, y}})
}

func (b *Builder) ZExt(t Type, v Value) Value {
	if v.Type == t {
		return v
	}
	return b.emit(&Instr{Op: OpZExt, Type: t, Args: []*Instr{v}})
}

func (b *Builder) SExt(t Type, v Value) Value {
	if v.Type == t {
		return v
	}
	return b.emit(&Instr{Op: OpSExt, Type: t, Args: []*Instr{v}})
}

func (b *Builder) Trunc(t Type, v Value) Value {
	if v.Type == t {
		return v
	}
	return b.emit(&Instr{Op: OpTrunc, Type: t, Args: []*Instr{v}})
}

// Call invokes a declared helper. Calls to undeclared helpers are recorded
// as errors and yield a zero constant.
func (b *Builder) Call(name string, args ...Value) Value {
	h, ok := b.mod.Helpers[name]
	if !ok {
		if b.err == nil {
			b.err = fmt.Errorf("call %s: %w", name, simerrors.ErrUnknownHelper)
		}
		return b.Const(I64, 0)
	}
	return b.emit(&Instr{Op: OpCall, Type: h.Ret, Callee: name, Args: args})
}

// TCDMLoad reads the aligned word at byte offset off of the hart's cluster
// TCDM.
func (b *Builder) TCDMLoad(off Value) Value {
	return b.emit(&Instr{Op: OpTCDMLoad, Type: I32, Args: []*Instr{off}})
}

// TCDMStore merges v under mask into the word at byte offset off.
func (b *Builder) TCDMStore(off, v, mask Value) {
	b.emit(&Instr{Op: OpTCDMStore, Type: Void, Args: []*Instr{off, v, mask}})
}

func (b *Builder) Br(dest BlockID) {
	b.emit(&Instr{Op: OpBr, Type: Void, Targets: []BlockID{dest}})
}

func (b *Builder) CondBr(c Value, then, els BlockID) {
	b.emit(&Instr{Op: OpCondBr, Type: Void, Args: []*Instr{c}, Targets: []BlockID{then, els}})
}

// Switch branches to targets[i] when v == cases[i], else to def.
func (b *Builder) Switch(v Value, def BlockID, cases []uint64, targets []BlockID) {
	if len(cases) != len(targets) {
		b.fail("switch with %d cases and %d targets", len(cases), len(targets))
	}
	t := append([]BlockID{def}, targets...)
	b.emit(&Instr{Op: OpSwitch, Type: Void, Args: []*Instr{v}, Targets: t, Cases: append([]uint64(nil), cases...)})
}

func (b *Builder) Ret() {
	b.emit(&Instr{Op: OpRet, Type: Void})
}
