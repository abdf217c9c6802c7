package ir

import (
	"strings"
	"testing"

	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fieldX = iota
	fieldPC
)

func testModule() *Module {
	m := NewModule("test")
	m.FieldName = func(f int) string {
		switch f {
		case fieldX:
			return "x"
		case fieldPC:
			return "pc"
		}
		return "?"
	}
	m.Declare("mem_read", I32, I32, I32)
	m.Declare("exit", Void)
	return m
}

func TestBuildAndVerify(t *testing.T) {
	m := testModule()
	f := m.NewFunction("code")
	b := NewBuilder(m, f)
	entry := b.NewBlock("entry")
	loop := b.NewBlock("loop")
	done := b.NewBlock("done")
	ctr := b.NewLocal(I32)

	b.SetBlock(entry)
	b.LocalStore(ctr, b.Const(I32, 3))
	b.Br(loop)

	b.SetBlock(loop)
	n := b.AddImm(b.LocalLoad(ctr), 0xffffffff)
	b.LocalStore(ctr, n)
	b.StoreState(fieldX, 5, n)
	b.CondBr(b.ICmp(NE, n, b.Const(I32, 0)), loop, done)

	b.SetBlock(done)
	b.Call("exit")
	b.Ret()

	require.NoError(t, b.Err())
	require.NoError(t, Verify(m))
	assert.Equal(t, []BlockID{loop, done}, f.Block(loop).Successors())
	assert.Equal(t, 3, f.LiveBlocks())
	assert.True(t, b.Terminated())

	text := m.String()
	assert.Contains(t, text, "declare i32 @mem_read(i32, i32)")
	assert.Contains(t, text, "store.state x[5]")
	assert.Contains(t, text, "br i1 %")
	assert.Contains(t, text, "call void @exit()")
}

func TestVerifyRejects(t *testing.T) {
	cases := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{"missing terminator", func(b *Builder) {
			b.Const(I32, 1)
		}, "does not end in a terminator"},
		{"type mismatch", func(b *Builder) {
			b.Add(b.Const(I32, 1), b.Const(I64, 1))
			b.Ret()
		}, "operand types"},
		{"bad condition", func(b *Builder) {
			b.CondBr(b.Const(I32, 1), 0, 0)
		}, "condition of type i32"},
		{"bad target", func(b *Builder) {
			b.Br(7)
		}, "target 7 out of range"},
		{"call arity", func(b *Builder) {
			b.Call("mem_read", b.Const(I32, 0))
			b.Ret()
		}, "takes 2 arguments"},
		{"duplicate case", func(b *Builder) {
			b.Switch(b.Const(I32, 1), 0, []uint64{1, 1}, []BlockID{0, 0})
		}, "duplicate case"},
		{"widening trunc", func(b *Builder) {
			b.emit(&Instr{Op: OpTrunc, Type: I64, Args: []*Instr{b.Const(I32, 1)}})
			b.Ret()
		}, "truncation from i32 to i64"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := testModule()
			b := NewBuilder(m, m.NewFunction("f"))
			b.SetBlock(b.NewBlock("entry"))
			tc.build(b)
			err := Verify(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, simerrors.ErrVerifyFailed)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestOperandFromOtherBlock(t *testing.T) {
	m := testModule()
	b := NewBuilder(m, m.NewFunction("f"))
	first := b.NewBlock("a")
	second := b.NewBlock("b")
	b.SetBlock(first)
	v := b.Const(I32, 1)
	b.Br(second)
	b.SetBlock(second)
	b.StoreState(fieldPC, 0, v)
	b.Ret()
	err := Verify(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not defined earlier in this block")
}

func TestUnknownHelper(t *testing.T) {
	m := testModule()
	b := NewBuilder(m, m.NewFunction("f"))
	b.SetBlock(b.NewBlock("entry"))
	v := b.Call("no_such_helper")
	assert.Equal(t, OpConst, v.Op)
	assert.ErrorIs(t, b.Err(), simerrors.ErrUnknownHelper)
}

func TestLink(t *testing.T) {
	a := testModule()
	other := NewModule("other")
	other.Declare("exit", Void)
	other.Declare("extra", I64, I64)
	other.NewFunction("g")
	require.NoError(t, a.Link(other))
	assert.Equal(t, []string{"mem_read", "exit", "extra"}, a.HelperNames())
	assert.NotNil(t, a.Func("g"))

	bad := NewModule("bad")
	bad.Declare("exit", I32)
	assert.Error(t, a.Link(bad))
}

func TestEvalBinary(t *testing.T) {
	assert.Equal(t, uint64(0xffffffff), EvalBinary(OpDivU, I32, 7, 0))
	assert.Equal(t, uint64(0xffffffff), EvalBinary(OpDivS, I32, 7, 0))
	assert.Equal(t, uint64(7), EvalBinary(OpRemU, I32, 7, 0))
	assert.Equal(t, uint64(7), EvalBinary(OpRemS, I32, 7, 0))
	assert.Equal(t, uint64(0x80000000), EvalBinary(OpDivS, I32, 0x80000000, 0xffffffff))
	assert.Equal(t, uint64(0), EvalBinary(OpRemS, I32, 0x80000000, 0xffffffff))
	assert.Equal(t, uint64(0xfffffffe), EvalBinary(OpDivS, I32, 0xfffffff9, 3))
	assert.Equal(t, uint64(0xffffffff), EvalBinary(OpRemS, I32, 0xfffffff9, 3))
	assert.Equal(t, uint64(2), EvalBinary(OpShl, I32, 1, 33))
	assert.Equal(t, uint64(0xffffffff), EvalBinary(OpAShr, I32, 0x80000000, 31))
	assert.Equal(t, uint64(1), EvalBinary(OpLShr, I32, 0x80000000, 31))
	assert.Equal(t, uint64(0), EvalBinary(OpAdd, I8, 0xff, 1))
}

func TestEvalICmpAndCast(t *testing.T) {
	assert.True(t, EvalICmp(SLT, I32, 0xffffffff, 0))
	assert.False(t, EvalICmp(ULT, I32, 0xffffffff, 0))
	assert.True(t, EvalICmp(SGE, I8, 0x7f, 0x80))
	assert.Equal(t, uint64(0xffffff80), EvalCast(OpSExt, I8, I32, 0x80))
	assert.Equal(t, uint64(0x80), EvalCast(OpZExt, I8, I32, 0x80))
	assert.Equal(t, uint64(0x34), EvalCast(OpTrunc, I32, I8, 0x1234))
	assert.Equal(t, int64(-1), SignExtend(I16, 0xffff))
}

func TestPrintSwitch(t *testing.T) {
	m := testModule()
	b := NewBuilder(m, m.NewFunction("dispatch"))
	entry := b.NewBlock("entry")
	def := b.NewBlock("exit")
	one := b.NewBlock("pc_80000000")
	b.SetBlock(entry)
	b.Switch(b.LoadState(I32, fieldPC, 0), def, []uint64{0x80000000}, []BlockID{one})
	b.SetBlock(def)
	b.Ret()
	b.SetBlock(one)
	b.Ret()
	require.NoError(t, Verify(m))
	text := m.String()
	assert.Contains(t, text, "load.state i32 pc[0]")
	assert.Contains(t, text, "label %exit [0x80000000: %pc_80000000]")
	assert.Equal(t, 1, strings.Count(text, "define void @dispatch()"))
}
