package translate

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/clustersim/config"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/jit"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/program"
	. "github.com/colorfulnotion/clustersim/riscv"
	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/colorfulnotion/clustersim/trace"
)

const (
	base    = 0x80000000
	tcdm    = 0x100000
	scratch = 0x400
)

const testConfig = `
memory:
  - tcdm: {start: 0x100000, end: 0x101000}
address:
  scratch_reg: 0x400
inst_latency:
  mul: 5
`

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig), "test.yaml")
	require.NoError(t, err)
	return cfg
}

func translateAsm(t *testing.T, cfg *config.Config, a *Assembler, opts Options) (*jit.Program, *Translator) {
	t.Helper()
	words, err := a.Words()
	require.NoError(t, err)
	m := ir.NewModule("cluster0")
	tr := New(cfg, 0, opts)
	require.NoError(t, tr.Translate(m, program.FromWords(a.Base(), words)))
	require.NoError(t, ir.Verify(m))
	p, err := jit.Compile(m, jit.Options{})
	require.NoError(t, err)
	return p, tr
}

type runner struct {
	opts    Options
	gopts   []machine.Option
	setup   func(g *machine.Global, h *machine.Hart)
	wantErr error
}

func (r runner) run(t *testing.T, a *Assembler) *machine.Hart {
	t.Helper()
	cfg := testCfg(t)
	p, _ := translateAsm(t, cfg, a, r.opts)
	g := machine.NewGlobal(cfg, append([]machine.Option{machine.WithOutput(io.Discard)}, r.gopts...)...)
	h := g.Clusters[0].AddHart(0, a.Base())
	if r.setup != nil {
		r.setup(g, h)
	}
	err := p.Run(h, FuncName)
	if r.wantErr != nil {
		require.ErrorIs(t, err, r.wantErr)
	} else {
		require.NoError(t, err)
	}
	return h
}

func run(t *testing.T, a *Assembler) *machine.Hart {
	return runner{}.run(t, a)
}

func f32(v float32) uint64 { return 0xffffffff00000000 | uint64(math.Float32bits(v)) }
func f64(v float64) uint64 { return math.Float64bits(v) }

func TestMinimalExit(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, 42<<1|1)
	a.Emit(S(SW, ZERO, T0, scratch))
	a.Emit(Sys(WFI))
	h := run(t, a)
	assert.Equal(t, 42, h.Global.ExitStatus())
	assert.Equal(t, uint64(3), h.Instret)
	assert.True(t, h.Halted)
}

func TestArithmetic(t *testing.T) {
	a := NewAssembler(base)
	a.Li(A0, 0xfffffffe)
	a.Li(A1, 3)
	a.Emit(
		R(MULH, A2, A0, A1),
		R(MULHU, A3, A0, A1),
		R(DIV, A4, A0, ZERO),
		R(REM, A5, A0, ZERO),
		R(SLTU, A6, A1, A0),
		I(SRAI, A7, A0, 1),
		I(ADDI, ZERO, A1, 5),
	)
	a.Exit(scratch, 0)
	h := run(t, a)
	assert.Equal(t, uint32(0xffffffff), h.X[A2])
	assert.Equal(t, uint32(2), h.X[A3])
	assert.Equal(t, uint32(0xffffffff), h.X[A4])
	assert.Equal(t, uint32(0xfffffffe), h.X[A5])
	assert.Equal(t, uint32(1), h.X[A6])
	assert.Equal(t, uint32(0xffffffff), h.X[A7])
	assert.Zero(t, h.X[ZERO])
}

func TestBranchLoop(t *testing.T) {
	a := NewAssembler(base)
	a.Li(A0, 0)
	a.Li(A1, 10)
	a.Label("loop")
	a.Emit(R(ADD, A0, A0, A1), I(ADDI, A1, A1, -1))
	a.Branch(BNE, A1, ZERO, "loop")
	a.Exit(scratch, 0)
	cfg := testCfg(t)
	_, tr := translateAsm(t, cfg, a, Options{})
	assert.True(t, tr.IsTarget(base+8))
	assert.True(t, tr.IsTarget(base))

	h := run(t, a)
	assert.Equal(t, uint32(55), h.X[A0])
	assert.Equal(t, uint64(2+3*10+4), h.Instret)
}

func TestCallAndReturn(t *testing.T) {
	a := NewAssembler(base)
	a.Jal(RA, "fn")
	a.Li(A1, 1)
	a.Exit(scratch, 0)
	a.Label("fn")
	a.Li(A0, 7)
	a.Emit(I(JALR, ZERO, RA, 0))
	h := run(t, a)
	assert.Equal(t, uint32(7), h.X[A0])
	assert.Equal(t, uint32(1), h.X[A1])
	assert.Equal(t, uint32(base+4), h.X[RA])
}

func TestIllegalBranch(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, base+0x1000)
	a.Emit(I(JALR, ZERO, T0, 0))
	h := runner{wantErr: simerrors.ErrIllegalBranch}.run(t, a)
	assert.True(t, h.Global.HadError.Load())
}

func TestEscape(t *testing.T) {
	a := NewAssembler(base)
	a.Emit(J(ZERO, 0x2000))
	runner{wantErr: simerrors.ErrEscape}.run(t, a)
}

func TestIllegalInstruction(t *testing.T) {
	bin := program.FromWords(base, []uint32{MustEncode(I(ADDI, A0, ZERO, 1)), 0})
	cfg := testCfg(t)
	m := ir.NewModule("cluster0")
	tr := New(cfg, 0, Options{})
	require.NoError(t, tr.Translate(m, bin))
	assert.Equal(t, 1, tr.Stats.Sections[0].Illegal)
	p, err := jit.Compile(m, jit.Options{})
	require.NoError(t, err)
	g := machine.NewGlobal(cfg, machine.WithOutput(io.Discard))
	h := g.Clusters[0].AddHart(0, base)
	require.ErrorIs(t, p.Run(h, FuncName), simerrors.ErrIllegalInstruction)
	assert.Equal(t, uint32(1), h.X[A0])
}

func TestTCDMReadWrite(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, tcdm+16)
	a.Li(T1, 0xdeadbeef)
	a.Emit(S(SW, T0, T1, 0), I(LW, T2, T0, 0))
	a.Exit(scratch, 0)

	var buf bytes.Buffer
	tw := trace.NewWriter(&buf, nil)
	h := runner{opts: Options{Trace: true}, gopts: []machine.Option{machine.WithTracer(tw)}}.run(t, a)
	require.NoError(t, tw.Close())
	assert.Equal(t, uint32(0xdeadbeef), h.X[T2])
	assert.Zero(t, h.Global.SlowAccesses.Load())

	out := buf.String()
	wa, ra := strings.Index(out, "WA:00100010"), strings.Index(out, "RA:00100010")
	require.GreaterOrEqual(t, wa, 0, out)
	require.Greater(t, ra, wa, out)
}

func TestSubWordAccess(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, tcdm+0x20)
	a.Li(T1, 0x80)
	a.Li(T2, 0xbeef)
	a.Emit(
		S(SB, T0, T1, 1),
		I(LB, A0, T0, 1),
		I(LBU, A1, T0, 1),
		S(SH, T0, T2, 2),
		I(LH, A2, T0, 2),
		I(LHU, A3, T0, 2),
		I(LW, A4, T0, 0),
	)
	a.Exit(scratch, 0)
	h := run(t, a)
	assert.Equal(t, uint32(0xffffff80), h.X[A0])
	assert.Equal(t, uint32(0x80), h.X[A1])
	assert.Equal(t, uint32(0xffffbeef), h.X[A2])
	assert.Equal(t, uint32(0xbeef), h.X[A3])
	assert.Equal(t, uint32(0xbeef8000), h.X[A4])
}

func TestSlowPath(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, 0x90000000)
	a.Li(T1, 0x1234)
	a.Emit(S(SH, T0, T1, 2), I(LW, A0, T0, 0))
	a.Exit(scratch, 0)
	h := run(t, a)
	assert.Equal(t, uint32(0x12340000), h.X[A0])
	assert.Equal(t, uint64(2), h.Global.SlowAccesses.Load())
}

func TestAMO(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, tcdm+0x40)
	a.Li(A2, 3)
	a.Emit(
		AMO(AMOADD_W, A1, T0, A2),
		AMO(LR_W, A3, T0, ZERO),
		AMO(SC_W, A4, T0, A2),
		I(LW, A5, T0, 0),
	)
	a.Exit(scratch, 0)
	h := runner{setup: func(g *machine.Global, _ *machine.Hart) { g.Preload(tcdm+0x40, 5) }}.run(t, a)
	assert.Equal(t, uint32(5), h.X[A1])
	assert.Equal(t, uint32(8), h.X[A3])
	assert.Zero(t, h.X[A4])
	assert.Equal(t, uint32(3), h.X[A5])
}

func TestFloatNaNBoxing(t *testing.T) {
	a := NewAssembler(base)
	a.Li(A0, math.Float32bits(1.5))
	a.Emit(
		FP(FMV_F_X, FmtS, 4, A0, 0),
		FP(FADD, FmtS, 5, 4, 4),
		FCvt(FmtD, FmtS, 6, 5),
		FP(FMV_X, FmtS, A1, 5, 0),
		FP(FLT, FmtS, A2, 4, 5),
		FP(FCVT_W, FmtD, A3, 6, 0),
	)
	a.Exit(scratch, 0)
	h := run(t, a)
	assert.Equal(t, f32(1.5), h.F[4])
	assert.Equal(t, f32(3), h.F[5])
	assert.Equal(t, f64(3), h.F[6])
	assert.Equal(t, math.Float32bits(3), h.X[A1])
	assert.Equal(t, uint32(1), h.X[A2])
	assert.Equal(t, uint32(3), h.X[A3])
}

func TestFloatLoadStore(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, tcdm+0x80)
	a.Emit(
		I(FLD, 4, T0, 0),
		I(FLW, 5, T0, 8),
		S(FSD, T0, 4, 16),
		S(FSW, T0, 5, 24),
		I(LW, A0, T0, 20),
		I(LW, A1, T0, 24),
	)
	a.Exit(scratch, 0)
	h := runner{setup: func(g *machine.Global, _ *machine.Hart) {
		d := f64(2.5)
		g.Preload(tcdm+0x80, uint32(d))
		g.Preload(tcdm+0x84, uint32(d>>32))
		g.Preload(tcdm+0x88, math.Float32bits(0.25))
	}}.run(t, a)
	assert.Equal(t, f64(2.5), h.F[4])
	assert.Equal(t, f32(0.25), h.F[5])
	assert.Equal(t, uint32(f64(2.5)>>32), h.X[A0])
	assert.Equal(t, math.Float32bits(0.25), h.X[A1])
}

func TestPackedSIMD(t *testing.T) {
	a := NewAssembler(base)
	a.Emit(
		Vec(VFADD, VecS, false, 3, 4, 5),
		Vec(VFEQ, VecS, false, A0, 4, 6),
		Vec(VFSUM, VecS, false, 7, 4, 0),
	)
	a.Exit(scratch, 0)
	pair := func(lo, hi float32) uint64 {
		return uint64(math.Float32bits(hi))<<32 | uint64(math.Float32bits(lo))
	}
	h := runner{setup: func(_ *machine.Global, h *machine.Hart) {
		h.F[4] = pair(1, 2)
		h.F[5] = pair(3, 4)
		h.F[6] = pair(0, 2)
	}}.run(t, a)
	assert.Equal(t, pair(4, 6), h.F[3])
	assert.Equal(t, uint32(2), h.X[A0])
	assert.Equal(t, pair(3, 0), h.F[7])
}

func TestSSRStreamRead(t *testing.T) {
	a := NewAssembler(base)
	a.Li(T0, 3)
	a.Emit(ScfgWI(T0, 0, machine.SSRBound0))
	a.Li(T0, 4)
	a.Emit(ScfgWI(T0, 0, machine.SSRStride0))
	a.Li(T0, tcdm+0x100)
	a.Emit(ScfgWI(T0, 0, machine.SSRRptr0))
	a.Emit(CSR(CSRRSI, ZERO, CSR_SSR, 1))
	for _, rd := range []uint8{A0, A1, A2, A3} {
		a.Emit(FP(FMV_X, FmtS, rd, 0, 0))
	}
	a.Emit(CSR(CSRRCI, ZERO, CSR_SSR, 1))
	a.Exit(scratch, 0)
	h := runner{setup: func(g *machine.Global, _ *machine.Hart) {
		for i := uint32(0); i < 5; i++ {
			g.Preload(tcdm+0x100+4*i, 0x10+i)
		}
	}}.run(t, a)
	assert.Equal(t, []uint32{0x10, 0x11, 0x12, 0x13}, []uint32{h.X[A0], h.X[A1], h.X[A2], h.X[A3]})
	assert.True(t, h.SSR[0].Done)
	assert.Zero(t, h.SSREnable)
}

func TestDMA(t *testing.T) {
	const src, dst = tcdm + 0x200, tcdm + 0x400
	a := NewAssembler(base)
	a.Li(A0, src)
	a.Li(A1, dst)
	a.Li(A2, 64)
	a.Emit(
		Dma(DMSRC, ZERO, A0, ZERO),
		Dma(DMDST, ZERO, A1, ZERO),
		DmaImm(DMCPYI, A3, A2, 0),
		DmaImm(DMSTATI, A4, ZERO, 0),
	)
	a.Exit(scratch, 0)
	h := runner{setup: func(g *machine.Global, _ *machine.Hart) {
		for i := uint32(0); i < 16; i++ {
			g.Preload(src+4*i, 0xa0000000|i)
		}
	}}.run(t, a)
	assert.Equal(t, uint32(1), h.X[A3])
	assert.Equal(t, uint32(1), h.X[A4])
	assert.Equal(t, h.LoadBytes(src, 64), h.LoadBytes(dst, 64))
}

func TestCSR(t *testing.T) {
	a := NewAssembler(base)
	a.Emit(
		CSR(CSRRWI, A0, CSR_FRM, 3),
		CSR(CSRRS, A1, CSR_FRM, ZERO),
		CSR(CSRRCI, ZERO, CSR_FRM, 1),
		CSR(CSRRS, A2, CSR_MINSTRET, ZERO),
	)
	a.Exit(scratch, 0)
	h := run(t, a)
	assert.Zero(t, h.X[A0])
	assert.Equal(t, uint32(3), h.X[A1])
	assert.Equal(t, uint32(2), h.Frm)
	assert.Equal(t, uint32(4), h.X[A2])
}

func TestMRet(t *testing.T) {
	a := NewAssembler(base)
	a.Emit(Sys(MRET))
	a.Li(A0, 1)
	a.Li(A0, 9)
	a.Exit(scratch, 0)
	h := runner{setup: func(_ *machine.Global, h *machine.Hart) { h.IRQ.Mepc = base + 8 }}.run(t, a)
	assert.Equal(t, uint32(9), h.X[A0])
}

func TestFrepOuter(t *testing.T) {
	a := NewAssembler(base)
	a.Li(A0, 2)
	a.Emit(
		Frep(A0, 1, 0, 0),
		FP(FADD, FmtD, 3, 3, 4),
		FP(FADD, FmtD, 5, 5, 6),
	)
	a.Exit(scratch, 0)
	h := runner{setup: func(_ *machine.Global, h *machine.Hart) {
		h.F[4] = f64(1)
		h.F[6] = f64(2)
	}}.run(t, a)
	assert.Equal(t, f64(3), h.F[3])
	assert.Equal(t, f64(6), h.F[5])
	// li, frep, 2*3 body instructions, exit sequence
	assert.Equal(t, uint64(1+1+2*3+4), h.Instret)
}

func TestFrepStagger(t *testing.T) {
	a := NewAssembler(base)
	a.Li(A0, 3)
	a.Emit(
		Frep(A0, 0, 1, 0b0011),
		FP(FADD, FmtD, 3, 3, 4),
	)
	a.Exit(scratch, 0)
	h := runner{setup: func(_ *machine.Global, h *machine.Hart) {
		h.F[4] = f64(1)
	}}.run(t, a)
	// f3 += f4 and f4 += f4 alternate
	assert.Equal(t, f64(3), h.F[3])
	assert.Equal(t, f64(4), h.F[4])
}

func TestFrepErrors(t *testing.T) {
	inner := Frep(A0, 0, 0, 0)
	inner.IsOuter = false
	fadd := FP(FADD, FmtD, 3, 3, 4)
	cases := map[string]struct {
		insts []Instruction
		err   error
	}{
		"inner":         {[]Instruction{inner, fadd}, simerrors.ErrFrepInner},
		"nested":        {[]Instruction{Frep(A0, 1, 0, 0), fadd, Frep(A0, 0, 0, 0), fadd}, simerrors.ErrFrepNested},
		"not freppable": {[]Instruction{Frep(A0, 1, 0, 0), fadd, B(BEQ, A0, A0, 8), fadd}, simerrors.ErrFrepNotFreppable},
		"unterminated":  {[]Instruction{Frep(A0, 2, 0, 0), fadd}, simerrors.ErrFrepUnterminated},
		"overflow":      {[]Instruction{Frep(A0, 16, 0, 0), fadd}, simerrors.ErrFrepOverflow},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			a := NewAssembler(base)
			a.Emit(c.insts...)
			words, err := a.Words()
			require.NoError(t, err)
			tr := New(testCfg(t), 0, Options{})
			err = tr.Translate(ir.NewModule("cluster0"), program.FromWords(base, words))
			require.ErrorIs(t, err, c.err)
		})
	}
}

func TestLatencyScoreboard(t *testing.T) {
	a := NewAssembler(base)
	a.Li(A0, 3)
	a.Emit(R(MUL, A1, A0, A0), I(ADDI, A2, A1, 1))
	a.Exit(scratch, 0)
	h := runner{opts: Options{Latency: true}}.run(t, a)
	assert.Equal(t, uint32(10), h.X[A2])
	assert.Equal(t, uint64(7), h.XCycle[A1])
	assert.Equal(t, uint64(8), h.XCycle[A2])
	assert.GreaterOrEqual(t, h.Cycle, uint64(7))

	// the final wfi halts the hart before its cycle is counted
	plain := run(t, a)
	assert.Equal(t, plain.Instret, plain.Cycle+1)
}

func TestEntryNotMapped(t *testing.T) {
	bin := program.FromWords(base, []uint32{MustEncode(Sys(WFI))})
	bin.Entry = base + 0x100
	err := New(testCfg(t), 0, Options{}).Translate(ir.NewModule("cluster0"), bin)
	require.ErrorIs(t, err, simerrors.ErrEntryNotMapped)
}
