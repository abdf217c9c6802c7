package machine

import (
	"math"
	"testing"

	"github.com/colorfulnotion/clustersim/flexfloat"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, h *Hart, name string, args ...uint64) uint64 {
	t.Helper()
	hp, ok := Lookup(name)
	require.True(t, ok, name)
	require.Len(t, args, len(hp.Params), name)
	return hp.Fn(h, args)
}

func f64(v float64) uint64 { return math.Float64bits(v) }
func f32(v float32) uint64 { return uint64(math.Float32bits(v)) }

func TestRuntimeDeclarations(t *testing.T) {
	m := RuntimeModule()
	names := m.HelperNames()
	assert.Contains(t, names, "mem_load")
	assert.Contains(t, names, "fp16_fmadd")
	assert.Contains(t, names, "fp8_cvt_fp64")
	assert.NotContains(t, names, "fp32_cvt_fp32")
	assert.Equal(t, ir.I64, m.Helpers["ssr_read"].Ret)
	assert.Equal(t, []ir.Type{ir.I32, ir.I32, ir.I32, ir.I32}, m.Helpers["mem_store"].Params)

	prev := ""
	for _, hp := range Helpers() {
		assert.Less(t, prev, hp.Name)
		prev = hp.Name
	}
	_, ok := Lookup("fp32_bogus")
	assert.False(t, ok)

	// a user module redeclaring a helper with the same signature links
	user := ir.NewModule("user")
	user.Declare("csr_read", ir.I32, ir.I32)
	require.NoError(t, user.Link(m))
}

func TestRuntimeMemoryHelpers(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	call(t, h, "mem_store", tcdm0, 0x1234, 0xffffffff, 4)
	assert.Equal(t, uint64(0x1234), call(t, h, "mem_load", tcdm0, 4))
	assert.Equal(t, uint64(0x1234), call(t, h, "amo", tcdm0, 1, uint64(AMOAdd)))
	assert.Equal(t, uint32(0x1235), h.Load(tcdm0, 4))

	// scfg operand: word 2 (bound0) of stream 1
	call(t, h, "ssr_cfg_write", 2<<5|1, 7)
	assert.Equal(t, uint32(7), h.SSR[1].Bound[0])
	assert.Equal(t, uint64(7), call(t, h, "ssr_cfg_read", 2<<5|1))

	call(t, h, "csr_write", 0x7c1, 1)
	assert.Equal(t, uint64(1), call(t, h, "csr_read", 0x7c1))
}

func TestRuntimeAbortHelpers(t *testing.T) {
	cases := map[string]struct {
		args []uint64
		err  error
	}{
		"escape_abort":        {[]uint64{0x80000000}, simerrors.ErrEscape},
		"illegal_instruction": {[]uint64{0x80000000, 0xffffffff}, simerrors.ErrIllegalInstruction},
		"illegal_branch":      {[]uint64{0x80000000, 0x3}, simerrors.ErrIllegalBranch},
		"env_call":            {[]uint64{0x80000000, 0x73}, simerrors.ErrEnvCall},
	}
	for name, tc := range cases {
		g := newTestGlobal(t)
		h := g.Clusters[0].Harts[0]
		call(t, h, name, tc.args...)
		assert.True(t, h.Halted, name)
		assert.ErrorIs(t, h.Err, tc.err, name)
	}
}

func TestRuntimeFloatHelpers(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]

	assert.Equal(t, f64(3.75), call(t, h, "fp64_add", f64(1.5), f64(2.25), 0))
	assert.Equal(t, f32(6), call(t, h, "fp32_mul", f32(2), f32(3), 0))
	assert.Equal(t, f64(7), call(t, h, "fp64_fmadd", f64(2), f64(3), f64(1), 0))
	assert.Equal(t, uint64(1), call(t, h, "fp32_lt", f32(1), f32(2)))
	assert.Equal(t, uint64(1<<6), call(t, h, "fp64_classify", f64(1)))
	assert.Equal(t, uint64(0xfffffffd), call(t, h, "fp64_to_i32", f64(-3), 1))
	assert.Equal(t, f64(-3), call(t, h, "fp64_from_i32", 0xfffffffd, 0))
	assert.Equal(t, f64(1.5), call(t, h, "fp32_cvt_fp64", f32(1.5), 0))
	assert.Zero(t, h.FFlags)

	call(t, h, "fp64_div", f64(1), f64(0), 0)
	assert.Equal(t, uint32(flexfloat.DZ), h.FFlags)
}

func TestRuntimeFloatModes(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]

	// binary16: 1.0 = 0x3c00
	assert.Equal(t, uint64(0x4000), call(t, h, "fp16_add", 0x3c00, 0x3c00, 0))
	h.WriteCSR(0x7c1, FPModeAlt16)
	// bfloat16: 1.0 = 0x3f80
	assert.Equal(t, uint64(0x4000), call(t, h, "fp16_add", 0x3f80, 0x3f80, 0))
	assert.Equal(t, uint64(0x3f80), call(t, h, "fp32_cvt_fp16", f32(1), 0))
	assert.Equal(t, flexfloat.F16Alt, h.Format(16))
	assert.Equal(t, flexfloat.F8, h.Format(8))

	// dynamic rounding mode follows frm
	h.Frm = uint32(flexfloat.RTZ)
	assert.Equal(t, flexfloat.RTZ, h.RoundingMode(7))
	assert.Equal(t, flexfloat.RUP, h.RoundingMode(3))
	assert.Equal(t, flexfloat.RNE, h.RoundingMode(5))
	assert.Equal(t, uint64(0x3f81), call(t, h, "fp32_cvt_fp16", f32(1.0078125*1.00390625), 7))
}
