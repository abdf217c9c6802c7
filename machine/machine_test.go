package machine

import (
	"bytes"
	"math"
	"testing"

	"github.com/colorfulnotion/clustersim/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
num_clusters: 2
num_cores: 2
base_hartid: 0
memory:
  - tcdm: {start: 0x100000, end: 0x100100}
    dram: {start: 0x80000000, end: 0x80100000, latency: 4}
    bootrom: {start: 0x1000, end: 0x1100}
    ext_tcdm: [{cluster: 1, start: 0x200000}]
  - tcdm: {start: 0x110000, end: 0x110100}
    dram: {start: 0x80000000, end: 0x80100000, latency: 4}
address:
  scratch_reg: 0x40000000
  wakeup_reg: 0x40000008
  nr_cores: 0x40000020
  cluster_id: 0x40000050
  barrier_reg: 0x40000058
  cl_clint: 0x40000060
  uart: 0xf00b8000
  clint: 0xffff0000
ssr: {num_dm: 3, base: 0x204800}
interrupt_latency: 1
`

const (
	tcdm0 = 0x100000
	tcdm1 = 0x110000
	dram  = 0x80000000
)

// newTestGlobal builds a 2x2 machine with every hart added at entry 0x80000000.
func newTestGlobal(t *testing.T, opts ...Option) *Global {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig), "test.yaml")
	require.NoError(t, err)
	opts = append([]Option{WithOutput(&bytes.Buffer{})}, opts...)
	g := NewGlobal(cfg, opts...)
	for _, c := range g.Clusters {
		for core := 0; core < cfg.NumCores; core++ {
			c.AddHart(core, dram)
		}
	}
	return g
}

func TestHartIdentity(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[1].Harts[1]
	assert.Equal(t, uint32(3), h.ID)
	assert.Equal(t, 3, h.Index)
	assert.Equal(t, uint32(dram), h.PC)
	assert.Len(t, h.SSR, 3)
	assert.Equal(t, 4, g.TotalHarts())
}

func TestFieldAccess(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	h.StoreField(FieldX, 0, 99)
	h.StoreField(FieldX, 5, 0x1_0000_0007)
	assert.Zero(t, h.LoadField(FieldX, 0))
	assert.Equal(t, uint64(7), h.LoadField(FieldX, 5))
	h.StoreField(FieldF, 2, math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), h.F[2])
	h.StoreField(FieldSSRAccessed, 1, 1)
	assert.Equal(t, uint32(1), h.SSR[1].Accessed)
	h.StoreField(FieldMepc, 0, 0x44)
	assert.Equal(t, uint64(0x44), h.LoadField(FieldMepc, 0))
	assert.Equal(t, 32, h.FieldLen(FieldXCycle))
	assert.Equal(t, 3, h.FieldLen(FieldSSRAccessed))
	assert.Equal(t, "ssr_accessed", FieldName(int(FieldSSRAccessed)))
	assert.Panics(t, func() { h.LoadField(NumFields, 0) })
}

func TestMemoryTCDMBoundary(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	h.Store(tcdm0+0xfc, 0xdeadbeef, ^uint32(0), 4)
	assert.Equal(t, uint32(0xdeadbeef), g.Clusters[0].TCDMLoad(0xfc))
	assert.Zero(t, g.SlowAccesses.Load())

	h.Store(tcdm0+0x100, 0x12345678, ^uint32(0), 4)
	assert.Equal(t, uint64(1), g.SlowAccesses.Load())
	assert.Equal(t, uint32(0x12345678), h.Load(tcdm0+0x100, 4))
}

func TestMemorySubWord(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	h.Store(tcdm0, 0x11223344, ^uint32(0), 4)
	h.Store(tcdm0+1, 0xab00, SizeMask(tcdm0+1, 1), 1)
	assert.Equal(t, uint32(0x1122ab44), h.Load(tcdm0, 4))
	h.Store(tcdm0+2, 0xcafe0000, SizeMask(tcdm0+2, 2), 2)
	assert.Equal(t, uint32(0xcafeab44), h.Load(tcdm0+3, 1))

	assert.Equal(t, uint32(0xff), SizeMask(0, 1))
	assert.Equal(t, uint32(0xff000000), SizeMask(3, 1))
	assert.Equal(t, uint32(0xffff0000), SizeMask(2, 2))
	assert.Equal(t, ^uint32(0), SizeMask(0, 4))
}

func TestMemoryRemoteTCDM(t *testing.T) {
	g := newTestGlobal(t)
	h0 := g.Clusters[0].Harts[0]
	h0.Store(0x200004, 77, ^uint32(0), 4)
	assert.Equal(t, uint32(77), g.Clusters[1].TCDMLoad(4))
	h2 := g.Clusters[1].Harts[0]
	assert.Equal(t, uint32(77), h2.Load(tcdm1+4, 4))
	assert.Zero(t, g.SlowAccesses.Load())
}

func TestMemorySSRWindow(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	base := g.Config.SSR.Base
	h.Store(base+8*SSRBound0, 5, ^uint32(0), 4)
	assert.Equal(t, uint32(5), h.SSR[0].Bound[0])
	assert.Equal(t, uint32(5), h.Load(base+8*SSRBound0, 4))
	assert.Zero(t, h.Load(base+8*SSRBound0+4, 4))

	h.Store(base+256+8*SSRStride0, 8, ^uint32(0), 4)
	h.Store(base+256+8*SSRStride0+4, 9, ^uint32(0), 4)
	assert.Equal(t, uint32(8), h.SSR[1].Stride[0])
	assert.Zero(t, g.SlowAccesses.Load())
}

func TestMemoryBootromAndMMIO(t *testing.T) {
	g := newTestGlobal(t)
	h0 := g.Clusters[0].Harts[0]
	assert.Equal(t, uint32(dram), h0.Load(0x1000, 4))
	assert.Equal(t, uint32(2), h0.Load(0x1004, 4))
	assert.Equal(t, uint32(tcdm0), h0.Load(0x100c, 4))
	h0.Store(0x1004, 9, ^uint32(0), 4)
	assert.Equal(t, uint32(2), h0.Load(0x1004, 4))
	assert.Zero(t, g.SlowAccesses.Load())

	// cluster 1 has no bootrom
	h3 := g.Clusters[1].Harts[1]
	assert.Zero(t, h3.Load(0x1000, 4))
	assert.Equal(t, uint64(1), g.SlowAccesses.Load())

	assert.Equal(t, uint32(2), h3.Load(0x40000020, 4))
	assert.Equal(t, uint32(1), h3.Load(0x40000050, 4))
	assert.Equal(t, uint32(0), h0.Load(0x40000050, 4))
}

func TestPreload(t *testing.T) {
	g := newTestGlobal(t)
	g.Preload(tcdm1+8, 0xa5a5)
	g.Preload(dram+0x10, 0x5a5a)
	h := g.Clusters[1].Harts[0]
	assert.Equal(t, uint32(0xa5a5), g.Clusters[1].TCDMLoad(8))
	assert.Equal(t, uint32(0x5a5a), h.Load(dram+0x10, 4))
	assert.Equal(t, uint64(0x5a5a), h.Load64(dram+0x10))
	assert.Equal(t, []byte{0x5a, 0x5a, 0, 0}, h.LoadBytes(dram+0x10, 4))
	assert.Equal(t, []byte{0x5a}, h.LoadBytes(dram+0x11, 1))
}

func TestExitStatus(t *testing.T) {
	g := newTestGlobal(t)
	assert.Equal(t, 117, g.ExitStatus())
	h := g.Clusters[0].Harts[0]
	h.Store(0x40000000, 2*5+1, ^uint32(0), 4)
	assert.Equal(t, 5, g.ExitStatus())
	assert.Equal(t, uint32(11), h.Load(0x40000000, 4))
	h.Store(0x40000000, 1, ^uint32(0), 4)
	assert.Equal(t, 0, g.ExitStatus())
}

func TestUART(t *testing.T) {
	var out bytes.Buffer
	g := newTestGlobal(t, WithOutput(&out))
	h := g.Clusters[0].Harts[1]
	for _, b := range []byte("hi\nbye") {
		h.Store(0xf00b8000, uint32(b), 0xff, 1)
	}
	assert.Equal(t, "[hart 1] hi\n", out.String())
	h.Exit()
	assert.Equal(t, "[hart 1] hi\n[hart 1] bye\n", out.String())
}
