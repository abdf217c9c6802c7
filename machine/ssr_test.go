package machine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preloadDoubles(g *Global, addr uint32, vs ...float64) {
	for i, v := range vs {
		b := math.Float64bits(v)
		g.Preload(addr+uint32(8*i), uint32(b))
		g.Preload(addr+uint32(8*i)+4, uint32(b>>32))
	}
}

func TestSSRAffineStream(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	preloadDoubles(g, tcdm0, 1, 2, 3, 4)

	h.SSRConfigure(0, SSRBound0, 3)
	h.SSRConfigure(0, SSRStride0, 8)
	h.SSRConfigure(0, SSRRptr0, tcdm0)

	var got []float64
	for i := 0; i < 4; i++ {
		require.False(t, h.SSR[0].Done, "pop %d", i)
		got = append(got, math.Float64frombits(h.SSRRead(0)))
		// same instruction: no second pop
		assert.Equal(t, got[i], math.Float64frombits(h.SSRRead(0)))
		h.SSR[0].Accessed = 0
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, got)
	assert.True(t, h.SSR[0].Done)
	assert.Equal(t, math.Float64bits(4), h.F[0])
	assert.Equal(t, uint32(1)<<31, h.SSRReadCfg(0, SSRStatus)&(1<<31))
}

func TestSSRBoundZero(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	h.SSRConfigure(1, SSRBound0, 0)
	h.SSRConfigure(1, SSRRptr0, tcdm0+0x10)
	assert.Equal(t, uint32(tcdm0+0x10), h.SSRNext(1))
	assert.True(t, h.SSR[1].Done)
}

func TestSSRRepeatAndTwoDims(t *testing.T) {
	var s SSRState
	s.Configure(SSRRepeat, 1)
	s.Configure(SSRBound0, 1)
	s.Configure(SSRBound0+1, 1)
	s.Configure(SSRStride0, 4)
	s.Configure(SSRStride0+1, 0x100-4)
	s.Configure(SSRRptr0+1, 0x1000)
	var addrs []uint32
	for !s.Done {
		addrs = append(addrs, s.Ptr)
		s.advance()
	}
	assert.Equal(t, []uint32{
		0x1000, 0x1000, 0x1004, 0x1004,
		0x1100, 0x1100, 0x1104, 0x1104,
	}, addrs)
}

func TestSSRConfigReadback(t *testing.T) {
	var s SSRState
	s.Configure(SSRIdxCfg, 2|3<<8|1<<16)
	assert.Equal(t, uint32(4), s.IdxSize)
	assert.Equal(t, uint32(3), s.IdxShift)
	assert.True(t, s.Indirect)
	assert.Equal(t, uint32(2|3<<8|1<<16), s.ReadCfg(SSRIdxCfg))

	s.Configure(SSRWptr0+2, 0x2000)
	st := s.ReadCfg(SSRStatus)
	assert.Equal(t, uint32(0x2000), st&0x0fffffff)
	assert.Equal(t, uint32(1), st>>30&1)
	assert.Equal(t, uint32(2), st>>28&3)

	s.Configure(SSRStatus, 1<<31|0x3000)
	assert.True(t, s.Done)
	assert.Equal(t, uint32(0x3000), s.Ptr)
	assert.Zero(t, s.ReadCfg(20))
}

func TestSSRIndirectStream(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	g.Preload(tcdm0, 2)
	g.Preload(tcdm0+4, 0)
	preloadDoubles(g, tcdm0+0x40, 10, 11, 12)

	h.SSRConfigure(2, SSRIdxCfg, 2|3<<8|1<<16)
	h.SSRConfigure(2, SSRIdxBase, tcdm0+0x40)
	h.SSRConfigure(2, SSRBound0, 1)
	h.SSRConfigure(2, SSRStride0, 4)
	h.SSRConfigure(2, SSRRptr0, tcdm0)

	assert.Equal(t, 12.0, math.Float64frombits(h.SSRRead(2)))
	h.SSR[2].Accessed = 0
	assert.Equal(t, 10.0, math.Float64frombits(h.SSRRead(2)))
	assert.True(t, h.SSR[2].Done)
}

func TestSSRWriteStream(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	h.SSRConfigure(0, SSRBound0, 1)
	h.SSRConfigure(0, SSRStride0, 8)
	h.SSRConfigure(0, SSRWptr0, tcdm0+0x80)
	h.SSRWrite(0, math.Float64bits(1.5))
	h.SSRWrite(0, math.Float64bits(-2))
	assert.Equal(t, 1.5, math.Float64frombits(h.Load64(tcdm0+0x80)))
	assert.Equal(t, -2.0, math.Float64frombits(h.Load64(tcdm0+0x88)))
	assert.True(t, h.SSR[0].Done)
}

func TestDMA1D(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	for i := uint32(0); i < 4; i++ {
		g.Preload(dram+4*i, 0x100+i)
	}
	h.DMASrc(dram, 0)
	h.DMADst(tcdm0+0x80, 0)
	before := h.DMAStat(1)
	id := h.DMAStart(16, 0)
	assert.Equal(t, before, id)
	assert.Equal(t, id, h.DMAStat(0))
	assert.Equal(t, h.LoadBytes(dram, 16), h.LoadBytes(tcdm0+0x80, 16))
	assert.Zero(t, h.DMAStat(2))
}

func TestDMA2D(t *testing.T) {
	g := newTestGlobal(t)
	h := g.Clusters[0].Harts[0]
	for i := uint32(0); i < 8; i++ {
		g.Preload(tcdm0+4*i, i+1)
	}
	h.DMASrc(tcdm0, 0)
	h.DMADst(dram+0x100, 0)
	h.DMAStr(16, 32)
	h.DMARep(2)
	assert.Equal(t, uint32(1), h.DMAStart(8, DMAFlag2D))
	assert.Equal(t, []uint32{1, 2}, []uint32{h.Load(dram+0x100, 4), h.Load(dram+0x104, 4)})
	assert.Equal(t, []uint32{5, 6}, []uint32{h.Load(dram+0x120, 4), h.Load(dram+0x124, 4)})
	assert.Zero(t, h.Load(dram+0x108, 4))
}
