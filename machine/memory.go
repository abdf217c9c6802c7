package machine

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/log"
)

// SizeMask returns the byte-lane mask of a size-byte access at addr.
func SizeMask(addr, size uint32) uint32 {
	var m uint32
	switch size {
	case 1:
		m = 0xff
	case 2:
		m = 0xffff
	default:
		return ^uint32(0)
	}
	return m << (8 * (addr & 3))
}

// Load returns the aligned word containing addr. Decode order: named
// registers, local TCDM, remote TCDM windows, SSR configuration, bootrom,
// shared memory.
func (h *Hart) Load(addr, size uint32) uint32 {
	c := h.Cluster
	a := addr &^ 3
	if r, ok := c.mmio[a]; ok {
		return c.mmioLoad(h, r)
	}
	if p := c.cell(a); p != nil {
		return atomic.LoadUint32(p)
	}
	if ssr, word, ok := h.ssrWindow(a); ok {
		if a&4 != 0 {
			return 0
		}
		return h.SSRReadCfg(ssr, word)
	}
	if b := c.Mem.Bootrom; b != nil && b.Contains(a) {
		i := (a - b.Start) / 4
		if int(i) < len(c.bootrom) {
			return c.bootrom[i]
		}
		return 0
	}
	g := h.Global
	g.SlowAccesses.Add(1)
	v := g.slowLoad(a)
	log.Trace(log.Memory, "slow path load", "hart", h.ID, "addr", common.Hex32(addr), "size", size, "value", v)
	return v
}

// Store merges value under mask into the word containing addr.
func (h *Hart) Store(addr, value, mask, size uint32) {
	c := h.Cluster
	a := addr &^ 3
	if r, ok := c.mmio[a]; ok {
		c.mmioStore(h, r, value&mask)
		return
	}
	if p := c.cell(a); p != nil {
		storeCell(p, value, mask)
		return
	}
	if ssr, word, ok := h.ssrWindow(a); ok {
		if a&4 == 0 {
			h.SSRConfigure(ssr, word, value)
		}
		return
	}
	if b := c.Mem.Bootrom; b != nil && b.Contains(a) {
		return
	}
	g := h.Global
	g.SlowAccesses.Add(1)
	g.slowStore(a, value, mask)
	log.Trace(log.Memory, "slow path store", "hart", h.ID, "addr", common.Hex32(addr), "size", size, "value", value, "mask", common.Hex32(mask))
}

// Load64 reads two consecutive words, low word first.
func (h *Hart) Load64(addr uint32) uint64 {
	lo := h.Load(addr, 4)
	hi := h.Load(addr+4, 4)
	return uint64(hi)<<32 | uint64(lo)
}

func (h *Hart) Store64(addr uint32, v uint64) {
	h.Store(addr, uint32(v), ^uint32(0), 4)
	h.Store(addr+4, uint32(v>>32), ^uint32(0), 4)
}

// LoadBytes copies n bytes starting at addr, for dumps and tests.
func (h *Hart) LoadBytes(addr uint32, n int) []byte {
	out := make([]byte, 0, n+4)
	for a := addr &^ 3; len(out) < n+int(addr&3); a += 4 {
		out = binary.LittleEndian.AppendUint32(out, h.Load(a, 4))
	}
	return out[addr&3 : int(addr&3)+n]
}

func (h *Hart) ssrWindow(a uint32) (ssr int, word uint32, ok bool) {
	base := h.Global.Config.SSR.Base
	n := uint32(len(h.SSR))
	if a < base || a >= base+256*n {
		return 0, 0, false
	}
	off := a - base
	return int(off / 256), (off % 256) / 8, true
}
