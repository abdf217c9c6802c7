package machine

import (
	"sync/atomic"

	"github.com/colorfulnotion/clustersim/config"
)

type window struct {
	start, end uint32
	cells      []uint32
}

func (w *window) contains(addr uint32) bool { return addr >= w.start && addr < w.end }

// Cluster owns a TCDM scratchpad shared by its cores.
type Cluster struct {
	ID     int
	Mem    config.ClusterMemory
	Global *Global
	// TCDM cells are accessed only through sync/atomic.
	TCDM []uint32
	// CLINT is the cluster-local pending mask, one bit per core.
	CLINT atomic.Uint32
	Harts []*Hart

	barrier      atomic.Uint64 // generation<<32 | arrivals
	barrierCycle atomic.Uint64
	active       atomic.Int32

	ext     []window
	bootrom []uint32
	mmio    map[uint32]mmioReg
}

func newCluster(g *Global, id int) *Cluster {
	mem := g.Config.Cluster(id)
	c := &Cluster{
		ID:     id,
		Mem:    mem,
		Global: g,
		TCDM:   make([]uint32, mem.TCDM.Size()/4),
	}
	c.active.Store(int32(g.Config.NumCores))
	c.bootrom = c.bootromTable(0)
	c.mmio = c.mmioTable()
	return c
}

func (c *Cluster) linkWindows() {
	for _, e := range c.Mem.ExtTCDM {
		remote := c.Global.Clusters[e.Cluster]
		c.ext = append(c.ext, window{
			start: e.Start,
			end:   e.Start + remote.Mem.TCDM.Size(),
			cells: remote.TCDM,
		})
	}
}

// AddHart creates core core of the cluster starting at entry.
func (c *Cluster) AddHart(core int, entry uint32) *Hart {
	h := NewHart(c, core, entry)
	c.Harts = append(c.Harts, h)
	if c.bootrom != nil {
		c.bootrom[0] = entry
	}
	return h
}

// bootromTable is the read-only descriptor a boot loader expects.
func (c *Cluster) bootromTable(entry uint32) []uint32 {
	if c.Mem.Bootrom == nil {
		return nil
	}
	cfg := c.Global.Config
	base := cfg.BaseHartID + uint32(c.ID*cfg.NumCores)
	t := []uint32{
		entry,
		uint32(cfg.NumCores),
		base,
		c.Mem.TCDM.Start,
		c.Mem.TCDM.Size(),
		0, // tcdm offset
		c.Mem.DRAM.Start,
		c.Mem.DRAM.End,
		uint32(cfg.NumClusters),
		1, // quadrants
		cfg.Address.CLINT,
	}
	words := int(c.Mem.Bootrom.Size() / 4)
	if words < len(t) {
		t = t[:words]
	}
	return t
}

// TCDMLoad reads the cell at byte offset off of the local TCDM.
func (c *Cluster) TCDMLoad(off uint32) uint32 {
	return atomic.LoadUint32(&c.TCDM[off/4])
}

// TCDMStore merges value under mask into the cell at byte offset off.
func (c *Cluster) TCDMStore(off, value, mask uint32) {
	storeCell(&c.TCDM[off/4], value, mask)
}

func storeCell(p *uint32, value, mask uint32) {
	if mask == ^uint32(0) {
		atomic.StoreUint32(p, value)
		return
	}
	for {
		old := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, old, old&^mask|value&mask) {
			return
		}
	}
}

// cell resolves addr to a local or remote TCDM cell.
func (c *Cluster) cell(addr uint32) *uint32 {
	if c.Mem.TCDM.Contains(addr) {
		return &c.TCDM[(addr-c.Mem.TCDM.Start)/4]
	}
	for i := range c.ext {
		if w := &c.ext[i]; w.contains(addr) {
			return &w.cells[(addr-w.start)/4]
		}
	}
	return nil
}
