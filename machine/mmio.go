package machine

import (
	"sync/atomic"

	"github.com/colorfulnotion/clustersim/log"
)

type mmioKind uint8

const (
	regTCDMStart mmioKind = iota
	regTCDMEnd
	regNrCores
	regScratch
	regWakeup
	regBarrier
	regBaseHartID
	regClusterNum
	regClusterID
	regUART
	regCLINT
	regClCLINTSet
	regClCLINTClear
)

type mmioReg struct {
	kind  mmioKind
	index int // clint: hart index
}

func (c *Cluster) mmioTable() map[uint32]mmioReg {
	cfg := c.Global.Config
	a := cfg.Address
	t := make(map[uint32]mmioReg)
	add := func(addr uint32, k mmioKind) {
		if addr != 0 {
			t[addr&^3] = mmioReg{kind: k}
		}
	}
	add(a.TCDMStart, regTCDMStart)
	add(a.TCDMEnd, regTCDMEnd)
	add(a.NrCores, regNrCores)
	add(a.ScratchReg, regScratch)
	add(a.WakeupReg, regWakeup)
	add(a.BarrierReg, regBarrier)
	add(a.ClusterBaseHartID, regBaseHartID)
	add(a.ClusterNum, regClusterNum)
	add(a.ClusterID, regClusterID)
	add(a.UART, regUART)
	if a.ClCLINT != 0 {
		add(a.ClCLINT, regClCLINTSet)
		add(a.ClCLINT+4, regClCLINTClear)
	}
	if a.CLINT != 0 {
		for i := 0; i < cfg.TotalHarts(); i++ {
			t[a.CLINT+4*uint32(i)] = mmioReg{kind: regCLINT, index: i}
		}
	}
	return t
}

func (c *Cluster) mmioLoad(h *Hart, r mmioReg) uint32 {
	cfg := c.Global.Config
	switch r.kind {
	case regTCDMStart:
		return c.Mem.TCDM.Start
	case regTCDMEnd:
		return c.Mem.TCDM.End
	case regNrCores:
		return uint32(cfg.NumCores)
	case regScratch:
		return c.Global.ExitCode.Load()
	case regBarrier:
		c.Barrier(h)
		return 0
	case regBaseHartID:
		return cfg.BaseHartID + uint32(c.ID*cfg.NumCores)
	case regClusterNum:
		return uint32(cfg.NumClusters)
	case regClusterID:
		return uint32(c.ID)
	case regCLINT:
		return c.Global.CLINT[r.index].Load()
	case regClCLINTSet, regClCLINTClear:
		return c.CLINT.Load()
	}
	return 0
}

func (c *Cluster) mmioStore(h *Hart, r mmioReg, value uint32) {
	g := c.Global
	switch r.kind {
	case regScratch:
		g.ExitCode.Store(value)
		log.Debug(log.Runtime, "exit code written", "hart", h.ID, "value", value)
	case regWakeup:
		g.Wake(h, value)
	case regUART:
		h.putchar(byte(value))
	case regCLINT:
		g.CLINT[r.index].Store(value & 1)
	case regClCLINTSet:
		c.CLINT.Or(value)
	case regClCLINTClear:
		c.CLINT.And(^value)
	}
}

// fetchMax raises a to at least v.
func fetchMax(a *atomic.Uint64, v uint64) {
	for {
		old := a.Load()
		if old >= v || a.CompareAndSwap(old, v) {
			return
		}
	}
}
