package machine

import (
	"runtime"
	"time"

	"github.com/colorfulnotion/clustersim/log"
)

const maxBackoff = 100 * time.Microsecond

// backoff yields for the first spins and then sleeps with a growing delay.
func backoff(spin int) {
	if spin < 64 {
		runtime.Gosched()
		return
	}
	d := time.Duration(spin-63) * time.Microsecond
	if d > maxBackoff {
		d = maxBackoff
	}
	time.Sleep(d)
}

// Wake handles a write of the wake-up register: all harts for -1,
// otherwise the hart whose id is v.
func (g *Global) Wake(from *Hart, v uint32) {
	if v == ^uint32(0) {
		for i := 0; i < g.total; i++ {
			g.wakeOne(from, i)
		}
		return
	}
	i := int(v) - int(g.Config.BaseHartID)
	if i < 0 || i >= g.total {
		log.Warn(log.Runtime, "wake-up of unknown hart", "hart", from.ID, "target", v)
		return
	}
	g.wakeOne(from, i)
}

func (g *Global) wakeOne(from *Hart, i int) {
	fetchMax(&g.WakeUp[i], from.Cycle+1)
	if g.Sleeping[i].CompareAndSwap(true, false) {
		g.NumSleep.Add(-1)
	}
}

// takeWake consumes a pending wake-up and carries the waker's cycle over.
func (h *Hart) takeWake() bool {
	c := h.Global.WakeUp[h.Index].Swap(0)
	if c == 0 {
		return false
	}
	if h.Global.Latency && c > h.Cycle {
		h.Cycle = c
	}
	return true
}

// WaitForInterrupt blocks until the hart is woken, an enabled interrupt is
// pending, or every hart sleeps; in the last case the hart halts.
func (h *Hart) WaitForInterrupt() {
	g := h.Global
	if h.takeWake() {
		return
	}
	me := h.Index
	h.WFI = 1
	defer func() { h.WFI = 0 }()
	g.Sleeping[me].Store(true)
	g.NumSleep.Add(1)
	leave := func() {
		if g.Sleeping[me].CompareAndSwap(true, false) {
			g.NumSleep.Add(-1)
		}
	}
	for spin := 0; ; spin++ {
		if h.takeWake() {
			leave()
			return
		}
		if h.irqPending() != 0 {
			leave()
			return
		}
		if int(g.NumSleep.Load()) >= g.total {
			log.Debug(log.Runtime, "all harts asleep, leaving", "hart", h.ID, "instret", h.Instret)
			h.Halted = true
			return
		}
		backoff(spin)
	}
}

// Barrier blocks until every active core of the cluster has arrived. The
// latest arrival cycle becomes every participant's cycle.
func (c *Cluster) Barrier(h *Hart) {
	fetchMax(&c.barrierCycle, h.Cycle)
	v := c.barrier.Add(1)
	gen := v >> 32
	c.tryRelease(v)
	for spin := 0; c.barrier.Load()>>32 == gen; spin++ {
		if c.Global.HadError.Load() {
			return
		}
		c.tryRelease(c.barrier.Load())
		backoff(spin)
	}
	if cyc := c.barrierCycle.Load(); h.Global.Latency && cyc > h.Cycle {
		h.Cycle = cyc
	}
}

func (c *Cluster) tryRelease(v uint64) {
	arrived := int32(uint32(v))
	if arrived > 0 && arrived >= c.active.Load() {
		c.barrier.CompareAndSwap(v, (v>>32+1)<<32)
	}
}
