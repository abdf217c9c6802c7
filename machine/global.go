package machine

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/config"
	"github.com/colorfulnotion/clustersim/trace"
)

// Global is the state shared by every cluster of a run.
type Global struct {
	Config *config.Config

	mu  sync.Mutex
	mem map[uint32]uint32

	ExitCode atomic.Uint32
	HadError atomic.Bool
	NumSleep atomic.Int32
	WakeUp   []atomic.Uint64
	Sleeping []atomic.Bool
	CLINT    []atomic.Uint32
	Clusters []*Cluster

	uartMu sync.Mutex
	out    io.Writer
	color  bool

	// Tracer receives retired instructions when tracing is on.
	Tracer  *trace.Writer
	Latency bool

	SlowAccesses atomic.Uint64
	Retired      atomic.Uint64
	total        int
}

type Option func(*Global)

// WithOutput sends console output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(g *Global) {
		g.out = w
		g.color = common.IsTerminal(w)
	}
}

func WithTracer(t *trace.Writer) Option {
	return func(g *Global) { g.Tracer = t }
}

// WithLatency enables the per-access latency accounting of the cycle model.
func WithLatency(on bool) Option {
	return func(g *Global) { g.Latency = on }
}

// NewGlobal sizes every shared structure from cfg.
func NewGlobal(cfg *config.Config, opts ...Option) *Global {
	total := cfg.TotalHarts()
	g := &Global{
		Config:   cfg,
		mem:      make(map[uint32]uint32),
		WakeUp:   make([]atomic.Uint64, total),
		Sleeping: make([]atomic.Bool, total),
		CLINT:    make([]atomic.Uint32, total),
		out:      os.Stdout,
		color:    common.IsTerminal(os.Stdout),
		total:    total,
	}
	for _, o := range opts {
		o(g)
	}
	for i := 0; i < cfg.NumClusters; i++ {
		g.Clusters = append(g.Clusters, newCluster(g, i))
	}
	for _, c := range g.Clusters {
		c.linkWindows()
	}
	return g
}

// TotalHarts is the number of harts over all clusters.
func (g *Global) TotalHarts() int { return g.total }

// Preload writes a word of the binary image. Words inside a cluster's TCDM
// go to that cluster; everything else lands in the shared map.
func (g *Global) Preload(addr, word uint32) {
	addr &^= 3
	inTCDM := false
	for _, c := range g.Clusters {
		if c.Mem.TCDM.Contains(addr) {
			atomic.StoreUint32(&c.TCDM[(addr-c.Mem.TCDM.Start)/4], word)
			inTCDM = true
		}
	}
	if !inTCDM {
		g.mu.Lock()
		g.mem[addr] = word
		g.mu.Unlock()
	}
}

// ExitStatus maps the scratch register to a process status: the value
// shifted right by one when its low bit is set, 117 otherwise.
func (g *Global) ExitStatus() int {
	code := g.ExitCode.Load()
	if code&1 == 0 {
		return 117
	}
	return int(code >> 1)
}

func (g *Global) slowLoad(addr uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mem[addr]
}

func (g *Global) slowStore(addr, value, mask uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mem[addr] = g.mem[addr]&^mask | value&mask
}

// slowRMW applies f to the word at addr under the memory mutex.
func (g *Global) slowRMW(addr uint32, f func(old uint32) (uint32, bool)) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.mem[addr]
	if v, write := f(old); write {
		g.mem[addr] = v
	}
	return old
}
