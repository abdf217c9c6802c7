// Package performance collects translation and execution statistics of a
// run and renders them as a summary tree or an HTML chart page.
package performance

import (
	"sort"
	"time"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/jit"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/translate"
)

// ClusterStats contains the compile-side statistics of one cluster.
type ClusterStats struct {
	Cluster int `json:"cluster"`

	Translate translate.Stats `json:"translate"`
	Optimize  ir.Stats        `json:"optimize"`
	JIT       jit.Stats       `json:"jit"`

	TranslateTime time.Duration `json:"translate_time"`
	OptimizeTime  time.Duration `json:"optimize_time"`
	JITTime       time.Duration `json:"jit_time"`
}

// ExpansionRatio is the ratio of IR instructions after optimization
// to translated RISC-V instructions.
func (c *ClusterStats) ExpansionRatio() float64 {
	if c.Translate.Instructions == 0 {
		return 0
	}
	out := c.Optimize.InstrsOut
	if out == 0 {
		out = c.Optimize.InstrsIn
	}
	return float64(out) / float64(c.Translate.Instructions)
}

// HartStats is the final state of one hart.
type HartStats struct {
	ID      uint32 `json:"id"`
	Cluster int    `json:"cluster"`
	Core    int    `json:"core"`
	Instret uint64 `json:"instret"`
	Cycle   uint64 `json:"cycle"`
	Failed  bool   `json:"failed"`
}

// IPC is retired instructions per cycle, 0 when no cycle was counted.
func (h HartStats) IPC() float64 {
	if h.Cycle == 0 {
		return 0
	}
	return float64(h.Instret) / float64(h.Cycle)
}

// Report aggregates a whole run.
type Report struct {
	Binary   string          `json:"binary"`
	Clusters []*ClusterStats `json:"clusters"`
	Harts    []HartStats     `json:"harts"`

	RunTime    time.Duration `json:"run_time"`
	Retired    uint64        `json:"retired"`
	ExitStatus int           `json:"exit_status"`
}

// AddHarts records the state of every hart of g.
func (r *Report) AddHarts(g *machine.Global) {
	for _, c := range g.Clusters {
		for _, h := range c.Harts {
			r.Harts = append(r.Harts, HartStats{
				ID:      h.ID,
				Cluster: c.ID,
				Core:    h.Core,
				Instret: h.Instret,
				Cycle:   h.Cycle,
				Failed:  h.Err != nil,
			})
		}
	}
	r.Retired = g.Retired.Load()
}

// MIPS is millions of retired instructions per second of run time.
func (r *Report) MIPS() float64 {
	return common.MIPS(r.Retired, r.RunTime)
}

// CompileTime sums translation, optimization and JIT time over clusters.
func (r *Report) CompileTime() time.Duration {
	var d time.Duration
	for _, c := range r.Clusters {
		d += c.TranslateTime + c.OptimizeTime + c.JITTime
	}
	return d
}

// MnemonicCount is one row of the static instruction mix.
type MnemonicCount struct {
	Mnemonic string
	Count    int
}

// Mix merges the mnemonic histograms of all clusters, most frequent first
// and alphabetical among equals.
func (r *Report) Mix() []MnemonicCount {
	total := make(map[string]int)
	for _, c := range r.Clusters {
		for m, n := range c.Translate.Mnemonics {
			total[m] += n
		}
	}
	mix := make([]MnemonicCount, 0, len(total))
	for m, n := range total {
		mix = append(mix, MnemonicCount{m, n})
	}
	sort.Slice(mix, func(i, j int) bool {
		if mix[i].Count != mix[j].Count {
			return mix[i].Count > mix[j].Count
		}
		return mix[i].Mnemonic < mix[j].Mnemonic
	})
	return mix
}
