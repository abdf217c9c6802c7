package performance

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// summaryMix is how many mnemonics the summary tree lists.
const summaryMix = 10

// Summary renders the report as a tree. Run statistics are omitted for a
// dry run.
func Summary(r *Report) treeprint.Tree {
	tree := treeprint.NewWithRoot(r.Binary)
	for _, c := range r.Clusters {
		br := tree.AddBranch(fmt.Sprintf("cluster %d", c.Cluster))
		tr := br.AddMetaBranch(c.TranslateTime, "translate")
		for _, s := range c.Translate.Sections {
			tr.AddNode(fmt.Sprintf("%s [%#08x, %#08x) %d instructions, %d illegal, %d frep",
				s.Name, s.Addr, s.Addr+s.Size, s.Instructions, s.Illegal, s.FrepBodies))
		}
		tr.AddNode(fmt.Sprintf("%d blocks, %d jump targets", c.Translate.Blocks, c.Translate.Targets))
		if c.Optimize.InstrsIn > 0 {
			br.AddMetaNode(c.OptimizeTime, fmt.Sprintf("optimize %d -> %d instrs in %d iterations",
				c.Optimize.InstrsIn, c.Optimize.InstrsOut, c.Optimize.Iterations))
		}
		if c.JIT.Steps > 0 {
			br.AddMetaNode(c.JITTime, fmt.Sprintf("jit %d blocks, %d steps, %d helpers",
				c.JIT.Blocks, c.JIT.Steps, c.JIT.Helpers))
		}
	}
	if mix := r.Mix(); len(mix) > 0 {
		mb := tree.AddBranch("mix")
		if len(mix) > summaryMix {
			mix = mix[:summaryMix]
		}
		for _, m := range mix {
			mb.AddMetaNode(m.Count, m.Mnemonic)
		}
	}
	if len(r.Harts) > 0 {
		rb := tree.AddMetaBranch(r.RunTime, fmt.Sprintf("run %d retired, %.2f MIPS, exit %d", r.Retired, r.MIPS(), r.ExitStatus))
		for _, h := range r.Harts {
			status := ""
			if h.Failed {
				status = " failed"
			}
			rb.AddNode(fmt.Sprintf("hart %d core %d.%d instret %d cycle %d ipc %.2f%s",
				h.ID, h.Cluster, h.Core, h.Instret, h.Cycle, h.IPC(), status))
		}
	}
	return tree
}
