package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colorfulnotion/clustersim/log"
)

// Options control the optimizer; they are set from -L arguments.
type Options struct {
	MaxFoldIterations int
	NoJumpThreading   bool
	NoDCE             bool
	NoStoreForwarding bool
	PrintAfterOpt     bool
}

func DefaultOptions() Options {
	return Options{MaxFoldIterations: 4}
}

// ParseOptions reads codegen arguments such as "max-fold-iterations=8" or
// "no-dce".
func ParseOptions(args []string) (Options, error) {
	o := DefaultOptions()
	for _, arg := range args {
		key, val, hasVal := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch key {
		case "max-fold-iterations":
			n, err := strconv.Atoi(val)
			if !hasVal || err != nil || n < 0 {
				return o, fmt.Errorf("codegen option %q: want a non-negative count", arg)
			}
			o.MaxFoldIterations = n
		case "no-jump-threading":
			o.NoJumpThreading = true
		case "no-dce":
			o.NoDCE = true
		case "no-store-forwarding":
			o.NoStoreForwarding = true
		case "print-after-opt":
			o.PrintAfterOpt = true
		default:
			return o, fmt.Errorf("unknown codegen option %q", arg)
		}
	}
	return o, nil
}

type Stats struct {
	Iterations  int
	Folded      int
	Forwarded   int
	DeadStores  int
	Removed     int
	Threaded    int
	Unreachable int
	InstrsIn    int
	InstrsOut   int
}

func (s *Stats) add(o Stats) {
	s.Iterations = max(s.Iterations, o.Iterations)
	s.Folded += o.Folded
	s.Forwarded += o.Forwarded
	s.DeadStores += o.DeadStores
	s.Removed += o.Removed
	s.Threaded += o.Threaded
	s.Unreachable += o.Unreachable
	s.InstrsIn += o.InstrsIn
	s.InstrsOut += o.InstrsOut
}

func (s Stats) changes() int {
	return s.Folded + s.Forwarded + s.DeadStores + s.Removed + s.Threaded + s.Unreachable
}

// Optimize rewrites every function of m in place.
func Optimize(m *Module, o Options) Stats {
	var total Stats
	for _, f := range m.Funcs {
		p := &pass{f: f, repl: make(map[*Instr]*Instr)}
		p.stats.InstrsIn = f.NumInstrs()
		for i := 0; i < o.MaxFoldIterations; i++ {
			before := p.stats.changes()
			p.fold()
			if !o.NoStoreForwarding {
				p.forward()
			}
			p.rewrite()
			if !o.NoDCE {
				p.deadStores()
				p.dce()
			}
			if !o.NoJumpThreading {
				p.thread()
			}
			p.unreachable()
			p.stats.Iterations = i + 1
			if p.stats.changes() == before {
				break
			}
		}
		p.stats.InstrsOut = f.NumInstrs()
		log.Debug(log.Opt, "optimized", "func", f.Name, "in", p.stats.InstrsIn, "out", p.stats.InstrsOut,
			"folded", p.stats.Folded, "forwarded", p.stats.Forwarded, "deadStores", p.stats.DeadStores,
			"threaded", p.stats.Threaded, "unreachable", p.stats.Unreachable)
		total.add(p.stats)
	}
	return total
}

type pass struct {
	f     *Function
	repl  map[*Instr]*Instr
	stats Stats
}

func (p *pass) resolve(v *Instr) *Instr {
	for {
		r, ok := p.repl[v]
		if !ok {
			return v
		}
		v = r
	}
}

func (p *pass) subst(in *Instr) {
	for i, a := range in.Args {
		in.Args[i] = p.resolve(a)
	}
}

// rewrite applies pending replacements to every operand.
func (p *pass) rewrite() {
	if len(p.repl) == 0 {
		return
	}
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		for _, in := range b.Instrs {
			p.subst(in)
		}
	}
	p.repl = make(map[*Instr]*Instr)
}

func isConst(v *Instr) bool { return v.Op == OpConst }

func toConst(in *Instr, v uint64) {
	in.Imm = v & in.Type.Mask()
	in.Op = OpConst
	in.Args = nil
}

func toBr(in *Instr, dest BlockID) {
	in.Op = OpBr
	in.Args = nil
	in.Cases = nil
	in.Targets = []BlockID{dest}
}

func (p *pass) fold() {
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		for _, in := range b.Instrs {
			p.subst(in)
			if p.foldInstr(in) {
				p.stats.Folded++
			}
		}
	}
}

func (p *pass) foldInstr(in *Instr) bool {
	switch {
	case in.Op.IsBinary():
		x, y := in.Args[0], in.Args[1]
		if isConst(x) && isConst(y) {
			toConst(in, EvalBinary(in.Op, in.Type, x.Imm, y.Imm))
			return true
		}
		if isConst(y) {
			switch {
			case y.Imm == 0 && (in.Op == OpAdd || in.Op == OpSub || in.Op == OpOr || in.Op == OpXor ||
				in.Op == OpShl || in.Op == OpLShr || in.Op == OpAShr):
				p.repl[in] = x
				return true
			case y.Imm == 0 && (in.Op == OpAnd || in.Op == OpMul):
				toConst(in, 0)
				return true
			case y.Imm == 1 && (in.Op == OpMul || in.Op == OpDivU):
				p.repl[in] = x
				return true
			case y.Imm == in.Type.Mask() && in.Op == OpAnd:
				p.repl[in] = x
				return true
			}
		}
		if isConst(x) && x.Imm == 0 && (in.Op == OpAdd || in.Op == OpOr || in.Op == OpXor) {
			p.repl[in] = y
			return true
		}
	case in.Op == OpICmp:
		x, y := in.Args[0], in.Args[1]
		if isConst(x) && isConst(y) {
			toConst(in, boolBit(EvalICmp(in.Pred, x.Type, x.Imm, y.Imm)))
			return true
		}
	case in.Op == OpSelect:
		c, x, y := in.Args[0], in.Args[1], in.Args[2]
		if isConst(c) {
			if c.Imm != 0 {
				p.repl[in] = x
			} else {
				p.repl[in] = y
			}
			return true
		}
		if x == y {
			p.repl[in] = x
			return true
		}
	case in.Op == OpZExt || in.Op == OpSExt || in.Op == OpTrunc:
		a := in.Args[0]
		if isConst(a) {
			toConst(in, EvalCast(in.Op, a.Type, in.Type, a.Imm))
			return true
		}
		if in.Op == OpTrunc && (a.Op == OpZExt || a.Op == OpSExt) && a.Args[0].Type == in.Type {
			p.repl[in] = a.Args[0]
			return true
		}
	case in.Op == OpCondBr:
		c := in.Args[0]
		if isConst(c) {
			if c.Imm != 0 {
				toBr(in, in.Targets[0])
			} else {
				toBr(in, in.Targets[1])
			}
			return true
		}
		if in.Targets[0] == in.Targets[1] {
			toBr(in, in.Targets[0])
			return true
		}
	case in.Op == OpSwitch:
		v := in.Args[0]
		if isConst(v) {
			dest := in.Targets[0]
			for i, c := range in.Cases {
				if c == v.Imm {
					dest = in.Targets[i+1]
					break
				}
			}
			toBr(in, dest)
			return true
		}
	}
	return false
}

type slotKey struct {
	local bool
	field int
	index int
}

func keyOf(in *Instr) slotKey {
	if in.Op == OpLocalLoad || in.Op == OpLocalStore {
		return slotKey{local: true, index: in.Local}
	}
	return slotKey{field: in.Field, index: in.Index}
}

// forward replaces loads of state fields and locals whose value is already
// known in the same block. Helper calls may change any state field but
// never touch locals.
func (p *pass) forward() {
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		known := make(map[slotKey]*Instr)
		for _, in := range b.Instrs {
			p.subst(in)
			switch in.Op {
			case OpLoadState, OpLocalLoad:
				k := keyOf(in)
				if v, ok := known[k]; ok && v.Type == in.Type {
					p.repl[in] = v
					p.stats.Forwarded++
					continue
				}
				known[k] = in
			case OpStoreState, OpLocalStore:
				known[keyOf(in)] = in.Args[0]
			case OpCall:
				for k := range known {
					if !k.local {
						delete(known, k)
					}
				}
			}
		}
	}
}

// deadStores drops stores overwritten later in the same block before any
// read. Helper calls count as reads of every state field.
func (p *pass) deadStores() {
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		over := make(map[slotKey]bool)
		keep := b.Instrs[:0:0]
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			in := b.Instrs[i]
			switch in.Op {
			case OpStoreState, OpLocalStore:
				k := keyOf(in)
				if over[k] {
					p.stats.DeadStores++
					continue
				}
				over[k] = true
			case OpLoadState, OpLocalLoad:
				delete(over, keyOf(in))
			case OpCall:
				for k := range over {
					if !k.local {
						delete(over, k)
					}
				}
			}
			keep = append(keep, in)
		}
		for l, r := 0, len(keep)-1; l < r; l, r = l+1, r-1 {
			keep[l], keep[r] = keep[r], keep[l]
		}
		b.Instrs = keep
	}
}

// dce removes instructions without side effects whose value is unused.
func (p *pass) dce() {
	uses := make(map[*Instr]int)
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				uses[a]++
			}
		}
	}
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		removed := make(map[*Instr]bool)
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			in := b.Instrs[i]
			if in.Op.HasSideEffects() || uses[in] > 0 {
				continue
			}
			removed[in] = true
			for _, a := range in.Args {
				uses[a]--
			}
		}
		if len(removed) == 0 {
			continue
		}
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if !removed[in] {
				kept = append(kept, in)
			}
		}
		b.Instrs = kept
		p.stats.Removed += len(removed)
	}
}

// trampoline returns the destination of a block that only branches.
func (p *pass) trampoline(id BlockID) (BlockID, bool) {
	b := p.f.Blocks[id]
	if len(b.Instrs) == 1 && b.Instrs[0].Op == OpBr {
		return b.Instrs[0].Targets[0], true
	}
	return id, false
}

func (p *pass) thread() {
	limit := len(p.f.Blocks)
	for _, b := range p.f.Blocks {
		if b.Dead {
			continue
		}
		t := b.Terminator()
		if t == nil {
			continue
		}
		for i, dest := range t.Targets {
			final := dest
			for hops := 0; hops < limit; hops++ {
				next, ok := p.trampoline(final)
				if !ok || next == final || next == b.ID {
					break
				}
				final = next
			}
			if final != dest {
				t.Targets[i] = final
				p.stats.Threaded++
			}
		}
		if t.Op == OpCondBr && t.Targets[0] == t.Targets[1] {
			toBr(t, t.Targets[0])
			p.stats.Folded++
		}
	}
}

func (p *pass) unreachable() {
	if len(p.f.Blocks) == 0 {
		return
	}
	seen := make([]bool, len(p.f.Blocks))
	work := []BlockID{0}
	seen[0] = true
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range p.f.Blocks[id].Successors() {
			if s >= 0 && int(s) < len(seen) && !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	for i, b := range p.f.Blocks {
		if !seen[i] && !b.Dead {
			b.Dead = true
			p.stats.Unreachable++
		}
	}
}
