// Package translate lowers the executable sections of a RISC-V binary into
// a single IR function, execute_binary: one block per instruction address,
// a prolog branching to the entry point and one indirect-jump dispatch
// block.
package translate

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/config"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/program"
	"github.com/colorfulnotion/clustersim/riscv"
	"github.com/colorfulnotion/clustersim/simerrors"
)

// FuncName is the translated entry function run by every hart.
const FuncName = "execute_binary"

type Options struct {
	// Trace emits trace_access/trace_commit calls for every instruction.
	Trace bool
	// Latency replaces cycle++ with the register scoreboard model.
	Latency bool
}

// SectionStats describes one translated executable section.
type SectionStats struct {
	Name         string
	Addr         uint32
	Size         uint32
	Instructions int
	Illegal      int
	FrepBodies   int
}

type Stats struct {
	Sections     []SectionStats
	Instructions int
	Blocks       int
	Targets      int
	Mnemonics    map[string]int
	Elapsed      time.Duration
}

// Translator holds the per-cluster translation context. A Translator is
// used for one module.
type Translator struct {
	cfg      *config.Config
	cluster  int
	opts     Options
	mem      config.ClusterMemory
	fastTCDM bool
	nssr     int

	mod *ir.Module
	fn  *ir.Function
	b   *ir.Builder

	blocks   map[uint32]ir.BlockID
	keys     []uint32
	targets  []uint32
	escapes  map[uint32]ir.BlockID
	dispatch ir.BlockID
	locals   map[string]int
	frep     sequencer
	nsplit   int

	Stats Stats
}

func New(cfg *config.Config, cluster int, opts Options) *Translator {
	return &Translator{
		cfg:      cfg,
		cluster:  cluster,
		opts:     opts,
		mem:      cfg.Cluster(cluster),
		fastTCDM: !cfg.MMIOInTCDM(cluster),
		nssr:     cfg.SSR.NumDM,
		blocks:   make(map[uint32]ir.BlockID),
		escapes:  make(map[uint32]ir.BlockID),
		locals:   make(map[string]int),
		Stats:    Stats{Mnemonics: make(map[string]int)},
	}
}

// Translate links the runtime declarations into m and adds execute_binary
// for every executable section of bin.
func (t *Translator) Translate(m *ir.Module, bin *program.Binary) error {
	start := time.Now()
	if err := bin.Validate(); err != nil {
		return fmt.Errorf("translate cluster %d: %w", t.cluster, err)
	}
	if err := m.Link(machine.RuntimeModule()); err != nil {
		return fmt.Errorf("translate cluster %d: %w", t.cluster, err)
	}
	if m.FieldName == nil {
		m.FieldName = machine.FieldName
	}
	t.mod = m
	t.fn = m.NewFunction(FuncName)
	t.b = ir.NewBuilder(m, t.fn)

	exec := bin.ExecSections()
	entry := t.b.NewBlock("entry")
	t.allocateBlocks(bin, exec)
	t.targets = collectTargets(bin, exec)
	t.dispatch = t.b.NewBlock("dispatch")

	id, ok := t.blocks[bin.Entry]
	if !ok {
		return fmt.Errorf("entry %#08x: %w", bin.Entry, simerrors.ErrEntryNotMapped)
	}
	t.b.SetBlock(entry)
	t.b.Br(id)

	for _, s := range exec {
		if err := t.translateSection(s); err != nil {
			return err
		}
	}
	t.sealBlocks()
	t.emitDispatch()
	if err := t.b.Err(); err != nil {
		return fmt.Errorf("translate cluster %d: %w", t.cluster, err)
	}

	t.Stats.Blocks = len(t.fn.Blocks)
	t.Stats.Targets = len(t.targets)
	t.Stats.Elapsed = time.Since(start)
	log.Info(log.Translate, "translated binary", "cluster", t.cluster, "instructions", t.Stats.Instructions,
		"blocks", t.Stats.Blocks, "targets", t.Stats.Targets, "elapsed", t.Stats.Elapsed)
	return nil
}

// allocateBlocks creates one block per aligned instruction address of
// every executable section, plus each section's one-past-end address.
func (t *Translator) allocateBlocks(bin *program.Binary, exec []program.Section) {
	for _, s := range exec {
		for pc := s.Addr; pc+4 <= s.End(); pc += 4 {
			t.keys = append(t.keys, pc)
		}
		t.keys = append(t.keys, s.Addr+s.Size&^3)
	}
	slices.Sort(t.keys)
	t.keys = slices.Compact(t.keys)
	for _, pc := range t.keys {
		name := fmt.Sprintf("%08x", pc)
		if sym, ok := bin.SymbolAt(pc); ok {
			name += "." + sym
		}
		t.blocks[pc] = t.b.NewBlock(name)
	}
}

// collectTargets returns the statically predicted branch targets.
func collectTargets(bin *program.Binary, exec []program.Section) []uint32 {
	set := []uint32{bin.Entry}
	set = append(set, bin.FuncSymbols()...)
	for _, s := range exec {
		set = append(set, s.Addr)
		for pc := s.Addr; pc+4 <= s.End(); pc += 4 {
			inst := riscv.Decode(s.Word(pc))
			if target, ok := inst.BranchTarget(pc); ok {
				set = append(set, target)
			}
			if inst.IsLinkWrite() || inst.Class() == riscv.ClassBranch {
				set = append(set, pc+4)
			}
		}
	}
	slices.Sort(set)
	return slices.Compact(set)
}

// Targets returns the sorted target-address set.
func (t *Translator) Targets() []uint32 { return t.targets }

// IsTarget reports whether addr is a predicted branch target.
func (t *Translator) IsTarget(addr uint32) bool {
	_, ok := slices.BinarySearch(t.targets, addr)
	return ok
}

// Keys returns the sorted block addresses.
func (t *Translator) Keys() []uint32 { return t.keys }

func (t *Translator) translateSection(s program.Section) error {
	st := SectionStats{Name: s.Name, Addr: s.Addr, Size: s.Size}
	for pc := s.Addr; pc+4 <= s.End(); pc += 4 {
		inst := riscv.Decode(s.Word(pc))
		if err := t.admit(pc, inst); err != nil {
			return fmt.Errorf("section %s at %#08x (%s): %w", s.Name, pc, inst.Mnemonic(), err)
		}
		t.b.SetBlock(t.blocks[pc])
		if err := t.emit(pc, inst, false); err != nil {
			return fmt.Errorf("section %s at %#08x: %w", s.Name, pc, err)
		}
		if !t.b.Terminated() {
			t.b.Br(t.blocks[pc+4])
		}
		st.Instructions++
		if inst.Op == riscv.ILLEGAL {
			st.Illegal++
		} else {
			t.Stats.Mnemonics[inst.Mnemonic()]++
		}
		if t.frep.full() {
			if err := t.emitFrepBody(); err != nil {
				return fmt.Errorf("section %s at %#08x: %w", s.Name, pc, err)
			}
			st.FrepBodies++
		}
	}
	if t.frep.state == frepBuffering {
		at := t.frep.pc
		t.frep.reset()
		return fmt.Errorf("section %s, frep at %#08x: %w", s.Name, at, simerrors.ErrFrepUnterminated)
	}
	t.Stats.Sections = append(t.Stats.Sections, st)
	t.Stats.Instructions += st.Instructions
	log.Debug(log.Translate, "section translated", "section", s.Name, "addr", common.Hex32(s.Addr),
		"instructions", st.Instructions, "illegal", st.Illegal)
	return nil
}

// sealBlocks ends every block left without a terminator with an escape
// stanza.
func (t *Translator) sealBlocks() {
	for _, pc := range t.keys {
		blk := t.fn.Block(t.blocks[pc])
		if blk.Terminator() != nil {
			continue
		}
		t.b.SetBlock(blk.ID)
		t.b.Call("escape_abort", t.b.Const(ir.I32, uint64(pc)))
		t.b.Ret()
	}
}

// emitDispatch fills the indirect jump block: a switch over every block
// address falling through to illegal_branch.
func (t *Translator) emitDispatch() {
	illegal := t.b.NewBlock("illegal_branch")
	cases := make([]uint64, len(t.keys))
	dests := make([]ir.BlockID, len(t.keys))
	for i, pc := range t.keys {
		cases[i] = uint64(pc)
		dests[i] = t.blocks[pc]
	}
	t.b.SetBlock(t.dispatch)
	t.b.Switch(t.b.LocalLoad(t.scratch("target", ir.I32)), illegal, cases, dests)

	t.b.SetBlock(illegal)
	t.b.Call("illegal_branch", t.b.LoadState(ir.I32, fieldPC, 0), t.b.LocalLoad(t.scratch("target", ir.I32)))
	t.b.Ret()
}

// escape returns a block that aborts with an escape to pc, for direct
// jumps leaving the translated sections.
func (t *Translator) escape(pc uint32) ir.BlockID {
	if id, ok := t.blocks[pc]; ok {
		return id
	}
	if id, ok := t.escapes[pc]; ok {
		return id
	}
	cur := t.b.Block()
	id := t.b.NewBlock(fmt.Sprintf("escape.%08x", pc))
	t.b.SetBlock(id)
	t.b.Call("escape_abort", t.b.Const(ir.I32, uint64(pc)))
	t.b.Ret()
	t.b.SetBlock(cur)
	t.escapes[pc] = id
	return id
}

// scratch returns the function-wide local called name, allocating it on
// first use. Locals carry values across the blocks of one instruction.
func (t *Translator) scratch(name string, ty ir.Type) int {
	if l, ok := t.locals[name]; ok {
		return l
	}
	l := t.b.NewLocal(ty)
	t.locals[name] = l
	return l
}

// split creates an auxiliary block belonging to the instruction at pc.
func (t *Translator) split(pc uint32, tag string) ir.BlockID {
	t.nsplit++
	return t.b.NewBlock(fmt.Sprintf("%08x.%s%d", pc, tag, t.nsplit))
}
