// Package jit compiles IR modules into closure programs that run directly
// against machine.Hart state. Every instruction becomes one Go closure;
// blocks run their closures in order and their terminator picks the next
// block.
package jit

import (
	"fmt"
	"time"

	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/simerrors"
)

// maxArgs bounds helper arity; the widest runtime helper takes four.
const maxArgs = 8

// Options select how closures are generated.
type Options struct {
	// Generic turns specialisation off: state goes through
	// Hart.LoadField/StoreField, operands always come from value slots and
	// switches use a map.
	Generic bool
}

type frame struct {
	h      *machine.Hart
	vals   []uint64
	locals []uint64
	args   [maxArgs]uint64
}

type step func(fr *frame)

// term returns the next block or -1 to leave the function.
type term func(fr *frame) ir.BlockID

type block struct {
	steps []step
	// halt marks steps after which a halted hart leaves the function.
	halt []bool
	term term
}

// Func is a compiled IR function.
type Func struct {
	Name    string
	blocks  []block
	nvals   int
	nlocals int
}

// Program holds the compiled functions of a module.
type Program struct {
	funcs map[string]*Func
	Stats Stats
}

type Stats struct {
	Funcs    int
	Blocks   int
	Steps    int
	Helpers  int
	Elapsed  time.Duration
	Specials int // steps emitted through a specialised generator
}

// Compile binds every helper the module declares and compiles its
// functions.
func Compile(m *ir.Module, opts Options) (*Program, error) {
	start := time.Now()
	c := &compiler{opts: opts, helpers: make(map[string]machine.HelperFunc)}
	for _, name := range m.HelperNames() {
		decl := m.Helpers[name]
		h, ok := machine.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("bind %s: %w", name, simerrors.ErrUnknownHelper)
		}
		if !sameSignature(decl, h) {
			return nil, fmt.Errorf("bind %s: declared %s%v, runtime has %s%v: %w", name, decl.Ret, decl.Params, h.Ret, h.Params, simerrors.ErrJITFailed)
		}
		c.helpers[name] = h.Fn
	}
	p := &Program{funcs: make(map[string]*Func)}
	for _, fn := range m.Funcs {
		f, err := c.function(fn)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", fn.Name, err)
		}
		p.funcs[fn.Name] = f
		p.Stats.Funcs++
		p.Stats.Blocks += len(f.blocks)
		for _, b := range f.blocks {
			p.Stats.Steps += len(b.steps)
		}
	}
	p.Stats.Helpers = len(c.helpers)
	p.Stats.Specials = c.specials
	p.Stats.Elapsed = time.Since(start)
	log.Debug(log.JIT, "module compiled", "module", m.Name, "funcs", p.Stats.Funcs, "blocks", p.Stats.Blocks,
		"steps", p.Stats.Steps, "specialised", p.Stats.Specials, "elapsed", p.Stats.Elapsed)
	return p, nil
}

func sameSignature(d *ir.Helper, h machine.Helper) bool {
	if d.Ret != h.Ret || len(d.Params) != len(h.Params) {
		return false
	}
	for i := range d.Params {
		if d.Params[i] != h.Params[i] {
			return false
		}
	}
	return true
}

// Func returns the compiled function called name.
func (p *Program) Func(name string) (*Func, bool) {
	f, ok := p.funcs[name]
	return f, ok
}

// Run executes name on h until it returns or the hart halts. A panic inside
// translated code aborts the hart.
func (p *Program) Run(h *machine.Hart, name string) (err error) {
	f, ok := p.funcs[name]
	if !ok {
		return fmt.Errorf("run %s: no such function: %w", name, simerrors.ErrJITFailed)
	}
	defer func() {
		if r := recover(); r != nil {
			h.Abort(fmt.Errorf("%v: %w", r, simerrors.ErrJITFailed), h.PC)
			err = h.Err
		}
	}()
	f.Run(h)
	return h.Err
}

// Run executes f on h starting at its first block.
func (f *Func) Run(h *machine.Hart) {
	fr := &frame{
		h:      h,
		vals:   make([]uint64, f.nvals),
		locals: make([]uint64, f.nlocals),
	}
	var b ir.BlockID
	for b >= 0 {
		blk := &f.blocks[b]
		for i, s := range blk.steps {
			s(fr)
			if blk.halt[i] && h.Halted {
				return
			}
		}
		b = blk.term(fr)
	}
}
