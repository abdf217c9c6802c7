// Package ir is a small typed intermediate representation for translated
// code: functions made of basic blocks addressed by index, values that are
// block-local, runtime helpers declared by name, and explicit access to hart
// state fields.
package ir

import (
	"fmt"
)

type Type uint8

const (
	Void Type = iota
	I1
	I8
	I16
	I32
	I64
)

var typeNames = [...]string{"void", "i1", "i8", "i16", "i32", "i64"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Bits returns the width of t; Void is 0.
func (t Type) Bits() uint {
	switch t {
	case I1:
		return 1
	case I8:
		return 8
	case I16:
		return 16
	case I32:
		return 32
	case I64:
		return 64
	}
	return 0
}

// Mask keeps the low Bits() of a value.
func (t Type) Mask() uint64 {
	if t == I64 {
		return ^uint64(0)
	}
	return 1<<t.Bits() - 1
}

type Op uint8

const (
	OpConst Op = iota
	OpLoadState
	OpStoreState
	OpLocalLoad
	OpLocalStore
	OpAdd
	OpSub
	OpMul
	OpDivS
	OpDivU
	OpRemS
	OpRemU
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpICmp
	OpSelect
	OpZExt
	OpSExt
	OpTrunc
	OpCall
	OpTCDMLoad
	OpTCDMStore
	// terminators
	OpBr
	OpCondBr
	OpSwitch
	OpRet
)

var op_str = map[Op]string{
	OpConst:      "const",
	OpLoadState:  "load.state",
	OpStoreState: "store.state",
	OpLocalLoad:  "load.local",
	OpLocalStore: "store.local",
	OpAdd:        "add",
	OpSub:        "sub",
	OpMul:        "mul",
	OpDivS:       "sdiv",
	OpDivU:       "udiv",
	OpRemS:       "srem",
	OpRemU:       "urem",
	OpAnd:        "and",
	OpOr:         "or",
	OpXor:        "xor",
	OpShl:        "shl",
	OpLShr:       "lshr",
	OpAShr:       "ashr",
	OpICmp:       "icmp",
	OpSelect:     "select",
	OpZExt:       "zext",
	OpSExt:       "sext",
	OpTrunc:      "trunc",
	OpCall:       "call",
	OpTCDMLoad:   "load.tcdm",
	OpTCDMStore:  "store.tcdm",
	OpBr:         "br",
	OpCondBr:     "condbr",
	OpSwitch:     "switch",
	OpRet:        "ret",
}

func (op Op) String() string {
	if s, ok := op_str[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

func (op Op) IsTerminator() bool { return op >= OpBr }

// IsBinary reports whether op takes two operands of the result type.
func (op Op) IsBinary() bool { return op >= OpAdd && op <= OpAShr }

// HasSideEffects reports whether an instruction must be kept even when its
// result is unused.
func (op Op) HasSideEffects() bool {
	switch op {
	case OpStoreState, OpLocalStore, OpCall, OpTCDMStore:
		return true
	}
	return op.IsTerminator()
}

type Pred uint8

const (
	EQ Pred = iota
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
)

var predNames = [...]string{"eq", "ne", "ult", "ule", "ugt", "uge", "slt", "sle", "sgt", "sge"}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return fmt.Sprintf("pred(%d)", uint8(p))
}

type BlockID int

// NoBlock marks an unset target.
const NoBlock BlockID = -1

// Instr is both an instruction and the value it defines.
type Instr struct {
	ID     int
	Op     Op
	Type   Type
	Args   []*Instr
	Imm    uint64 // OpConst value
	Field  int    // state field for load.state/store.state
	Index  int    // element index within the field
	Local  int    // local slot for load.local/store.local
	Pred   Pred
	Callee string
	// Br: [dest]; CondBr: [then, else]; Switch: [default, case...]
	Targets []BlockID
	Cases   []uint64
}

// Value is the result of an instruction.
type Value = *Instr

// Block is a basic block. Dead blocks stay in place so that BlockIDs remain
// stable after unreachable code elimination.
type Block struct {
	ID     BlockID
	Name   string
	Instrs []*Instr
	Dead   bool
}

func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the blocks control may transfer to from b.
func (b *Block) Successors() []BlockID {
	if t := b.Terminator(); t != nil {
		return t.Targets
	}
	return nil
}

type Function struct {
	Name   string
	Blocks []*Block
	Locals []Type
	nextID int
}

func (f *Function) Block(id BlockID) *Block { return f.Blocks[id] }

// NumInstrs counts instructions in live blocks.
func (f *Function) NumInstrs() int {
	n := 0
	for _, b := range f.Blocks {
		if !b.Dead {
			n += len(b.Instrs)
		}
	}
	return n
}

// LiveBlocks counts blocks not marked dead.
func (f *Function) LiveBlocks() int {
	n := 0
	for _, b := range f.Blocks {
		if !b.Dead {
			n++
		}
	}
	return n
}

// Helper is the declared signature of a runtime function.
type Helper struct {
	Name   string
	Ret    Type
	Params []Type
}

type Module struct {
	Name    string
	Helpers map[string]*Helper
	order   []string
	Funcs   []*Function
	// FieldName names state fields in printed output; nil prints numbers.
	FieldName func(field int) string
}

func NewModule(name string) *Module {
	return &Module{Name: name, Helpers: make(map[string]*Helper)}
}

// Declare adds or replaces a helper declaration.
func (m *Module) Declare(name string, ret Type, params ...Type) *Helper {
	h := &Helper{Name: name, Ret: ret, Params: params}
	if _, ok := m.Helpers[name]; !ok {
		m.order = append(m.order, name)
	}
	m.Helpers[name] = h
	return h
}

// HelperNames returns helper names in declaration order.
func (m *Module) HelperNames() []string {
	return append([]string(nil), m.order...)
}

// Link copies the declarations of other into m. A helper declared in both
// with different signatures is an error.
func (m *Module) Link(other *Module) error {
	for _, name := range other.order {
		h := other.Helpers[name]
		if prev, ok := m.Helpers[name]; ok {
			if !sameSignature(prev, h) {
				return fmt.Errorf("link %s: helper %s redeclared with a different signature", other.Name, name)
			}
			continue
		}
		m.Declare(name, h.Ret, h.Params...)
	}
	m.Funcs = append(m.Funcs, other.Funcs...)
	return nil
}

func sameSignature(a, b *Helper) bool {
	if a.Ret != b.Ret || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

// NewFunction adds an empty function to the module.
func (m *Module) NewFunction(name string) *Function {
	f := &Function{Name: name}
	m.Funcs = append(m.Funcs, f)
	return f
}

func (m *Module) Func(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
