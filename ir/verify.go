package ir

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/clustersim/simerrors"
)

const maxReported = 8

type verifier struct {
	m        *Module
	f        *Function
	problems []string
}

func (v *verifier) report(b *Block, in *Instr, format string, args ...any) {
	where := fmt.Sprintf("%s/%s", v.f.Name, b.Name)
	if in != nil {
		where += fmt.Sprintf(" %%%d (%s)", in.ID, in.Op)
	}
	v.problems = append(v.problems, where+": "+fmt.Sprintf(format, args...))
}

// Verify checks structural and type rules of every function in m.
func Verify(m *Module) error {
	var all []string
	for _, f := range m.Funcs {
		v := &verifier{m: m, f: f}
		v.function()
		all = append(all, v.problems...)
	}
	if len(all) == 0 {
		return nil
	}
	extra := ""
	if len(all) > maxReported {
		extra = fmt.Sprintf(" (and %d more)", len(all)-maxReported)
		all = all[:maxReported]
	}
	return fmt.Errorf("%s%s: %w", strings.Join(all, "; "), extra, simerrors.ErrVerifyFailed)
}

func (v *verifier) function() {
	if len(v.f.Blocks) == 0 {
		v.problems = append(v.problems, v.f.Name+": function has no blocks")
		return
	}
	if v.f.Blocks[0].Dead {
		v.problems = append(v.problems, v.f.Name+": entry block is dead")
	}
	for _, b := range v.f.Blocks {
		if !b.Dead {
			v.block(b)
		}
	}
}

func (v *verifier) block(b *Block) {
	if len(b.Instrs) == 0 || b.Terminator() == nil {
		v.report(b, nil, "block does not end in a terminator")
	}
	defined := make(map[*Instr]bool, len(b.Instrs))
	for i, in := range b.Instrs {
		if in.Op.IsTerminator() && i != len(b.Instrs)-1 {
			v.report(b, in, "terminator in the middle of a block")
		}
		for _, a := range in.Args {
			if a == nil {
				v.report(b, in, "nil operand")
				continue
			}
			if !defined[a] {
				v.report(b, in, "operand %%%d is not defined earlier in this block", a.ID)
			}
			if a.Type == Void {
				v.report(b, in, "operand %%%d has no value", a.ID)
			}
		}
		v.instr(b, in)
		defined[in] = true
	}
}

func (v *verifier) args(b *Block, in *Instr, n int) bool {
	if len(in.Args) != n {
		v.report(b, in, "want %d operands, have %d", n, len(in.Args))
		return false
	}
	for _, a := range in.Args {
		if a == nil {
			return false
		}
	}
	return true
}

func (v *verifier) target(b *Block, in *Instr, t BlockID) {
	if t < 0 || int(t) >= len(v.f.Blocks) {
		v.report(b, in, "target %d out of range", t)
		return
	}
	if v.f.Blocks[t].Dead {
		v.report(b, in, "target %s is dead", v.f.Blocks[t].Name)
	}
}

func (v *verifier) instr(b *Block, in *Instr) {
	switch {
	case in.Op == OpConst:
		if in.Type == Void || in.Imm&^in.Type.Mask() != 0 {
			v.report(b, in, "constant %#x does not fit %s", in.Imm, in.Type)
		}
	case in.Op == OpLoadState:
		if in.Type == Void || in.Type == I1 {
			v.report(b, in, "state load of type %s", in.Type)
		}
	case in.Op == OpStoreState:
		v.args(b, in, 1)
	case in.Op == OpLocalLoad || in.Op == OpLocalStore:
		if in.Local < 0 || in.Local >= len(v.f.Locals) {
			v.report(b, in, "local %d undefined", in.Local)
			return
		}
		if in.Op == OpLocalStore && v.args(b, in, 1) && in.Args[0].Type != v.f.Locals[in.Local] {
			v.report(b, in, "store of %s into %s local", in.Args[0].Type, v.f.Locals[in.Local])
		}
	case in.Op.IsBinary():
		if v.args(b, in, 2) && (in.Args[0].Type != in.Type || in.Args[1].Type != in.Type) {
			v.report(b, in, "operand types %s, %s for %s result", in.Args[0].Type, in.Args[1].Type, in.Type)
		}
	case in.Op == OpICmp:
		if v.args(b, in, 2) && in.Args[0].Type != in.Args[1].Type {
			v.report(b, in, "comparing %s with %s", in.Args[0].Type, in.Args[1].Type)
		}
	case in.Op == OpSelect:
		if v.args(b, in, 3) {
			if in.Args[0].Type != I1 {
				v.report(b, in, "condition of type %s", in.Args[0].Type)
			}
			if in.Args[1].Type != in.Type || in.Args[2].Type != in.Type {
				v.report(b, in, "select arms differ")
			}
		}
	case in.Op == OpZExt || in.Op == OpSExt:
		if v.args(b, in, 1) && in.Args[0].Type.Bits() >= in.Type.Bits() {
			v.report(b, in, "extension from %s to %s", in.Args[0].Type, in.Type)
		}
	case in.Op == OpTrunc:
		if v.args(b, in, 1) && in.Args[0].Type.Bits() <= in.Type.Bits() {
			v.report(b, in, "truncation from %s to %s", in.Args[0].Type, in.Type)
		}
	case in.Op == OpCall:
		h, ok := v.m.Helpers[in.Callee]
		if !ok {
			v.report(b, in, "undeclared helper %s", in.Callee)
			return
		}
		if len(in.Args) != len(h.Params) {
			v.report(b, in, "%s takes %d arguments, given %d", h.Name, len(h.Params), len(in.Args))
			return
		}
		for i, a := range in.Args {
			if a != nil && a.Type != h.Params[i] {
				v.report(b, in, "%s argument %d is %s, want %s", h.Name, i, a.Type, h.Params[i])
			}
		}
		if in.Type != h.Ret {
			v.report(b, in, "%s returns %s, call typed %s", h.Name, h.Ret, in.Type)
		}
	case in.Op == OpTCDMLoad:
		if v.args(b, in, 1) && in.Args[0].Type != I32 {
			v.report(b, in, "tcdm offset of type %s", in.Args[0].Type)
		}
	case in.Op == OpTCDMStore:
		if v.args(b, in, 3) {
			for _, a := range in.Args {
				if a.Type != I32 {
					v.report(b, in, "tcdm store operand of type %s", a.Type)
				}
			}
		}
	case in.Op == OpBr:
		if len(in.Targets) != 1 {
			v.report(b, in, "br with %d targets", len(in.Targets))
		}
		for _, t := range in.Targets {
			v.target(b, in, t)
		}
	case in.Op == OpCondBr:
		if v.args(b, in, 1) && in.Args[0].Type != I1 {
			v.report(b, in, "condition of type %s", in.Args[0].Type)
		}
		if len(in.Targets) != 2 {
			v.report(b, in, "condbr with %d targets", len(in.Targets))
		}
		for _, t := range in.Targets {
			v.target(b, in, t)
		}
	case in.Op == OpSwitch:
		v.args(b, in, 1)
		if len(in.Targets) != len(in.Cases)+1 {
			v.report(b, in, "switch with %d cases and %d targets", len(in.Cases), len(in.Targets))
		}
		seen := make(map[uint64]bool, len(in.Cases))
		for _, c := range in.Cases {
			if seen[c] {
				v.report(b, in, "duplicate case %#x", c)
			}
			seen[c] = true
		}
		for _, t := range in.Targets {
			v.target(b, in, t)
		}
	case in.Op == OpRet:
	default:
		v.report(b, in, "unknown op")
	}
}
