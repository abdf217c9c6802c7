package ir

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// WriteText prints m in a readable assembly-like form.
func WriteText(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "; module %s\n", m.Name)
	for _, name := range m.order {
		h := m.Helpers[name]
		params := make([]string, len(h.Params))
		for i, p := range h.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(bw, "declare %s @%s(%s)\n", h.Ret, h.Name, strings.Join(params, ", "))
	}
	for _, f := range m.Funcs {
		fmt.Fprintf(bw, "\ndefine void @%s() {\n", f.Name)
		for i, t := range f.Locals {
			fmt.Fprintf(bw, "  $%d = local %s\n", i, t)
		}
		for _, b := range f.Blocks {
			if b.Dead {
				continue
			}
			fmt.Fprintf(bw, "%s:\n", b.Name)
			for _, in := range b.Instrs {
				fmt.Fprintf(bw, "  %s\n", m.formatInstr(f, in))
			}
		}
		fmt.Fprintf(bw, "}\n")
	}
	return bw.Flush()
}

func (m *Module) String() string {
	var buf bytes.Buffer
	_ = WriteText(&buf, m)
	return buf.String()
}

func (m *Module) fieldName(field, index int) string {
	name := fmt.Sprintf("field%d", field)
	if m.FieldName != nil {
		name = m.FieldName(field)
	}
	return fmt.Sprintf("%s[%d]", name, index)
}

func operands(args []*Instr) string {
	s := make([]string, len(args))
	for i, a := range args {
		s[i] = fmt.Sprintf("%s %%%d", a.Type, a.ID)
	}
	return strings.Join(s, ", ")
}

func label(f *Function, id BlockID) string {
	if id < 0 || int(id) >= len(f.Blocks) {
		return fmt.Sprintf("%%invalid%d", id)
	}
	return "%" + f.Blocks[id].Name
}

func (m *Module) formatInstr(f *Function, in *Instr) string {
	def := fmt.Sprintf("%%%d = ", in.ID)
	switch in.Op {
	case OpConst:
		return fmt.Sprintf("%sconst %s %#x", def, in.Type, in.Imm)
	case OpLoadState:
		return fmt.Sprintf("%sload.state %s %s", def, in.Type, m.fieldName(in.Field, in.Index))
	case OpStoreState:
		return fmt.Sprintf("store.state %s, %s", m.fieldName(in.Field, in.Index), operands(in.Args))
	case OpLocalLoad:
		return fmt.Sprintf("%sload.local %s $%d", def, in.Type, in.Local)
	case OpLocalStore:
		return fmt.Sprintf("store.local $%d, %s", in.Local, operands(in.Args))
	case OpICmp:
		return fmt.Sprintf("%sicmp %s %s", def, in.Pred, operands(in.Args))
	case OpZExt, OpSExt, OpTrunc:
		return fmt.Sprintf("%s%s %s to %s", def, in.Op, operands(in.Args), in.Type)
	case OpCall:
		if in.Type == Void {
			def = ""
		}
		return fmt.Sprintf("%scall %s @%s(%s)", def, in.Type, in.Callee, operands(in.Args))
	case OpTCDMStore:
		return fmt.Sprintf("store.tcdm %s", operands(in.Args))
	case OpBr:
		return fmt.Sprintf("br label %s", label(f, in.Targets[0]))
	case OpCondBr:
		return fmt.Sprintf("br %s, label %s, label %s", operands(in.Args), label(f, in.Targets[0]), label(f, in.Targets[1]))
	case OpSwitch:
		var sb strings.Builder
		fmt.Fprintf(&sb, "switch %s, label %s [", operands(in.Args), label(f, in.Targets[0]))
		for i, c := range in.Cases {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%#x: %s", c, label(f, in.Targets[i+1]))
		}
		sb.WriteString("]")
		return sb.String()
	case OpRet:
		return "ret void"
	}
	return fmt.Sprintf("%s%s %s", def, in.Op, operands(in.Args))
}
