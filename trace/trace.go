// Package trace formats retired-instruction records as text lines and
// optionally mirrors them as JSON Lines.
package trace

import (
	"fmt"
	"strings"
)

type AccessKind uint8

const (
	ReadAddr AccessKind = iota
	WriteAddr
	AMOAddr
	XRead
	XWrite
	FRead
	FWrite
)

var kindNames = [...]string{"RA", "WA", "AMO", "x:", "x=", "f:", "f="}

func (k AccessKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind%d", uint8(k))
}

// Access is one register or memory access made by an instruction.
type Access struct {
	Kind  AccessKind
	Reg   uint8
	Value uint64
}

func (a Access) String() string {
	switch a.Kind {
	case ReadAddr, WriteAddr, AMOAddr:
		return fmt.Sprintf("%s:%08x", a.Kind, uint32(a.Value))
	case XRead:
		return fmt.Sprintf("x%d:%08x", a.Reg, uint32(a.Value))
	case XWrite:
		return fmt.Sprintf("x%d=%08x", a.Reg, uint32(a.Value))
	case FRead:
		return fmt.Sprintf("f%d:%016x", a.Reg, a.Value)
	case FWrite:
		return fmt.Sprintf("f%d=%016x", a.Reg, a.Value)
	}
	return a.Kind.String()
}

// Step is a retired instruction.
type Step struct {
	Cycle    uint64
	Instret  uint64
	Hart     uint32
	PC       uint32
	Raw      uint32
	Disasm   string
	Accesses []Access
}

// Line renders the text trace format. The raw word goes into a DASM(...)
// tag so an external disassembler can rewrite it in place; Disasm only
// travels in the JSONL copy.
func (s *Step) Line() string {
	acc := make([]string, len(s.Accesses))
	for i, a := range s.Accesses {
		acc[i] = a.String()
	}
	return fmt.Sprintf("%8d %8d %04d %08x  %-40s  # DASM(%08x)",
		s.Cycle, s.Instret, s.Hart, s.PC, strings.Join(acc, " "), s.Raw)
}
