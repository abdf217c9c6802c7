package riscv

import (
	"encoding/binary"
	"fmt"
)

// Integer register ABI numbers.
const (
	ZERO uint8 = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

type fixup struct {
	index int
	label string
}

// Assembler builds a flat program from instructions and labels. Branch and
// jal offsets referring to labels are resolved by Words.
type Assembler struct {
	base   uint32
	insts  []Instruction
	fixups []fixup
	labels map[string]uint32
}

func NewAssembler(base uint32) *Assembler {
	return &Assembler{base: base, labels: make(map[string]uint32)}
}

// PC returns the address of the next emitted instruction.
func (a *Assembler) PC() uint32 {
	return a.base + uint32(4*len(a.insts))
}

func (a *Assembler) Base() uint32 { return a.base }

func (a *Assembler) Label(name string) {
	a.labels[name] = a.PC()
}

func (a *Assembler) Emit(insts ...Instruction) *Assembler {
	a.insts = append(a.insts, insts...)
	return a
}

// Li loads a 32-bit constant using addi, or lui+addi.
func (a *Assembler) Li(rd uint8, v uint32) *Assembler {
	sv := int32(v)
	if sv >= -2048 && sv < 2048 {
		return a.Emit(I(ADDI, rd, ZERO, sv))
	}
	lo := signExtend(v&0xfff, 12)
	hi := v - uint32(lo)
	a.Emit(U(LUI, rd, hi))
	if lo != 0 {
		a.Emit(I(ADDI, rd, rd, lo))
	}
	return a
}

// Branch emits a conditional branch to label.
func (a *Assembler) Branch(op Opcode, rs1, rs2 uint8, label string) *Assembler {
	a.fixups = append(a.fixups, fixup{len(a.insts), label})
	return a.Emit(B(op, rs1, rs2, 0))
}

// Jal emits a jal to label.
func (a *Assembler) Jal(rd uint8, label string) *Assembler {
	a.fixups = append(a.fixups, fixup{len(a.insts), label})
	return a.Emit(J(rd, 0))
}

// Exit stores (code<<1)|1 into the scratch register and parks the hart.
func (a *Assembler) Exit(scratch uint32, code uint32) *Assembler {
	a.Li(T6, code<<1|1)
	a.Li(T5, scratch)
	a.Emit(S(SW, T5, T6, 0))
	return a.Emit(Sys(WFI))
}

// Words resolves labels and encodes the program.
func (a *Assembler) Words() ([]uint32, error) {
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("asm: undefined label %q", f.label)
		}
		pc := a.base + uint32(4*f.index)
		a.insts[f.index].Imm = int32(target - pc)
	}
	words := make([]uint32, len(a.insts))
	for k, inst := range a.insts {
		w, err := Encode(inst)
		if err != nil {
			return nil, fmt.Errorf("asm: instruction %d at %#x: %w", k, a.base+uint32(4*k), err)
		}
		words[k] = w
	}
	return words, nil
}

// Bytes returns the little-endian image of the program.
func (a *Assembler) Bytes() ([]byte, error) {
	words, err := a.Words()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4*len(words))
	for k, w := range words {
		binary.LittleEndian.PutUint32(out[4*k:], w)
	}
	return out, nil
}
