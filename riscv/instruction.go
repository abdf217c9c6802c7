package riscv

import "fmt"

// FPFormat is the 2-bit fmt field of scalar floating-point instructions.
type FPFormat uint8

const (
	FmtS FPFormat = 0 // binary32
	FmtD FPFormat = 1 // binary64
	FmtH FPFormat = 2 // binary16, or bfloat16 when fpmode selects the alternate flavour
	FmtB FPFormat = 3 // 8-bit, e5m2 or e4m3 depending on fpmode
)

func (f FPFormat) Suffix() string {
	switch f {
	case FmtS:
		return "s"
	case FmtD:
		return "d"
	case FmtH:
		return "h"
	case FmtB:
		return "b"
	}
	return "?"
}

// Width returns the storage width in bits.
func (f FPFormat) Width() int {
	switch f {
	case FmtS:
		return 32
	case FmtD:
		return 64
	case FmtH:
		return 16
	case FmtB:
		return 8
	}
	return 0
}

// VecFormat is the 2-bit lane format of packed SIMD instructions.
type VecFormat uint8

const (
	VecS VecFormat = 0 // 2 x 32
	VecH VecFormat = 2 // 4 x 16
	VecB VecFormat = 3 // 8 x 8
)

// Lanes returns the number of lanes packed into a 64-bit register.
func (v VecFormat) Lanes() int {
	return 64 / v.Width()
}

func (v VecFormat) Width() int {
	switch v {
	case VecH:
		return 16
	case VecB:
		return 8
	}
	return 32
}

// Scalar returns the scalar format of a lane.
func (v VecFormat) Scalar() FPFormat {
	switch v {
	case VecH:
		return FmtH
	case VecB:
		return FmtB
	}
	return FmtS
}

func (v VecFormat) Suffix() string {
	return v.Scalar().Suffix()
}

// Rounding modes carried in the rm field.
const (
	RmRNE uint8 = 0
	RmRTZ uint8 = 1
	RmRDN uint8 = 2
	RmRUP uint8 = 3
	RmRMM uint8 = 4
	RmDYN uint8 = 7
)

// Instruction is a decoded 32-bit instruction word. Immediates are already
// sign-extended; for CSR instructions Imm holds the CSR address and for the
// immediate CSR forms Rs1 holds the 5-bit zero-extended operand.
type Instruction struct {
	Op     Opcode
	Raw    uint32
	Rd     uint8
	Rs1    uint8
	Rs2    uint8
	Rs3    uint8
	Imm    int32
	Rm     uint8
	Fmt    FPFormat
	SrcFmt FPFormat // fcvt.<fmt>.<srcfmt>
	Vfmt   VecFormat
	Rep    bool // packed SIMD: replicate lane 0 of rs2
	Aq     bool
	Rl     bool

	// FREP
	MaxInst     uint16
	StaggerMax  uint8
	StaggerMask uint8
	IsOuter     bool
}

// Class returns the side-effect class of the instruction.
func (i Instruction) Class() Class {
	return ClassOf(i.Op)
}

// Mnemonic returns the assembler mnemonic including format suffixes,
// e.g. "fadd.s", "fcvt.d.s", "vfadd.r.h".
func (i Instruction) Mnemonic() string {
	base := i.Op.String()
	switch i.Op {
	case FMADD, FMSUB, FNMSUB, FNMADD, FADD, FSUB, FMUL, FDIV, FSQRT,
		FSGNJ, FSGNJN, FSGNJX, FMIN, FMAX, FEQ, FLT, FLE, FCLASS:
		return base + "." + i.Fmt.Suffix()
	case FCVT_W, FCVT_WU:
		return base + "." + i.Fmt.Suffix()
	case FCVT_FF:
		return fmt.Sprintf("fcvt.%s.%s", i.Fmt.Suffix(), i.SrcFmt.Suffix())
	case FCVT_F_W:
		return fmt.Sprintf("fcvt.%s.w", i.Fmt.Suffix())
	case FCVT_F_WU:
		return fmt.Sprintf("fcvt.%s.wu", i.Fmt.Suffix())
	case FMV_X:
		if i.Fmt == FmtS {
			return "fmv.x.w"
		}
		return "fmv.x." + i.Fmt.Suffix()
	case FMV_F_X:
		if i.Fmt == FmtS {
			return "fmv.w.x"
		}
		return "fmv." + i.Fmt.Suffix() + ".x"
	case FREP:
		if i.IsOuter {
			return "frep.o"
		}
		return "frep.i"
	case VFCPKA, VFCPKB:
		return base + "." + i.Vfmt.Suffix() + ".s"
	case VFDOTPEX:
		return base + "." + wider(i.Vfmt.Scalar()).Suffix() + "." + i.Vfmt.Suffix()
	}
	if ClassOf(i.Op) == ClassVec || ClassOf(i.Op) == ClassVecToInt {
		if i.Rep {
			return base + ".r." + i.Vfmt.Suffix()
		}
		return base + "." + i.Vfmt.Suffix()
	}
	return base
}

func wider(f FPFormat) FPFormat {
	switch f {
	case FmtB:
		return FmtH
	case FmtH:
		return FmtS
	}
	return FmtD
}

// Wider returns the accumulation format of an expanding operation on f.
func Wider(f FPFormat) FPFormat { return wider(f) }

// RoundingMode resolves a dynamic rm field against the frm CSR.
func (i Instruction) RoundingMode(frm uint8) uint8 {
	if i.Rm == RmDYN {
		return frm & 7
	}
	return i.Rm
}

// IsLinkWrite reports whether a jump writes a link register.
func (i Instruction) IsLinkWrite() bool {
	return (i.Op == JAL || i.Op == JALR) && i.Rd != 0
}

// BranchTarget returns the static target of jal and conditional branches.
func (i Instruction) BranchTarget(pc uint32) (uint32, bool) {
	switch i.Class() {
	case ClassBranch:
		return pc + uint32(i.Imm), true
	case ClassJump:
		if i.Op == JAL {
			return pc + uint32(i.Imm), true
		}
	}
	return 0, false
}

// Stagger returns a copy of the instruction with the register fields
// selected by mask (bit 0 rd, bit 1 rs1, bit 2 rs2, bit 3 rs3) advanced by
// offset modulo 32, re-decoded from the rewritten word.
func (i Instruction) Stagger(mask uint8, offset uint8) Instruction {
	if offset == 0 || mask == 0 {
		return i
	}
	w := i.Raw
	rd, rs1, rs2, rs3 := operandFields(i.Op)
	bump := func(w uint32, lsb uint) uint32 {
		f := (w >> lsb) & 0x1f
		f = (f + uint32(offset)) & 0x1f
		return w&^(0x1f<<lsb) | f<<lsb
	}
	if mask&1 != 0 && rd {
		w = bump(w, 7)
	}
	if mask&2 != 0 && rs1 {
		w = bump(w, 15)
	}
	if mask&4 != 0 && rs2 {
		w = bump(w, 20)
	}
	if mask&8 != 0 && rs3 {
		w = bump(w, 27)
	}
	return Decode(w)
}

func (i Instruction) String() string {
	return Disassemble(i)
}
