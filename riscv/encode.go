package riscv

import (
	"fmt"
)

// Encode assembles an Instruction back into its 32-bit word.
func Encode(inst Instruction) (uint32, error) {
	e, ok := encodeTable[inst.Op]
	if !ok {
		return 0, fmt.Errorf("encode: no encoding for opcode %d", inst.Op)
	}
	w := e.match
	rd := uint32(inst.Rd&0x1f) << 7
	rs1 := uint32(inst.Rs1&0x1f) << 15
	rs2 := uint32(inst.Rs2&0x1f) << 20
	imm := uint32(inst.Imm)
	switch e.format {
	case fmtR, fmtAMO:
		w |= rd | rs1 | rs2
	case fmtR2, fmtLR:
		w |= rd | rs1
	case fmtR4:
		w |= rd | rs1 | rs2 | uint32(inst.Rs3&0x1f)<<27
	case fmtI:
		if inst.Imm < -2048 || inst.Imm > 2047 {
			return 0, fmt.Errorf("encode %s: immediate %d out of range", inst.Op, inst.Imm)
		}
		w |= rd | rs1 | (imm&0xfff)<<20
	case fmtShift:
		if inst.Imm < 0 || inst.Imm > 31 {
			return 0, fmt.Errorf("encode %s: shift amount %d out of range", inst.Op, inst.Imm)
		}
		w |= rd | rs1 | imm<<20
	case fmtS:
		if inst.Imm < -2048 || inst.Imm > 2047 {
			return 0, fmt.Errorf("encode %s: offset %d out of range", inst.Op, inst.Imm)
		}
		w |= rs1 | rs2 | (imm>>5&0x7f)<<25 | (imm&0x1f)<<7
	case fmtB:
		if inst.Imm&1 != 0 || inst.Imm < -4096 || inst.Imm > 4094 {
			return 0, fmt.Errorf("encode %s: branch offset %d out of range", inst.Op, inst.Imm)
		}
		w |= rs1 | rs2 | (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | (imm>>1&0xf)<<8 | (imm>>11&1)<<7
	case fmtU:
		if imm&0xfff != 0 {
			return 0, fmt.Errorf("encode %s: upper immediate %#x has low bits set", inst.Op, imm)
		}
		w |= rd | imm
	case fmtJ:
		if inst.Imm&1 != 0 || inst.Imm < -(1<<20) || inst.Imm >= 1<<20 {
			return 0, fmt.Errorf("encode %s: jump offset %d out of range", inst.Op, inst.Imm)
		}
		w |= rd | (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 | (imm>>12&0xff)<<12
	case fmtCSR, fmtCSRI:
		w |= rd | rs1 | (imm&0xfff)<<20
	case fmtFREP:
		if inst.MaxInst > 0xfff || inst.StaggerMax > 7 || inst.StaggerMask > 0xf {
			return 0, fmt.Errorf("encode frep: field out of range")
		}
		w |= rs1 | uint32(inst.MaxInst)<<20 | uint32(inst.StaggerMax)<<12 | uint32(inst.StaggerMask)<<8
		if inst.IsOuter {
			w |= 1 << 7
		}
	case fmtSSRRead:
		w |= rd | (imm&0xfff)<<20
	case fmtSSRWrite:
		w |= rs1 | (imm&0xfff)<<20
	case fmtDMAImm:
		w |= rd | rs1 | (imm&0x1f)<<20
	case fmtRdImm5:
		w |= rd | (imm&0x1f)<<20
	case fmtRdRs2:
		w |= rd | rs2
	case fmtRs1Rs2:
		w |= rs1 | rs2
	case fmtRs1:
		w |= rs1
	}
	if e.format == fmtAMO || e.format == fmtLR {
		if inst.Aq {
			w |= 1 << 26
		}
		if inst.Rl {
			w |= 1 << 25
		}
	}
	if e.flags&fFmt != 0 {
		w |= uint32(inst.Fmt&3) << 25
	}
	if e.flags&fRm != 0 {
		w |= uint32(inst.Rm&7) << 12
	}
	if e.flags&fSrcFmt != 0 {
		w |= uint32(inst.SrcFmt&3) << 20
	}
	if e.flags&fVec != 0 {
		if inst.Vfmt == 1 {
			return 0, fmt.Errorf("encode %s: reserved vector format", inst.Op)
		}
		w |= uint32(inst.Vfmt&3) << 12
		if inst.Rep {
			w |= 1 << 14
		}
	}
	return w, nil
}

// MustEncode is Encode for statically known instructions.
func MustEncode(inst Instruction) uint32 {
	w, err := Encode(inst)
	if err != nil {
		panic(err)
	}
	return w
}

// Instruction constructors used by the assembler and tests.

func R(op Opcode, rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}
}

func I(op Opcode, rd, rs1 uint8, imm int32) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm}
}

func S(op Opcode, rs1, rs2 uint8, imm int32) Instruction {
	return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}
}

func B(op Opcode, rs1, rs2 uint8, offset int32) Instruction {
	return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: offset}
}

func U(op Opcode, rd uint8, imm uint32) Instruction {
	return Instruction{Op: op, Rd: rd, Imm: int32(imm)}
}

func J(rd uint8, offset int32) Instruction {
	return Instruction{Op: JAL, Rd: rd, Imm: offset}
}

func CSR(op Opcode, rd uint8, csr uint16, rs1 uint8) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: int32(csr)}
}

func AMO(op Opcode, rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}
}

// FP builds a scalar floating-point instruction with dynamic rounding.
func FP(op Opcode, f FPFormat, rd, rs1, rs2 uint8) Instruction {
	inst := Instruction{Op: op, Fmt: f, Rd: rd, Rs1: rs1, Rs2: rs2, Rm: RmDYN}
	if e, ok := encodeTable[op]; ok && e.flags&fRm == 0 {
		inst.Rm = 0
	}
	if e, ok := encodeTable[op]; ok && e.format == fmtR2 {
		inst.Rs2 = 0
	}
	return inst
}

func FP4(op Opcode, f FPFormat, rd, rs1, rs2, rs3 uint8) Instruction {
	return Instruction{Op: op, Fmt: f, Rd: rd, Rs1: rs1, Rs2: rs2, Rs3: rs3, Rm: RmDYN}
}

func FCvt(dst, src FPFormat, rd, rs1 uint8) Instruction {
	return Instruction{Op: FCVT_FF, Fmt: dst, SrcFmt: src, Rd: rd, Rs1: rs1, Rm: RmDYN}
}

func Vec(op Opcode, v VecFormat, rep bool, rd, rs1, rs2 uint8) Instruction {
	inst := Instruction{Op: op, Vfmt: v, Rep: rep, Rd: rd, Rs1: rs1, Rs2: rs2}
	if e, ok := encodeTable[op]; ok && e.format == fmtR2 {
		inst.Rs2 = 0
	}
	return inst
}

// Frep builds an outer FREP: the following maxInst+1 instructions repeat
// x[rs1]+1 times.
func Frep(rs1 uint8, maxInst uint16, staggerMax, staggerMask uint8) Instruction {
	return Instruction{Op: FREP, Rs1: rs1, MaxInst: maxInst, StaggerMax: staggerMax, StaggerMask: staggerMask, IsOuter: true}
}

func ScfgRI(rd uint8, ssr uint8, reg uint8) Instruction {
	return Instruction{Op: SCFGRI, Rd: rd, Imm: int32(reg)<<5 | int32(ssr)}
}

func ScfgWI(rs1 uint8, ssr uint8, reg uint8) Instruction {
	return Instruction{Op: SCFGWI, Rs1: rs1, Imm: int32(reg)<<5 | int32(ssr)}
}

func Dma(op Opcode, rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}
}

func DmaImm(op Opcode, rd, rs1 uint8, imm uint8) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: int32(imm & 0x1f)}
}

func Sys(op Opcode) Instruction {
	return Instruction{Op: op}
}
