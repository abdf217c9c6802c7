package riscv

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/riscv64/riscv64asm"
)

var xRegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var fRegNames = [32]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

func XReg(r uint8) string { return xRegNames[r&0x1f] }
func FReg(r uint8) string { return fRegNames[r&0x1f] }

// hostDecodable reports whether the x/arch decoder understands the
// instruction with identical semantics on a 32-bit hart.
func hostDecodable(inst Instruction) bool {
	switch inst.Class() {
	case ClassInvalid, ClassFREP, ClassDMA, ClassSSR, ClassVec, ClassVecToInt:
		return false
	case ClassFP, ClassFPToInt, ClassIntToFP:
		return inst.Fmt == FmtS || inst.Fmt == FmtD
	case ClassFPLoad, ClassFPStore:
		return inst.Op == FLW || inst.Op == FLD || inst.Op == FSW || inst.Op == FSD
	}
	return true
}

// Disassemble renders an instruction in GNU assembler syntax. Standard
// encodings go through the x/arch RISC-V decoder; the accelerator
// extensions are formatted locally.
func Disassemble(inst Instruction) string {
	if inst.Op == ILLEGAL {
		return fmt.Sprintf("illegal %#08x", inst.Raw)
	}
	if hostDecodable(inst) && inst.Raw != 0 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], inst.Raw)
		if hi, err := riscv64asm.Decode(buf[:]); err == nil {
			return riscv64asm.GNUSyntax(hi)
		}
	}
	return formatInst(inst)
}

func formatInst(inst Instruction) string {
	m := inst.Mnemonic()
	x, f := XReg, FReg
	switch inst.Class() {
	case ClassALU:
		switch inst.Op {
		case LUI, AUIPC:
			return fmt.Sprintf("%s %s,%#x", m, x(inst.Rd), uint32(inst.Imm)>>12)
		case ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND:
			return fmt.Sprintf("%s %s,%s,%s", m, x(inst.Rd), x(inst.Rs1), x(inst.Rs2))
		}
		return fmt.Sprintf("%s %s,%s,%d", m, x(inst.Rd), x(inst.Rs1), inst.Imm)
	case ClassMul:
		return fmt.Sprintf("%s %s,%s,%s", m, x(inst.Rd), x(inst.Rs1), x(inst.Rs2))
	case ClassBranch:
		return fmt.Sprintf("%s %s,%s,%d", m, x(inst.Rs1), x(inst.Rs2), inst.Imm)
	case ClassJump:
		if inst.Op == JAL {
			return fmt.Sprintf("%s %s,%d", m, x(inst.Rd), inst.Imm)
		}
		return fmt.Sprintf("%s %s,%d(%s)", m, x(inst.Rd), inst.Imm, x(inst.Rs1))
	case ClassLoad:
		return fmt.Sprintf("%s %s,%d(%s)", m, x(inst.Rd), inst.Imm, x(inst.Rs1))
	case ClassStore:
		return fmt.Sprintf("%s %s,%d(%s)", m, x(inst.Rs2), inst.Imm, x(inst.Rs1))
	case ClassFPLoad:
		return fmt.Sprintf("%s %s,%d(%s)", m, f(inst.Rd), inst.Imm, x(inst.Rs1))
	case ClassFPStore:
		return fmt.Sprintf("%s %s,%d(%s)", m, f(inst.Rs2), inst.Imm, x(inst.Rs1))
	case ClassAMO:
		if inst.Op == LR_W {
			return fmt.Sprintf("%s %s,(%s)", m, x(inst.Rd), x(inst.Rs1))
		}
		return fmt.Sprintf("%s %s,%s,(%s)", m, x(inst.Rd), x(inst.Rs2), x(inst.Rs1))
	case ClassCSR:
		csr := CSRName(uint16(inst.Imm))
		if inst.Op >= CSRRWI {
			return fmt.Sprintf("%s %s,%s,%d", m, x(inst.Rd), csr, inst.Rs1)
		}
		return fmt.Sprintf("%s %s,%s,%s", m, x(inst.Rd), csr, x(inst.Rs1))
	case ClassSystem, ClassFence:
		return m
	case ClassFP:
		switch inst.Op {
		case FMADD, FMSUB, FNMSUB, FNMADD:
			return fmt.Sprintf("%s %s,%s,%s,%s", m, f(inst.Rd), f(inst.Rs1), f(inst.Rs2), f(inst.Rs3))
		case FSQRT, FCVT_FF:
			return fmt.Sprintf("%s %s,%s", m, f(inst.Rd), f(inst.Rs1))
		}
		return fmt.Sprintf("%s %s,%s,%s", m, f(inst.Rd), f(inst.Rs1), f(inst.Rs2))
	case ClassFPToInt:
		switch inst.Op {
		case FEQ, FLT, FLE:
			return fmt.Sprintf("%s %s,%s,%s", m, x(inst.Rd), f(inst.Rs1), f(inst.Rs2))
		}
		return fmt.Sprintf("%s %s,%s", m, x(inst.Rd), f(inst.Rs1))
	case ClassIntToFP:
		return fmt.Sprintf("%s %s,%s", m, f(inst.Rd), x(inst.Rs1))
	case ClassVec:
		if inst.Op == VFSQRT || inst.Op == VFSUM {
			return fmt.Sprintf("%s %s,%s", m, f(inst.Rd), f(inst.Rs1))
		}
		return fmt.Sprintf("%s %s,%s,%s", m, f(inst.Rd), f(inst.Rs1), f(inst.Rs2))
	case ClassVecToInt:
		return fmt.Sprintf("%s %s,%s,%s", m, x(inst.Rd), f(inst.Rs1), f(inst.Rs2))
	case ClassFREP:
		return fmt.Sprintf("%s %s,%d,%d,%#x", m, x(inst.Rs1), inst.MaxInst+1, inst.StaggerMax, inst.StaggerMask)
	case ClassDMA:
		switch inst.Op {
		case DMSRC, DMDST, DMSTR:
			return fmt.Sprintf("%s %s,%s", m, x(inst.Rs1), x(inst.Rs2))
		case DMREP:
			return fmt.Sprintf("%s %s", m, x(inst.Rs1))
		case DMCPYI:
			return fmt.Sprintf("%s %s,%s,%d", m, x(inst.Rd), x(inst.Rs1), inst.Imm)
		case DMCPY:
			return fmt.Sprintf("%s %s,%s,%s", m, x(inst.Rd), x(inst.Rs1), x(inst.Rs2))
		case DMSTATI:
			return fmt.Sprintf("%s %s,%d", m, x(inst.Rd), inst.Imm)
		case DMSTAT:
			return fmt.Sprintf("%s %s,%s", m, x(inst.Rd), x(inst.Rs2))
		}
	case ClassSSR:
		switch inst.Op {
		case SCFGRI:
			return fmt.Sprintf("%s %s,%d", m, x(inst.Rd), inst.Imm)
		case SCFGWI:
			return fmt.Sprintf("%s %s,%d", m, x(inst.Rs1), inst.Imm)
		case SCFGR:
			return fmt.Sprintf("%s %s,%s", m, x(inst.Rd), x(inst.Rs2))
		case SCFGW:
			return fmt.Sprintf("%s %s,%s", m, x(inst.Rs1), x(inst.Rs2))
		}
	}
	return strings.TrimSpace(m)
}
