package riscv

// Opcode identifies a decoded instruction. Floating-point opcodes are
// format-generic: the precision lives in Instruction.Fmt.
type Opcode uint16

const ILLEGAL Opcode = 0

// RV32I base integer instructions.
const (
	LUI Opcode = iota + 1
	AUIPC
	JAL
	JALR
	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU
	LB
	LH
	LW
	LBU
	LHU
	SB
	SH
	SW
	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	SLLI
	SRLI
	SRAI
	ADD
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND
	FENCE
	ECALL
	EBREAK
)

// Privileged and Zicsr.
const (
	MRET Opcode = iota + 50
	WFI
	CSRRW
	CSRRS
	CSRRC
	CSRRWI
	CSRRSI
	CSRRCI
)

// M extension.
const (
	MUL Opcode = iota + 70
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU
)

// A extension.
const (
	LR_W Opcode = iota + 80
	SC_W
	AMOSWAP_W
	AMOADD_W
	AMOXOR_W
	AMOAND_W
	AMOOR_W
	AMOMIN_W
	AMOMAX_W
	AMOMINU_W
	AMOMAXU_W
)

// Scalar floating point (F, D, half and byte formats).
const (
	FLB Opcode = iota + 100
	FLH
	FLW
	FLD
	FSB
	FSH
	FSW
	FSD
	FMADD
	FMSUB
	FNMSUB
	FNMADD
	FADD
	FSUB
	FMUL
	FDIV
	FSQRT
	FSGNJ
	FSGNJN
	FSGNJX
	FMIN
	FMAX
	FCVT_FF   // fcvt.<fmt>.<srcfmt>
	FCVT_W    // fcvt.w.<fmt>
	FCVT_WU   // fcvt.wu.<fmt>
	FCVT_F_W  // fcvt.<fmt>.w
	FCVT_F_WU // fcvt.<fmt>.wu
	FMV_X     // fmv.x.<fmt>
	FCLASS
	FMV_F_X // fmv.<fmt>.x
	FEQ
	FLT
	FLE
)

// Xfrep, Xdma, Xssr.
const (
	FREP Opcode = iota + 150
	DMSRC
	DMDST
	DMCPYI
	DMCPY
	DMSTATI
	DMSTAT
	DMSTR
	DMREP
	SCFGRI
	SCFGWI
	SCFGR
	SCFGW
)

// Xfvec packed SIMD flexfloat.
const (
	VFADD Opcode = iota + 170
	VFSUB
	VFMUL
	VFDIV
	VFMIN
	VFMAX
	VFSQRT
	VFMAC
	VFMRE
	VFSGNJ
	VFSGNJN
	VFSGNJX
	VFEQ
	VFLT
	VFLE
	VFCPKA
	VFCPKB
	VFSUM
	VFDOTPEX
)

// Major opcodes.
const (
	opLOAD     = 0x03
	opLOADFP   = 0x07
	opCUSTOM0  = 0x0B
	opMISCMEM  = 0x0F
	opOPIMM    = 0x13
	opAUIPC    = 0x17
	opSTORE    = 0x23
	opSTOREFP  = 0x27
	opCUSTOM1  = 0x2B
	opAMO      = 0x2F
	opOP       = 0x33
	opLUI      = 0x37
	opMADD     = 0x43
	opMSUB     = 0x47
	opNMSUB    = 0x4B
	opNMADD    = 0x4F
	opOPFP     = 0x53
	opBRANCH   = 0x63
	opJALR     = 0x67
	opJAL      = 0x6F
	opSYSTEM   = 0x73
	opXFREP    = opCUSTOM0
	opXDMA     = opCUSTOM1
	opXSSR     = opCUSTOM1
	opXFVEC    = opOP
	majorCount = 0x80
)

// Class groups opcodes by their architectural side effects.
type Class uint8

const (
	ClassInvalid Class = iota
	ClassALU
	ClassMul
	ClassBranch
	ClassJump
	ClassLoad
	ClassStore
	ClassAMO
	ClassFence
	ClassSystem
	ClassCSR
	ClassFPLoad
	ClassFPStore
	ClassFP      // writes a float register
	ClassFPToInt // FP operation writing an integer register
	ClassIntToFP
	ClassVec
	ClassVecToInt
	ClassFREP
	ClassDMA
	ClassSSR
)

var opcode_str = map[Opcode]string{
	ILLEGAL: "illegal",

	LUI: "lui", AUIPC: "auipc", JAL: "jal", JALR: "jalr",
	BEQ: "beq", BNE: "bne", BLT: "blt", BGE: "bge", BLTU: "bltu", BGEU: "bgeu",
	LB: "lb", LH: "lh", LW: "lw", LBU: "lbu", LHU: "lhu",
	SB: "sb", SH: "sh", SW: "sw",
	ADDI: "addi", SLTI: "slti", SLTIU: "sltiu", XORI: "xori", ORI: "ori", ANDI: "andi",
	SLLI: "slli", SRLI: "srli", SRAI: "srai",
	ADD: "add", SUB: "sub", SLL: "sll", SLT: "slt", SLTU: "sltu", XOR: "xor",
	SRL: "srl", SRA: "sra", OR: "or", AND: "and",
	FENCE: "fence", ECALL: "ecall", EBREAK: "ebreak",

	MRET: "mret", WFI: "wfi",
	CSRRW: "csrrw", CSRRS: "csrrs", CSRRC: "csrrc", CSRRWI: "csrrwi", CSRRSI: "csrrsi", CSRRCI: "csrrci",

	MUL: "mul", MULH: "mulh", MULHSU: "mulhsu", MULHU: "mulhu",
	DIV: "div", DIVU: "divu", REM: "rem", REMU: "remu",

	LR_W: "lr.w", SC_W: "sc.w", AMOSWAP_W: "amoswap.w", AMOADD_W: "amoadd.w",
	AMOXOR_W: "amoxor.w", AMOAND_W: "amoand.w", AMOOR_W: "amoor.w",
	AMOMIN_W: "amomin.w", AMOMAX_W: "amomax.w", AMOMINU_W: "amominu.w", AMOMAXU_W: "amomaxu.w",

	FLB: "flb", FLH: "flh", FLW: "flw", FLD: "fld",
	FSB: "fsb", FSH: "fsh", FSW: "fsw", FSD: "fsd",
	FMADD: "fmadd", FMSUB: "fmsub", FNMSUB: "fnmsub", FNMADD: "fnmadd",
	FADD: "fadd", FSUB: "fsub", FMUL: "fmul", FDIV: "fdiv", FSQRT: "fsqrt",
	FSGNJ: "fsgnj", FSGNJN: "fsgnjn", FSGNJX: "fsgnjx", FMIN: "fmin", FMAX: "fmax",
	FCVT_FF: "fcvt", FCVT_W: "fcvt.w", FCVT_WU: "fcvt.wu", FCVT_F_W: "fcvt", FCVT_F_WU: "fcvt",
	FMV_X: "fmv.x", FCLASS: "fclass", FMV_F_X: "fmv",
	FEQ: "feq", FLT: "flt", FLE: "fle",

	FREP:  "frep",
	DMSRC: "dmsrc", DMDST: "dmdst", DMCPYI: "dmcpyi", DMCPY: "dmcpy",
	DMSTATI: "dmstati", DMSTAT: "dmstat", DMSTR: "dmstr", DMREP: "dmrep",
	SCFGRI: "scfgri", SCFGWI: "scfgwi", SCFGR: "scfgr", SCFGW: "scfgw",

	VFADD: "vfadd", VFSUB: "vfsub", VFMUL: "vfmul", VFDIV: "vfdiv",
	VFMIN: "vfmin", VFMAX: "vfmax", VFSQRT: "vfsqrt", VFMAC: "vfmac", VFMRE: "vfmre",
	VFSGNJ: "vfsgnj", VFSGNJN: "vfsgnjn", VFSGNJX: "vfsgnjx",
	VFEQ: "vfeq", VFLT: "vflt", VFLE: "vfle",
	VFCPKA: "vfcpka", VFCPKB: "vfcpkb", VFSUM: "vfsum", VFDOTPEX: "vfdotpex",
}

// String returns the base mnemonic without any format suffix.
func (op Opcode) String() string {
	if s, ok := opcode_str[op]; ok {
		return s
	}
	return "unknown"
}

// OpcodeFromName looks up an opcode by its base mnemonic.
func OpcodeFromName(name string) (Opcode, bool) {
	for op, s := range opcode_str {
		if s == name && op != FCVT_F_W && op != FCVT_F_WU && op != FMV_F_X {
			return op, true
		}
	}
	return ILLEGAL, false
}

// ClassOf returns the side-effect class of op.
func ClassOf(op Opcode) Class {
	switch {
	case op == ILLEGAL:
		return ClassInvalid
	case op >= BEQ && op <= BGEU:
		return ClassBranch
	case op == JAL || op == JALR:
		return ClassJump
	case op >= LB && op <= LHU:
		return ClassLoad
	case op >= SB && op <= SW:
		return ClassStore
	case op == FENCE:
		return ClassFence
	case op == ECALL || op == EBREAK || op == MRET || op == WFI:
		return ClassSystem
	case op >= CSRRW && op <= CSRRCI:
		return ClassCSR
	case op >= LUI && op <= AND:
		return ClassALU
	case op >= MUL && op <= REMU:
		return ClassMul
	case op >= LR_W && op <= AMOMAXU_W:
		return ClassAMO
	case op >= FLB && op <= FLD:
		return ClassFPLoad
	case op >= FSB && op <= FSD:
		return ClassFPStore
	case op == FCVT_W || op == FCVT_WU || op == FMV_X || op == FCLASS || op == FEQ || op == FLT || op == FLE:
		return ClassFPToInt
	case op == FCVT_F_W || op == FCVT_F_WU || op == FMV_F_X:
		return ClassIntToFP
	case op >= FMADD && op <= FLE:
		return ClassFP
	case op == FREP:
		return ClassFREP
	case op >= DMSRC && op <= DMREP:
		return ClassDMA
	case op >= SCFGRI && op <= SCFGW:
		return ClassSSR
	case op == VFEQ || op == VFLT || op == VFLE:
		return ClassVecToInt
	case op >= VFADD && op <= VFDOTPEX:
		return ClassVec
	}
	return ClassInvalid
}

// IsFreppable reports whether op may appear in an FREP body: its only
// effects are register writes and plain memory accesses.
func IsFreppable(op Opcode) bool {
	switch ClassOf(op) {
	case ClassALU, ClassMul, ClassLoad, ClassStore, ClassFPLoad, ClassFPStore, ClassFP, ClassIntToFP, ClassVec:
		return true
	}
	return false
}
