package riscv

// format describes which fields of the word carry operands.
type format uint8

const (
	fmtNone format = iota
	fmtR
	fmtR2 // rd, rs1; rs2 is part of the opcode
	fmtR4
	fmtI
	fmtShift
	fmtS
	fmtB
	fmtU
	fmtJ
	fmtCSR
	fmtCSRI
	fmtAMO
	fmtLR
	fmtFREP
	fmtSSRRead  // rd, imm12
	fmtSSRWrite // rs1, imm12
	fmtDMAImm   // rd, rs1, imm5 in the rs2 field
	fmtRdImm5   // rd, imm5 in the rs2 field
	fmtRdRs2
	fmtRs1Rs2
	fmtRs1
)

type encFlags uint8

const (
	fFmt    encFlags = 1 << iota // fmt in bits 26:25
	fRm                          // rounding mode in bits 14:12
	fVec                         // replicate bit 14, vfmt in bits 13:12
	fSrcFmt                      // source fmt in bits 21:20
)

type encoding struct {
	op     Opcode
	match  uint32
	mask   uint32
	format format
	flags  encFlags
}

const (
	maskOpcode = 0x0000007f
	maskF3     = 0x0000707f
	maskF7F3   = 0xfe00707f
	maskF5     = 0xf800007f
	maskRs2    = 0x01f00000
	maskFull   = 0xffffffff
)

func rtype(op Opcode, opcode, f3, f7 uint32) encoding {
	return encoding{op, opcode | f3<<12 | f7<<25, maskF7F3, fmtR, 0}
}

func itype(op Opcode, opcode, f3 uint32, fm format) encoding {
	return encoding{op, opcode | f3<<12, maskF3, fm, 0}
}

func shift(op Opcode, f3, f7 uint32) encoding {
	return encoding{op, opOPIMM | f3<<12 | f7<<25, maskF7F3, fmtShift, 0}
}

func system(op Opcode, word uint32) encoding {
	return encoding{op, word, maskFull, fmtNone, 0}
}

func amo(op Opcode, f5 uint32) encoding {
	return encoding{op, opAMO | 2<<12 | f5<<27, maskF5 | 0x7000, fmtAMO, 0}
}

// fp builds an OP-FP entry. f3 < 0 leaves the funct3 field to the rounding
// mode; rs2 < 0 leaves rs2 as an operand.
func fp(op Opcode, f5 uint32, f3 int, rs2 int) encoding {
	e := encoding{op: op, match: opOPFP | f5<<27, mask: maskF5, format: fmtR, flags: fFmt}
	if f3 >= 0 {
		e.match |= uint32(f3) << 12
		e.mask |= 0x7000
	} else {
		e.flags |= fRm
	}
	if rs2 >= 0 {
		e.match |= uint32(rs2) << 20
		e.mask |= maskRs2
		e.format = fmtR2
	}
	return e
}

func fp4(op Opcode, opcode uint32) encoding {
	return encoding{op, opcode, maskOpcode, fmtR4, fFmt | fRm}
}

func custom(op Opcode, f7 uint32, fm format) encoding {
	return encoding{op, opXDMA | f7<<25, maskF7F3, fm, 0}
}

func vec(op Opcode, f5 uint32, fm format) encoding {
	return encoding{op, opXFVEC | (0x40|f5)<<25, 0xfe00007f, fm, fVec}
}

var encodings = []encoding{
	{LUI, opLUI, maskOpcode, fmtU, 0},
	{AUIPC, opAUIPC, maskOpcode, fmtU, 0},
	{JAL, opJAL, maskOpcode, fmtJ, 0},
	itype(JALR, opJALR, 0, fmtI),
	itype(BEQ, opBRANCH, 0, fmtB),
	itype(BNE, opBRANCH, 1, fmtB),
	itype(BLT, opBRANCH, 4, fmtB),
	itype(BGE, opBRANCH, 5, fmtB),
	itype(BLTU, opBRANCH, 6, fmtB),
	itype(BGEU, opBRANCH, 7, fmtB),
	itype(LB, opLOAD, 0, fmtI),
	itype(LH, opLOAD, 1, fmtI),
	itype(LW, opLOAD, 2, fmtI),
	itype(LBU, opLOAD, 4, fmtI),
	itype(LHU, opLOAD, 5, fmtI),
	itype(SB, opSTORE, 0, fmtS),
	itype(SH, opSTORE, 1, fmtS),
	itype(SW, opSTORE, 2, fmtS),
	itype(ADDI, opOPIMM, 0, fmtI),
	itype(SLTI, opOPIMM, 2, fmtI),
	itype(SLTIU, opOPIMM, 3, fmtI),
	itype(XORI, opOPIMM, 4, fmtI),
	itype(ORI, opOPIMM, 6, fmtI),
	itype(ANDI, opOPIMM, 7, fmtI),
	shift(SLLI, 1, 0x00),
	shift(SRLI, 5, 0x00),
	shift(SRAI, 5, 0x20),
	rtype(ADD, opOP, 0, 0x00),
	rtype(SUB, opOP, 0, 0x20),
	rtype(SLL, opOP, 1, 0x00),
	rtype(SLT, opOP, 2, 0x00),
	rtype(SLTU, opOP, 3, 0x00),
	rtype(XOR, opOP, 4, 0x00),
	rtype(SRL, opOP, 5, 0x00),
	rtype(SRA, opOP, 5, 0x20),
	rtype(OR, opOP, 6, 0x00),
	rtype(AND, opOP, 7, 0x00),
	itype(FENCE, opMISCMEM, 0, fmtNone),
	system(ECALL, 0x00000073),
	system(EBREAK, 0x00100073),
	system(MRET, 0x30200073),
	system(WFI, 0x10500073),
	itype(CSRRW, opSYSTEM, 1, fmtCSR),
	itype(CSRRS, opSYSTEM, 2, fmtCSR),
	itype(CSRRC, opSYSTEM, 3, fmtCSR),
	itype(CSRRWI, opSYSTEM, 5, fmtCSRI),
	itype(CSRRSI, opSYSTEM, 6, fmtCSRI),
	itype(CSRRCI, opSYSTEM, 7, fmtCSRI),

	rtype(MUL, opOP, 0, 0x01),
	rtype(MULH, opOP, 1, 0x01),
	rtype(MULHSU, opOP, 2, 0x01),
	rtype(MULHU, opOP, 3, 0x01),
	rtype(DIV, opOP, 4, 0x01),
	rtype(DIVU, opOP, 5, 0x01),
	rtype(REM, opOP, 6, 0x01),
	rtype(REMU, opOP, 7, 0x01),

	{LR_W, opAMO | 2<<12 | 0x02<<27, maskF5 | 0x7000 | maskRs2, fmtLR, 0},
	amo(SC_W, 0x03),
	amo(AMOSWAP_W, 0x01),
	amo(AMOADD_W, 0x00),
	amo(AMOXOR_W, 0x04),
	amo(AMOAND_W, 0x0c),
	amo(AMOOR_W, 0x08),
	amo(AMOMIN_W, 0x10),
	amo(AMOMAX_W, 0x14),
	amo(AMOMINU_W, 0x18),
	amo(AMOMAXU_W, 0x1c),

	itype(FLB, opLOADFP, 0, fmtI),
	itype(FLH, opLOADFP, 1, fmtI),
	itype(FLW, opLOADFP, 2, fmtI),
	itype(FLD, opLOADFP, 3, fmtI),
	itype(FSB, opSTOREFP, 0, fmtS),
	itype(FSH, opSTOREFP, 1, fmtS),
	itype(FSW, opSTOREFP, 2, fmtS),
	itype(FSD, opSTOREFP, 3, fmtS),
	fp4(FMADD, opMADD),
	fp4(FMSUB, opMSUB),
	fp4(FNMSUB, opNMSUB),
	fp4(FNMADD, opNMADD),
	fp(FADD, 0x00, -1, -1),
	fp(FSUB, 0x01, -1, -1),
	fp(FMUL, 0x02, -1, -1),
	fp(FDIV, 0x03, -1, -1),
	fp(FSQRT, 0x0b, -1, 0),
	fp(FSGNJ, 0x04, 0, -1),
	fp(FSGNJN, 0x04, 1, -1),
	fp(FSGNJX, 0x04, 2, -1),
	fp(FMIN, 0x05, 0, -1),
	fp(FMAX, 0x05, 1, -1),
	{FCVT_FF, opOPFP | 0x08<<27, maskF5 | 0x01c00000, fmtR2, fFmt | fRm | fSrcFmt},
	fp(FCVT_W, 0x18, -1, 0),
	fp(FCVT_WU, 0x18, -1, 1),
	fp(FCVT_F_W, 0x1a, -1, 0),
	fp(FCVT_F_WU, 0x1a, -1, 1),
	fp(FMV_X, 0x1c, 0, 0),
	fp(FCLASS, 0x1c, 1, 0),
	fp(FMV_F_X, 0x1e, 0, 0),
	fp(FEQ, 0x14, 2, -1),
	fp(FLT, 0x14, 1, -1),
	fp(FLE, 0x14, 0, -1),

	{FREP, opXFREP, maskOpcode, fmtFREP, 0},
	custom(DMSRC, 0x00, fmtRs1Rs2),
	custom(DMDST, 0x01, fmtRs1Rs2),
	custom(DMCPYI, 0x02, fmtDMAImm),
	custom(DMCPY, 0x03, fmtR),
	custom(DMSTATI, 0x04, fmtRdImm5),
	custom(DMSTAT, 0x05, fmtRdRs2),
	custom(DMSTR, 0x06, fmtRs1Rs2),
	custom(DMREP, 0x07, fmtRs1),
	custom(SCFGR, 0x0a, fmtRdRs2),
	custom(SCFGW, 0x0b, fmtRs1Rs2),
	{SCFGRI, opXSSR | 1<<12, maskF3, fmtSSRRead, 0},
	{SCFGWI, opXSSR | 2<<12, maskF3, fmtSSRWrite, 0},

	vec(VFADD, 1, fmtR),
	vec(VFSUB, 2, fmtR),
	vec(VFMUL, 3, fmtR),
	vec(VFDIV, 4, fmtR),
	vec(VFMIN, 5, fmtR),
	vec(VFMAX, 6, fmtR),
	vec(VFSQRT, 7, fmtR2),
	vec(VFMAC, 8, fmtR),
	vec(VFMRE, 9, fmtR),
	vec(VFSGNJ, 10, fmtR),
	vec(VFSGNJN, 11, fmtR),
	vec(VFSGNJX, 12, fmtR),
	vec(VFEQ, 13, fmtR),
	vec(VFLT, 14, fmtR),
	vec(VFLE, 15, fmtR),
	vec(VFCPKA, 16, fmtR),
	vec(VFCPKB, 17, fmtR),
	vec(VFSUM, 18, fmtR2),
	vec(VFDOTPEX, 19, fmtR),
}

var (
	decodeTable [majorCount][]*encoding
	encodeTable = map[Opcode]*encoding{}
)

func init() {
	for k := range encodings {
		e := &encodings[k]
		major := e.match & maskOpcode
		decodeTable[major] = append(decodeTable[major], e)
		encodeTable[e.op] = e
	}
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Decode turns a 32-bit word into an Instruction. Unknown encodings yield
// an ILLEGAL instruction carrying the raw word.
func Decode(word uint32) Instruction {
	for _, e := range decodeTable[word&maskOpcode] {
		if word&e.mask == e.match {
			return e.decode(word)
		}
	}
	return Instruction{Op: ILLEGAL, Raw: word}
}

func (e *encoding) decode(w uint32) Instruction {
	inst := Instruction{Op: e.op, Raw: w}
	rd := uint8(w >> 7 & 0x1f)
	rs1 := uint8(w >> 15 & 0x1f)
	rs2 := uint8(w >> 20 & 0x1f)
	switch e.format {
	case fmtR:
		inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
	case fmtR2:
		inst.Rd, inst.Rs1 = rd, rs1
	case fmtR4:
		inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3 = rd, rs1, rs2, uint8(w>>27)
	case fmtI:
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = signExtend(w>>20, 12)
	case fmtShift:
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = int32(rs2)
	case fmtS:
		inst.Rs1, inst.Rs2 = rs1, rs2
		inst.Imm = signExtend(w>>25<<5|w>>7&0x1f, 12)
	case fmtB:
		inst.Rs1, inst.Rs2 = rs1, rs2
		imm := (w>>31&1)<<12 | (w>>7&1)<<11 | (w>>25&0x3f)<<5 | (w>>8&0xf)<<1
		inst.Imm = signExtend(imm, 13)
	case fmtU:
		inst.Rd = rd
		inst.Imm = int32(w & 0xfffff000)
	case fmtJ:
		inst.Rd = rd
		imm := (w>>31&1)<<20 | (w>>12&0xff)<<12 | (w>>20&1)<<11 | (w>>21&0x3ff)<<1
		inst.Imm = signExtend(imm, 21)
	case fmtCSR:
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = int32(w >> 20)
	case fmtCSRI:
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = int32(w >> 20)
	case fmtAMO:
		inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
		inst.Aq, inst.Rl = w>>26&1 != 0, w>>25&1 != 0
	case fmtLR:
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Aq, inst.Rl = w>>26&1 != 0, w>>25&1 != 0
	case fmtFREP:
		inst.Rs1 = rs1
		inst.MaxInst = uint16(w >> 20)
		inst.StaggerMax = uint8(w >> 12 & 7)
		inst.StaggerMask = uint8(w >> 8 & 0xf)
		inst.IsOuter = w>>7&1 != 0
	case fmtSSRRead:
		inst.Rd = rd
		inst.Imm = int32(w >> 20)
	case fmtSSRWrite:
		inst.Rs1 = rs1
		inst.Imm = int32(w >> 20)
	case fmtDMAImm:
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = int32(rs2)
	case fmtRdImm5:
		inst.Rd = rd
		inst.Imm = int32(rs2)
	case fmtRdRs2:
		inst.Rd, inst.Rs2 = rd, rs2
	case fmtRs1Rs2:
		inst.Rs1, inst.Rs2 = rs1, rs2
	case fmtRs1:
		inst.Rs1 = rs1
	}
	if e.flags&fFmt != 0 {
		inst.Fmt = FPFormat(w >> 25 & 3)
	}
	if e.flags&fRm != 0 {
		inst.Rm = uint8(w >> 12 & 7)
	}
	if e.flags&fSrcFmt != 0 {
		inst.SrcFmt = FPFormat(w >> 20 & 3)
	}
	if e.flags&fVec != 0 {
		inst.Rep = w>>14&1 != 0
		inst.Vfmt = VecFormat(w >> 12 & 3)
		if inst.Vfmt == 1 {
			// vfmt 01 is reserved
			return Instruction{Op: ILLEGAL, Raw: w}
		}
	}
	return inst
}

// operandFields reports which 5-bit register fields op uses as operands.
func operandFields(op Opcode) (rd, rs1, rs2, rs3 bool) {
	e, ok := encodeTable[op]
	if !ok {
		return
	}
	switch e.format {
	case fmtR, fmtAMO:
		return true, true, true, false
	case fmtR2, fmtI, fmtShift, fmtCSR, fmtLR, fmtDMAImm:
		return true, true, false, false
	case fmtR4:
		return true, true, true, true
	case fmtS, fmtB, fmtRs1Rs2:
		return false, true, true, false
	case fmtU, fmtJ, fmtCSRI, fmtSSRRead, fmtRdImm5:
		return true, false, false, false
	case fmtRdRs2:
		return true, false, true, false
	case fmtSSRWrite, fmtRs1, fmtFREP:
		return false, true, false, false
	}
	return
}
