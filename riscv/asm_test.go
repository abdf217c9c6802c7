package riscv

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblerLabels(t *testing.T) {
	a := NewAssembler(0x80000000)
	a.Li(A0, 3)
	a.Label("loop")
	a.Emit(I(ADDI, A0, A0, -1))
	a.Branch(BNE, A0, ZERO, "loop")
	a.Jal(ZERO, "done")
	a.Emit(Sys(EBREAK))
	a.Label("done")
	a.Emit(Sys(WFI))

	words, err := a.Words()
	require.NoError(t, err)
	require.Len(t, words, 6)

	bne := Decode(words[2])
	assert.Equal(t, BNE, bne.Op)
	assert.Equal(t, int32(-4), bne.Imm)

	jal := Decode(words[3])
	assert.Equal(t, JAL, jal.Op)
	assert.Equal(t, int32(8), jal.Imm)
}

func TestAssemblerUndefinedLabel(t *testing.T) {
	a := NewAssembler(0)
	a.Jal(RA, "nowhere")
	_, err := a.Words()
	assert.Error(t, err)
}

func TestLiExpansion(t *testing.T) {
	for _, v := range []uint32{0, 1, 2047, 0xfffff800, 0x800, 0x12345678, 0xdeadbeef, 0x80000000, 0xffffffff} {
		a := NewAssembler(0)
		a.Li(T0, v)
		words, err := a.Words()
		require.NoError(t, err)

		// evaluate the sequence
		var reg uint32
		for _, w := range words {
			inst := Decode(w)
			switch inst.Op {
			case LUI:
				reg = uint32(inst.Imm)
			case ADDI:
				if inst.Rs1 == ZERO {
					reg = uint32(inst.Imm)
				} else {
					reg += uint32(inst.Imm)
				}
			default:
				t.Fatalf("unexpected %s", inst.Mnemonic())
			}
		}
		assert.Equal(t, v, reg, "li %#x", v)
	}
}

func TestAssemblerBytes(t *testing.T) {
	a := NewAssembler(0x1000)
	a.Emit(Sys(WFI))
	b, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x10500073), binary.LittleEndian.Uint32(b))
	assert.Equal(t, uint32(0x1004), a.PC())
}

func TestDisassembleExtensions(t *testing.T) {
	cases := map[string]Instruction{
		"frep.o t0,4,1,0x3":   Frep(T0, 3, 1, 3),
		"dmcpyi a0,a1,2":      DmaImm(DMCPYI, A0, A1, 2),
		"dmsrc a0,a1":         Dma(DMSRC, 0, A0, A1),
		"dmstati a0,2":        {Op: DMSTATI, Rd: A0, Imm: 2},
		"scfgwi a0,770":       ScfgWI(A0, 2, 24),
		"vfadd.h ft1,ft2,ft3": Vec(VFADD, VecH, false, 1, 2, 3),
		"vfeq.s a0,ft1,ft2":   Vec(VFEQ, VecS, false, A0, 1, 2),
		"fadd.b ft1,ft2,ft3":  FP(FADD, FmtB, 1, 2, 3),
	}
	for want, inst := range cases {
		inst = Decode(MustEncode(inst))
		assert.Equal(t, want, Disassemble(inst))
	}
	assert.Contains(t, Disassemble(Decode(0)), "illegal")
}
