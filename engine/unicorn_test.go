//go:build unicorn

package engine

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	. "github.com/colorfulnotion/clustersim/riscv"
)

var aluOps = []Opcode{ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND, MUL, MULH, MULHU, MULHSU, DIV, DIVU, REM, REMU}

var immOps = []Opcode{ADDI, SLTI, SLTIU, XORI, ORI, ANDI}

// randomProgram builds straight-line integer code with TCDM traffic. T5
// and T6 are left alone so the exit sequence does not disturb the
// comparison.
func randomProgram(r *rand.Rand, n int) []Instruction {
	reg := func() uint8 { return uint8(1 + r.Intn(29)) }
	insts := []Instruction{U(LUI, S0, tcdm)}
	for i := 0; i < n; i++ {
		rd := reg()
		if rd == S0 {
			rd = A0
		}
		switch r.Intn(5) {
		case 0:
			insts = append(insts, I(immOps[r.Intn(len(immOps))], rd, reg(), int32(r.Intn(4096)-2048)))
		case 1:
			insts = append(insts, I(SLLI+Opcode(r.Intn(3)), rd, reg(), int32(r.Intn(32))))
		case 2:
			insts = append(insts, S(SW, S0, reg(), int32(4*r.Intn(64))))
		case 3:
			ld := []Opcode{LW, LH, LHU, LB, LBU}[r.Intn(5)]
			insts = append(insts, I(ld, rd, S0, int32(4*r.Intn(64))))
		default:
			insts = append(insts, R(aluOps[r.Intn(len(aluOps))], rd, reg(), reg()))
		}
	}
	return insts
}

func runUnicorn(t *testing.T, code []uint32) [32]uint32 {
	t.Helper()
	mu, err := uc.NewUnicorn(uc.ARCH_RISCV, uc.MODE_RISCV32)
	require.NoError(t, err)
	defer mu.Close()
	require.NoError(t, mu.MemMap(base, 0x10000))
	require.NoError(t, mu.MemMap(tcdm, 0x10000))
	img := make([]byte, 4*len(code))
	for i, w := range code {
		binary.LittleEndian.PutUint32(img[4*i:], w)
	}
	require.NoError(t, mu.MemWrite(base, img))
	require.NoError(t, mu.Start(base, base+uint64(len(img))))
	var regs [32]uint32
	for i := 1; i < 32; i++ {
		v, err := mu.RegRead(uc.RISCV_REG_X0 + i)
		require.NoError(t, err)
		regs[i] = uint32(v)
	}
	return regs
}

func TestDifferentialUnicorn(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		insts := randomProgram(r, 200)
		a := NewAssembler(base)
		a.Emit(insts...)
		body, err := a.Words()
		require.NoError(t, err)
		want := runUnicorn(t, body)

		a.Exit(scratch, 0)
		e, _, err := execute(t, engineCfg(t, 1, 1), Options{}, assemble(t, a))
		require.NoError(t, err)
		h := e.Global.Clusters[0].Harts[0]
		for i := 1; i < int(T5); i++ {
			require.Equalf(t, want[i], h.X[i], "round %d x%d", round, i)
		}
	}
}
