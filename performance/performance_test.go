package performance

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/translate"
)

func sampleReport() *Report {
	return &Report{
		Binary: "kernel.elf",
		Clusters: []*ClusterStats{
			{
				Cluster: 0,
				Translate: translate.Stats{
					Sections:     []translate.SectionStats{{Name: ".text", Addr: 0x80000000, Size: 64, Instructions: 16}},
					Instructions: 16,
					Blocks:       20,
					Mnemonics:    map[string]int{"addi": 6, "lw": 4, "fadd.d": 4, "wfi": 2},
				},
				Optimize:      ir.Stats{InstrsIn: 400, InstrsOut: 240, Iterations: 2},
				TranslateTime: 2 * time.Millisecond,
				OptimizeTime:  time.Millisecond,
			},
			{
				Cluster: 1,
				Translate: translate.Stats{
					Instructions: 4,
					Mnemonics:    map[string]int{"addi": 2, "wfi": 2},
				},
			},
		},
		Harts: []HartStats{
			{ID: 0, Instret: 100, Cycle: 200},
			{ID: 1, Cluster: 1, Instret: 50, Failed: true},
		},
		RunTime: 10 * time.Millisecond,
		Retired: 150,
	}
}

func TestMix(t *testing.T) {
	mix := sampleReport().Mix()
	require.Len(t, mix, 4)
	assert.Equal(t, MnemonicCount{"addi", 8}, mix[0])
	// equal counts sort by name
	assert.Equal(t, "fadd.d", mix[1].Mnemonic)
	assert.Equal(t, "lw", mix[2].Mnemonic)
	assert.Equal(t, "wfi", mix[3].Mnemonic)
}

func TestDerivedFigures(t *testing.T) {
	r := sampleReport()
	assert.InDelta(t, 0.015, r.MIPS(), 1e-9)
	assert.Equal(t, 3*time.Millisecond, r.CompileTime())
	assert.InDelta(t, 15.0, r.Clusters[0].ExpansionRatio(), 1e-9)
	assert.Zero(t, r.Clusters[1].ExpansionRatio())
	assert.InDelta(t, 0.5, r.Harts[0].IPC(), 1e-9)
	assert.Zero(t, r.Harts[1].IPC())
	assert.Zero(t, (&Report{}).MIPS())
}

func TestSummary(t *testing.T) {
	out := Summary(sampleReport()).String()
	assert.Contains(t, out, "kernel.elf")
	assert.Contains(t, out, "cluster 1")
	assert.Contains(t, out, ".text [0x80000000, 0x80000040) 16 instructions")
	assert.Contains(t, out, "optimize 400 -> 240 instrs")
	assert.Contains(t, out, "hart 1 core 1.0 instret 50 cycle 0 ipc 0.00 failed")

	dry := sampleReport()
	dry.Harts = nil
	assert.NotContains(t, Summary(dry).String(), "MIPS")
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(sampleReport(), &buf))
	html := buf.String()
	assert.Contains(t, html, "Static instruction mix")
	assert.Contains(t, html, "fadd.d")

	path := filepath.Join(t.TempDir(), "stats.html")
	require.NoError(t, WriteHTML(sampleReport(), path))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}
