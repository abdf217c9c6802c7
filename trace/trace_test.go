package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStep() *Step {
	return &Step{
		Cycle: 12, Instret: 3, Hart: 1, PC: 0x80000008, Raw: 0x0002a383, Disasm: "lw t2,0(t0)",
		Accesses: []Access{
			{Kind: XRead, Reg: 5, Value: 0x100010},
			{Kind: ReadAddr, Value: 0x100010},
			{Kind: XWrite, Reg: 7, Value: 0xdeadbeef},
		},
	}
}

func TestLine(t *testing.T) {
	line := sampleStep().Line()
	want := "      12        3 0001 80000008  " +
		fmt.Sprintf("%-40s", "x5:00100010 RA:00100010 x7=deadbeef") + "  # DASM(0002a383)"
	assert.Equal(t, want, line)
	assert.NotContains(t, line, "lw t2")

	bare := (&Step{PC: 0x80000000, Raw: 0x00150513}).Line()
	assert.Equal(t, "       0        0 0000 80000000  "+strings.Repeat(" ", 40)+"  # DASM(00150513)", bare)
	assert.Equal(t, "f3=3ff0000000000000", Access{Kind: FWrite, Reg: 3, Value: 0x3ff0000000000000}.String())
	assert.Equal(t, "AMO:00100000", Access{Kind: AMOAddr, Value: 0x100000}.String())
}

func TestWriterJSONL(t *testing.T) {
	var text, js bytes.Buffer
	w := NewWriter(&text, NewJSONLTraceWriter(&js))
	require.NoError(t, w.Commit(sampleStep()))
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(1), w.Steps())
	assert.Equal(t, 1, strings.Count(text.String(), "\n"))

	want := `{"cycle":12,"instret":3,"hart":1,"pc":"80000008","raw":"0002a383","disasm":"lw t2,0(t0)",
	  "accesses":["x5:00100010","RA:00100010","x7=deadbeef"]}`
	opts := jsondiff.DefaultConsoleOptions()
	diff, desc := jsondiff.Compare(bytes.TrimSpace(js.Bytes()), []byte(want), &opts)
	assert.Equal(t, jsondiff.FullMatch, diff, desc)

	assert.ErrorIs(t, w.jsonl.WriteStep(sampleStep()), ErrTraceWriterClosed)
	assert.Equal(t, uint64(1), w.jsonl.Lines())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONLStickyError(t *testing.T) {
	jw := NewJSONLTraceWriter(failingWriter{})
	jw.out = bufio.NewWriterSize(failingWriter{}, 16)
	err := jw.WriteStep(sampleStep())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	// later writes fail with the same error even if they would fit the buffer
	assert.Equal(t, err, jw.WriteStep(&Step{}))
	assert.Zero(t, jw.Lines())
	assert.Equal(t, err, jw.Close())
}
