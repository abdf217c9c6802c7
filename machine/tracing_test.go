package machine

import (
	"bytes"
	"testing"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/trace"
)

func TestTraceCommitText(t *testing.T) {
	var out bytes.Buffer
	tw := trace.NewWriter(&out, nil)
	g := newTestGlobal(t, WithTracer(tw))
	h := g.Clusters[0].Harts[0]
	h.TraceAccess(trace.XWrite, 10, 1)
	h.TraceCommit(dram, 0x00150513)
	require.NoError(t, tw.Close())
	assert.Contains(t, out.String(), "x10=00000001")
	assert.Contains(t, out.String(), "# DASM(00150513)")
	assert.Empty(t, h.steps)
}

func TestTraceCommitErrorLoggedOnce(t *testing.T) {
	prev := log.Root()
	defer log.SetDefault(prev)
	log.SetDefault(log.NewLogger(gethlog.DiscardHandler()))
	log.RecordLogs()

	jw := trace.NewJSONLTraceWriter(&bytes.Buffer{})
	require.NoError(t, jw.Close())
	g := newTestGlobal(t, WithTracer(trace.NewWriter(nil, jw)))
	h := g.Clusters[0].Harts[0]
	for i := 0; i < 3; i++ {
		h.TraceAccess(trace.ReadAddr, 0, tcdm0)
		h.TraceCommit(dram+uint32(4*i), 0x0002a383)
	}
	assert.Empty(t, h.steps)

	var failed []log.Record
	for _, r := range log.RecordedLogs() {
		if r.Message == "trace commit failed" {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, log.Runtime, failed[0].Module)
	assert.Equal(t, "error", failed[0].Level)
}
