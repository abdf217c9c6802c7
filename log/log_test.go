package log

import (
	"encoding/json"
	"testing"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]int{"trace": int(LevelTrace), "INFO": int(LevelInfo), "warning": int(LevelWarn), "crit": int(LevelCrit)} {
		lvl, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, int(lvl))
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestModuleFilteringAndRecording(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)
	SetDefault(NewLogger(gethlog.DiscardHandler()))
	RecordLogs()

	DisableModule(SSR)
	Debug(SSR, "hidden")
	EnableModule(SSR)
	Debug(SSR, "shown", "ptr", 4)
	DisableModule(SSR)
	Warn(Memory, "always")

	recs := RecordedLogs()
	require.Len(t, recs, 2)
	assert.Equal(t, "shown", recs[0].Message)
	assert.Equal(t, SSR, recs[0].Module)
	assert.Equal(t, "warn", recs[1].Level)
}

func TestStructuredFieldOrder(t *testing.T) {
	sl, err := NewStructured("hart_exit", "hart0", map[string]int{"instret": 3}, 12)
	require.NoError(t, err)
	b, err := json.Marshal(sl)
	require.NoError(t, err)
	s := string(b)
	assert.Regexp(t, `^\{"time":.*,"sender_id":"hart0","msg_type":"hart_exit","json_encoded":\{"instret":3\},"elapsed":12\}$`, s)
}

func TestStructuredRecorded(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)
	SetDefault(NewLogger(gethlog.DiscardHandler()))
	RecordLogs()

	Structured(Engine, "hart_exit", "hart1", struct{ Instret uint64 }{7}, 0)
	DisableModule(Engine)
	Structured(Engine, "hart_exit", "hart2", nil, 0)
	EnableModule(Engine)

	recs := RecordedLogs()
	require.Len(t, recs, 1)
	assert.Equal(t, "debug", recs[0].Level)
	assert.Contains(t, recs[0].Message, `"sender_id":"hart1"`)
	assert.Contains(t, recs[0].Message, `"json_encoded":{"Instret":7}`)
	assert.NotContains(t, recs[0].Message, "elapsed")
}
