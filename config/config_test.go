package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsLoad(t *testing.T) {
	for _, name := range Presets() {
		cfg, err := ReadConfig(name)
		require.NoError(t, err, name)
		assert.Equal(t, uint32(0x100000), cfg.Memory[0].TCDM.Start)
		assert.Equal(t, uint32(0x40000000), cfg.Address.ScratchReg)
		assert.Equal(t, uint32(0xffff0000), cfg.Address.CLINT)
		assert.Equal(t, 3, cfg.SSR.NumDM)
		assert.Equal(t, uint32(DefaultSSRBase), cfg.SSR.Base)
		assert.Equal(t, ScCompare, cfg.ScWithoutReservation)
		assert.False(t, cfg.MMIOInTCDM(0))
	}
	cfg, err := ReadConfig("snitch-2c")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.NumClusters)
	assert.Equal(t, 16, cfg.TotalHarts())
	assert.Equal(t, []ExtTCDM{{Cluster: 0, Start: 0x140000}}, cfg.Memory[1].ExtTCDM)
}

func TestLatencyLookup(t *testing.T) {
	cfg, err := ReadConfig("snitch")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cfg.Latency("fadd.d"))
	assert.Equal(t, uint32(DefaultLatency), cfg.Latency("addi"))
}

func TestJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.json")
	doc := `{"memory":[{"tcdm":{"start":4096,"end":8192}}],"address":{"scratch_reg":1073741824},"ssr":{"num_dm":2}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.NumCores)
	assert.Equal(t, 2, cfg.SSR.NumDM)
	assert.Equal(t, DefaultFrepMaxInst, cfg.Frep.MaxInst)
	assert.Equal(t, uint32(1), cfg.Memory[0].TCDM.Latency)
}

func TestExplicitZeroSSR(t *testing.T) {
	cfg, err := Parse([]byte("memory:\n  - tcdm: {start: 0x1000, end: 0x2000}\nssr: {num_dm: 0}\n"), "nossr.yaml")
	require.NoError(t, err)
	assert.Zero(t, cfg.SSR.NumDM)
	assert.Equal(t, uint32(DefaultSSRBase), cfg.SSR.Base)

	cfg, err = Parse([]byte(`{"memory":[{"tcdm":{"start":4096,"end":8192}}],"ssr":{"num_dm":0}}`), "nossr.json")
	require.NoError(t, err)
	assert.Zero(t, cfg.SSR.NumDM)

	cfg, err = Parse([]byte("memory:\n  - tcdm: {start: 0x1000, end: 0x2000}\nssr: {base: 0x204000}\n"), "base.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultNumSSR, cfg.SSR.NumDM)
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"reversed tcdm": "memory:\n  - tcdm: {start: 0x2000, end: 0x1000}\n",
		"too many ssr":  "memory:\n  - tcdm: {start: 0x1000, end: 0x2000}\nssr: {num_dm: 9}\n",
		"bad sc mode":   "memory:\n  - tcdm: {start: 0x1000, end: 0x2000}\nsc_without_reservation: maybe\n",
		"self ext":      "memory:\n  - tcdm: {start: 0x1000, end: 0x2000}\n    ext_tcdm: [{cluster: 0, start: 0x3000}]\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc), "x.yaml")
		assert.True(t, errors.Is(err, simerrors.ErrConfigInvalid), name)
	}
	_, err := Parse([]byte("num_clusters: 2\nmemory:\n  - tcdm: {start: 0x1000, end: 0x2000}\n"), "x.yaml")
	assert.ErrorIs(t, err, simerrors.ErrConfigTCDMCount)

	_, err = ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, simerrors.ErrConfigNotFound)
}

func TestOverride(t *testing.T) {
	cfg, err := ReadConfig("snitch")
	require.NoError(t, err)
	base := uint32(16)
	require.NoError(t, cfg.Override(Overrides{NumCores: 2, BaseHartID: &base}))
	assert.Equal(t, 2, cfg.NumCores)
	assert.Equal(t, uint32(16), cfg.BaseHartID)

	err = cfg.Override(Overrides{NumClusters: 3})
	assert.ErrorIs(t, err, simerrors.ErrConfigTCDMCount)
}

func TestMMIOInsideTCDM(t *testing.T) {
	cfg, err := Parse([]byte("memory:\n  - tcdm: {start: 0x1000, end: 0x2000}\naddress:\n  scratch_reg: 0x1ff0\n"), "x.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.MMIOInTCDM(0))
	assert.Contains(t, cfg.Address.Named(), "scratch_reg")
	assert.NotContains(t, cfg.Address.Named(), "uart")
}
