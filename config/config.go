// Package config holds the cluster description: memory windows per cluster,
// MMIO register addresses, instruction latencies, and sequencer limits.
package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/colorfulnotion/clustersim/simerrors"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

var presetFile = map[string]string{
	"snitch":    "presets/snitch.yaml",    // one cluster, eight cores
	"snitch-2c": "presets/snitch-2c.yaml", // two clusters with cross-cluster TCDM windows
}

const (
	DefaultSSRBase      = 0x204800
	DefaultNumSSR       = 3
	DefaultFrepMaxInst  = 15
	DefaultLatency      = 1
	ScCompare           = "compare"
	ScSucceed           = "succeed"
	MaxSSR              = 8
	maxFrepInstEncoding = 0xfff
)

type Range struct {
	Start   uint32 `yaml:"start" json:"start"`
	End     uint32 `yaml:"end" json:"end"`
	Latency uint32 `yaml:"latency" json:"latency"`
}

// Contains reports whether addr lies in [Start, End).
func (r Range) Contains(addr uint32) bool { return addr >= r.Start && addr < r.End }

func (r Range) Size() uint32 { return r.End - r.Start }

// ExtTCDM maps another cluster's TCDM into this cluster's address space.
type ExtTCDM struct {
	Cluster int    `yaml:"cluster" json:"cluster"`
	Start   uint32 `yaml:"start" json:"start"`
}

// ClusterMemory describes the memory windows seen by one cluster.
type ClusterMemory struct {
	TCDM    Range     `yaml:"tcdm" json:"tcdm"`
	DRAM    Range     `yaml:"dram" json:"dram"`
	Bootrom *Range    `yaml:"bootrom,omitempty" json:"bootrom,omitempty"`
	ExtTCDM []ExtTCDM `yaml:"ext_tcdm,omitempty" json:"ext_tcdm,omitempty"`
}

// Address holds the MMIO register addresses. A zero address is unmapped.
type Address struct {
	TCDMStart         uint32 `yaml:"tcdm_start" json:"tcdm_start"`
	TCDMEnd           uint32 `yaml:"tcdm_end" json:"tcdm_end"`
	NrCores           uint32 `yaml:"nr_cores" json:"nr_cores"`
	ScratchReg        uint32 `yaml:"scratch_reg" json:"scratch_reg"`
	WakeupReg         uint32 `yaml:"wakeup_reg" json:"wakeup_reg"`
	BarrierReg        uint32 `yaml:"barrier_reg" json:"barrier_reg"`
	ClusterBaseHartID uint32 `yaml:"cluster_base_hartid" json:"cluster_base_hartid"`
	ClusterNum        uint32 `yaml:"cluster_num" json:"cluster_num"`
	ClusterID         uint32 `yaml:"cluster_id" json:"cluster_id"`
	UART              uint32 `yaml:"uart" json:"uart"`
	CLINT             uint32 `yaml:"clint" json:"clint"`
	ClCLINT           uint32 `yaml:"cl_clint" json:"cl_clint"`
}

// Named returns every mapped register with its name.
func (a Address) Named() map[string]uint32 {
	all := map[string]uint32{
		"tcdm_start":          a.TCDMStart,
		"tcdm_end":            a.TCDMEnd,
		"nr_cores":            a.NrCores,
		"scratch_reg":         a.ScratchReg,
		"wakeup_reg":          a.WakeupReg,
		"barrier_reg":         a.BarrierReg,
		"cluster_base_hartid": a.ClusterBaseHartID,
		"cluster_num":         a.ClusterNum,
		"cluster_id":          a.ClusterID,
		"uart":                a.UART,
		"clint":               a.CLINT,
		"cl_clint":            a.ClCLINT,
	}
	out := make(map[string]uint32, len(all))
	for k, v := range all {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

type SSR struct {
	NumDM int    `yaml:"num_dm" json:"num_dm"`
	Base  uint32 `yaml:"base" json:"base"`
}

type Frep struct {
	MaxInst int `yaml:"max_inst" json:"max_inst"`
}

type Config struct {
	NumClusters          int               `yaml:"num_clusters" json:"num_clusters"`
	NumCores             int               `yaml:"num_cores" json:"num_cores"`
	BaseHartID           uint32            `yaml:"base_hartid" json:"base_hartid"`
	Memory               []ClusterMemory   `yaml:"memory" json:"memory"`
	Address              Address           `yaml:"address" json:"address"`
	InstLatency          map[string]uint32 `yaml:"inst_latency" json:"inst_latency"`
	SSR                  SSR               `yaml:"ssr" json:"ssr"`
	Frep                 Frep              `yaml:"frep" json:"frep"`
	InterruptLatency     uint32            `yaml:"interrupt_latency" json:"interrupt_latency"`
	ScWithoutReservation string            `yaml:"sc_without_reservation" json:"sc_without_reservation"`
}

// Overrides carries command-line values; zero fields leave the config alone.
type Overrides struct {
	NumCores    int
	NumClusters int
	BaseHartID  *uint32
}

// ReadConfig loads a preset by name or a YAML/JSON file by path.
func ReadConfig(id string) (*Config, error) {
	var (
		data []byte
		err  error
		name = id
	)
	if path, ok := presetFile[id]; ok {
		data, err = presetFS.ReadFile(path)
		name = path
	} else {
		data, err = os.ReadFile(id)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %q: %w", id, simerrors.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("config %q: %w", id, err)
	}
	return Parse(data, name)
}

// Parse decodes data as JSON when name ends in .json and as YAML otherwise,
// then fills defaults and validates.
func Parse(data []byte, name string) (*Config, error) {
	// seeded before decoding so an explicit num_dm: 0 survives
	cfg := &Config{SSR: SSR{NumDM: DefaultNumSSR}}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Presets lists the embedded configuration names.
func Presets() []string {
	return []string{"snitch", "snitch-2c"}
}

func (c *Config) SetDefaults() {
	if c.NumClusters == 0 {
		c.NumClusters = 1
	}
	if c.NumCores == 0 {
		c.NumCores = 1
	}
	if c.SSR.Base == 0 {
		c.SSR.Base = DefaultSSRBase
	}
	if c.Frep.MaxInst == 0 {
		c.Frep.MaxInst = DefaultFrepMaxInst
	}
	if c.ScWithoutReservation == "" {
		c.ScWithoutReservation = ScCompare
	}
	if c.InstLatency == nil {
		c.InstLatency = map[string]uint32{}
	}
	for i := range c.Memory {
		m := &c.Memory[i]
		if m.TCDM.Latency == 0 {
			m.TCDM.Latency = DefaultLatency
		}
		if m.DRAM.Latency == 0 {
			m.DRAM.Latency = DefaultLatency
		}
	}
}

// Override applies command-line values and re-validates.
func (c *Config) Override(o Overrides) error {
	if o.NumCores > 0 {
		c.NumCores = o.NumCores
	}
	if o.NumClusters > 0 {
		c.NumClusters = o.NumClusters
	}
	if o.BaseHartID != nil {
		c.BaseHartID = *o.BaseHartID
	}
	return c.Validate()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), simerrors.ErrConfigInvalid)
}

func (c *Config) Validate() error {
	if c.NumCores < 1 || c.NumCores > 1024 {
		return invalid("num_cores %d", c.NumCores)
	}
	if c.NumClusters < 1 {
		return invalid("num_clusters %d", c.NumClusters)
	}
	if len(c.Memory) < c.NumClusters {
		return fmt.Errorf("%d memory entries for %d clusters: %w", len(c.Memory), c.NumClusters, simerrors.ErrConfigTCDMCount)
	}
	for i, m := range c.Memory[:c.NumClusters] {
		if m.TCDM.Start >= m.TCDM.End || m.TCDM.Start%4 != 0 || m.TCDM.End%4 != 0 {
			return invalid("cluster %d tcdm [%#x, %#x)", i, m.TCDM.Start, m.TCDM.End)
		}
		if m.DRAM.End != 0 && m.DRAM.Start >= m.DRAM.End {
			return invalid("cluster %d dram [%#x, %#x)", i, m.DRAM.Start, m.DRAM.End)
		}
		if m.Bootrom != nil && (m.Bootrom.Start >= m.Bootrom.End || m.Bootrom.Start%4 != 0) {
			return invalid("cluster %d bootrom [%#x, %#x)", i, m.Bootrom.Start, m.Bootrom.End)
		}
		for _, ext := range m.ExtTCDM {
			if ext.Cluster < 0 || ext.Cluster >= c.NumClusters || ext.Cluster == i {
				return invalid("cluster %d ext_tcdm refers to cluster %d", i, ext.Cluster)
			}
			if ext.Start%4 != 0 {
				return invalid("cluster %d ext_tcdm start %#x unaligned", i, ext.Start)
			}
		}
	}
	if c.SSR.NumDM < 0 || c.SSR.NumDM > MaxSSR {
		return invalid("ssr.num_dm %d", c.SSR.NumDM)
	}
	if c.Frep.MaxInst < 1 || c.Frep.MaxInst > maxFrepInstEncoding {
		return invalid("frep.max_inst %d", c.Frep.MaxInst)
	}
	if c.ScWithoutReservation != ScCompare && c.ScWithoutReservation != ScSucceed {
		return invalid("sc_without_reservation %q", c.ScWithoutReservation)
	}
	return nil
}

// Cluster returns the memory description of cluster i.
func (c *Config) Cluster(i int) ClusterMemory { return c.Memory[i] }

// Latency returns the configured cycle count for a mnemonic, default 1.
func (c *Config) Latency(mnemonic string) uint32 {
	if l, ok := c.InstLatency[mnemonic]; ok {
		return l
	}
	return DefaultLatency
}

// MMIOInTCDM reports whether any named register falls inside the local
// TCDM window of cluster i.
func (c *Config) MMIOInTCDM(i int) bool {
	tcdm := c.Memory[i].TCDM
	for _, a := range c.Address.Named() {
		if tcdm.Contains(a) {
			return true
		}
	}
	return false
}

// TotalHarts is the number of simulated harts over all clusters.
func (c *Config) TotalHarts() int { return c.NumCores * c.NumClusters }
