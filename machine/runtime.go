package machine

import (
	"fmt"
	"sort"

	"github.com/colorfulnotion/clustersim/flexfloat"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/colorfulnotion/clustersim/trace"
)

// HelperFunc is the host implementation of a runtime helper. Arguments
// arrive zero-extended in declaration order; the result is truncated to the
// declared return type.
type HelperFunc func(h *Hart, args []uint64) uint64

// Helper pairs a declaration with its implementation.
type Helper struct {
	Name   string
	Ret    ir.Type
	Params []ir.Type
	Fn     HelperFunc
}

var (
	helpers     []Helper
	helperIndex = map[string]int{}
)

func register(name string, ret ir.Type, params []ir.Type, fn HelperFunc) {
	if _, dup := helperIndex[name]; dup {
		panic("machine: helper registered twice: " + name)
	}
	helperIndex[name] = len(helpers)
	helpers = append(helpers, Helper{Name: name, Ret: ret, Params: params, Fn: fn})
}

func params(ts ...ir.Type) []ir.Type { return ts }

// Lookup returns the helper called name.
func Lookup(name string) (Helper, bool) {
	i, ok := helperIndex[name]
	if !ok {
		return Helper{}, false
	}
	return helpers[i], true
}

// Helpers returns every runtime helper sorted by name.
func Helpers() []Helper {
	out := append([]Helper(nil), helpers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeclareRuntime declares every helper into m.
func DeclareRuntime(m *ir.Module) {
	for _, h := range Helpers() {
		m.Declare(h.Name, h.Ret, h.Params...)
	}
}

// RuntimeModule is a module holding only the helper declarations; the
// translator links it into each cluster module.
func RuntimeModule() *ir.Module {
	m := ir.NewModule("runtime")
	m.FieldName = FieldName
	DeclareRuntime(m)
	return m
}

func i32(v uint64) uint32 { return uint32(v) }

func init() {
	registerCore()
	registerFloat()
}

func registerCore() {
	I32, I64, Void := ir.I32, ir.I64, ir.Void

	register("mem_load", I32, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		return uint64(h.Load(i32(a[0]), i32(a[1])))
	})
	register("mem_store", Void, params(I32, I32, I32, I32), func(h *Hart, a []uint64) uint64 {
		h.Store(i32(a[0]), i32(a[1]), i32(a[2]), i32(a[3]))
		return 0
	})
	register("amo", I32, params(I32, I32, I32), func(h *Hart, a []uint64) uint64 {
		return uint64(h.AMO(i32(a[0]), i32(a[1]), AMOOp(a[2])))
	})

	register("ssr_read", I64, params(I32), func(h *Hart, a []uint64) uint64 {
		return h.SSRRead(int(a[0]))
	})
	register("ssr_write", Void, params(I32, I64), func(h *Hart, a []uint64) uint64 {
		h.SSRWrite(int(a[0]), a[1])
		return 0
	})
	// ssr_cfg_* take the scfg operand: reg_word<<5 | ssr
	register("ssr_cfg_read", I32, params(I32), func(h *Hart, a []uint64) uint64 {
		v := i32(a[0])
		return uint64(h.SSRReadCfg(int(v&31), v>>5&31))
	})
	register("ssr_cfg_write", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		v := i32(a[0])
		h.SSRConfigure(int(v&31), v>>5&31, i32(a[1]))
		return 0
	})

	register("dma_src", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.DMASrc(i32(a[0]), i32(a[1]))
		return 0
	})
	register("dma_dst", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.DMADst(i32(a[0]), i32(a[1]))
		return 0
	})
	register("dma_str", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.DMAStr(i32(a[0]), i32(a[1]))
		return 0
	})
	register("dma_rep", Void, params(I32), func(h *Hart, a []uint64) uint64 {
		h.DMARep(i32(a[0]))
		return 0
	})
	register("dma_start", I32, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		return uint64(h.DMAStart(i32(a[0]), i32(a[1])))
	})
	register("dma_stat", I32, params(I32), func(h *Hart, a []uint64) uint64 {
		return uint64(h.DMAStat(i32(a[0])))
	})

	register("csr_read", I32, params(I32), func(h *Hart, a []uint64) uint64 {
		return uint64(h.ReadCSR(uint16(a[0])))
	})
	register("csr_write", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.WriteCSR(uint16(a[0]), i32(a[1]))
		return 0
	})
	register("irq_sample", I32, params(I32), func(h *Hart, a []uint64) uint64 {
		return uint64(h.IRQSample(i32(a[0])))
	})
	register("mret", I32, nil, func(h *Hart, a []uint64) uint64 {
		return uint64(h.MRet())
	})
	register("wfi", Void, params(I32), func(h *Hart, a []uint64) uint64 {
		h.WaitForInterrupt()
		return 0
	})

	register("escape_abort", Void, params(I32), func(h *Hart, a []uint64) uint64 {
		h.Abort(simerrors.ErrEscape, i32(a[0]))
		return 0
	})
	register("illegal_instruction", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.Abort(fmt.Errorf("word %#08x: %w", i32(a[1]), simerrors.ErrIllegalInstruction), i32(a[0]))
		return 0
	})
	register("illegal_branch", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.Abort(fmt.Errorf("target %#08x: %w", i32(a[1]), simerrors.ErrIllegalBranch), i32(a[0]))
		return 0
	})
	register("env_call", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		log.Warn(log.Runtime, "environment call", "hart", h.ID, "a7", h.X[17], "a0", h.X[10])
		h.Abort(fmt.Errorf("word %#08x: %w", i32(a[1]), simerrors.ErrEnvCall), i32(a[0]))
		return 0
	})

	register("trace_access", Void, params(I32, I32, I64), func(h *Hart, a []uint64) uint64 {
		h.TraceAccess(trace.AccessKind(a[0]), uint8(a[1]), a[2])
		return 0
	})
	register("trace_commit", Void, params(I32, I32), func(h *Hart, a []uint64) uint64 {
		h.TraceCommit(i32(a[0]), i32(a[1]))
		return 0
	})
}

// Float helpers are named <fmt>_<op> over the prefixes fp8, fp16, fp32 and
// fp64. The 8- and 16-bit helpers pick their flavour from fpmode.
var floatWidths = []struct {
	prefix, alt string
	width       int
}{
	{"fp8", "fp8alt", 8},
	{"fp16", "fp16alt", 16},
	{"fp32", "", 32},
	{"fp64", "", 64},
}

// FloatPrefix returns the helper prefix of a width.
func FloatPrefix(width int) string { return fmt.Sprintf("fp%d", width) }

// pick resolves std and alternate table entries of one helper name.
func pick[T any](lookup func(string) (T, error), prefix, alt, op string) (std, other T) {
	var err error
	std, err = lookup(prefix + "_" + op)
	if err != nil {
		panic(err)
	}
	other = std
	if alt != "" {
		if other, err = lookup(alt + "_" + op); err != nil {
			panic(err)
		}
	}
	return std, other
}

func registerFloat() {
	I32, I64 := ir.I32, ir.I64
	for _, w := range floatWidths {
		w := w
		for _, op := range []string{"add", "sub", "mul", "div", "min", "max", "sgnj", "sgnjn", "sgnjx"} {
			std, alt := pick(flexfloat.Binary, w.prefix, w.alt, op)
			register(w.prefix+"_"+op, I64, params(I64, I64, I32), func(h *Hart, a []uint64) uint64 {
				f := std
				if h.alt(w.width) {
					f = alt
				}
				r, fl := f(a[0], a[1], h.RoundingMode(i32(a[2])))
				h.Accrue(fl)
				return r
			})
		}
		std, alt := pick(flexfloat.Unary, w.prefix, w.alt, "sqrt")
		register(w.prefix+"_sqrt", I64, params(I64, I32), func(h *Hart, a []uint64) uint64 {
			f := std
			if h.alt(w.width) {
				f = alt
			}
			r, fl := f(a[0], h.RoundingMode(i32(a[1])))
			h.Accrue(fl)
			return r
		})
		for _, op := range []string{"fmadd", "fmsub", "fnmsub", "fnmadd"} {
			std, alt := pick(flexfloat.Ternary, w.prefix, w.alt, op)
			register(w.prefix+"_"+op, I64, params(I64, I64, I64, I32), func(h *Hart, a []uint64) uint64 {
				f := std
				if h.alt(w.width) {
					f = alt
				}
				r, fl := f(a[0], a[1], a[2], h.RoundingMode(i32(a[3])))
				h.Accrue(fl)
				return r
			})
		}
		for _, op := range []string{"eq", "lt", "le"} {
			std, alt := pick(flexfloat.Compare, w.prefix, w.alt, op)
			register(w.prefix+"_"+op, I32, params(I64, I64), func(h *Hart, a []uint64) uint64 {
				f := std
				if h.alt(w.width) {
					f = alt
				}
				r, fl := f(a[0], a[1])
				h.Accrue(fl)
				if r {
					return 1
				}
				return 0
			})
		}
		register(w.prefix+"_classify", I32, params(I64), func(h *Hart, a []uint64) uint64 {
			return uint64(h.Format(w.width).Classify(a[0]))
		})
		register(w.prefix+"_to_i32", I32, params(I64, I32), func(h *Hart, a []uint64) uint64 {
			r, fl := h.Format(w.width).ToInt32(a[0], h.RoundingMode(i32(a[1])))
			h.Accrue(fl)
			return uint64(r)
		})
		register(w.prefix+"_to_u32", I32, params(I64, I32), func(h *Hart, a []uint64) uint64 {
			r, fl := h.Format(w.width).ToUint32(a[0], h.RoundingMode(i32(a[1])))
			h.Accrue(fl)
			return uint64(r)
		})
		register(w.prefix+"_from_i32", I64, params(I32, I32), func(h *Hart, a []uint64) uint64 {
			r, fl := h.Format(w.width).FromInt32(int32(a[0]), h.RoundingMode(i32(a[1])))
			h.Accrue(fl)
			return r
		})
		register(w.prefix+"_from_u32", I64, params(I32, I32), func(h *Hart, a []uint64) uint64 {
			r, fl := h.Format(w.width).FromUint32(i32(a[0]), h.RoundingMode(i32(a[1])))
			h.Accrue(fl)
			return r
		})
		for _, dst := range floatWidths {
			if dst.width == w.width {
				continue
			}
			dst := dst
			register(w.prefix+"_cvt_"+dst.prefix, I64, params(I64, I32), func(h *Hart, a []uint64) uint64 {
				r, fl := flexfloat.Convert(h.Format(dst.width), h.Format(w.width), a[0], h.RoundingMode(i32(a[1])))
				h.Accrue(fl)
				return r
			})
		}
	}
}
