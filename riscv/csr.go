package riscv

// CSR addresses understood by the runtime.
const (
	CSR_FFLAGS    uint16 = 0x001
	CSR_FRM       uint16 = 0x002
	CSR_FCSR      uint16 = 0x003
	CSR_MSTATUS   uint16 = 0x300
	CSR_MIE       uint16 = 0x304
	CSR_MTVEC     uint16 = 0x305
	CSR_MEPC      uint16 = 0x341
	CSR_MCAUSE    uint16 = 0x342
	CSR_MIP       uint16 = 0x344
	CSR_SSR       uint16 = 0x7c0
	CSR_FPMODE    uint16 = 0x7c1
	CSR_MCYCLE    uint16 = 0xb00
	CSR_MINSTRET  uint16 = 0xb02
	CSR_MCYCLEH   uint16 = 0xb80
	CSR_MINSTRETH uint16 = 0xb82
	CSR_CYCLE     uint16 = 0xc00
	CSR_INSTRET   uint16 = 0xc02
	CSR_CYCLEH    uint16 = 0xc80
	CSR_INSTRETH  uint16 = 0xc82
	CSR_MHARTID   uint16 = 0xf14
)

var csr_str = map[uint16]string{
	CSR_FFLAGS:    "fflags",
	CSR_FRM:       "frm",
	CSR_FCSR:      "fcsr",
	CSR_MSTATUS:   "mstatus",
	CSR_MIE:       "mie",
	CSR_MTVEC:     "mtvec",
	CSR_MEPC:      "mepc",
	CSR_MCAUSE:    "mcause",
	CSR_MIP:       "mip",
	CSR_SSR:       "ssr",
	CSR_FPMODE:    "fpmode",
	CSR_MCYCLE:    "mcycle",
	CSR_MINSTRET:  "minstret",
	CSR_MCYCLEH:   "mcycleh",
	CSR_MINSTRETH: "minstreth",
	CSR_CYCLE:     "cycle",
	CSR_INSTRET:   "instret",
	CSR_CYCLEH:    "cycleh",
	CSR_INSTRETH:  "instreth",
	CSR_MHARTID:   "mhartid",
}

// CSRName returns the symbolic name of a CSR, or its hex address.
func CSRName(csr uint16) string {
	if s, ok := csr_str[csr]; ok {
		return s
	}
	return hex12(csr)
}

// IsKnownCSR reports whether csr has runtime behaviour; all others read as
// zero and ignore writes.
func IsKnownCSR(csr uint16) bool {
	_, ok := csr_str[csr]
	return ok
}

func hex12(v uint16) string {
	const digits = "0123456789abcdef"
	return "0x" + string([]byte{digits[v>>8&0xf], digits[v>>4&0xf], digits[v&0xf]})
}
