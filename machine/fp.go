package machine

import (
	"github.com/colorfulnotion/clustersim/flexfloat"
)

// FPModeAlt16 and FPModeAlt8 select bfloat16 and e4m3 for the 16- and
// 8-bit formats.
const (
	FPModeAlt16 = 1 << 0
	FPModeAlt8  = 1 << 1
)

// Format resolves a storage width to the flexfloat format in effect.
func (h *Hart) Format(width int) flexfloat.Format {
	switch width {
	case 8:
		if h.FPMode&FPModeAlt8 != 0 {
			return flexfloat.F8Alt
		}
		return flexfloat.F8
	case 16:
		if h.FPMode&FPModeAlt16 != 0 {
			return flexfloat.F16Alt
		}
		return flexfloat.F16
	case 32:
		return flexfloat.F32
	}
	return flexfloat.F64
}

// RoundingMode resolves the dynamic rm encoding against frm. Reserved
// encodings round to nearest even.
func (h *Hart) RoundingMode(rm uint32) flexfloat.RoundingMode {
	if rm == 7 {
		rm = h.Frm & 7
	}
	if rm > 4 {
		return flexfloat.RNE
	}
	return flexfloat.RoundingMode(rm)
}

// Accrue ORs exception flags into fflags.
func (h *Hart) Accrue(fl flexfloat.Flags) {
	h.FFlags |= uint32(fl)
}

// alt reports whether the alternate flavour of width is selected.
func (h *Hart) alt(width int) bool {
	switch width {
	case 8:
		return h.FPMode&FPModeAlt8 != 0
	case 16:
		return h.FPMode&FPModeAlt16 != 0
	}
	return false
}
