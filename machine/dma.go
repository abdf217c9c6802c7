package machine

import (
	"github.com/colorfulnotion/clustersim/log"
)

// DMAState is the register file of the hart's DMA engine.
type DMAState struct {
	Src       uint64
	Dst       uint64
	SrcStride uint32
	DstStride uint32
	Reps      uint32
	Size      uint32
	DoneID    uint32
}

const DMAFlag2D = 2

func (h *Hart) DMASrc(lo, hi uint32) { h.DMA.Src = uint64(hi)<<32 | uint64(lo) }

func (h *Hart) DMADst(lo, hi uint32) { h.DMA.Dst = uint64(hi)<<32 | uint64(lo) }

func (h *Hart) DMAStr(src, dst uint32) {
	h.DMA.SrcStride = src
	h.DMA.DstStride = dst
}

func (h *Hart) DMARep(n uint32) { h.DMA.Reps = n }

// DMAStart copies size bytes (reps times when flags has the 2-D bit) word
// by word through the memory model and returns the transfer id.
func (h *Hart) DMAStart(size, flags uint32) uint32 {
	d := &h.DMA
	d.Size = size
	beats := size / 4
	steps := uint32(1)
	if flags&DMAFlag2D != 0 {
		steps = d.Reps
	}
	src, dst := uint32(d.Src), uint32(d.Dst)
	for i := uint32(0); i < steps; i++ {
		s := src + i*d.SrcStride
		t := dst + i*d.DstStride
		for b := uint32(0); b < beats; b++ {
			h.Store(t+4*b, h.Load(s+4*b, 4), ^uint32(0), 4)
		}
	}
	d.DoneID++
	log.Debug(log.DMA, "dma transfer", "hart", h.ID, "src", src, "dst", dst, "size", size, "steps", steps, "id", d.DoneID)
	return d.DoneID
}

// DMAStat answers status queries: completed id, next id, busy, and a
// reserved slot.
func (h *Hart) DMAStat(code uint32) uint32 {
	switch code & 3 {
	case 0:
		return h.DMA.DoneID
	case 1:
		return h.DMA.DoneID + 1
	}
	return 0
}
