package machine

import (
	"github.com/colorfulnotion/clustersim/log"
)

// SSRState is one stream address generator.
type SSRState struct {
	Index       [4]uint32
	Bound       [4]uint32
	Stride      [4]uint32
	IdxBase     uint32
	IdxShift    uint32
	IdxSize     uint32
	IdxPtr      uint32
	Ptr         uint32
	Lookahead   uint32
	RepeatCount uint32
	RepeatBound uint32
	Write       bool
	Dims        uint32
	Done        bool
	Indirect    bool
	Accessed    uint32
}

// Register words of the configuration window.
const (
	SSRStatus   = 0
	SSRRepeat   = 1
	SSRBound0   = 2
	SSRStride0  = 6
	SSRIdxCfg   = 16
	SSRIdxBase  = 17
	SSRRptr0    = 24
	SSRWptr0    = 28
	ssrPtrMask  = 0x0fffffff
	ssrDoneBit  = 1 << 31
	ssrWriteBit = 1 << 30
)

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (s *SSRState) start(ptr, dims uint32, write bool) {
	s.Ptr = ptr
	s.Lookahead = ptr
	s.Dims = dims
	s.Write = write
	s.Done = false
	s.Index = [4]uint32{}
	s.RepeatCount = 0
}

// Configure writes register word of the stream; reserved words are ignored.
func (s *SSRState) Configure(word, v uint32) {
	switch {
	case word == SSRStatus:
		s.Ptr = v & ssrPtrMask
		s.Done = v&ssrDoneBit != 0
		s.Write = v&ssrWriteBit != 0
		s.Dims = (v >> 28) & 3
	case word == SSRRepeat:
		s.RepeatBound = v
	case word >= SSRBound0 && word < SSRBound0+4:
		s.Bound[word-SSRBound0] = v
	case word >= SSRStride0 && word < SSRStride0+4:
		s.Stride[word-SSRStride0] = v
	case word == SSRIdxCfg:
		s.IdxSize = 1 << (v & 3)
		s.IdxShift = (v >> 8) & 31
		s.Indirect = v&(1<<16) != 0
	case word == SSRIdxBase:
		s.IdxBase = v
	case word >= SSRRptr0 && word < SSRRptr0+4:
		s.start(v, word-SSRRptr0, false)
	case word >= SSRWptr0 && word < SSRWptr0+4:
		s.start(v, word-SSRWptr0, true)
	}
}

// ReadCfg mirrors Configure.
func (s *SSRState) ReadCfg(word uint32) uint32 {
	switch {
	case word == SSRStatus:
		return b2u(s.Done)<<31 | b2u(s.Write)<<30 | (s.Dims&3)<<28 | s.Ptr&ssrPtrMask
	case word == SSRRepeat:
		return s.RepeatBound
	case word >= SSRBound0 && word < SSRBound0+4:
		return s.Bound[word-SSRBound0]
	case word >= SSRStride0 && word < SSRStride0+4:
		return s.Stride[word-SSRStride0]
	case word == SSRIdxCfg:
		var lg uint32
		for 1<<lg < s.IdxSize {
			lg++
		}
		return lg | s.IdxShift<<8 | b2u(s.Indirect)<<16
	case word == SSRIdxBase:
		return s.IdxBase
	case word >= SSRRptr0 && word < SSRWptr0+4:
		return s.Ptr
	}
	return 0
}

// advance moves to the next address of the affine walk.
func (s *SSRState) advance() {
	if s.RepeatCount < s.RepeatBound {
		s.RepeatCount++
		return
	}
	s.RepeatCount = 0
	for i := uint32(0); i <= s.Dims && i < 4; i++ {
		if s.Index[i] != s.Bound[i] {
			s.Ptr += s.Stride[i]
			s.Index[i]++
			for j := uint32(0); j < i; j++ {
				s.Index[j] = 0
			}
			s.Lookahead = s.Ptr
			return
		}
	}
	s.Done = true
}

func (h *Hart) SSRConfigure(ssr int, word, v uint32) {
	if ssr < 0 || ssr >= len(h.SSR) {
		return
	}
	h.SSR[ssr].Configure(word, v)
	log.Trace(log.SSR, "ssr configure", "hart", h.ID, "ssr", ssr, "word", word, "value", v)
}

func (h *Hart) SSRReadCfg(ssr int, word uint32) uint32 {
	if ssr < 0 || ssr >= len(h.SSR) {
		return 0
	}
	return h.SSR[ssr].ReadCfg(word)
}

// SSRNext returns the next address of stream r. Indirect streams read an
// index at the affine address and scale it onto IdxBase.
func (h *Hart) SSRNext(r int) uint32 {
	s := &h.SSR[r]
	if s.Done {
		log.Warn(log.SSR, "stream read past its end", "hart", h.ID, "ssr", r, "ptr", s.Ptr)
		return s.Ptr
	}
	addr := s.Ptr
	s.advance()
	if !s.Indirect {
		return addr
	}
	s.IdxPtr = addr
	word := h.Load(addr, 4)
	idx := word >> (8 * (addr & 3))
	switch s.IdxSize {
	case 1:
		idx &= 0xff
	case 2:
		idx &= 0xffff
	}
	return s.IdxBase + idx<<s.IdxShift
}

// SSRRead pops stream r into f[r] once per instruction.
func (h *Hart) SSRRead(r int) uint64 {
	s := &h.SSR[r]
	if s.Accessed != 0 {
		return h.F[r]
	}
	s.Accessed = 1
	v := h.Load64(h.SSRNext(r))
	h.F[r] = v
	return v
}

// SSRWrite pushes v to stream r.
func (h *Hart) SSRWrite(r int, v uint64) {
	h.F[r] = v
	h.Store64(h.SSRNext(r), v)
}
