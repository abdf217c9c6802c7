package machine

import (
	"fmt"
	"sync/atomic"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/config"
	"github.com/colorfulnotion/clustersim/simerrors"
)

type AMOOp uint32

const (
	AMOSwap AMOOp = iota
	AMOAdd
	AMOXor
	AMOAnd
	AMOOr
	AMOMin
	AMOMax
	AMOMinU
	AMOMaxU
	AMOLR
	AMOSC
)

var amoNames = [...]string{"swap", "add", "xor", "and", "or", "min", "max", "minu", "maxu", "lr", "sc"}

func (op AMOOp) String() string {
	if int(op) < len(amoNames) {
		return amoNames[op]
	}
	return "amo?"
}

// apply returns the new memory value of a read-modify-write.
func (op AMOOp) apply(old, v uint32) uint32 {
	switch op {
	case AMOSwap:
		return v
	case AMOAdd:
		return old + v
	case AMOXor:
		return old ^ v
	case AMOAnd:
		return old & v
	case AMOOr:
		return old | v
	case AMOMin:
		if int32(v) < int32(old) {
			return v
		}
	case AMOMax:
		if int32(v) > int32(old) {
			return v
		}
	case AMOMinU:
		if v < old {
			return v
		}
	case AMOMaxU:
		if v > old {
			return v
		}
	}
	return old
}

// AMO performs an atomic memory operation and returns the old value; for
// AMOSC it returns 0 on success and 1 on failure.
func (h *Hart) AMO(addr, value uint32, op AMOOp) uint32 {
	if addr&3 != 0 {
		h.Abort(simerrors.ErrUnalignedAMO, h.PC)
		return 0
	}
	c := h.Cluster
	if _, _, ok := h.ssrWindow(addr); ok || (c.Mem.Bootrom != nil && c.Mem.Bootrom.Contains(addr)) {
		h.Abort(fmt.Errorf("amo%s at %s: %w", op, common.Hex32(addr), simerrors.ErrIllegalAMO), h.PC)
		return 0
	}
	switch op {
	case AMOLR:
		v := h.Load(addr, 4)
		h.CasValue = v
		h.reserved = true
		return v
	case AMOSC:
		return h.storeConditional(addr, value)
	}
	if _, ok := c.mmio[addr]; ok {
		old := h.Load(addr, 4)
		h.Store(addr, op.apply(old, value), ^uint32(0), 4)
		return old
	}
	if p := c.cell(addr); p != nil {
		for {
			old := atomic.LoadUint32(p)
			if atomic.CompareAndSwapUint32(p, old, op.apply(old, value)) {
				return old
			}
		}
	}
	h.Global.SlowAccesses.Add(1)
	return h.Global.slowRMW(addr, func(old uint32) (uint32, bool) {
		return op.apply(old, value), true
	})
}

func (h *Hart) storeConditional(addr, value uint32) uint32 {
	succeed := !h.reserved && h.Global.Config.ScWithoutReservation == config.ScSucceed
	h.reserved = false
	expect := h.CasValue
	if p := h.Cluster.cell(addr); p != nil {
		if succeed {
			atomic.StoreUint32(p, value)
			return 0
		}
		if atomic.CompareAndSwapUint32(p, expect, value) {
			return 0
		}
		return 1
	}
	ok := false
	h.Global.slowRMW(addr, func(old uint32) (uint32, bool) {
		ok = succeed || old == expect
		return value, ok
	})
	if ok {
		return 0
	}
	return 1
}
