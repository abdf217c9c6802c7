package jit

import (
	"fmt"

	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/simerrors"
)

func checkIndex(f machine.Field, idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("%s[%d] out of range: %w", f, idx, simerrors.ErrJITFailed)
	}
	return nil
}

// stateLoader returns a direct accessor for element idx of field f.
func stateLoader(f machine.Field, idx int) (func(h *machine.Hart) uint64, error) {
	switch f {
	case machine.FieldX:
		if idx == 0 {
			return func(*machine.Hart) uint64 { return 0 }, nil
		}
		return func(h *machine.Hart) uint64 { return uint64(h.X[idx]) }, checkIndex(f, idx, 32)
	case machine.FieldXCycle:
		return func(h *machine.Hart) uint64 { return h.XCycle[idx] }, checkIndex(f, idx, 32)
	case machine.FieldFCycle:
		return func(h *machine.Hart) uint64 { return h.FCycle[idx] }, checkIndex(f, idx, 32)
	case machine.FieldF:
		return func(h *machine.Hart) uint64 { return h.F[idx] }, checkIndex(f, idx, 32)
	case machine.FieldPC:
		return func(h *machine.Hart) uint64 { return uint64(h.PC) }, nil
	case machine.FieldCycle:
		return func(h *machine.Hart) uint64 { return h.Cycle }, nil
	case machine.FieldInstret:
		return func(h *machine.Hart) uint64 { return h.Instret }, nil
	case machine.FieldSSREnable:
		return func(h *machine.Hart) uint64 { return uint64(h.SSREnable) }, nil
	case machine.FieldCasValue, machine.FieldFPMode, machine.FieldWFI, machine.FieldMstatus, machine.FieldMie,
		machine.FieldMip, machine.FieldMtvec, machine.FieldMepc, machine.FieldMcause, machine.FieldIRQSample,
		machine.FieldSSRAccessed:
		return func(h *machine.Hart) uint64 { return h.LoadField(f, idx) }, nil
	}
	return nil, fmt.Errorf("load of field %d: %w", int(f), simerrors.ErrJITFailed)
}

// stateStorer is the store counterpart of stateLoader. x0 stores never
// reach it.
func stateStorer(f machine.Field, idx int) (func(h *machine.Hart, v uint64), error) {
	switch f {
	case machine.FieldX:
		return func(h *machine.Hart, v uint64) { h.X[idx] = uint32(v) }, checkIndex(f, idx, 32)
	case machine.FieldXCycle:
		return func(h *machine.Hart, v uint64) { h.XCycle[idx] = v }, checkIndex(f, idx, 32)
	case machine.FieldFCycle:
		return func(h *machine.Hart, v uint64) { h.FCycle[idx] = v }, checkIndex(f, idx, 32)
	case machine.FieldF:
		return func(h *machine.Hart, v uint64) { h.F[idx] = v }, checkIndex(f, idx, 32)
	case machine.FieldPC:
		return func(h *machine.Hart, v uint64) { h.PC = uint32(v) }, nil
	case machine.FieldCycle:
		return func(h *machine.Hart, v uint64) { h.Cycle = v }, nil
	case machine.FieldInstret:
		return func(h *machine.Hart, v uint64) { h.Instret = v }, nil
	case machine.FieldSSRAccessed:
		return func(h *machine.Hart, v uint64) { h.SSR[idx].Accessed = uint32(v) }, nil
	case machine.FieldCasValue, machine.FieldSSREnable, machine.FieldFPMode, machine.FieldWFI, machine.FieldMstatus,
		machine.FieldMie, machine.FieldMip, machine.FieldMtvec, machine.FieldMepc, machine.FieldMcause,
		machine.FieldIRQSample:
		return func(h *machine.Hart, v uint64) { h.StoreField(f, idx, v) }, nil
	}
	return nil, fmt.Errorf("store to field %d: %w", int(f), simerrors.ErrJITFailed)
}
