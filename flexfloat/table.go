package flexfloat

import (
	"fmt"
	"strings"
)

type (
	BinaryFunc  func(a, b uint64, rm RoundingMode) (uint64, Flags)
	UnaryFunc   func(a uint64, rm RoundingMode) (uint64, Flags)
	TernaryFunc func(a, b, c uint64, rm RoundingMode) (uint64, Flags)
	CompareFunc func(a, b uint64) (bool, Flags)
)

var formatNames = map[string]Format{
	"fp8":     F8,
	"fp8alt":  F8Alt,
	"fp16":    F16,
	"fp16alt": F16Alt,
	"fp32":    F32,
	"fp64":    F64,
}

// FormatByName returns the format for a helper prefix such as "fp16alt".
func FormatByName(name string) (Format, bool) {
	f, ok := formatNames[name]
	return f, ok
}

// FormatNames lists the helper prefixes.
func FormatNames() []string {
	return []string{"fp8", "fp8alt", "fp16", "fp16alt", "fp32", "fp64"}
}

func splitName(name string) (Format, string, error) {
	prefix, op, ok := strings.Cut(name, "_")
	if !ok {
		return Format{}, "", fmt.Errorf("flexfloat: malformed helper name %q", name)
	}
	f, ok := formatNames[prefix]
	if !ok {
		return Format{}, "", fmt.Errorf("flexfloat: unknown format in %q", name)
	}
	return f, op, nil
}

// Binary resolves names like "fp32_add" or "fp8alt_min".
func Binary(name string) (BinaryFunc, error) {
	f, op, err := splitName(name)
	if err != nil {
		return nil, err
	}
	switch op {
	case "add":
		return f.Add, nil
	case "sub":
		return f.Sub, nil
	case "mul":
		return f.Mul, nil
	case "div":
		return f.Div, nil
	case "min":
		return func(a, b uint64, _ RoundingMode) (uint64, Flags) { return f.Min(a, b) }, nil
	case "max":
		return func(a, b uint64, _ RoundingMode) (uint64, Flags) { return f.Max(a, b) }, nil
	case "sgnj":
		return func(a, b uint64, _ RoundingMode) (uint64, Flags) { return f.SgnJ(a, b), 0 }, nil
	case "sgnjn":
		return func(a, b uint64, _ RoundingMode) (uint64, Flags) { return f.SgnJN(a, b), 0 }, nil
	case "sgnjx":
		return func(a, b uint64, _ RoundingMode) (uint64, Flags) { return f.SgnJX(a, b), 0 }, nil
	}
	return nil, fmt.Errorf("flexfloat: unknown binary op %q", name)
}

// Unary resolves "sqrt" and conversions "cvt_<dst>" (e.g. "fp16_cvt_fp32").
func Unary(name string) (UnaryFunc, error) {
	f, op, err := splitName(name)
	if err != nil {
		return nil, err
	}
	if op == "sqrt" {
		return f.Sqrt, nil
	}
	if dstName, ok := strings.CutPrefix(op, "cvt_"); ok {
		dst, ok := formatNames[dstName]
		if !ok {
			return nil, fmt.Errorf("flexfloat: unknown conversion target in %q", name)
		}
		return func(a uint64, rm RoundingMode) (uint64, Flags) { return Convert(dst, f, a, rm) }, nil
	}
	return nil, fmt.Errorf("flexfloat: unknown unary op %q", name)
}

// Ternary resolves the fused multiply-add family.
func Ternary(name string) (TernaryFunc, error) {
	f, op, err := splitName(name)
	if err != nil {
		return nil, err
	}
	switch op {
	case "fmadd":
		return f.FMAdd, nil
	case "fmsub":
		return f.FMSub, nil
	case "fnmsub":
		return f.FNMSub, nil
	case "fnmadd":
		return f.FNMAdd, nil
	}
	return nil, fmt.Errorf("flexfloat: unknown ternary op %q", name)
}

// Compare resolves "eq", "lt", "le", "ne", "ge" and "gt".
func Compare(name string) (CompareFunc, error) {
	f, op, err := splitName(name)
	if err != nil {
		return nil, err
	}
	switch op {
	case "eq":
		return f.Eq, nil
	case "lt":
		return f.Lt, nil
	case "le":
		return f.Le, nil
	case "ne":
		return f.Ne, nil
	case "ge":
		return f.Ge, nil
	case "gt":
		return f.Gt, nil
	}
	return nil, fmt.Errorf("flexfloat: unknown compare op %q", name)
}
