package ir

import (
	"errors"
	"fmt"
	"io"

	"github.com/colorfulnotion/clustersim/scale"
)

const (
	bitcodeMagic   = "CSIR"
	bitcodeVersion = 1
)

var ErrBadBitcode = errors.New("ir: malformed bitcode")

// EncodeBitcode serializes m. Operands are stored as positions within their
// block, which is sufficient because values never cross blocks.
func EncodeBitcode(m *Module) []byte {
	var e scale.Encoder
	e.Raw([]byte(bitcodeMagic))
	e.Uint(bitcodeVersion)
	e.String(m.Name)
	e.Int(len(m.order))
	for _, name := range m.order {
		h := m.Helpers[name]
		e.String(h.Name)
		e.Byte(byte(h.Ret))
		e.Int(len(h.Params))
		for _, p := range h.Params {
			e.Byte(byte(p))
		}
	}
	e.Int(len(m.Funcs))
	for _, f := range m.Funcs {
		encodeFunction(&e, f)
	}
	return e.Out()
}

func encodeFunction(e *scale.Encoder, f *Function) {
	e.String(f.Name)
	e.Int(f.nextID)
	e.Int(len(f.Locals))
	for _, t := range f.Locals {
		e.Byte(byte(t))
	}
	dead := make([]bool, len(f.Blocks))
	for i, b := range f.Blocks {
		dead[i] = b.Dead
	}
	e.Int(len(f.Blocks))
	e.Bits(dead)
	for _, b := range f.Blocks {
		e.String(b.Name)
		pos := make(map[*Instr]int, len(b.Instrs))
		e.Int(len(b.Instrs))
		for i, in := range b.Instrs {
			pos[in] = i
			e.Byte(byte(in.Op))
			e.Byte(byte(in.Type))
			e.Int(in.ID)
			e.Int(len(in.Args))
			for _, a := range in.Args {
				e.Int(pos[a])
			}
			switch in.Op {
			case OpConst:
				e.Uint(in.Imm)
			case OpLoadState, OpStoreState:
				e.Int(in.Field)
				e.Int(in.Index)
			case OpLocalLoad, OpLocalStore:
				e.Int(in.Local)
			case OpICmp:
				e.Byte(byte(in.Pred))
			case OpCall:
				e.String(in.Callee)
			}
			if in.Op.IsTerminator() {
				e.Int(len(in.Targets))
				for _, t := range in.Targets {
					e.Int(int(t))
				}
				e.Int(len(in.Cases))
				for _, c := range in.Cases {
					e.Uint(c)
				}
			}
		}
	}
}

// DecodeBitcode reverses EncodeBitcode.
func DecodeBitcode(data []byte) (*Module, error) {
	if len(data) < len(bitcodeMagic) || string(data[:len(bitcodeMagic)]) != bitcodeMagic {
		return nil, fmt.Errorf("missing magic: %w", ErrBadBitcode)
	}
	d := scale.NewDecoder(data[len(bitcodeMagic):])
	if v := d.Uint(); v != bitcodeVersion {
		return nil, fmt.Errorf("version %d: %w", v, ErrBadBitcode)
	}
	m := NewModule(d.String())
	nh := d.Int()
	for i := 0; i < nh && d.Err() == nil; i++ {
		name := d.String()
		ret := Type(d.Byte())
		np := d.Int()
		if uint(np) > uint(len(data)) {
			return nil, fmt.Errorf("helper %s: %w", name, ErrBadBitcode)
		}
		params := make([]Type, np)
		for j := range params {
			params[j] = Type(d.Byte())
		}
		m.Declare(name, ret, params...)
	}
	nf := d.Int()
	for i := 0; i < nf && d.Err() == nil; i++ {
		f, err := decodeFunction(d, len(data))
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, f)
	}
	if !d.Done() {
		if d.Err() != nil {
			return nil, fmt.Errorf("%v: %w", d.Err(), ErrBadBitcode)
		}
		return nil, fmt.Errorf("trailing bytes: %w", ErrBadBitcode)
	}
	return m, nil
}

func decodeFunction(d *scale.Decoder, limit int) (*Function, error) {
	f := &Function{Name: d.String()}
	f.nextID = d.Int()
	nl := d.Int()
	if uint(nl) > uint(limit) {
		return nil, fmt.Errorf("locals: %w", ErrBadBitcode)
	}
	f.Locals = make([]Type, nl)
	for i := range f.Locals {
		f.Locals[i] = Type(d.Byte())
	}
	nb := d.Int()
	dead := d.Bits()
	if uint(nb) > uint(limit) || len(dead) != nb {
		return nil, fmt.Errorf("blocks: %w", ErrBadBitcode)
	}
	for bi := 0; bi < nb && d.Err() == nil; bi++ {
		b := &Block{ID: BlockID(bi), Name: d.String(), Dead: dead[bi]}
		ni := d.Int()
		if uint(ni) > uint(limit) {
			return nil, fmt.Errorf("block %s: %w", b.Name, ErrBadBitcode)
		}
		for ii := 0; ii < ni && d.Err() == nil; ii++ {
			in := &Instr{Op: Op(d.Byte()), Type: Type(d.Byte()), ID: d.Int()}
			na := d.Int()
			if na > ii {
				return nil, fmt.Errorf("block %s instr %d: %w", b.Name, ii, ErrBadBitcode)
			}
			for a := 0; a < na; a++ {
				p := d.Int()
				if uint(p) >= uint(ii) {
					return nil, fmt.Errorf("block %s instr %d operand: %w", b.Name, ii, ErrBadBitcode)
				}
				in.Args = append(in.Args, b.Instrs[p])
			}
			switch in.Op {
			case OpConst:
				in.Imm = d.Uint()
			case OpLoadState, OpStoreState:
				in.Field = d.Int()
				in.Index = d.Int()
			case OpLocalLoad, OpLocalStore:
				in.Local = d.Int()
			case OpICmp:
				in.Pred = Pred(d.Byte())
			case OpCall:
				in.Callee = d.String()
			}
			if in.Op.IsTerminator() {
				nt := d.Int()
				if uint(nt) > uint(limit) {
					return nil, fmt.Errorf("targets: %w", ErrBadBitcode)
				}
				for t := 0; t < nt; t++ {
					in.Targets = append(in.Targets, BlockID(d.Int()))
				}
				nc := d.Int()
				if uint(nc) > uint(limit) {
					return nil, fmt.Errorf("cases: %w", ErrBadBitcode)
				}
				for c := 0; c < nc; c++ {
					in.Cases = append(in.Cases, d.Uint())
				}
			}
			b.Instrs = append(b.Instrs, in)
		}
		f.Blocks = append(f.Blocks, b)
	}
	if d.Err() != nil {
		return nil, fmt.Errorf("%v: %w", d.Err(), ErrBadBitcode)
	}
	return f, nil
}

// WriteBitcode writes the serialized module to w.
func WriteBitcode(w io.Writer, m *Module) error {
	_, err := w.Write(EncodeBitcode(m))
	return err
}
