// Package program reads 32-bit RISC-V ELF images into the sections and
// symbols the translator consumes.
package program

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/simerrors"
)

type Section struct {
	Name  string
	Addr  uint32
	Size  uint32
	Data  []byte
	Exec  bool
	Alloc bool
}

// End is the one-past-end address.
func (s Section) End() uint32 { return s.Addr + s.Size }

func (s Section) Contains(addr uint32) bool { return addr >= s.Addr && addr < s.End() }

// Word returns the little-endian instruction word at addr.
func (s Section) Word(addr uint32) uint32 {
	off := addr - s.Addr
	if int(off)+4 > len(s.Data) {
		return 0
	}
	return binary.LittleEndian.Uint32(s.Data[off:])
}

type Symbol struct {
	Name string
	Addr uint32
	Size uint32
	Func bool
}

type Binary struct {
	Entry    uint32
	Sections []Section
	Symbols  []Symbol
}

// Load opens and parses the ELF at path.
func Load(path string) (*Binary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info(log.Loader, "loaded binary", "path", path, "entry", fmt.Sprintf("%#x", b.Entry), "sections", len(b.Sections), "symbols", len(b.Symbols))
	return b, nil
}

func Parse(r io.ReaderAt) (*Binary, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, simerrors.ErrMalformedELF)
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("class %v data %v machine %v: %w", f.Class, f.Data, f.Machine, simerrors.ErrNotRISCV32)
	}
	b := &Binary{Entry: uint32(f.Entry)}
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		sec := Section{
			Name:  s.Name,
			Addr:  uint32(s.Addr),
			Size:  uint32(s.Size),
			Exec:  s.Flags&elf.SHF_EXECINSTR != 0,
			Alloc: true,
		}
		if s.Type != elf.SHT_NOBITS {
			data, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("section %s: %v: %w", s.Name, err, simerrors.ErrMalformedELF)
			}
			sec.Data = data
		}
		b.Sections = append(b.Sections, sec)
	}
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("symbols: %v: %w", err, simerrors.ErrMalformedELF)
	}
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		b.Symbols = append(b.Symbols, Symbol{
			Name: s.Name,
			Addr: uint32(s.Value),
			Size: uint32(s.Size),
			Func: elf.ST_TYPE(s.Info) == elf.STT_FUNC,
		})
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// FromWords builds an in-memory binary with a single executable section.
func FromWords(base uint32, words []uint32) *Binary {
	data := make([]byte, 0, 4*len(words))
	for _, w := range words {
		data = append(data, common.EncodeUint32(w)...)
	}
	return &Binary{
		Entry: base,
		Sections: []Section{{
			Name: ".text", Addr: base, Size: uint32(len(data)), Data: data, Exec: true, Alloc: true,
		}},
	}
}

// AddData appends an allocatable, non-executable section.
func (b *Binary) AddData(name string, addr uint32, data []byte) {
	b.Sections = append(b.Sections, Section{Name: name, Addr: addr, Size: uint32(len(data)), Data: data, Alloc: true})
}

// Validate checks that executable sections exist and do not overlap.
func (b *Binary) Validate() error {
	exec := b.ExecSections()
	if len(exec) == 0 {
		return simerrors.ErrNoExecutableSection
	}
	for i := 1; i < len(exec); i++ {
		if exec[i].Addr < exec[i-1].End() {
			return fmt.Errorf("%s and %s: %w", exec[i-1].Name, exec[i].Name, simerrors.ErrSectionOverlap)
		}
	}
	return nil
}

// ExecSections returns the executable sections sorted by address.
func (b *Binary) ExecSections() []Section {
	var out []Section
	for _, s := range b.Sections {
		if s.Exec {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// FuncSymbols returns the addresses of FUNC symbols.
func (b *Binary) FuncSymbols() []uint32 {
	var out []uint32
	for _, s := range b.Symbols {
		if s.Func {
			out = append(out, s.Addr)
		}
	}
	return out
}

// SymbolAt returns the name of the symbol starting at addr.
func (b *Binary) SymbolAt(addr uint32) (string, bool) {
	for _, s := range b.Symbols {
		if s.Addr == addr {
			return s.Name, true
		}
	}
	return "", false
}

// Preload passes every allocatable byte range to store in little-endian
// 4-byte chunks. A trailing partial word is zero padded.
func (b *Binary) Preload(store func(addr, word uint32)) int {
	n := 0
	for _, s := range b.Sections {
		if !s.Alloc || len(s.Data) == 0 {
			continue
		}
		for i, w := range common.Words(s.Data) {
			store(s.Addr+uint32(4*i), w)
			n++
		}
		log.Debug(log.Loader, "preloaded section", "section", s.Name, "addr", common.Hex32(s.Addr), "bytes", len(s.Data))
	}
	log.Debug(log.Loader, "preloaded", "words", n)
	return n
}
