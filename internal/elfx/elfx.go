// Package elfx provides mmap-backed access to ELF debug images: loading,
// virtual-address translation, and function symbol lookup.
package elfx

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"syscall"
)

// Sym is one entry of an image's merged function symbol table.
type Sym struct {
	Name  string
	Value uint64
	Size  uint64
}

// Image is an ELF debug image mapped read-only into memory. Byte spans
// returned by SliceVA and RawData are views into the mapping and are only
// valid until Close.
type Image struct {
	Path  string
	File  *elf.File
	All   []byte
	Loads []Seg
	Text  Section
	Syms  []Sym // sorted by Value
	f     *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  uint64(p.Vaddr),
			Off:    uint64(p.Off),
			Filesz: uint64(p.Filesz),
			Flags:  p.Flags,
		})
	}

	if s := f.Section(".text"); s != nil {
		im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
	}
	// Stripped section headers: fall back to the executable load segment.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadSymbols()

	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// loadSymbols merges .symtab and .dynsym into a single table of defined
// function symbols, sorted by address. Zero-sized symbols are skipped: a
// function without a size cannot be bounded for disassembly.
func (im *Image) loadSymbols() {
	seen := make(map[uint64]bool)

	add := func(syms []elf.Symbol, err error) {
		if err != nil {
			return // table absent or stripped
		}
		for _, sym := range syms {
			if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
				continue
			}
			if sym.Value == 0 || sym.Size == 0 || sym.Name == "" {
				continue
			}
			if seen[sym.Value] {
				continue
			}
			seen[sym.Value] = true
			im.Syms = append(im.Syms, Sym{Name: sym.Name, Value: sym.Value, Size: sym.Size})
		}
	}

	if im.File != nil {
		add(im.File.Symbols())
		add(im.File.DynamicSymbols())
	}

	sort.Slice(im.Syms, func(i, j int) bool { return im.Syms[i].Value < im.Syms[j].Value })
}

// FindSymbol returns the function symbol whose range covers va.
func (im *Image) FindSymbol(va uint64) (Sym, bool) {
	i := sort.Search(len(im.Syms), func(i int) bool { return im.Syms[i].Value > va })
	if i == 0 {
		return Sym{}, false
	}
	sym := im.Syms[i-1]
	if va >= sym.Value+sym.Size {
		return Sym{}, false
	}
	return sym, true
}

// RawData returns the symbol's backing bytes as a view into the mapping.
func (im *Image) RawData(sym Sym) ([]byte, bool) {
	return im.SliceVA(sym.Value, sym.Size)
}

// Lookup resolves va to a demangled symbol name and the symbol's base
// address. It has the shape expected by instruction operand renderers and
// reports ("", 0) when no symbol covers va.
func (im *Image) Lookup(va uint64) (string, uint64) {
	sym, ok := im.FindSymbol(va)
	if !ok {
		return "", 0
	}
	return Demangle(sym.Name), sym.Value
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns a subslice of the mapped file corresponding to the virtual
// address range [va, va+size). It returns (nil, false) if the VA is unmapped
// or the range is out of bounds.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// InText reports whether va lies within the text region.
func (im *Image) InText(va uint64) bool {
	return im.Text.Size != 0 && va >= im.Text.VA && va < im.Text.VA+im.Text.Size
}
