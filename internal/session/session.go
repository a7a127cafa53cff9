// Package session implements the debugged-process collaborators consumed by
// the resolver: loaded-library enumeration, per-library debug info, and the
// kernel debug image provider. Images are backed by elfx mappings.
package session

import (
	"fmt"
	"io"

	"disview/internal/disview"
	"disview/internal/elfx"
)

// elfImage adapts an elfx mapping to the resolver's Image contract.
type elfImage struct {
	img *elfx.Image
}

func (e elfImage) FindSymbol(addr uint64) (disview.Symbol, bool) {
	sym, ok := e.img.FindSymbol(addr)
	if !ok {
		return disview.Symbol{}, false
	}
	// A symbol with no backing bytes decodes to an empty, valid listing.
	data, _ := e.img.RawData(sym)
	return disview.Symbol{Name: sym.Name, Value: sym.Value, Data: data}, true
}

func (e elfImage) Lookup(addr uint64) (string, uint64) {
	return e.img.Lookup(addr)
}

// debugInfo answers containing-function queries from an image's symbol
// table. ELF symbol values are link-time addresses, which match the
// base-relative addresses the resolver passes in.
type debugInfo struct {
	img *elfx.Image
}

func (d debugInfo) ContainingFunction(rel uint64) (disview.FunctionRange, bool) {
	sym, ok := d.img.FindSymbol(rel)
	if !ok {
		return disview.FunctionRange{}, false
	}
	return disview.FunctionRange{Low: sym.Value, High: sym.Value + sym.Size}, true
}

func (d debugInfo) Image() disview.Image {
	return elfImage{d.img}
}

// StaticSession exposes a single on-disk binary as if it were the only image
// of a debugged process, loaded at base 0. It serves offline inspection,
// where there is no live process to ask.
type StaticSession struct {
	lib *disview.Library
	img *elfx.Image
}

func OpenStatic(path string) (*StaticSession, error) {
	img, err := elfx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return &StaticSession{
		lib: &disview.Library{Name: path, Base: 0, Info: debugInfo{img}},
		img: img,
	}, nil
}

// LibraryOwning reports the binary for any address inside one of its load
// segments.
func (s *StaticSession) LibraryOwning(addr uint64) (*disview.Library, bool) {
	if _, ok := s.img.VA2Off(addr); !ok {
		return nil, false
	}
	return s.lib, true
}

// Image exposes the underlying mapping, for symbol enumeration in the UI.
func (s *StaticSession) Image() *elfx.Image {
	return s.img
}

func (s *StaticSession) Close() error {
	return s.img.Close()
}

// DefaultKernelImagePath is where an installed kernel debug image is
// expected. Its absence is a normal condition.
const DefaultKernelImagePath = "/boot/vmlinux"

// KernelFile maps the kernel debug image from a fixed path on demand. Each
// open produces a fresh mapping owned by the caller.
type KernelFile struct {
	Path string
}

func (k KernelFile) OpenKernelImage() (disview.Image, io.Closer, error) {
	path := k.Path
	if path == "" {
		path = DefaultKernelImagePath
	}
	img, err := elfx.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return elfImage{img}, img, nil
}
