// Package disview resolves a stopped process's program counter into a
// decoded, symbol-annotated instruction listing for the enclosing function.
package disview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"disview/internal/disasm"
)

// Resolution failures. The display layer renders all of them as an empty
// listing; callers that care can tell them apart with errors.Is.
var (
	// ErrUnmappedAddress means no loaded image owns the program counter.
	ErrUnmappedAddress = errors.New("no loaded image owns address")
	// ErrNoContainingFunction means the owning image's debug info has no
	// function covering the program counter.
	ErrNoContainingFunction = errors.New("no containing function")
	// ErrNoSymbol means the chosen debug image has no symbol covering the
	// containing function, so the function cannot be bounded.
	ErrNoSymbol = errors.New("no symbol covers function")
	// ErrKernelImageUnavailable means the kernel debug image could not be
	// opened. Not every environment has one installed.
	ErrKernelImageUnavailable = errors.New("kernel debug image unavailable")
)

// Symbol is a located function symbol together with its backing bytes.
type Symbol struct {
	Name  string
	Value uint64
	Data  []byte
}

// Image is the part of a debug image the resolver consumes: symbol location
// by covering address, and name resolution for operand annotation.
type Image interface {
	FindSymbol(addr uint64) (Symbol, bool)
	Lookup(addr uint64) (name string, base uint64)
}

// FunctionRange bounds a function, relative to its library's load base.
type FunctionRange struct {
	Low  uint64
	High uint64
}

// DebugInfo answers containing-function queries for one loaded image.
type DebugInfo interface {
	ContainingFunction(rel uint64) (FunctionRange, bool)
	Image() Image
}

// Library is one loaded image of the debugged process.
type Library struct {
	Name string
	Base uint64
	Info DebugInfo
}

// Session enumerates the loaded images of a stopped, debugged process.
type Session interface {
	LibraryOwning(addr uint64) (*Library, bool)
}

// KernelImageProvider supplies the kernel debug image on demand. The
// returned closer releases the image's backing mapping; it may be nil when
// there is nothing to release.
type KernelImageProvider interface {
	OpenKernelImage() (Image, io.Closer, error)
}

// Config wires a Resolver's collaborators.
type Config struct {
	Session Session
	// Kernel supplies the kernel debug image for kernel-space functions.
	// Nil means kernel addresses cannot be resolved.
	Kernel KernelImageProvider
	// KernelThreshold is the lowest kernel-space virtual address. Zero
	// selects the architecture default.
	KernelThreshold uint64
	// Syntax selects the disassembly dialect; empty means GNU.
	Syntax disasm.Syntax
	// ExtraSymbols are consulted, in order, when the image's own table has
	// no name for a branch target.
	ExtraSymbols []SymbolLookup
}

// SymbolLookup resolves an address to a symbol name and base for operand
// annotation. It reports ("", 0) when no symbol covers the address.
type SymbolLookup func(addr uint64) (name string, base uint64)

// Resolver turns program-counter values into instruction listings. A
// resolution is one-shot and synchronous: it either produces a complete
// listing or fails without partial results.
type Resolver struct {
	cfg       Config
	threshold uint64
}

func NewResolver(cfg Config) *Resolver {
	threshold := cfg.KernelThreshold
	if threshold == 0 {
		threshold = defaultKernelThreshold
	}
	return &Resolver{cfg: cfg, threshold: threshold}
}

// Resolve locates the function containing pc, selects the debug image that
// owns it, and decodes the function's bytes into a listing. Every failure is
// terminal for this attempt; a later process stop is the only retry.
func (r *Resolver) Resolve(pc uint64) (*Listing, error) {
	lib, ok := r.cfg.Session.LibraryOwning(pc)
	if !ok {
		return nil, fmt.Errorf("pc %#x: %w", pc, ErrUnmappedAddress)
	}

	fn, ok := lib.Info.ContainingFunction(pc - lib.Base)
	if !ok {
		slog.Warn("Cannot disassemble, containing function not found",
			"pc", fmt.Sprintf("%#x", pc), "image", lib.Name)
		return nil, fmt.Errorf("pc %#x in %s: %w", pc, lib.Name, ErrNoContainingFunction)
	}

	// Classification uses the containing function's low address: the lookup
	// above already normalized pc relative to the library base. A function
	// that straddled the boundary would classify by its start.
	img := lib.Info.Image()
	imageName := lib.Name
	var release io.Closer
	if fn.Low >= r.threshold {
		if r.cfg.Kernel == nil {
			return nil, fmt.Errorf("function %#x: %w", fn.Low, ErrKernelImageUnavailable)
		}
		kimg, closer, err := r.cfg.Kernel.OpenKernelImage()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKernelImageUnavailable, err)
		}
		img = kimg
		imageName = "kernel"
		release = closer
	}
	if release != nil {
		// Records copy their bytes out, so the mapping can go as soon as
		// decoding has consumed the span.
		defer release.Close()
	}

	sym, ok := img.FindSymbol(fn.Low)
	if !ok {
		return nil, fmt.Errorf("function %#x in %s: %w", fn.Low, imageName, ErrNoSymbol)
	}

	records := Decode(sym.Data, sym.Value, r.cfg.Syntax, r.lookupChain(img))
	return &Listing{
		Function: sym.Name,
		Image:    imageName,
		Records:  records,
	}, nil
}

// lookupChain resolves through the image's own symbols first, then any
// configured extra providers.
func (r *Resolver) lookupChain(img Image) SymbolLookup {
	return func(addr uint64) (string, uint64) {
		if name, base := img.Lookup(addr); name != "" {
			return name, base
		}
		for _, lookup := range r.cfg.ExtraSymbols {
			if name, base := lookup(addr); name != "" {
				return name, base
			}
		}
		return "", 0
	}
}
