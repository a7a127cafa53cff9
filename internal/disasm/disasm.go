// Package disasm wraps the x86 instruction decoder behind a linear byte
// stream, one instruction per step.
package disasm

import (
	"golang.org/x/arch/x86/x86asm"
)

// Syntax selects the rendering dialect for decoded instructions.
type Syntax string

const (
	SyntaxGNU   Syntax = "gnu"
	SyntaxIntel Syntax = "intel"
	SyntaxGo    Syntax = "go"
)

// SymLookup resolves an address to a symbol name and the symbol's base
// address, for annotating branch and call targets in rendered operands.
// A nil lookup leaves targets numeric.
type SymLookup func(addr uint64) (name string, base uint64)

// Inst is one decoded instruction.
type Inst struct {
	Inst x86asm.Inst
	Len  int
}

// Text renders the instruction as it executes at pc, resolving embedded
// addresses through lookup where possible.
func (i Inst) Text(pc uint64, syntax Syntax, lookup SymLookup) string {
	switch syntax {
	case SyntaxIntel:
		return x86asm.IntelSyntax(i.Inst, pc, x86asm.SymLookup(lookup))
	case SyntaxGo:
		return x86asm.GoSyntax(i.Inst, pc, x86asm.SymLookup(lookup))
	default:
		return x86asm.GNUSyntax(i.Inst, pc, x86asm.SymLookup(lookup))
	}
}

// Stream decodes a code span from offset 0, advancing by each instruction's
// length.
type Stream struct {
	code []byte
	off  int
	mode int
}

// NewStream returns a stream over code. mode is the processor mode in bits
// (16, 32 or 64); 0 means 64.
func NewStream(code []byte, mode int) *Stream {
	if mode == 0 {
		mode = 64
	}
	return &Stream{code: code, mode: mode}
}

// Offset is the current read position in the span.
func (s *Stream) Offset() int {
	return s.off
}

// Next decodes the instruction at the current offset. It reports false once
// the span is exhausted or the remaining bytes do not decode; a malformed
// tail ends the stream without invalidating what was already decoded.
func (s *Stream) Next() (Inst, bool) {
	if s.off >= len(s.code) {
		return Inst{}, false
	}
	inst, err := x86asm.Decode(s.code[s.off:], s.mode)
	if err != nil || inst.Len <= 0 {
		return Inst{}, false
	}
	s.off += inst.Len
	return Inst{Inst: inst, Len: inst.Len}, true
}
