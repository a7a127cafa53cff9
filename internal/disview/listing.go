package disview

import (
	"disview/internal/disasm"
)

// Record is one decoded instruction of a listing.
type Record struct {
	// Inst is the decoder's view of the instruction.
	Inst disasm.Inst
	// Address is the instruction's runtime virtual address in the debugged
	// process, not a file offset.
	Address uint64
	// Bytes is the exact encoding, copied out of the function's backing
	// span so the record outlives any image mapping.
	Bytes []byte
	// Text is the rendered, symbol-annotated disassembly.
	Text string
}

// Listing is the ordered result of resolving one program-counter value.
// It is immutable once built and safe for concurrent reads.
type Listing struct {
	Function string
	Image    string
	Records  []Record
}

// Decode linearly decodes code, which executes at base, into records.
// Addresses are strictly increasing and contiguous: each record starts where
// the previous one ended. Decoding stops when the span runs out or the
// decoder cannot make progress; a malformed tail truncates the listing
// without error, and an empty span yields an empty listing.
func Decode(code []byte, base uint64, syntax disasm.Syntax, lookup SymbolLookup) []Record {
	var records []Record
	stream := disasm.NewStream(code, 64)
	for {
		off := stream.Offset()
		inst, ok := stream.Next()
		if !ok {
			break
		}
		addr := base + uint64(off)
		raw := make([]byte, inst.Len)
		copy(raw, code[off:off+inst.Len])
		records = append(records, Record{
			Inst:    inst,
			Address: addr,
			Bytes:   raw,
			Text:    inst.Text(addr, syntax, disasm.SymLookup(lookup)),
		})
	}
	return records
}
