package disview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disview/internal/disasm"
)

func TestDecodeContiguous(t *testing.T) {
	// push rbp; mov rbp, rsp; ret
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}
	records := Decode(code, 0x1000, disasm.SyntaxGNU, nil)
	require.Len(t, records, 3)

	assert.Equal(t, uint64(0x1000), records[0].Address)
	for i := 1; i < len(records); i++ {
		prev := records[i-1]
		assert.Equal(t, prev.Address+uint64(len(prev.Bytes)), records[i].Address,
			"record %d must start where record %d ends", i, i-1)
	}
	last := records[len(records)-1]
	assert.Equal(t, uint64(0x1000+len(code)), last.Address+uint64(len(last.Bytes)),
		"records must cover the whole span")

	assert.Equal(t, []byte{0x55}, records[0].Bytes)
	assert.Equal(t, []byte{0x48, 0x89, 0xe5}, records[1].Bytes)
	assert.Equal(t, []byte{0xc3}, records[2].Bytes)
	assert.Contains(t, records[2].Text, "ret")
}

func TestDecodeCopiesBytes(t *testing.T) {
	code := []byte{0xc3}
	records := Decode(code, 0x2000, disasm.SyntaxGNU, nil)
	require.Len(t, records, 1)

	code[0] = 0x90 // the backing span may be unmapped later
	assert.Equal(t, []byte{0xc3}, records[0].Bytes)
}

func TestDecodeEmptySpan(t *testing.T) {
	for _, code := range [][]byte{nil, {}} {
		records := Decode(code, 0x1000, disasm.SyntaxGNU, nil)
		assert.Empty(t, records, "empty span is a valid, empty listing")
	}
}

func TestDecodeTruncatesMalformedTail(t *testing.T) {
	// push rbp; ret; then a dangling ModRM-less 0xff
	code := []byte{0x55, 0xc3, 0xff}
	records := Decode(code, 0x1000, disasm.SyntaxGNU, nil)
	require.Len(t, records, 2, "decoded prefix must be kept")
	assert.Equal(t, uint64(0x1001), records[1].Address)
}

func TestDecodeAnnotatesCallTarget(t *testing.T) {
	// call +0x0b, landing at base+0x10
	code := []byte{0xe8, 0x0b, 0x00, 0x00, 0x00}
	base := uint64(0x1000)
	lookup := func(addr uint64) (string, uint64) {
		if addr == 0x1010 {
			return "frob", 0x1010
		}
		return "", 0
	}

	records := Decode(code, base, disasm.SyntaxGo, lookup)
	require.Len(t, records, 1)
	assert.True(t, strings.Contains(records[0].Text, "frob"),
		"call target should resolve to its symbol, got %q", records[0].Text)

	plain := Decode(code, base, disasm.SyntaxGo, nil)
	require.Len(t, plain, 1)
	assert.False(t, strings.Contains(plain[0].Text, "frob"),
		"without a provider the target stays numeric, got %q", plain[0].Text)
}
