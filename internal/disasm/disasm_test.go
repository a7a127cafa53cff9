package disasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// push rbp; mov rbp, rsp; ret
var framedReturn = []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}

func TestStreamDecodesLinearly(t *testing.T) {
	stream := NewStream(framedReturn, 64)

	wantLens := []int{1, 3, 1}
	offset := 0
	for _, wantLen := range wantLens {
		require.Equal(t, offset, stream.Offset())
		inst, ok := stream.Next()
		require.True(t, ok, "decode at offset %d", offset)
		assert.Equal(t, wantLen, inst.Len)
		offset += wantLen
	}

	_, ok := stream.Next()
	assert.False(t, ok, "stream should be exhausted")
	assert.Equal(t, len(framedReturn), stream.Offset())
}

func TestStreamEmpty(t *testing.T) {
	for _, code := range [][]byte{nil, {}} {
		stream := NewStream(code, 64)
		_, ok := stream.Next()
		assert.False(t, ok)
		assert.Equal(t, 0, stream.Offset())
	}
}

func TestStreamStopsOnMalformedTail(t *testing.T) {
	// ret followed by a truncated instruction: 0xff needs a ModRM byte.
	stream := NewStream([]byte{0xc3, 0xff}, 64)

	inst, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, 1, inst.Len)

	_, ok = stream.Next()
	assert.False(t, ok, "malformed tail must end the stream")
	assert.Equal(t, 1, stream.Offset(), "offset stays at the last good instruction")
}

func TestInstText(t *testing.T) {
	stream := NewStream([]byte{0xc3}, 64)
	inst, ok := stream.Next()
	require.True(t, ok)

	tests := []struct {
		syntax Syntax
		want   string
	}{
		{SyntaxGNU, "ret"},
		{SyntaxIntel, "ret"},
		{SyntaxGo, "RET"},
		{Syntax(""), "ret"}, // empty defaults to GNU
	}
	for _, tt := range tests {
		t.Run(string(tt.syntax), func(t *testing.T) {
			text := inst.Text(0x1000, tt.syntax, nil)
			assert.True(t, strings.Contains(text, tt.want), "got %q", text)
		})
	}
}
