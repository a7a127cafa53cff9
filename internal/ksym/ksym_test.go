package ksym

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `ffffffff81000000 T startup_64
ffffffff81000030 T secondary_startup_64
0000000000000000 A fixed_percpu_data
not a symbol line
ffffffff92000000 D jiffies
`

func TestParse(t *testing.T) {
	table, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len(), "zeroed and malformed lines are dropped")
}

func TestLookup(t *testing.T) {
	table, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	tests := []struct {
		name     string
		addr     uint64
		wantName string
		wantBase uint64
	}{
		{"exact start", 0xffffffff81000000, "startup_64", 0xffffffff81000000},
		{"inside a symbol", 0xffffffff81000010, "startup_64", 0xffffffff81000000},
		{"next symbol start", 0xffffffff81000030, "secondary_startup_64", 0xffffffff81000030},
		{"past the last symbol", 0xffffffffa0000000, "jiffies", 0xffffffff92000000},
		{"before the first symbol", 0x1000, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, base := table.Lookup(tt.addr)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantBase, base)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	table, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	name, base := table.Lookup(0x1000)
	assert.Empty(t, name)
	assert.Zero(t, base)
}
