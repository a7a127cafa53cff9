// Package ksym parses kernel symbol listings in /proc/kallsyms format and
// answers address-to-name lookups. It supplements a kernel debug image's own
// symbol table when annotating branch targets in kernel code.
package ksym

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const DefaultPath = "/proc/kallsyms"

// Sym is one kernel symbol.
type Sym struct {
	Addr uint64
	Type string
	Name string
}

// Table is a kernel symbol table sorted by address.
type Table struct {
	syms []Sym
}

// Load reads the running kernel's symbol table. Addresses read as zero when
// the caller lacks privilege; such entries are dropped.
func Load() (*Table, error) {
	f, err := os.Open(DefaultPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads "address type name" lines. Malformed lines are skipped.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil || addr == 0 {
			continue
		}
		t.syms = append(t.syms, Sym{Addr: addr, Type: fields[1], Name: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Slice(t.syms, func(i, j int) bool { return t.syms[i].Addr < t.syms[j].Addr })
	return t, nil
}

// Len reports the number of symbols in the table.
func (t *Table) Len() int {
	return len(t.syms)
}

// Lookup returns the name and base address of the symbol containing addr.
// kallsyms carries no sizes, so a symbol extends to the next one's start.
// It reports ("", 0) for addresses before the first symbol.
func (t *Table) Lookup(addr uint64) (string, uint64) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr > addr })
	if i == 0 {
		return "", 0
	}
	sym := t.syms[i-1]
	return sym.Name, sym.Addr
}
