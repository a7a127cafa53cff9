package disview

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeImage serves symbols keyed by the exact lookup address.
type fakeImage struct {
	syms map[uint64]Symbol
}

func (f fakeImage) FindSymbol(addr uint64) (Symbol, bool) {
	sym, ok := f.syms[addr]
	return sym, ok
}

func (f fakeImage) Lookup(addr uint64) (string, uint64) {
	for _, sym := range f.syms {
		if addr >= sym.Value && addr < sym.Value+uint64(len(sym.Data)) {
			return sym.Name, sym.Value
		}
	}
	return "", 0
}

type fakeInfo struct {
	fns map[uint64]FunctionRange
	img Image
}

func (f fakeInfo) ContainingFunction(rel uint64) (FunctionRange, bool) {
	for _, fn := range f.fns {
		if rel >= fn.Low && rel < fn.High {
			return fn, true
		}
	}
	return FunctionRange{}, false
}

func (f fakeInfo) Image() Image { return f.img }

type fakeSession struct {
	lib        *Library
	start, end uint64
}

func (f fakeSession) LibraryOwning(addr uint64) (*Library, bool) {
	if f.lib != nil && addr >= f.start && addr < f.end {
		return f.lib, true
	}
	return nil, false
}

type fakeCloser struct {
	closed bool
}

func (c *fakeCloser) Close() error {
	c.closed = true
	return nil
}

type fakeKernel struct {
	img    Image
	err    error
	closer *fakeCloser
}

func (k *fakeKernel) OpenKernelImage() (Image, io.Closer, error) {
	if k.err != nil {
		return nil, nil, k.err
	}
	return k.img, k.closer, nil
}

func userScenario() fakeSession {
	// pc 0x1234 inside a library at base 0x1000; the containing function is
	// [0x200, 0x260) relative to base, and symbol foo is one ret at 0x1200.
	img := fakeImage{syms: map[uint64]Symbol{
		0x200: {Name: "foo", Value: 0x1200, Data: []byte{0xc3}},
	}}
	return fakeSession{
		lib:   &Library{Name: "libdemo.so", Base: 0x1000, Info: fakeInfo{fns: map[uint64]FunctionRange{0x200: {Low: 0x200, High: 0x260}}, img: img}},
		start: 0x1000,
		end:   0x2000,
	}
}

func TestResolveUserFunction(t *testing.T) {
	r := NewResolver(Config{Session: userScenario()})

	listing, err := r.Resolve(0x1234)
	require.NoError(t, err)
	require.Len(t, listing.Records, 1)

	rec := listing.Records[0]
	assert.Equal(t, "foo", listing.Function)
	assert.Equal(t, "libdemo.so", listing.Image)
	assert.Equal(t, uint64(0x1200), rec.Address)
	assert.Equal(t, []byte{0xc3}, rec.Bytes)
	assert.Contains(t, rec.Text, "ret")
}

func TestResolveFailures(t *testing.T) {
	sess := userScenario()

	tests := []struct {
		name    string
		session Session
		pc      uint64
		wantErr error
	}{
		{
			name:    "unmapped address",
			session: sess,
			pc:      0x9000,
			wantErr: ErrUnmappedAddress,
		},
		{
			name:    "no containing function",
			session: sess,
			pc:      0x1800, // mapped, but outside [0x200, 0x260) rel
			wantErr: ErrNoContainingFunction,
		},
		{
			name: "no covering symbol",
			session: fakeSession{
				lib: &Library{Base: 0x1000, Info: fakeInfo{
					fns: map[uint64]FunctionRange{0x200: {Low: 0x200, High: 0x260}},
					img: fakeImage{},
				}},
				start: 0x1000, end: 0x2000,
			},
			pc:      0x1234,
			wantErr: ErrNoSymbol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Config{Session: tt.session})
			listing, err := r.Resolve(tt.pc)
			assert.Nil(t, listing, "failures never produce partial listings")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// kernelScenario maps pc 0xc0001000 to a function at 0xc0000800 whose low
// address sits above a 0xc0000000 threshold. The owning library's own image
// also covers that address, to prove the kernel image takes precedence.
func kernelScenario() (fakeSession, Symbol) {
	ksym := Symbol{Name: "kfunc", Value: 0xc0000800, Data: []byte{0x90, 0xc3}}
	userImg := fakeImage{syms: map[uint64]Symbol{
		0xc0000800: {Name: "not_the_kernel", Value: 0xc0000800, Data: []byte{0xc3}},
	}}
	sess := fakeSession{
		lib: &Library{Name: "libwild.so", Base: 0, Info: fakeInfo{
			fns: map[uint64]FunctionRange{0xc0000800: {Low: 0xc0000800, High: 0xc0001800}},
			img: userImg,
		}},
		start: 0xc0000000,
		end:   0xd0000000,
	}
	return sess, ksym
}

func TestResolveKernelFunction(t *testing.T) {
	sess, ksym := kernelScenario()
	closer := &fakeCloser{}
	kernel := &fakeKernel{
		img:    fakeImage{syms: map[uint64]Symbol{0xc0000800: ksym}},
		closer: closer,
	}

	r := NewResolver(Config{
		Session:         sess,
		Kernel:          kernel,
		KernelThreshold: 0xc0000000,
	})

	listing, err := r.Resolve(0xc0001000)
	require.NoError(t, err)
	assert.Equal(t, "kfunc", listing.Function, "kernel image must win over the reporting library")
	assert.Equal(t, "kernel", listing.Image)
	require.Len(t, listing.Records, 2)
	assert.Equal(t, uint64(0xc0000800), listing.Records[0].Address)
	assert.True(t, closer.closed, "kernel mapping must be released after decoding")
}

func TestResolveKernelImageMissing(t *testing.T) {
	sess, _ := kernelScenario()

	tests := []struct {
		name   string
		kernel KernelImageProvider
	}{
		{name: "open fails", kernel: &fakeKernel{err: errors.New("no such file")}},
		{name: "no provider", kernel: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Config{
				Session:         sess,
				Kernel:          tt.kernel,
				KernelThreshold: 0xc0000000,
			})
			listing, err := r.Resolve(0xc0001000)
			assert.Nil(t, listing)
			assert.ErrorIs(t, err, ErrKernelImageUnavailable)
		})
	}
}

func TestResolveDefaultThreshold(t *testing.T) {
	r := NewResolver(Config{Session: userScenario()})
	assert.Equal(t, uint64(defaultKernelThreshold), r.threshold)

	r = NewResolver(Config{Session: userScenario(), KernelThreshold: 0xc0000000})
	assert.Equal(t, uint64(0xc0000000), r.threshold)
}

func TestLookupChain(t *testing.T) {
	img := fakeImage{syms: map[uint64]Symbol{
		0x100: {Name: "own", Value: 0x100, Data: []byte{0xc3}},
	}}
	extra := func(addr uint64) (string, uint64) {
		if addr == 0x500 {
			return "extra", 0x500
		}
		return "", 0
	}

	r := NewResolver(Config{Session: userScenario(), ExtraSymbols: []SymbolLookup{extra}})
	chain := r.lookupChain(img)

	name, base := chain(0x100)
	assert.Equal(t, "own", name)
	assert.Equal(t, uint64(0x100), base)

	name, base = chain(0x500)
	assert.Equal(t, "extra", name, "extras are consulted when the image has no name")
	assert.Equal(t, uint64(0x500), base)

	name, base = chain(0x900)
	assert.Empty(t, name)
	assert.Zero(t, base)
}
