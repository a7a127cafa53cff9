//go:build !amd64 && !386

package disview

// Decoding is x86-only, but the package should still compile elsewhere.
const defaultKernelThreshold = 0xffff_8000_0000_0000
