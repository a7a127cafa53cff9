package disview

// Lowest kernel-space virtual address on 32-bit x86.
const defaultKernelThreshold = 0xc000_0000
