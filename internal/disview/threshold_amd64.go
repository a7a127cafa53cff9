package disview

// Lowest kernel-space virtual address on x86-64.
const defaultKernelThreshold = 0xffff_8000_0000_0000
