// Package gdt builds the kernel's global descriptor table and task state
// segment: the six flat segment descriptors (null, kernel code, kernel
// data, user data, user code, TSS) and the RSP0 value the CPU consults on
// a ring-3-to-ring-0 transition.
package gdt

import (
	"duneos/kernel/cpu"
	"unsafe"
)

// Selector values, fixed by the layout Install constructs below. Index 0
// is always the null descriptor; these are the corresponding GDT byte
// offsets, already shifted for use as segment-register values (the low 2
// bits are the requested privilege level).
const (
	SelectorNull     = 0x00
	SelectorKernelCS = 0x08
	SelectorKernelDS = 0x10
	SelectorUserDS   = 0x18 | 3
	SelectorUserCS   = 0x20 | 3
	SelectorTSS      = 0x28
)

// access byte bits shared by every descriptor below.
const (
	accessPresent      = 1 << 7
	accessNotSystem    = 1 << 4
	accessExecutable   = 1 << 3
	accessReadWrite    = 1 << 1
	accessDPL3         = 3 << 5
	accessTSSAvailable = 0x9
)

// flags nibble bits (granularity + long-mode).
const (
	flagLongMode   = 1 << 1
	flagGranular4K = 1 << 3
)

type descriptor struct {
	limitLow  uint16
	baseLow   uint16
	baseMid   uint8
	access    uint8
	limitHigh uint8 // high nibble holds flags
	baseHigh  uint8
}

// tssDescriptor is a descriptor plus the extra 8 bytes a 64-bit TSS
// descriptor needs to hold the full 64-bit base address.
type tssDescriptor struct {
	descriptor
	baseUpper uint32
	reserved  uint32
}

// TSS is the 64-bit task state segment. This kernel uses exactly one
// field of it: RSP0, the stack pointer the CPU loads when an interrupt or
// syscall delivers control from ring 3 to ring 0.
type TSS struct {
	reserved0 uint32
	RSP0      uint64
	RSP1      uint64
	RSP2      uint64
	reserved1 uint64
	IST       [7]uint64
	reserved2 uint64
	reserved3 uint16
	IOMapBase uint16
}

// table is the fixed layout this kernel installs: null, kernel code,
// kernel data, user data, user code, then the TSS descriptor (which
// occupies two slots' worth of space).
type table struct {
	entries [5]descriptor
	tss     tssDescriptor
}

type descriptorPointer struct {
	limit uint16
	base  uintptr
}

var (
	gdtTable  table
	kernelTSS TSS
	gdtPtr    descriptorPointer
)

func flatDescriptor(access, flags uint8) descriptor {
	return descriptor{
		limitLow:  0xffff,
		baseLow:   0,
		baseMid:   0,
		access:    access,
		limitHigh: 0xf | (flags << 4),
		baseHigh:  0,
	}
}

// Install builds the GDT and TSS in their package-level storage, points
// RSP0 at kernelStackTop (the stack the CPU switches to on any ring
// 3->ring 0 transition), loads the GDT, reloads every segment register
// and loads the task register. It must run after the bootloader's own
// GDT is no longer needed and before the first ring-3 transition.
func Install(kernelStackTop uintptr) {
	gdtTable.entries[0] = descriptor{} // null

	gdtTable.entries[1] = flatDescriptor(
		accessPresent|accessNotSystem|accessExecutable|accessReadWrite,
		flagLongMode,
	) // kernel code

	gdtTable.entries[2] = flatDescriptor(
		accessPresent|accessNotSystem|accessReadWrite,
		flagGranular4K,
	) // kernel data

	gdtTable.entries[3] = flatDescriptor(
		accessPresent|accessNotSystem|accessReadWrite|accessDPL3,
		flagGranular4K,
	) // user data

	gdtTable.entries[4] = flatDescriptor(
		accessPresent|accessNotSystem|accessExecutable|accessReadWrite|accessDPL3,
		flagLongMode,
	) // user code

	kernelTSS = TSS{RSP0: uint64(kernelStackTop), IOMapBase: uint16(unsafe.Sizeof(TSS{}))}

	tssBase := uintptr(unsafe.Pointer(&kernelTSS))
	gdtTable.tss = tssDescriptor{
		descriptor: descriptor{
			limitLow:  uint16(unsafe.Sizeof(TSS{}) - 1),
			baseLow:   uint16(tssBase),
			baseMid:   uint8(tssBase >> 16),
			access:    accessPresent | accessTSSAvailable,
			limitHigh: 0,
			baseHigh:  uint8(tssBase >> 24),
		},
		baseUpper: uint32(tssBase >> 32),
	}

	gdtPtr = descriptorPointer{
		limit: uint16(unsafe.Sizeof(table{}) - 1),
		base:  uintptr(unsafe.Pointer(&gdtTable)),
	}

	cpu.LoadGDT(uintptr(unsafe.Pointer(&gdtPtr)))
	cpu.ReloadSegments(SelectorKernelCS, SelectorKernelDS)
	cpu.LoadTSS(SelectorTSS)
}

// SetKernelStack updates RSP0 in the live TSS, used whenever the kernel
// switches which kernel-mode stack a given user thread should resume on.
func SetKernelStack(rsp0 uintptr) {
	kernelTSS.RSP0 = uint64(rsp0)
}
