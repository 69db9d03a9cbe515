// Package cpu wraps the handful of amd64 instructions Go cannot express
// directly: port I/O, control-register access, TLB invalidation and the
// interrupt-enable flag. Every exported function here is declared without
// a body; its implementation lives in the companion cpu_amd64.s Plan9
// assembly file. Nothing in this package allocates or can fail: these
// are leaves, not policy.
package cpu

// Outb writes a byte to the given I/O port.
func Outb(port uint16, value uint8)

// Inb reads a byte from the given I/O port.
func Inb(port uint16) uint8

// Outw writes a 16-bit word to the given I/O port.
func Outw(port uint16, value uint16)

// Inw reads a 16-bit word from the given I/O port.
func Inw(port uint16) uint16

// ReadCR2 returns the faulting address recorded by the last page fault.
func ReadCR2() uintptr

// ReadCR3 returns the physical address of the currently active PML4.
func ReadCR3() uintptr

// WriteCR3 loads a new PML4 physical address, switching address spaces.
// Loading CR3 always flushes the entire non-global TLB as a side effect
// of the architecture, so a WriteCR3 call never needs to be paired with a
// FlushTLBFull.
func WriteCR3(pml4Phys uintptr)

// FlushTLBEntry invalidates the single TLB entry caching virtAddr's
// translation (the INVLPG instruction).
func FlushTLBEntry(virtAddr uintptr)

// FlushTLBFull reloads CR3 with its own current value, which the
// architecture defines as flushing every non-global TLB entry.
func FlushTLBFull()

// EnableInterrupts sets the interrupt flag (STI).
func EnableInterrupts()

// DisableInterrupts clears the interrupt flag (CLI).
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt (HLT),
// looped forever; it never returns. Used both to idle and as the last
// step of a kernel panic.
func Halt()

// LoadIDT loads the interrupt descriptor table register from the
// descriptor at descriptorAddr (LIDT).
func LoadIDT(descriptorAddr uintptr)

// LoadGDT loads the global descriptor table register from the descriptor
// at descriptorAddr (LGDT).
func LoadGDT(descriptorAddr uintptr)

// LoadTSS loads the task register with the given GDT selector (LTR).
func LoadTSS(selector uint16)

// ReloadSegments reloads CS via a far return and DS/ES/SS/FS/GS from the
// given data-segment selector; used once, right after LoadGDT, to start
// running with the new segment descriptors instead of the bootloader's.
func ReloadSegments(codeSelector, dataSelector uint16)
