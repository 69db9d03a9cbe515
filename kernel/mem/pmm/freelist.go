package pmm

import (
	"duneos/kernel"
	"duneos/kernel/boot"
	"duneos/kernel/kfmt"
	"duneos/kernel/mem"
	"duneos/kernel/sync"
	"unsafe"
)

// freeNode is the intrusive, in-place freelist link written into a free
// frame's own bytes via its HHDM alias. A free frame has no other content
// worth preserving, so the allocator is free to use its first eight bytes
// as a "next" pointer: this is what lets the freelist hold an arbitrary
// number of frames without ever allocating bookkeeping memory of its own.
type freeNode struct {
	next uintptr // HHDM virtual address of the next free node, or 0
}

var (
	listLock sync.Spinlock
	head     uintptr // HHDM virtual address of the top of the freelist, or 0
	numFree  uint64
)

// errOutOfMemory is returned by Alloc once the freelist is exhausted.
var errOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}

// Init seeds the freelist from the usable regions of a stivale2 memory map.
// Every 4 KiB-aligned frame inside a MemUsable region is pushed onto the
// list; reserved, ACPI, framebuffer, bootloader and kernel/module regions
// are skipped entirely; this is the allocator's only pass over the memory
// map, so whatever isn't recorded here is never reclaimed.
func Init(memoryMap []boot.MemoryMapEntry) {
	var regions, frames uint64

	for _, region := range memoryMap {
		if region.Type != boot.MemUsable {
			continue
		}

		base := alignUp(uintptr(region.Base), uintptr(mem.PageSize))
		end := uintptr(region.Base + region.Length)
		if base >= end {
			continue
		}

		regions++
		for addr := base; addr+uintptr(mem.PageSize) <= end; addr += uintptr(mem.PageSize) {
			pushFrame(FrameFromAddress(addr))
			frames++
		}
	}

	kfmt.Printf("pmm: seeded %d usable region(s), %d frames (%d KiB) free\n",
		regions, frames, frames*uint64(mem.PageSize)/uint64(mem.Kb))
}

// Alloc pops a single free frame off the list. The returned frame's
// contents are whatever they last held (including, momentarily, this
// allocator's own link pointer); callers that need a zeroed page must zero
// it themselves after mapping it.
func Alloc() (Frame, *kernel.Error) {
	listLock.Acquire()
	defer listLock.Release()

	if head == 0 {
		return InvalidFrame, errOutOfMemory
	}

	node := (*freeNode)(unsafe.Pointer(head))
	frame := FrameFromAddress(head - mem.HHDMBase)
	head = node.next
	numFree--

	return frame, nil
}

// Free returns f to the freelist, making it available to a future Alloc.
// Freeing the zero frame is a documented no-op: frame 0 backs the
// bootloader's reclaimed-null page and is never handed out by Alloc, so a
// caller that accidentally frees it should not corrupt the list.
func Free(f Frame) {
	if f == 0 {
		return
	}

	listLock.Acquire()
	defer listLock.Release()

	pushFrame(f)
}

// NumFree reports the number of frames currently on the list. It exists
// for diagnostics and tests, not for allocation decisions.
func NumFree() uint64 {
	listLock.Acquire()
	defer listLock.Release()
	return numFree
}

// pushFrame links f onto the head of the list. Callers already hold
// listLock or are still single-threaded during Init.
func pushFrame(f Frame) {
	addr := mem.PtoV(f.Address())
	node := (*freeNode)(unsafe.Pointer(addr))
	node.next = head
	head = addr
	numFree++
}

func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
