// Package pmm manages physical memory frame allocations: a 4 KiB-aligned
// region of RAM is either free (linked into the allocator's freelist) or
// owned (backing a page-table level, a user-visible page, or a still
// in-use freelist node).
package pmm

import (
	"duneos/kernel/mem"
	"math"
)

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by Alloc when no frame is available.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is not InvalidFrame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address this frame index corresponds to.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the Frame containing physAddr, rounding down to
// the nearest frame boundary if physAddr is not itself frame-aligned.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr &^ (uintptr(mem.PageSize) - 1)) >> mem.PageShift)
}
