package vmm

import (
	"duneos/kernel"
	"duneos/kernel/mem"
	"duneos/kernel/mem/pmm"
	"unsafe"
)

// FrameAllocatorFn matches pmm.Alloc's signature. vmm depends on it through
// a function variable, not a direct call into pmm's Alloc, so that tests
// can swap in a fake allocator without seeding the real freelist; kmain
// wires the real one in at boot with SetFrameAllocator.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

var frameAllocator FrameAllocatorFn = pmm.Alloc

// SetFrameAllocator overrides the allocator vmm uses to materialize new
// page-table levels. Tests use this to inject a deterministic fake; kmain
// calls it once at boot, after pmm.Init, to install the real one.
func SetFrameAllocator(fn FrameAllocatorFn) {
	frameAllocator = fn
}

// tableAt returns the HHDM-mapped view of the page table backed by frame.
// Unlike the recursive self-mapping trick this mirrors in spirit, no
// virtual address inside the address space being edited is ever
// dereferenced to reach a table: every table is addressed through the
// kernel's own fixed HHDM window, so walking and editing page tables never
// needs an active mapping for the tables themselves.
func tableAt(frame pmm.Frame) *table {
	return (*table)(unsafe.Pointer(mem.PtoV(frame.Address())))
}

// tableAtFn indirects every table lookup through a function variable so
// tests can substitute ordinary Go-allocated tables for frames that have
// no real backing memory at frame.Address()+HHDMBase.
var tableAtFn = tableAt

// walkResult names the leaf-level table slot a walk() arrives at for a
// given virtual address, alongside the per-level tables visited on the way
// there (root-to-leaf order). Map, Unmap, Protect and Translate read only
// the leaf slot.
type walkResult struct {
	levels [pageLevels]*table
	index  [pageLevels]uintptr
}

// leaf returns the final-level (PT) table and index the walk arrived at.
func (w *walkResult) leaf() (*table, uintptr) {
	return w.levels[pageLevels-1], w.index[pageLevels-1]
}

// walk descends the 4-level page-table hierarchy rooted at root toward
// virtAddr. When allocate is true, any missing intermediate table
// (PML4/PDPT/PD entry not yet present) is materialized from
// frameAllocator and linked in as present+writable+user-accessible; the
// leaf (PT) entry's own flags are left for the caller to set. When
// allocate is false, a missing intermediate table is reported as
// errUnmapped instead of being created. This is the path Unmap and
// Translate use, since walking into fresh tables on a lookup would
// silently fabricate mappings that were never made.
func walk(root pmm.Frame, virtAddr uintptr, allocate bool) (*walkResult, *kernel.Error) {
	var result walkResult

	cur := tableAtFn(root)
	for level := uint8(0); level < pageLevels; level++ {
		idx := indexAtLevel(virtAddr, level)
		result.levels[level] = cur
		result.index[level] = idx

		if level == pageLevels-1 {
			break
		}

		entry := cur[idx]
		if !entry.present() {
			if !allocate {
				return nil, errUnmapped
			}

			frame, err := frameAllocator()
			if err != nil {
				return nil, err
			}

			child := tableAtFn(frame)
			*child = table{}
			cur[idx] = withFrameAndFlags(frame, FlagPresent|FlagRW|FlagUserAccessible)
			cur = child
			continue
		}

		if entry.flags()&FlagHugePage != 0 {
			return nil, &kernel.Error{Module: "vmm", Message: "walk: huge page encountered mid-walk"}
		}

		cur = tableAtFn(entry.frame())
	}

	return &result, nil
}
