// Package vmm implements the 4-level amd64 page-table walker: mapping,
// unmapping, permission changes and translation for a single address
// space, addressed by its PML4 frame. It never itself decides which
// address space is "current" on the CPU (that is cpu.WriteCR3's job); it
// only edits whatever table tree it is given the root of.
package vmm

import (
	"duneos/kernel"
	"duneos/kernel/cpu"
	"duneos/kernel/mem"
	"duneos/kernel/mem/pmm"
)

// errUnmapped is returned by Unmap, Protect and Translate when asked to
// operate on a virtual address with no mapping.
var errUnmapped = &kernel.Error{Module: "vmm", Message: "address is not mapped"}

// lowerHalfEntries is the number of PML4 entries in the canonical lower
// half: indices 0-255. TearDownLowerHalf walks exactly this range.
const lowerHalfEntries = entriesPerTable / 2

// Map installs a single-page mapping for virtAddr in the address space
// rooted at root, pointing at frame with the given flags. Any PDPT/PD/PT
// level missing along the way is allocated on demand. If a mapping
// already exists for virtAddr, it is silently overwritten: callers that
// care about pre-existing mappings must check with Translate first.
//
// Map does not roll back frames it allocated for intermediate levels if a
// later allocation in the same call fails partway through; the address
// space is left with a partially extended table tree and the caller's
// Alloc budget is reduced accordingly. This mirrors the allocator being
// asked to grow a tree it cannot shrink mid-operation, and is deliberate:
// untangling a partial walk would require tracking and possibly freeing
// shared intermediate tables, which this single-level Map has no way to
// tell apart from tables other mappings also depend on.
func Map(root pmm.Frame, virtAddr uintptr, frame pmm.Frame, flags PteFlags) *kernel.Error {
	result, err := walk(root, virtAddr, true)
	if err != nil {
		return err
	}

	leafTable, idx := result.leaf()
	leafTable[idx] = withFrameAndFlags(frame, flags|FlagPresent)
	cpu.FlushTLBEntry(virtAddr)
	return nil
}

// Unmap removes the mapping for virtAddr in the address space rooted at
// root, returns the data frame named by the leaf entry to the allocator
// with pmm.Free, and returns that frame. The frame is already free when
// Unmap returns: callers must not free it again. Frames are not
// refcounted, so a frame shared by another mapping is freed all the same.
func Unmap(root pmm.Frame, virtAddr uintptr) (pmm.Frame, *kernel.Error) {
	result, err := walk(root, virtAddr, false)
	if err != nil {
		return pmm.InvalidFrame, err
	}

	leafTable, idx := result.leaf()
	entry := leafTable[idx]
	if !entry.present() {
		return pmm.InvalidFrame, errUnmapped
	}

	freed := entry.frame()
	leafTable[idx] = 0
	cpu.FlushTLBEntry(virtAddr)
	pmm.Free(freed)
	return freed, nil
}

// Protect changes the flag bits of an existing mapping without touching
// which frame it points at. FlagPresent is always forced on: Protect
// cannot be used to unmap (use Unmap for that).
func Protect(root pmm.Frame, virtAddr uintptr, flags PteFlags) *kernel.Error {
	result, err := walk(root, virtAddr, false)
	if err != nil {
		return err
	}

	leafTable, idx := result.leaf()
	entry := leafTable[idx]
	if !entry.present() {
		return errUnmapped
	}

	leafTable[idx] = withFrameAndFlags(entry.frame(), flags|FlagPresent)
	cpu.FlushTLBEntry(virtAddr)
	return nil
}

// Translate returns the physical frame and flags currently backing
// virtAddr in the address space rooted at root.
func Translate(root pmm.Frame, virtAddr uintptr) (pmm.Frame, PteFlags, *kernel.Error) {
	result, err := walk(root, virtAddr, false)
	if err != nil {
		return pmm.InvalidFrame, 0, err
	}

	leafTable, idx := result.leaf()
	entry := leafTable[idx]
	if !entry.present() {
		return pmm.InvalidFrame, 0, errUnmapped
	}

	return entry.frame(), entry.flags(), nil
}

// TearDownLowerHalf clears PML4 entries 0-255 (the canonical lower half,
// user space) of the address space rooted at root, walking each present
// entry's PDPT/PD/PT subtree and freeing every intermediate page-table
// frame it reaches back to the allocator. Leaf data frames are left
// untouched: the PT entries (or huge PD/PDPT entries) that mapped them
// are simply dropped along with the table that held them. It is used
// once, during boot, to drop the identity mappings the bootloader handed
// the kernel after the kernel has switched to running entirely out of
// its own higher-half and HHDM mappings (those identity-mapped data
// frames are reclaimed separately, by walking the original stivale2
// memory map, not by tearing down this tree), and again on every exec,
// to clear whatever the previous process left mapped in the lower half
// before a new image is loaded.
func TearDownLowerHalf(root pmm.Frame) {
	pml4 := tableAtFn(root)
	for i := 0; i < lowerHalfEntries; i++ {
		entry := pml4[i]
		if entry.present() {
			freeLowerPDPT(entry.frame())
		}
		pml4[i] = 0
	}
	cpu.FlushTLBFull()
}

// freeLowerPDPT frees every present, non-huge PD frame reachable from the
// PDPT at pdptFrame (via freeLowerPD), then frees pdptFrame itself. A
// present entry with FlagHugePage set maps a 1 GiB data frame directly
// and is skipped: only table frames are reclaimed here.
func freeLowerPDPT(pdptFrame pmm.Frame) {
	pdpt := tableAtFn(pdptFrame)
	for i := 0; i < entriesPerTable; i++ {
		entry := pdpt[i]
		if !entry.present() || entry.flags()&FlagHugePage != 0 {
			continue
		}
		freeLowerPD(entry.frame())
	}
	pmm.Free(pdptFrame)
}

// freeLowerPD frees every present, non-huge PT frame reachable from the
// PD at pdFrame, then frees pdFrame itself. A present entry with
// FlagHugePage set maps a 2 MiB data frame directly and is skipped.
func freeLowerPD(pdFrame pmm.Frame) {
	pd := tableAtFn(pdFrame)
	for i := 0; i < entriesPerTable; i++ {
		entry := pd[i]
		if !entry.present() || entry.flags()&FlagHugePage != 0 {
			continue
		}
		pmm.Free(entry.frame())
	}
	pmm.Free(pdFrame)
}

// NewAddressSpace allocates a fresh, zeroed PML4 frame with no mappings at
// all, suitable as the root argument to Map/Unmap/Protect/Translate for a
// brand new process.
func NewAddressSpace() (pmm.Frame, *kernel.Error) {
	frame, err := frameAllocator()
	if err != nil {
		return pmm.InvalidFrame, err
	}
	*tableAtFn(frame) = table{}
	return frame, nil
}

// IdentityMapRange maps every page in [physStart, physStart+length) to
// itself in the address space rooted at root, used while constructing the
// kernel's own higher-half mapping during early boot.
func IdentityMapRange(root pmm.Frame, physStart uintptr, length mem.Size, flags PteFlags) *kernel.Error {
	start := physStart &^ (uintptr(mem.PageSize) - 1)
	end := physStart + uintptr(length)

	for addr := start; addr < end; addr += uintptr(mem.PageSize) {
		if err := Map(root, addr, pmm.FrameFromAddress(addr), flags); err != nil {
			return err
		}
	}
	return nil
}
