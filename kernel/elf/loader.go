package elf

import (
	"duneos/kernel"
	"duneos/kernel/mem"
	"duneos/kernel/mem/pmm"
	"duneos/kernel/mem/vmm"
)

// Image describes an ELF64 executable already resident in memory (a
// stivale2-preloaded module, in this kernel's only caller) along with its
// decoded header, ready for Load to map into a fresh address space.
type Image struct {
	base   uintptr
	header *Header
}

var errNotELF64 = &kernel.Error{Module: "elf", Message: "not a valid little-endian ELF64 image"}

// Open validates the ELF header at base and returns an Image describing
// it. It does not copy the image; base must remain mapped and unchanged
// for the lifetime of the returned Image.
func Open(base uintptr) (*Image, *kernel.Error) {
	header := headerAt(base)
	if !header.Valid() {
		return nil, errNotELF64
	}
	return &Image{base: base, header: header}, nil
}

// Entry returns the image's ELF entry point, a virtual address the
// loaded process should begin executing at.
func (img *Image) Entry() uintptr {
	return uintptr(img.header.Entry)
}

// Load maps every PT_LOAD segment of img into the address space rooted
// at root, following the permissive-then-protect pattern: each segment's
// pages are first mapped present+writable+user-accessible so the kernel
// (still running with root active) can copy the segment's file contents
// in, then re-protected to the segment's real p_flags. Segment bytes
// beyond p_filesz (the BSS) are left zeroed, since a freshly allocated
// frame is not zeroed by the allocator and carries whatever pmm last left
// there. Load zeroes every destination page before copying file contents
// over the front of it.
func (img *Image) Load(root pmm.Frame) *kernel.Error {
	for i := uint16(0); i < img.header.PhNum; i++ {
		ph := programHeaderAt(img.base, img.header, i)
		if !ph.Loadable() {
			continue
		}

		if err := img.loadSegment(root, ph); err != nil {
			return err
		}
	}
	return nil
}

func (img *Image) loadSegment(root pmm.Frame, ph *ProgramHeader) *kernel.Error {
	segStart := uintptr(ph.VAddr) &^ (uintptr(mem.PageSize) - 1)
	segEnd := uintptr(ph.VAddr) + uintptr(ph.MemSz)

	for page := segStart; page < segEnd; page += uintptr(mem.PageSize) {
		frame, err := pmm.Alloc()
		if err != nil {
			return err
		}

		if err := vmm.Map(root, page, frame, vmm.FlagRW|vmm.FlagUserAccessible); err != nil {
			return err
		}

		kernel.Memset(mem.PtoV(frame.Address()), 0, uintptr(mem.PageSize))
	}

	if ph.FileSz > 0 {
		kernel.Memcopy(
			img.base+uintptr(ph.Offset),
			uintptr(ph.VAddr),
			uintptr(ph.FileSz),
		)
	}

	flags := segmentFlags(ph.Flags)
	for page := segStart; page < segEnd; page += uintptr(mem.PageSize) {
		if err := vmm.Protect(root, page, flags); err != nil {
			return err
		}
	}
	return nil
}

func segmentFlags(elfFlags uint32) vmm.PteFlags {
	var flags vmm.PteFlags
	if elfFlags&PFWritable != 0 {
		flags |= vmm.FlagRW
	}
	if elfFlags&PFExecutable == 0 {
		flags |= vmm.FlagNoExecute
	}
	flags |= vmm.FlagUserAccessible
	return flags
}
