// Package elf decodes and loads 64-bit little-endian ELF executables: the
// only object format this kernel's module loader and its exec syscall
// understand.
package elf

import "unsafe"

// Segment type this loader acts on; every other p_type value is skipped.
const ptLoad = 1

// Segment permission flags, as packed into ProgramHeader's Flags (p_flags)
// field.
const (
	PFExecutable = 1 << 0
	PFWritable   = 1 << 1
	PFReadable   = 1 << 2
)

// Header is the 64-byte ELF64 file header.
type Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

// ProgramHeader is one ELF64 program header table entry, describing a
// single loadable (or otherwise typed) segment.
type ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// Valid reports whether h looks like a 64-bit, little-endian ELF header
// this loader can act on.
func (h *Header) Valid() bool {
	return h.Ident[0] == elfMagic[0] && h.Ident[1] == elfMagic[1] &&
		h.Ident[2] == elfMagic[2] && h.Ident[3] == elfMagic[3] &&
		h.Ident[4] == 2 && // ELFCLASS64
		h.Ident[5] == 1 // ELFDATA2LSB
}

// headerAt overlays a Header onto the bytes at imageBase with no copy;
// ELF files loaded by this kernel always come from a bootloader-mapped
// module image already resident in memory.
func headerAt(imageBase uintptr) *Header {
	return (*Header)(unsafe.Pointer(imageBase))
}

// programHeaderAt returns the i-th program header table entry of an image
// whose ELF header is at imageBase.
func programHeaderAt(imageBase uintptr, header *Header, i uint16) *ProgramHeader {
	off := uintptr(header.PhOff) + uintptr(i)*uintptr(header.PhEntSize)
	return (*ProgramHeader)(unsafe.Pointer(imageBase + off))
}

// Loadable reports whether ph is a PT_LOAD segment worth mapping; zero
// byte segments carry no content and are skipped, mirroring how this
// loader's exec path treats them.
func (ph *ProgramHeader) Loadable() bool {
	return ph.Type == ptLoad && ph.MemSz > 0
}
