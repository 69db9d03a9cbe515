package elf

import (
	"testing"
	"unsafe"
)

func buildImage(t *testing.T, phdrs []ProgramHeader) []byte {
	t.Helper()

	headerSize := int(unsafe.Sizeof(Header{}))
	phdrSize := int(unsafe.Sizeof(ProgramHeader{}))
	buf := make([]byte, headerSize+phdrSize*len(phdrs))

	hdr := (*Header)(unsafe.Pointer(&buf[0]))
	hdr.Ident[0], hdr.Ident[1], hdr.Ident[2], hdr.Ident[3] = 0x7f, 'E', 'L', 'F'
	hdr.Ident[4] = 2
	hdr.Ident[5] = 1
	hdr.Entry = 0x401000
	hdr.PhOff = uint64(headerSize)
	hdr.PhEntSize = uint16(phdrSize)
	hdr.PhNum = uint16(len(phdrs))

	for i, ph := range phdrs {
		dst := (*ProgramHeader)(unsafe.Pointer(&buf[headerSize+i*phdrSize]))
		*dst = ph
	}

	return buf
}

func TestHeaderValidRejectsBadMagic(t *testing.T) {
	buf := buildImage(t, nil)
	header := headerAt(uintptr(unsafe.Pointer(&buf[0])))
	if !header.Valid() {
		t.Fatal("well-formed synthetic header reported invalid")
	}

	buf[0] = 0x00
	if header.Valid() {
		t.Fatal("corrupted magic reported valid")
	}
}

func TestOpenAndEntry(t *testing.T) {
	buf := buildImage(t, []ProgramHeader{
		{Type: ptLoad, Flags: PFReadable | PFExecutable, VAddr: 0x401000, MemSz: 0x1000, FileSz: 0x1000},
	})

	img, err := Open(uintptr(unsafe.Pointer(&buf[0])))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := img.Entry(), uintptr(0x401000); got != want {
		t.Fatalf("Entry() = %#x, want %#x", got, want)
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	buf := make([]byte, 64)
	if _, err := Open(uintptr(unsafe.Pointer(&buf[0]))); err == nil {
		t.Fatal("Open on zeroed buffer returned no error")
	}
}

func TestProgramHeaderLoadable(t *testing.T) {
	cases := []struct {
		ph   ProgramHeader
		want bool
	}{
		{ProgramHeader{Type: ptLoad, MemSz: 0x1000}, true},
		{ProgramHeader{Type: ptLoad, MemSz: 0}, false},
		{ProgramHeader{Type: 2, MemSz: 0x1000}, false}, // PT_DYNAMIC
	}

	for _, c := range cases {
		if got := c.ph.Loadable(); got != c.want {
			t.Errorf("Loadable() for %+v = %v, want %v", c.ph, got, c.want)
		}
	}
}

func TestSegmentFlags(t *testing.T) {
	const flagRW = 1 << 1 // vmm.FlagRW

	flags := segmentFlags(PFReadable)
	if uint64(flags)&flagRW != 0 {
		t.Error("read-only segment should not carry the writable bit")
	}

	flags = segmentFlags(PFReadable | PFWritable)
	if uint64(flags)&flagRW == 0 {
		t.Error("writable segment should carry the writable bit")
	}
}
