package boot

import (
	"testing"
	"unsafe"
)

// buildStruct lays out a synthetic stivale2 struct plus a tag chain in a
// single byte slice and returns the address of the struct header.
func buildStruct(t *testing.T, hhdmBase uint64, mmapEntries []MemoryMapEntry) (uintptr, []byte) {
	t.Helper()

	type hhdmTagLayout struct {
		tagHeader
		Addr uint64
	}

	headerSize := int(unsafe.Sizeof(structHeader{}))
	hhdmSize := int(unsafe.Sizeof(hhdmTagLayout{}))
	memmapSize := int(unsafe.Sizeof(memmapTag{})) + len(mmapEntries)*int(unsafe.Sizeof(MemoryMapEntry{}))
	termSize := int(unsafe.Sizeof(terminalTag{}))

	buf := make([]byte, headerSize+hhdmSize+memmapSize+termSize)
	base := uintptr(unsafe.Pointer(&buf[0]))

	hhdmOff := headerSize
	memmapOff := hhdmOff + hhdmSize
	termOff := memmapOff + memmapSize

	hdr := (*structHeader)(unsafe.Pointer(&buf[0]))
	hdr.Tags = base + uintptr(hhdmOff)

	hhdm := (*hhdmTagLayout)(unsafe.Pointer(&buf[hhdmOff]))
	hhdm.Identifier = tagHHDM
	hhdm.Next = base + uintptr(memmapOff)
	hhdm.Addr = hhdmBase

	mm := (*memmapTag)(unsafe.Pointer(&buf[memmapOff]))
	mm.Identifier = tagMemmap
	mm.Next = base + uintptr(termOff)
	mm.EntryCount = uint64(len(mmapEntries))
	entriesBase := memmapOff + int(unsafe.Sizeof(memmapTag{}))
	for i, e := range mmapEntries {
		dst := (*MemoryMapEntry)(unsafe.Pointer(&buf[entriesBase+i*int(unsafe.Sizeof(MemoryMapEntry{}))]))
		*dst = e
	}

	term := (*terminalTag)(unsafe.Pointer(&buf[termOff]))
	term.Identifier = tagTerminal
	term.Next = 0
	term.WriteFn = 0xdeadbeef

	return base, buf
}

func TestParseExtractsHHDMAndMemoryMap(t *testing.T) {
	entries := []MemoryMapEntry{
		{Base: 0x1000, Length: 0x1000, Type: MemUsable},
		{Base: 0x100000, Length: 0x200000, Type: MemReserved},
	}

	base, buf := buildStruct(t, 0xffff800000000000, entries)
	_ = buf

	info, err := Parse(base)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if info.HHDMBase != 0xffff800000000000 {
		t.Fatalf("HHDMBase = %#x, want %#x", info.HHDMBase, uintptr(0xffff800000000000))
	}

	if len(info.MemoryMap) != len(entries) {
		t.Fatalf("MemoryMap has %d entries, want %d", len(info.MemoryMap), len(entries))
	}
	for i, e := range entries {
		if info.MemoryMap[i] != e {
			t.Errorf("entry %d = %+v, want %+v", i, info.MemoryMap[i], e)
		}
	}
}

func TestParseMissingHHDMReturnsError(t *testing.T) {
	headerSize := int(unsafe.Sizeof(structHeader{}))
	termSize := int(unsafe.Sizeof(terminalTag{}))
	buf := make([]byte, headerSize+termSize)
	base := uintptr(unsafe.Pointer(&buf[0]))

	hdr := (*structHeader)(unsafe.Pointer(&buf[0]))
	hdr.Tags = base + uintptr(headerSize)

	term := (*terminalTag)(unsafe.Pointer(&buf[headerSize]))
	term.Identifier = tagTerminal
	term.Next = 0

	if _, err := Parse(base); err == nil {
		t.Fatal("Parse with no HHDM tag returned no error")
	}
}

func TestMemoryTypeString(t *testing.T) {
	if got := MemUsable.String(); got != "usable" {
		t.Errorf("MemUsable.String() = %q, want %q", got, "usable")
	}
	if got := MemoryType(0xabcd).String(); got != "unknown" {
		t.Errorf("unknown type String() = %q, want %q", got, "unknown")
	}
}
