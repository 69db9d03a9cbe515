// Package boot decodes the stivale2 boot-information structure: a linked
// list of tags, each keyed by a 64-bit id, that the bootloader hands the
// kernel a pointer to at entry. This is the one and only place the kernel
// talks to its bootloader; everything else treats the bootloader as an
// external collaborator reachable only through the values this package
// extracts (the HHDM base, the memory map, the module table, the terminal
// write function).
package boot

import "unsafe"

// tagID identifies a stivale2 struct tag.
type tagID uint64

// Well-known stivale2 struct tag identifiers.
const (
	tagTerminal tagID = 0xc2b3f4c3233b0974
	tagHHDM     tagID = 0xb0ed257db18cb58f
	tagMemmap   tagID = 0x2187f79e8612de07
	tagModules  tagID = 0x4b6fe466aade04ce
)

// tagHeader precedes every tag in the list.
type tagHeader struct {
	Identifier tagID
	Next       uintptr
}

// structHeader is the fixed header of the top-level stivale2 struct the
// bootloader's entry-point argument points to.
type structHeader struct {
	BootloaderBrand   [64]byte
	BootloaderVersion [64]byte
	Tags              uintptr
}

// MemoryType categorizes a MemoryMapEntry.
type MemoryType uint32

// Memory map entry types defined by the stivale2 protocol.
const (
	MemUsable                MemoryType = 1
	MemReserved              MemoryType = 2
	MemACPIReclaimable       MemoryType = 3
	MemACPINVS               MemoryType = 4
	MemBadMemory             MemoryType = 5
	MemBootloaderReclaimable MemoryType = 0x1000
	MemKernelAndModules      MemoryType = 0x1001
	MemFramebuffer           MemoryType = 0x1002
)

// String returns a short label for t, used only for boot diagnostics.
func (t MemoryType) String() string {
	switch t {
	case MemUsable:
		return "usable"
	case MemReserved:
		return "reserved"
	case MemACPIReclaimable:
		return "acpi reclaimable"
	case MemACPINVS:
		return "acpi nvs"
	case MemBadMemory:
		return "bad memory"
	case MemBootloaderReclaimable:
		return "bootloader reclaimable"
	case MemKernelAndModules:
		return "kernel/modules"
	case MemFramebuffer:
		return "framebuffer"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes one contiguous physical memory region.
type MemoryMapEntry struct {
	Base   uint64
	Length uint64
	Type   MemoryType
	_      uint32 // unused, padding per the protocol layout
}

type memmapTag struct {
	tagHeader
	EntryCount uint64
	// Entries immediately follows in memory as EntryCount MemoryMapEntry
	// values; accessed via entryAt below rather than a Go array field
	// since its length is only known at runtime.
}

// Module describes one bootloader-preloaded ELF image.
type Module struct {
	Begin, End uintptr
	Name       string
}

type modulesTag struct {
	tagHeader
	Count uint64
	// Modules immediately follows; see moduleAt.
}

type rawModuleEntry struct {
	Begin, End uintptr
	String     [128]byte
}

// TerminalWriteFn is the raw address of the bootloader-supplied,
// byte-oriented, newline-sensitive, non-blocking terminal write function.
// It follows the System V AMD64 C calling convention (buf in RDI, length
// in RSI), not a Go func value's representation, so callers must invoke it
// through hal.CallTerminalWrite rather than calling it directly.
type TerminalWriteFn uintptr

type terminalTag struct {
	tagHeader
	Flags   uint64
	Cols    uint16
	Rows    uint16
	WriteFn uintptr
}

// Info is the decoded subset of the stivale2 struct this kernel consumes.
type Info struct {
	HHDMBase      uintptr
	MemoryMap     []MemoryMapEntry
	Modules       []Module
	TerminalWrite TerminalWriteFn
}

// errMissingTag reports a required bootloader tag that never showed up in
// the tag list. Parse returns it instead of halting directly so that
// callers (and tests) control the halt policy.
type errMissingTag struct{ tag string }

func (e *errMissingTag) Error() string { return "stivale2: missing " + e.tag + " tag" }

// Parse walks the tag list reachable from the bootloader-supplied struct
// pointer and extracts the HHDM base, memory map, module table and
// terminal write function. Only the HHDM and terminal tags are checked:
// if either is missing Parse returns an error. A missing memory-map or
// modules tag is not reported; the corresponding Info field is left nil.
// The kernel's header (see NewHeader) requests none of these four tags.
func Parse(structPtr uintptr) (*Info, error) {
	hdr := (*structHeader)(unsafe.Pointer(structPtr))

	var info Info
	var sawHHDM, sawTerminal bool

	for tagAddr := hdr.Tags; tagAddr != 0; {
		th := (*tagHeader)(unsafe.Pointer(tagAddr))

		switch th.Identifier {
		case tagHHDM:
			type hhdmTag struct {
				tagHeader
				Addr uint64
			}
			t := (*hhdmTag)(unsafe.Pointer(tagAddr))
			info.HHDMBase = uintptr(t.Addr)
			sawHHDM = true

		case tagMemmap:
			t := (*memmapTag)(unsafe.Pointer(tagAddr))
			info.MemoryMap = decodeMemmap(t)

		case tagModules:
			t := (*modulesTag)(unsafe.Pointer(tagAddr))
			info.Modules = decodeModules(t)

		case tagTerminal:
			t := (*terminalTag)(unsafe.Pointer(tagAddr))
			info.TerminalWrite = TerminalWriteFn(t.WriteFn)
			sawTerminal = true
		}

		tagAddr = th.Next
	}

	if !sawHHDM {
		return nil, &errMissingTag{"HHDM"}
	}
	if !sawTerminal {
		return nil, &errMissingTag{"terminal"}
	}

	return &info, nil
}

func decodeMemmap(t *memmapTag) []MemoryMapEntry {
	base := uintptr(unsafe.Pointer(t)) + unsafe.Sizeof(memmapTag{})
	entries := make([]MemoryMapEntry, t.EntryCount)
	entrySize := unsafe.Sizeof(MemoryMapEntry{})
	for i := uint64(0); i < t.EntryCount; i++ {
		entries[i] = *(*MemoryMapEntry)(unsafe.Pointer(base + uintptr(i)*entrySize))
	}
	return entries
}

func decodeModules(t *modulesTag) []Module {
	base := uintptr(unsafe.Pointer(t)) + unsafe.Sizeof(modulesTag{})
	entrySize := unsafe.Sizeof(rawModuleEntry{})
	modules := make([]Module, t.Count)
	for i := uint64(0); i < t.Count; i++ {
		raw := (*rawModuleEntry)(unsafe.Pointer(base + uintptr(i)*entrySize))
		modules[i] = Module{
			Begin: raw.Begin,
			End:   raw.End,
			Name:  cString(raw.String[:]),
		}
	}
	return modules
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
