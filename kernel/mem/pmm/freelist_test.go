package pmm

import (
	"duneos/kernel/boot"
	"duneos/kernel/mem"
	"testing"
	"unsafe"
)

// backing is real process memory standing in for the physical frames under
// test: Init and Free write freelist nodes through the HHDM window, so
// HHDMBase is pointed at this buffer rather than at unmapped addresses.
var backing []byte

func backPhysicalRange(base, length uint64) {
	backing = make([]byte, length)
	mem.HHDMBase = uintptr(unsafe.Pointer(&backing[0])) - uintptr(base)
}

// resetFreelist clears all package-level allocator state between tests,
// since Init/Alloc/Free are deliberately package-global (there is exactly
// one physical address space).
func resetFreelist() {
	head = 0
	numFree = 0
}

func seedRegion(t *testing.T, base, length uint64) {
	t.Helper()
	backPhysicalRange(base, length)
	Init([]boot.MemoryMapEntry{
		{Base: base, Length: length, Type: boot.MemUsable},
	})
}

func TestAllocDistinctUntilExhausted(t *testing.T) {
	resetFreelist()

	const regionBase = 0x100000
	const regionLen = 0x100000 // 256 frames of 4 KiB
	const wantFrames = regionLen / uint64(mem.PageSize)

	seedRegion(t, regionBase, regionLen)

	if got := NumFree(); got != wantFrames {
		t.Fatalf("NumFree() after Init = %d, want %d", got, wantFrames)
	}

	seen := make(map[Frame]bool, wantFrames)
	for i := uint64(0); i < wantFrames; i++ {
		f, err := Alloc()
		if err != nil {
			t.Fatalf("Alloc() #%d returned error: %v", i, err)
		}
		if seen[f] {
			t.Fatalf("Alloc() #%d returned duplicate frame %d", i, f)
		}
		seen[f] = true
	}

	if _, err := Alloc(); err == nil {
		t.Fatal("Alloc() after exhausting the freelist returned no error")
	}
}

func TestFreeThenReallocLIFO(t *testing.T) {
	resetFreelist()
	seedRegion(t, 0x100000, 0x4000) // 4 frames

	a, _ := Alloc()
	b, _ := Alloc()
	c, _ := Alloc()
	d, _ := Alloc()

	if _, err := Alloc(); err == nil {
		t.Fatal("expected exhaustion after allocating all 4 seeded frames")
	}

	Free(b)
	Free(d)

	// LIFO: the most recently freed frame (d) comes back first.
	got, err := Alloc()
	if err != nil {
		t.Fatalf("Alloc() after Free: %v", err)
	}
	if got != d {
		t.Fatalf("Alloc() after freeing b then d = %d, want %d (LIFO order)", got, d)
	}

	got, err = Alloc()
	if err != nil {
		t.Fatalf("Alloc() after Free: %v", err)
	}
	if got != b {
		t.Fatalf("Alloc() second pop = %d, want %d", got, b)
	}

	if _, err := Alloc(); err == nil {
		t.Fatal("expected exhaustion again after redraining the two freed frames")
	}

	_ = a
	_ = c
}

func TestFreeZeroIsNoOp(t *testing.T) {
	resetFreelist()
	seedRegion(t, 0x100000, 0x1000)

	before := NumFree()
	Free(0)
	if after := NumFree(); after != before {
		t.Fatalf("Free(0) changed NumFree() from %d to %d, want no-op", before, after)
	}
}

func TestInitSkipsNonUsableRegions(t *testing.T) {
	resetFreelist()
	backPhysicalRange(0, 0x5000)

	Init([]boot.MemoryMapEntry{
		{Base: 0x0, Length: 0x1000, Type: boot.MemReserved},
		{Base: 0x1000, Length: 0x2000, Type: boot.MemUsable},
		{Base: 0x3000, Length: 0x1000, Type: boot.MemACPIReclaimable},
		{Base: 0x4000, Length: 0x1000, Type: boot.MemBadMemory},
	})

	if got, want := NumFree(), uint64(2); got != want {
		t.Fatalf("NumFree() = %d, want %d (only the usable region's 2 frames)", got, want)
	}
}
