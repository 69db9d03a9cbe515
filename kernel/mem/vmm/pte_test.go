package vmm

import (
	"duneos/kernel/mem/pmm"
	"testing"
)

func TestWithFrameAndFlagsRoundTrip(t *testing.T) {
	frame := pmm.Frame(0x1234)
	entry := withFrameAndFlags(frame, FlagPresent|FlagRW|FlagNoExecute)

	if !entry.present() {
		t.Fatal("entry built with FlagPresent reports not present")
	}
	if got := entry.frame(); got != frame {
		t.Fatalf("entry.frame() = %#x, want %#x", got, frame)
	}

	flags := entry.flags()
	if flags&FlagRW == 0 {
		t.Error("missing FlagRW")
	}
	if flags&FlagNoExecute == 0 {
		t.Error("missing FlagNoExecute")
	}
	if flags&FlagUserAccessible != 0 {
		t.Error("unexpected FlagUserAccessible")
	}
}

func TestNotPresentEntryHasInvalidFrame(t *testing.T) {
	var entry pte
	if entry.present() {
		t.Fatal("zero-value entry reports present")
	}
	if entry.frame() != pmm.InvalidFrame {
		t.Fatalf("frame() on an absent entry = %#x, want InvalidFrame", entry.frame())
	}
}

func TestIndexAtLevel(t *testing.T) {
	// 0x0000008040201000 touches PML4[1], PDPT[1], PD[1], PT[1].
	const addr = uintptr(0x0000008040201000)

	for level := uint8(0); level < 4; level++ {
		if got := indexAtLevel(addr, level); got != 1 {
			t.Errorf("indexAtLevel(level=%d) = %d, want 1", level, got)
		}
	}
}
