package syscall

import (
	"duneos/kernel"
	"duneos/kernel/irq"
	"duneos/kernel/mem"
	"duneos/kernel/mem/pmm"
	"duneos/kernel/mem/vmm"
	"testing"
)

func TestSysMmapAdvancesBumpPointerByFullLength(t *testing.T) {
	bumpPointer = mmapBase
	state.Root = 0

	origMap := mapFn
	var mapped []uintptr
	mapFn = func(root pmm.Frame, virtAddr uintptr, frame pmm.Frame, flags vmm.PteFlags) *kernel.Error {
		mapped = append(mapped, virtAddr)
		return nil
	}
	defer func() { mapFn = origMap }()

	origAlloc := allocFn
	allocFn = func() (pmm.Frame, *kernel.Error) { return pmm.Frame(1), nil }
	defer func() { allocFn = origAlloc }()

	addr := sysMmap(0, true, true, false, 3*uint64(mem.PageSize))

	if addr != mmapBase {
		t.Fatalf("sysMmap returned %#x, want %#x", addr, uint64(mmapBase))
	}
	if len(mapped) != 1 {
		t.Fatalf("sysMmap called Map %d times, want exactly 1 (the under-mapping quirk)", len(mapped))
	}
	if got, want := bumpPointer, uintptr(mmapBase+3*uintptr(mem.PageSize)); got != want {
		t.Fatalf("bumpPointer = %#x, want %#x (advanced by the full requested length)", got, want)
	}
}

func TestSysWriteRejectsBadFD(t *testing.T) {
	if got := sysWrite(5, 0, 0); got != -1 {
		t.Fatalf("sysWrite on fd 5 = %d, want -1", got)
	}
}

func TestSysReadRejectsBadFD(t *testing.T) {
	if got := sysRead(1, 0, 0); got != -1 {
		t.Fatalf("sysRead on fd 1 = %d, want -1", got)
	}
}

func TestDispatchUnknownSyscallEchoesNumber(t *testing.T) {
	regs := &irq.Regs{RAX: 0xffff}
	Dispatch(regs)
	if regs.RAX != 0xffff {
		t.Fatalf("RAX after unknown syscall = %#x, want the syscall number 0xffff echoed back", regs.RAX)
	}
}
