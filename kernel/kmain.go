// Package kernel holds the boot orchestration entry point and the
// handful of types (Error, the allocation-free Memset/Memcopy helpers)
// every other package in this tree depends on without depending on each
// other.
package kernel

import (
	"duneos/kernel/boot"
	"duneos/kernel/cpu"
	"duneos/kernel/elf"
	"duneos/kernel/gdt"
	"duneos/kernel/hal"
	"duneos/kernel/irq"
	"duneos/kernel/keyboard"
	"duneos/kernel/kfmt"
	"duneos/kernel/mem"
	"duneos/kernel/mem/pmm"
	"duneos/kernel/mem/vmm"
	"duneos/kernel/syscall"
	"duneos/kernel/usermode"
	"unsafe"
)

// kernelStackSize is the size of the stack RSP0 points at for the lifetime
// of the kernel: the CPU switches onto it on every ring-3-to-ring-0
// transition. kmain itself never switches onto it; it keeps running on the
// bootloader-mode stack (earlyStack in main.go). kernelStack is a
// package-level array in the kernel's BSS, not dynamically allocated.
const kernelStackSize = 64 * 1024

var kernelStack [kernelStackSize]byte

// shellModuleName is the stivale2 module this kernel looks for once boot
// is complete; both the initial jump to user mode and the exit syscall's
// "exit means restart the shell" behavior use it.
const shellModuleName = "shell"

// Kmain is the kernel's single entry point, called by the architecture
// trampoline (see main.go) with the physical address of the
// bootloader-supplied stivale2 struct. It never returns: on success it
// transitions into the shell module running in ring 3; on any
// unrecoverable failure it halts after printing a diagnostic.
func Kmain(stivale2StructAddr uintptr) {
	info, err := boot.Parse(stivale2StructAddr)
	if err != nil {
		// No terminal tag means no way to print this: halt silently.
		cpu.Halt()
	}

	mem.HHDMBase = info.HHDMBase
	hal.InstallTerminal(info)

	kfmt.Printf("duneos: booting\n")

	pmm.Init(info.MemoryMap)
	vmm.SetFrameAllocator(pmm.Alloc)

	root, vmErr := buildKernelAddressSpace(info)
	if vmErr != nil {
		kfmt.Panic(vmErr)
	}

	cpu.WriteCR3(root.Address())

	irq.Init()
	irq.SetDiagnosticSink(func(name string, vector, errorCode, rip, cs, rflags, rsp, ss uint64) {
		kfmt.Printf("fatal exception: %s (vector=%d, error_code=0x%x)\n", name, vector, errorCode)
		kfmt.Printf("RIP=%16x CS=%16x RFLAGS=%16x\n", rip, cs, rflags)
		kfmt.Printf("RSP=%16x SS=%16x\n", rsp, ss)
	})

	gdt.Install(unsafePointerToStackTop())
	keyboard.Init()
	cpu.EnableInterrupts()

	vmm.TearDownLowerHalf(root)

	syscall.Init(syscall.State{
		Root:             root,
		UserCodeSelector: gdt.SelectorUserCS,
		UserDataSelector: gdt.SelectorUserDS,
		UserStackTop:     userStackTop,
		Modules:          info.Modules,
	})

	startShell(root, info.Modules)

	// startShell only returns on failure.
	kfmt.Printf("duneos: no \"%s\" module found; halting\n", shellModuleName)
	cpu.Halt()
}

// userStackTop is the fixed virtual address this kernel's single running
// process's stack grows down from.
const userStackTop = 0x70000000000 + 8*0x1000

const userStackSize = 8 * 0x1000

// buildKernelAddressSpace allocates a fresh PML4 and identity-maps the
// bootloader-visible physical memory plus the HHDM window, so the kernel
// can keep running once it switches to its own page tables instead of the
// bootloader's.
func buildKernelAddressSpace(info *boot.Info) (pmm.Frame, *Error) {
	root, err := vmm.NewAddressSpace()
	if err != nil {
		return pmm.InvalidFrame, err
	}

	for _, region := range info.MemoryMap {
		if region.Type == boot.MemBadMemory {
			continue
		}
		if err := vmm.IdentityMapRange(root, uintptr(region.Base), mem.Size(region.Length), vmm.FlagRW); err != nil {
			return pmm.InvalidFrame, err
		}
		if err := vmm.IdentityMapRange(root, mem.PtoV(uintptr(region.Base)), mem.Size(region.Length), vmm.FlagRW); err != nil {
			return pmm.InvalidFrame, err
		}
	}

	return root, nil
}

func unsafePointerToStackTop() uintptr {
	return uintptr(unsafe.Pointer(&kernelStack[0])) + uintptr(len(kernelStack))
}

// startShell locates the shell module in the bootloader's module list,
// loads it and jumps to it in ring 3. It runs once, at boot; when a
// process exits, syscall.sysExit loads the same module again by name
// through sysExec, not through startShell, since this kernel has no
// process table to fall back to.
func startShell(root pmm.Frame, modules []boot.Module) {
	for _, m := range modules {
		if m.Name != shellModuleName {
			continue
		}

		img, err := elf.Open(mem.PtoV(m.Begin))
		if err != nil {
			kfmt.Printf("duneos: shell module: %s\n", err.Message)
			return
		}
		if err := img.Load(root); err != nil {
			kfmt.Printf("duneos: shell module: %s\n", err.Message)
			return
		}

		for p := userStackTop - userStackSize; p < userStackTop; p += uintptr(mem.PageSize) {
			frame, allocErr := pmm.Alloc()
			if allocErr != nil {
				kfmt.Printf("duneos: out of memory mapping shell stack\n")
				return
			}
			if mapErr := vmm.Map(root, p, frame, vmm.FlagRW|vmm.FlagUserAccessible|vmm.FlagNoExecute); mapErr != nil {
				kfmt.Printf("duneos: %s\n", mapErr.Message)
				return
			}
		}

		usermode.Enter(gdt.SelectorUserDS, gdt.SelectorUserCS, userStackTop-8, img.Entry())
	}
}
