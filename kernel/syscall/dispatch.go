// Package syscall implements the kernel side of the int 0x80 syscall
// ABI: five numbered operations (write, read, mmap, exec, exit) a ring-3
// process reaches the kernel through, with arguments passed in
// RDI/RSI/RDX/R10/R8 and the result returned in RAX.
package syscall

import (
	"duneos/kernel/boot"
	"duneos/kernel/elf"
	"duneos/kernel/irq"
	"duneos/kernel/keyboard"
	"duneos/kernel/kfmt"
	"duneos/kernel/mem"
	"duneos/kernel/mem/pmm"
	"duneos/kernel/mem/vmm"
	"duneos/kernel/usermode"
)

// Syscall numbers.
const (
	NumWrite = 0
	NumRead  = 1
	NumMmap  = 2
	NumExec  = 3
	NumExit  = 4
)

const (
	fdStdin  = 0
	fdStdout = 1
	fdStderr = 2
)

// mmapBase is the fixed virtual address this kernel's bump-pointer mmap
// grows up from. There is no munmap, so this pointer only ever moves
// forward.
const mmapBase = 0x80000000000

// bumpPointer is the current top of the mmap region for the currently
// running process. This kernel runs one user process at a time, so a
// single package-level cursor (rather than one per address space) is
// sufficient; it is reset to mmapBase each time Exec starts a new image.
var bumpPointer uintptr = mmapBase

// State is the address-space/registers context the dispatcher needs for
// the syscalls (exec, mmap) that must edit page tables or jump to a new
// image. Init wires it once at boot.
type State struct {
	Root              pmm.Frame
	UserCodeSelector  uint16
	UserDataSelector  uint16
	UserStackTop      uintptr
	Modules           []boot.Module
}

var state State

// moduleImageBase is overridden in tests; in production it resolves a
// module name to the physical (HHDM-accessible) base address a stivale2
// module tag handed the kernel.
var moduleImageBase = func(name string) (uintptr, bool) {
	for _, m := range state.Modules {
		if m.Name == name {
			return mem.PtoV(m.Begin), true
		}
	}
	return 0, false
}

// Init wires the 0x80 gate to Dispatch and records the address-space and
// selector context Exec/Exit need. It must run after irq.Init and
// gdt.Install.
func Init(s State) {
	state = s
	irq.HandleInterrupt(0x80, Dispatch)
}

// Dispatch is the Go-level syscall gate handler, registered against
// vector 0x80. The syscall number arrives in RAX, its arguments in
// RDI/RSI/RDX/R10/R8 (the same register convention the original
// kernel's syscall_entry stub passes through), and the return value goes
// back out in RAX.
func Dispatch(regs *irq.Regs) {
	switch regs.RAX {
	case NumWrite:
		regs.RAX = uint64(sysWrite(int(regs.RDI), regs.RSI, regs.RDX))
	case NumRead:
		regs.RAX = uint64(sysRead(int(regs.RDI), regs.RSI, regs.RDX))
	case NumMmap:
		regs.RAX = uint64(sysMmap(regs.RDI, regs.RSI != 0, regs.RDX != 0, regs.R10 != 0, regs.R8))
	case NumExec:
		sysExec(cStringAt(uintptr(regs.RDI))) // does not return on success
	case NumExit:
		sysExit(regs)
	default:
		// RAX still holds the syscall number, so it is echoed back.
		kfmt.Printf("syscall: unknown syscall number %d\n", regs.RAX)
	}
}

// sysWrite copies count bytes from the user-space buffer at addr to the
// terminal, one byte at a time through kfmt, for fd 1 (stdout) or 2
// (stderr). Any other fd returns -1.
func sysWrite(fd int, addr, count uint64) int64 {
	if fd != fdStdout && fd != fdStderr {
		return -1
	}

	buf := bytesAt(uintptr(addr), uintptr(count))
	for _, b := range buf {
		kfmt.Printf("%c", b)
	}
	return int64(count)
}

// sysRead reads count bytes from the keyboard into the user-space buffer
// at addr, blocking a key at a time via keyboard.Getc, for fd 0 (stdin)
// only. A backspace erases the previously written byte and rewinds the
// buffer cursor by one, without counting either the backspace or the
// character it erased toward count. A backspace with nothing before the
// cursor erases nothing, never moves the cursor before addr, and is itself
// not counted.
func sysRead(fd int, addr, count uint64) int64 {
	if fd != fdStdin {
		return -1
	}

	buf := bytesAt(uintptr(addr), uintptr(count))
	cursor := 0
	for i := uint64(0); i < count; i++ {
		ch := keyboard.Getc()
		if ch == '\b' {
			if cursor > 0 {
				cursor--
				buf[cursor] = 0
				i -= 2 // neither the backspace nor the erased byte counts
			} else {
				i-- // nothing to erase; only the backspace is not counted
			}
			continue
		}
		buf[cursor] = ch
		cursor++
	}
	return int64(count)
}

// allocFn and mapFn indirect sysMmap's (and sysExec's) calls into pmm and
// vmm, the same mockable-function-variable pattern vmm itself uses for
// its own frame allocator, so tests can exercise the bump-pointer
// arithmetic without a real address space or freelist behind it.
var (
	allocFn = pmm.Alloc
	mapFn   = vmm.Map
)

// sysMmap maps a single page at the current bump pointer, present,
// user-accessible and with the requested writable/executable bits, then
// advances the bump pointer by the full requested length rounded up to a
// page boundary regardless of how much was actually mapped. A caller
// requesting more than one page back gets a single valid page at the
// returned address; the rest of the requested range is never mapped, so
// any access past the first page faults, and the bump pointer has already
// moved on as though the whole request were satisfied. address is accepted for ABI compatibility but unused;
// placement is always the bump pointer, never the caller's hint.
func sysMmap(address uint64, user, writable, executable bool, length uint64) uint64 {
	frame, err := allocFn()
	if err != nil {
		return 0
	}

	flags := vmm.FlagPresent
	if user {
		flags |= vmm.FlagUserAccessible
	}
	if writable {
		flags |= vmm.FlagRW
	}
	if !executable {
		flags |= vmm.FlagNoExecute
	}

	if mapErr := mapFn(state.Root, bumpPointer, frame, flags); mapErr != nil {
		return 0
	}

	allocated := bumpPointer
	pages := (length + uint64(mem.PageSize) - 1) / uint64(mem.PageSize)
	bumpPointer += uintptr(pages) * uintptr(mem.PageSize)
	return uint64(allocated)
}

// userStackSize is this kernel's fixed 8-page user stack.
const userStackSize = 8 * 0x1000

// sysExec locates the named bootloader module, clears the lower half of
// the currently active address space, loads the module's PT_LOAD segments
// into it and jumps to its entry point in user mode. The address space
// itself is not replaced: state.Root keeps the same PML4 frame across the
// call, only its lower-half subtree is torn down and rebuilt, so a
// mapping left over from before the call never collides with the new
// image. It never returns to its caller on success; on failure (unknown
// module name, or a mapping failure while loading) it prints a
// diagnostic and returns normally so Dispatch's caller resumes the
// syscall's caller with RAX left unset.
func sysExec(moduleName string) {
	base, ok := moduleImageBase(moduleName)
	if !ok {
		kfmt.Printf("exec: no such module \"%s\"\n", moduleName)
		return
	}

	img, err := elf.Open(base)
	if err != nil {
		kfmt.Printf("exec: %s\n", err.Message)
		return
	}

	vmm.TearDownLowerHalf(state.Root)

	if err := img.Load(state.Root); err != nil {
		kfmt.Printf("exec: %s\n", err.Message)
		return
	}

	bumpPointer = mmapBase

	stackTop := state.UserStackTop
	for p := stackTop - userStackSize; p < stackTop; p += uintptr(mem.PageSize) {
		frame, err := allocFn()
		if err != nil {
			kfmt.Printf("exec: out of memory mapping user stack\n")
			return
		}
		if err := mapFn(state.Root, p, frame, vmm.FlagRW|vmm.FlagUserAccessible|vmm.FlagNoExecute); err != nil {
			kfmt.Printf("exec: %s\n", err.Message)
			return
		}
	}

	usermode.Enter(state.UserDataSelector, state.UserCodeSelector, stackTop-8, img.Entry())
}

// sysExit ends the current process by re-executing the shell module: this
// kernel supports exactly one running user process at a time and has no
// process table to return control to, so "exit" means "load and jump to
// the shell again," the same way a freshly booted machine would, rather
// than returning to a kernel-mode scheduler loop that does not exist
// here.
func sysExit(regs *irq.Regs) {
	kfmt.Printf("process exited with code %d\n", regs.RDI)
	sysExec("shell")
}

func bytesAt(addr, length uintptr) []byte {
	return unsafeSlice(addr, length)
}

func cStringAt(addr uintptr) string {
	b := unsafeSlice(addr, 256)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
