package main

import (
	"duneos/kernel"
	"duneos/kernel/boot"
	"unsafe"
)

var stivale2StructPtr uintptr

// earlyStack is the stack the bootloader switches to immediately before
// calling the entry point named by stivale2Header; kmain keeps running on
// it. kernel.Kmain's own kernelStack is used only as the TSS RSP0 stack.
var earlyStack [16 * 1024]byte

var unmapNull = boot.NewUnmapNullTag()

// stivale2Header is this kernel's ELF ".stivale2hdr" section payload, read
// by the bootloader before it calls main. Placing this symbol in that
// section is a linker-script concern, not something Go source can express;
// this repository contains no linker script.
var stivale2Header = boot.NewHeader(
	uint64(uintptr(unsafe.Pointer(&earlyStack[0]))+uintptr(len(earlyStack))),
	unmapNull,
)

// main is the only Go symbol the rt0 entry stub calls. It exists purely
// as a trampoline to kernel.Kmain: defining it this way (rather than
// calling Kmain directly from assembly) keeps the Go compiler from
// concluding the rest of the kernel package is unreachable and
// discarding it.
//
// stivale2StructPtr is a package-level variable, not a parameter, so that
// an assembly entry stub can store the bootloader's struct pointer in it
// before transferring control here: there is no argv-style calling
// convention to receive that pointer through. This repository contains no
// such entry stub, and no Go code assigns stivale2StructPtr.
func main() {
	kernel.Kmain(stivale2StructPtr)
}
