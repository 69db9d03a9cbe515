package kfmt

import (
	"duneos/kernel"
	"duneos/kernel/cpu"
)

var (
	// cpuHaltFn is swapped out in tests.
	cpuHaltFn = cpu.Halt

	errUnknownPanicCause = &kernel.Error{Module: "kfmt", Message: "unknown cause"}
)

// Panic prints err (if not nil) and halts the CPU. Panic never returns. This
// is the kernel's single non-recoverable-fault path: kernel faults are
// terminal, there is no recovery.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errUnknownPanicCause.Message = t.Error()
		err = errUnknownPanicCause
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***\n")
	Printf("-----------------------------------\n")

	cpuHaltFn()
}

func panicString(msg string) {
	errUnknownPanicCause.Message = msg
	Panic(errUnknownPanicCause)
}
