package irq

import "duneos/kernel/cpu"

// Regs is the snapshot of general-purpose registers and the CPU-pushed
// return frame captured by the assembly trampoline on entry to any
// exception, IRQ or syscall handler. A handler that needs to change what
// the CPU resumes into (a syscall returning a value in RAX, for example)
// mutates the fields here; the trampoline reloads them all before IRETQ.
type Regs struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	// Vector holds the exception/IRQ/syscall vector number; ErrorCode
	// holds the CPU-pushed error code for the exceptions that have one,
	// and is 0 otherwise.
	Vector, ErrorCode uint64

	// IRETQ frame, pushed by the CPU itself before the handler ran.
	RIP, CS, RFlags, RSP, SS uint64
}

// HandlerFunc is the Go-level signature every registered exception, IRQ or
// syscall handler satisfies.
type HandlerFunc func(regs *Regs)

var handlers [256]HandlerFunc

// Init zeroes the IDT, installs the generated gate entries for every
// vector this kernel wires (the CPU exceptions 0-21, the remapped PIC
// IRQs and the 0x80 syscall gate), remaps the 8259A and loads the IDT
// register. Handlers themselves are attached separately with
// HandleInterrupt; Init only wires the trampoline entry points.
func Init() {
	handlers = [256]HandlerFunc{}
	installIDT()
	remapPIC()
}

// HandleInterrupt registers fn as the Go-level handler for vector,
// overwriting whatever was previously registered. The vector's IDT gate
// is already present (installIDT enables every exception, IRQ and
// syscall gate this kernel defines up front); HandleInterrupt only
// changes which Go function dispatchHandler calls for it. A vector with
// no registered handler falls through to defaultHandler.
func HandleInterrupt(vector uint8, fn HandlerFunc) {
	handlers[vector] = fn
}

// dispatchHandler is called from the assembly trampoline for every
// exception, IRQ and syscall vector; it is the single Go-level entry
// point interruptGateEntries funnels into.
func dispatchHandler(regs *Regs) {
	if fn := handlers[regs.Vector]; fn != nil {
		fn(regs)
		return
	}
	defaultHandler(regs)
}

// defaultHandler implements the fatal, unrecoverable-exception path:
// print a diagnostic naming the vector and halt. This is this kernel's
// only behavior for an exception with no more specific handler
// registered. There is no recovery path from, say, a page fault in user
// code, only a halt with enough context on screen to debug it.
func defaultHandler(regs *Regs) {
	reportFatalException(regs)
	haltFn()
}

// haltFn is overridden in tests so defaultHandler's halt path is
// exercisable without actually stopping the CPU.
var haltFn = cpu.Halt

func reportFatalException(regs *Regs) {
	diagSink(nameForVector(regs.Vector), regs.Vector, regs.ErrorCode, regs.RIP, regs.CS, regs.RFlags, regs.RSP, regs.SS)
}

// diagSink is overridden by the kernel's kfmt-backed diagnostic printer
// once output is available; it defaults to a no-op so irq has no import
// dependency on kfmt (keeping the exception-dispatch core independent of
// how, or whether, diagnostics get printed).
var diagSink = func(name string, vector, errorCode, rip, cs, rflags, rsp, ss uint64) {}

// SetDiagnosticSink installs the function used to report a fatal,
// unhandled exception before halting.
func SetDiagnosticSink(fn func(name string, vector, errorCode, rip, cs, rflags, rsp, ss uint64)) {
	diagSink = fn
}

// installIDT zeroes the 256-entry IDT, installs a present trap or
// interrupt gate (matching hasErrorCode/gateTypeForVector per vector) for
// every CPU exception 0-21, every remapped PIC IRQ vector and the 0x80
// syscall gate (the only gate installed at DPL 3, since it is the only
// one a ring-3 INT instruction is allowed to reach), and loads the IDT
// register. Vectors this kernel does not define a gate for are left
// absent; a CPU trap landing on one is itself a double fault.
func installIDT()

// interruptGateEntries is a run of generated trampoline entry points, one
// for each of the 31 vectors listed in handler_amd64.s (exceptions 0-21
// except 15, IRQ vectors 0x20-0x28, and 0x80); other vectors have no
// stub. Each pushes its own vector number (and,
// for the eight exceptions the CPU itself pushes an error code for,
// accounts for that extra stack slot) before jumping to the shared
// dispatchHandler by way of dispatchTrampoline.
func interruptGateEntries()

// dispatchTrampoline is the common tail every generated gate entry jumps
// to: it saves the general-purpose registers into a Regs value, calls
// dispatchHandler, reloads the (possibly modified) registers and executes
// IRETQ.
func dispatchTrampoline()
