// Package hal adapts bootloader-supplied primitives (today, just the
// stivale2 terminal write function) to the interfaces the rest of the
// kernel expects, so no other package needs to know stivale2 exists.
package hal

import (
	"duneos/kernel/boot"
	"duneos/kernel/kfmt"
)

// terminalSink adapts a boot.TerminalWriteFn to kfmt's io.Writer-shaped
// output sink.
type terminalSink struct {
	write boot.TerminalWriteFn
}

func (s terminalSink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	callTerminalWrite(s.write, &p[0], uint64(len(p)))
	return len(p), nil
}

// callTerminalWrite invokes fn, a raw System V AMD64 C function pointer
// handed over by the bootloader's terminal tag, with buf/length as its two
// arguments. fn is not a Go func value: crossing from Go's calling
// convention to the C one this pointer expects needs a dedicated assembly
// leaf rather than an ordinary indirect call.
func callTerminalWrite(fn boot.TerminalWriteFn, buf *byte, length uint64)

// InstallTerminal points kfmt's output sink at the bootloader's terminal
// write function, flushing anything Printf buffered before this call (the
// kernel prints diagnostics from the moment it starts running, long
// before the bootloader hands over a terminal).
func InstallTerminal(info *boot.Info) {
	kfmt.SetOutputSink(terminalSink{write: info.TerminalWrite})
}
