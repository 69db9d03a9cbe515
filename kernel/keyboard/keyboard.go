// Package keyboard decodes PS/2 Set-1 scancodes delivered on IRQ1 into
// ASCII and buffers them for Getc, which blocks the calling kernel-mode
// context until a key is available.
package keyboard

import (
	"duneos/kernel/cpu"
	"duneos/kernel/irq"
	"duneos/kernel/sync"
)

// scancodeASCII maps a Set-1 scancode (the make code; break codes have
// the top bit set and are ignored) to its unshifted ASCII value. A zero
// entry means the scancode has no ASCII representation this kernel cares
// about (function keys, lock keys, arrows, and so on).
var scancodeASCII = [128]byte{
	0, 27, '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '-', '=', '\b',
	'\t',
	'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', 'o', 'p', '[', ']', '\n',
	0, // control
	'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', '\'', '`', 0, '\\',
	'z', 'x', 'c', 'v', 'b', 'n', 'm', ',', '.', '/', 0,
	'*',
	0, // alt
	' ',
	0, // caps lock
	0, 0, 0, 0, 0, 0, 0, 0, 0, // F1-F9
	0, // num lock
	0, // scroll lock
	0, // home
	0, // up arrow
	0, // page up
	'-',
	0, // left arrow
	0,
	0, // right arrow
	'+',
	0,
	0, 0, // page down, insert
	0, // delete
	0, 0, 0,
	0, // F11
	0, // F12
}

const (
	scancodeLeftShiftMake    = 0x2A
	scancodeLeftShiftBreak   = 0xAA
	scancodeRightShiftMake   = 0x36
	scancodeRightShiftBreak  = 0xB6
	keyboardDataPort         = 0x60
	ringBufferSize           = 16
)

func isNumeric(key byte) bool { return key >= 2 && key <= 11 }
func isAlpha(key byte) bool {
	return (key >= 16 && key <= 25) || (key >= 30 && key <= 38) || (key >= 44 && key <= 50)
}
func isSpecial(key byte) bool {
	return key == 57 || key == 14 || key == 28 || key == 39
}

type ringBuffer struct {
	lock       sync.Spinlock
	buf        [ringBufferSize]byte
	readIndex  int
	writeIndex int
	count      int
}

func (r *ringBuffer) push(scancode byte) {
	r.lock.Acquire()
	defer r.lock.Release()

	if r.count == ringBufferSize {
		return // drop the keystroke; the reader isn't keeping up
	}
	r.buf[r.writeIndex] = scancode
	r.writeIndex = (r.writeIndex + 1) % ringBufferSize
	r.count++
}

func (r *ringBuffer) pop() (byte, bool) {
	r.lock.Acquire()
	defer r.lock.Release()

	if r.count == 0 {
		return 0, false
	}
	scancode := r.buf[r.readIndex]
	r.readIndex = (r.readIndex + 1) % ringBufferSize
	r.count--
	return scancode, true
}

var (
	scancodes ringBuffer

	leftShiftDown  bool
	rightShiftDown bool
)

// Init registers the IRQ1 handler and unmasks the keyboard controller
// line. It must run after irq.Init.
func Init() {
	irq.HandleInterrupt(irq.IRQKeyboard, handleIRQ1)
	irq.UnmaskIRQ(1)
}

func handleIRQ1(regs *irq.Regs) {
	scancode := cpu.Inb(keyboardDataPort)

	switch scancode {
	case scancodeLeftShiftMake:
		leftShiftDown = true
	case scancodeLeftShiftBreak:
		leftShiftDown = false
	case scancodeRightShiftMake:
		rightShiftDown = true
	case scancodeRightShiftBreak:
		rightShiftDown = false
	}

	if isNumeric(scancode) || isAlpha(scancode) || isSpecial(scancode) {
		scancodes.push(scancode)
	}

	irq.SendEOI(irq.IRQKeyboard)
}

// Getc blocks until a key is available and returns its ASCII value,
// upper-cased if either shift key is down (and the key is alphabetic) at
// the moment Getc takes the scancode off the buffer; the shift state at
// the time of the keystroke itself is not recorded.
func Getc() byte {
	var scancode byte
	for {
		sc, ok := scancodes.pop()
		if ok {
			scancode = sc
			break
		}
		cpu.EnableInterrupts() // make sure the IRQ that will fill the buffer can fire
	}

	ch := scancodeASCII[scancode]
	if (leftShiftDown || rightShiftDown) && isAlpha(scancode) {
		ch -= 32
	}
	return ch
}
