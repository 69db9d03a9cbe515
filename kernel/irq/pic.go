package irq

import "duneos/kernel/cpu"

// 8259A command/data port pairs for the master and slave PIC.
const (
	picMasterCommand = 0x20
	picMasterData    = 0x21
	picSlaveCommand  = 0xA0
	picSlaveData     = 0xA1

	icw1Init     = 0x11 // ICW1_ICW4 | ICW1_INIT
	icw4_8086    = 0x01

	picEOI = 0x20
)

// remapPIC reprograms the 8259A pair so IRQ0-7 land at vectors
// picVectorBase..picVectorBase+7 and IRQ8-15 immediately after, out of the
// 0x00-0x1F range the CPU reserves for exceptions. Every IRQ line starts
// masked; callers unmask individual lines with UnmaskIRQ once a handler
// for that line is registered.
func remapPIC() {
	// ICW1: start initialization sequence in cascade mode.
	cpu.Outb(picMasterCommand, icw1Init)
	cpu.Outb(picSlaveCommand, icw1Init)

	// ICW2: vector offsets.
	cpu.Outb(picMasterData, picVectorBase)
	cpu.Outb(picSlaveData, picVectorBase+8)

	// ICW3: tell master PIC the slave sits on IRQ2, and tell the slave
	// its own cascade identity.
	cpu.Outb(picMasterData, 1<<2)
	cpu.Outb(picSlaveData, 2)

	// ICW4: 8086 mode.
	cpu.Outb(picMasterData, icw4_8086)
	cpu.Outb(picSlaveData, icw4_8086)

	// mask everything; individual lines are unmasked as handlers attach.
	cpu.Outb(picMasterData, 0xff)
	cpu.Outb(picSlaveData, 0xff)
}

// UnmaskIRQ enables delivery of the given IRQ line (0-15).
func UnmaskIRQ(irq uint8) {
	port := uint16(picMasterData)
	if irq >= 8 {
		port = picSlaveData
		irq -= 8
	}
	mask := cpu.Inb(port)
	cpu.Outb(port, mask&^(1<<irq))
}

// MaskIRQ disables delivery of the given IRQ line (0-15).
func MaskIRQ(irq uint8) {
	port := uint16(picMasterData)
	if irq >= 8 {
		port = picSlaveData
		irq -= 8
	}
	mask := cpu.Inb(port)
	cpu.Outb(port, mask|(1<<irq))
}

// SendEOI acknowledges the interrupt so the PIC resumes signaling that
// line; a slave-PIC IRQ needs an EOI sent to both PICs, since the master
// is unaware the interrupt was satisfied otherwise.
func SendEOI(vector uint8) {
	if vector >= picVectorBase+8 {
		cpu.Outb(picSlaveCommand, picEOI)
	}
	cpu.Outb(picMasterCommand, picEOI)
}
