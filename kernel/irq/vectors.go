// Package irq installs the interrupt descriptor table, dispatches CPU
// exceptions and PIC-driven hardware interrupts to registered Go
// handlers, and owns the 8259A remap.
package irq

// Exception vector numbers 0-21, fixed by the amd64 architecture.
const (
	ExcDivideError           = 0
	ExcDebug                 = 1
	ExcNMI                   = 2
	ExcBreakpoint            = 3
	ExcOverflow              = 4
	ExcBoundRangeExceeded    = 5
	ExcInvalidOpcode         = 6
	ExcDeviceNotAvailable    = 7
	ExcDoubleFault           = 8
	ExcCoprocessorSegOverrun = 9
	ExcInvalidTSS            = 10
	ExcSegmentNotPresent     = 11
	ExcStackSegmentFault     = 12
	ExcGeneralProtection     = 13
	ExcPageFault             = 14
	ExcFloatingPointError    = 16
	ExcAlignmentCheck        = 17
	ExcMachineCheck          = 18
	ExcSIMDFloatingPoint     = 19
	ExcVirtualization        = 20
	ExcControlProtection     = 21
)

// excNames gives a short human-readable name for each defined exception
// vector, used only for the diagnostic line a fatal exception prints
// before halting.
var excNames = map[uint64]string{
	ExcDivideError:           "divide error",
	ExcDebug:                 "debug",
	ExcNMI:                   "non-maskable interrupt",
	ExcBreakpoint:            "breakpoint",
	ExcOverflow:              "overflow",
	ExcBoundRangeExceeded:    "bound range exceeded",
	ExcInvalidOpcode:         "invalid opcode",
	ExcDeviceNotAvailable:    "device not available",
	ExcDoubleFault:           "double fault",
	ExcCoprocessorSegOverrun: "coprocessor segment overrun",
	ExcInvalidTSS:            "invalid TSS",
	ExcSegmentNotPresent:     "segment not present",
	ExcStackSegmentFault:     "stack segment fault",
	ExcGeneralProtection:     "general protection fault",
	ExcPageFault:             "page fault",
	ExcFloatingPointError:    "floating-point error",
	ExcAlignmentCheck:        "alignment check",
	ExcMachineCheck:          "machine check",
	ExcSIMDFloatingPoint:     "SIMD floating-point exception",
	ExcVirtualization:        "virtualization exception",
	ExcControlProtection:     "control protection exception",
}

func nameForVector(vector uint64) string {
	if name, ok := excNames[vector]; ok {
		return name
	}
	return "unknown interrupt"
}

// hasErrorCode reports whether the CPU pushes an error code for this
// exception vector before invoking its handler. It matches which of the
// two gate stub macros in handler_amd64.s (gateStubErr vs gateStubNoErr)
// each vector's hand-written stub uses.
func hasErrorCode(vector uint64) bool {
	switch vector {
	case ExcDoubleFault, ExcInvalidTSS, ExcSegmentNotPresent,
		ExcStackSegmentFault, ExcGeneralProtection, ExcPageFault,
		ExcAlignmentCheck, ExcControlProtection:
		return true
	default:
		return false
	}
}

// PIC vector remap: IRQ0-7 land at 0x20-0x27, IRQ8-15 at 0x28-0x2F, moved
// up out of the CPU-reserved 0x00-0x1F exception range.
const (
	picVectorBase = 0x20

	IRQTimer    = picVectorBase + 0
	IRQKeyboard = picVectorBase + 1
	IRQCascade  = picVectorBase + 2
	IRQCOM2     = picVectorBase + 3
	IRQCOM1     = picVectorBase + 4
	IRQLPT2     = picVectorBase + 5
	IRQFloppy   = picVectorBase + 6
	IRQLPT1     = picVectorBase + 7
	IRQRTC      = picVectorBase + 8

	vectorSyscall = 0x80
)
