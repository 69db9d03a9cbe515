package irq

import "testing"

func TestHandleInterruptOverridesDispatch(t *testing.T) {
	defer func() { handlers = [256]HandlerFunc{} }()

	var got uint64
	HandleInterrupt(IRQKeyboard, func(regs *Regs) { got = regs.Vector })

	dispatchHandler(&Regs{Vector: IRQKeyboard})

	if got != IRQKeyboard {
		t.Fatalf("registered handler was not invoked: got %d", got)
	}
}

func TestDispatchFallsThroughToDefaultHandler(t *testing.T) {
	defer func() {
		handlers = [256]HandlerFunc{}
		diagSink = func(string, uint64, uint64, uint64, uint64, uint64, uint64, uint64) {}
	}()

	origHalt := haltFn
	defer func() { haltFn = origHalt }()

	var haltCalled bool
	haltFn = func() { haltCalled = true }

	var reported string
	SetDiagnosticSink(func(name string, vector, errorCode, rip, cs, rflags, rsp, ss uint64) {
		reported = name
	})

	dispatchHandler(&Regs{Vector: ExcPageFault})

	if reported != "page fault" {
		t.Fatalf("diagSink reported %q, want %q", reported, "page fault")
	}
	if !haltCalled {
		t.Fatal("unregistered exception did not halt")
	}
}

func TestNameForVectorUnknown(t *testing.T) {
	if got := nameForVector(999); got != "unknown interrupt" {
		t.Fatalf("nameForVector(999) = %q, want %q", got, "unknown interrupt")
	}
}

func TestHasErrorCodeMatchesArchitecture(t *testing.T) {
	withCode := []uint64{8, 10, 11, 12, 13, 14, 17, 21}
	for _, v := range withCode {
		if !hasErrorCode(v) {
			t.Errorf("hasErrorCode(%d) = false, want true", v)
		}
	}

	withoutCode := []uint64{0, 1, 2, 3, 16, 19}
	for _, v := range withoutCode {
		if hasErrorCode(v) {
			t.Errorf("hasErrorCode(%d) = true, want false", v)
		}
	}
}
