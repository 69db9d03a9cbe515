package keyboard

import "testing"

func TestRingBufferFIFOAndOverflow(t *testing.T) {
	var rb ringBuffer

	for i := byte(0); i < ringBufferSize; i++ {
		rb.push(i)
	}

	rb.push(0xFF) // buffer is full; this push must be dropped

	for i := byte(0); i < ringBufferSize; i++ {
		got, ok := rb.pop()
		if !ok {
			t.Fatalf("pop #%d: buffer emptied early", i)
		}
		if got != i {
			t.Fatalf("pop #%d = %d, want %d", i, got, i)
		}
	}

	if _, ok := rb.pop(); ok {
		t.Fatal("pop on empty buffer returned ok=true")
	}
}

func TestScancodeClassification(t *testing.T) {
	cases := []struct {
		code                           byte
		numeric, alpha, special bool
	}{
		{2, true, false, false},   // '1'
		{11, true, false, false},  // '0'
		{16, false, true, false},  // 'q'
		{50, false, true, false},  // 'm'
		{57, false, false, true},  // space
		{14, false, false, true},  // backspace
		{1, false, false, false},  // escape
	}

	for _, c := range cases {
		if got := isNumeric(c.code); got != c.numeric {
			t.Errorf("isNumeric(%d) = %v, want %v", c.code, got, c.numeric)
		}
		if got := isAlpha(c.code); got != c.alpha {
			t.Errorf("isAlpha(%d) = %v, want %v", c.code, got, c.alpha)
		}
		if got := isSpecial(c.code); got != c.special {
			t.Errorf("isSpecial(%d) = %v, want %v", c.code, got, c.special)
		}
	}
}

func TestScancodeASCIIShiftedUppercase(t *testing.T) {
	const scancodeQ = 16
	leftShiftDown = true
	defer func() { leftShiftDown = false }()

	ch := scancodeASCII[scancodeQ]
	if isAlpha(scancodeQ) {
		ch -= 32
	}
	if ch != 'Q' {
		t.Fatalf("shifted 'q' scancode decoded to %q, want 'Q'", ch)
	}
}
