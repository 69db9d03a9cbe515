package kfmt

import (
	"bytes"
	"testing"
)

func TestFprintf(t *testing.T) {
	specs := []struct {
		format string
		args   []interface{}
		exp    string
	}{
		{"no args", nil, "no args"},
		{"%t", []interface{}{true}, "true"},
		{"%t", []interface{}{false}, "false"},
		{"%s arg", []interface{}{"STRING"}, "STRING arg"},
		{"%s arg", []interface{}{[]byte("BYTES")}, "BYTES arg"},
		{"'%4s'", []interface{}{"AB"}, "'  AB'"},
		{"'%4s'", []interface{}{"ABCDE"}, "'ABCDE'"},
		{"%d", []interface{}{uint8(10)}, "10"},
		{"%o", []interface{}{uint16(0777)}, "777"},
		{"0x%x", []interface{}{uint32(0xbadf00d)}, "0xbadf00d"},
		{"%c", []interface{}{byte('Q')}, "Q"},
		{"'%10d'", []interface{}{uint64(123)}, "'       123'"},
		{"%d", []interface{}{int64(-42)}, "-42"},
		{"'%5d'", []interface{}{int64(-42)}, "'  -42'"},
		{"%%", nil, "%"},
		{"%d", nil, "(MISSING)"},
		{"%d", []interface{}{"not an int"}, "%!(WRONGTYPE)"},
		{"no verbs", []interface{}{1}, "no verbs%!(EXTRA)"},
	}

	for _, spec := range specs {
		var buf bytes.Buffer
		Fprintf(&buf, spec.format, spec.args...)
		if got := buf.String(); got != spec.exp {
			t.Errorf("Fprintf(%q, %v): expected %q, got %q", spec.format, spec.args, spec.exp, got)
		}
	}
}

func TestPrintfBuffersUntilSinkAttached(t *testing.T) {
	defer SetOutputSink(nil)

	SetOutputSink(nil)
	earlyPrintBuffer = ringBuffer{}
	Printf("buffered %d", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)
	Printf("live %d", 2)

	if got := buf.String(); got != "buffered 1live 2" {
		t.Errorf("expected flushed+live output, got %q", got)
	}
}
