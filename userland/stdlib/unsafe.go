package stdlib

import "unsafe"

func bufAddr(buf []byte) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf[0])
}

// cStringAddr returns a NUL-terminated copy of s as a raw pointer,
// matching the C-string convention kernel/syscall.cStringAt expects for
// the exec syscall's module-name argument.
func cStringAddr(s string) unsafe.Pointer {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return unsafe.Pointer(&buf[0])
}
