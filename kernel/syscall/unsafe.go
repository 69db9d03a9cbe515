package syscall

import (
	"reflect"
	"unsafe"
)

// unsafeSlice overlays a []byte onto a raw user-space address, the same
// "reflect.SliceHeader over an unsafe.Pointer" trick kernel.Memset/
// Memcopy use, since this kernel has no runtime-checked way to turn a
// syscall argument address into a Go slice otherwise.
func unsafeSlice(addr, length uintptr) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = int(length)
	sh.Cap = int(length)
	return b
}
