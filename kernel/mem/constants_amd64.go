//go:build amd64

package mem

const (
	// PointerShift is log2(unsafe.Sizeof(uintptr)) for this architecture.
	PointerShift = uintptr(3)

	// PageShift is log2(PageSize); used to convert between physical/virtual
	// addresses and frame/page numbers.
	PageShift = uintptr(12)

	// PageSize is the system's page size in bytes (4 KiB).
	PageSize = Size(1 << PageShift)
)

// HHDMBase is the kernel-global virtual offset such that, for every
// physical frame p known to the kernel, p+HHDMBase is a valid
// kernel-accessible virtual address. It is populated once, during boot,
// from the stivale2 HHDM tag and is treated as immutable thereafter.
var HHDMBase uintptr

// PtoV converts a physical address to its HHDM-mapped virtual address.
func PtoV(phys uintptr) uintptr {
	return HHDMBase + phys
}
