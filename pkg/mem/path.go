package mem

// MaxOffsets is the fixed capacity of a pointer path. Constructing a path
// with more offsets silently truncates to the first MaxOffsets; this is a
// documented soft-fail that keeps the path a fixed-size value with no heap
// allocation.
const MaxOffsets = 16

// Path is an ordered sequence of byte offsets applied via successive
// pointer dereferences starting from a base address. It is constructed once
// and immutable afterwards; the same path value can be walked every tick.
type Path struct {
	base    Address
	size    PointerSize
	offsets [MaxOffsets]uint64
	depth   int
}

// NewPath builds a pointer path from a base address and ordered offsets,
// truncating past MaxOffsets.
func NewPath(size PointerSize, base Address, offsets ...uint64) Path {
	pt := Path{base: base, size: size}
	n := len(offsets)
	if n > MaxOffsets {
		n = MaxOffsets
	}
	copy(pt.offsets[:], offsets[:n])
	pt.depth = n
	return pt
}

// Base returns the path's starting address.
func (pt Path) Base() Address {
	return pt.base
}

// Depth returns the number of active offsets.
func (pt Path) Depth() int {
	return pt.depth
}

// Offsets returns a copy of the active offsets.
func (pt Path) Offsets() []uint64 {
	out := make([]uint64, pt.depth)
	copy(out, pt.offsets[:pt.depth])
	return out
}

// DerefOffsets walks the path through the target process and returns the
// address of the final field, not its contents: every offset except the
// last is dereferenced as a pointer, the last is only added.
//
// A null intermediate pointer is not short-circuited; offsets keep being
// applied arithmetically and the eventual read fails naturally on the
// unmapped page. A path with zero offsets fails with ErrEmptyPath.
func (pt Path) DerefOffsets(p Process) (Address, error) {
	if pt.depth == 0 {
		return Null, ErrEmptyPath
	}
	current := pt.base
	for _, offset := range pt.offsets[:pt.depth-1] {
		next, err := ReadPointer(p, pt.size, current.Add(offset))
		if err != nil {
			return Null, err
		}
		current = next
	}
	return current.Add(pt.offsets[pt.depth-1]), nil
}

// DerefPath walks the path and reads the typed value stored at the final
// address.
func DerefPath[T Value](p Process, pt Path) (T, error) {
	addr, err := pt.DerefOffsets(p)
	if err != nil {
		var zero T
		return zero, err
	}
	return Read[T](p, addr)
}
