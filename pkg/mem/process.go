package mem

import (
	"reflect"
	"unsafe"
)

// Process is a handle to the memory of a live target process. The handle is
// read-only and may be shared across any number of pointer paths and
// metadata walkers.
//
// Implementations must tolerate being called after the target has exited:
// every read simply fails with an error, it never panics. Liveness is
// re-checked implicitly by each read.
type Process interface {
	// ReadInto fills buf with the bytes stored at addr. The read is
	// all-or-nothing: a short read is an error.
	ReadInto(addr Address, buf []byte) error

	// ModuleRange returns the base address and size of a loaded module.
	ModuleRange(name string) (Address, uint64, error)
}

// Value is the set of types readable directly out of target memory. Bytes
// are validated against the type's bit-pattern constraints before being
// trusted; for bool anything other than 0 or 1 is rejected.
type Value interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64 | ~bool
}

// Read reads a single value of type T at addr. The bytes are interpreted in
// host order; callers reading from nonnative-endian targets convert the
// result explicitly with FromEndian.
//
// Fails with a *ReadError when the underlying read fails and with
// ErrInvalidBitPattern when the bytes are not a legal T.
func Read[T Value](p Process, addr Address) (T, error) {
	var v T
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	if err := p.ReadInto(addr, buf); err != nil {
		var zero T
		return zero, err
	}
	if reflect.TypeOf(v).Kind() == reflect.Bool && buf[0] > 1 {
		var zero T
		return zero, ErrInvalidBitPattern
	}
	return v, nil
}

// ReadPointer reads one pointer-sized value at addr, branching on the
// target's pointer width, and returns it zero-extended into Address.
func ReadPointer(p Process, size PointerSize, addr Address) (Address, error) {
	switch size {
	case Pointer32:
		v, err := Read[uint32](p, addr)
		return Address(v), err
	case Pointer64:
		v, err := Read[uint64](p, addr)
		return Address(v), err
	default:
		return Null, &PointerSizeError{Size: size}
	}
}
