package mem

import (
	"unsafe"
)

// Scalar is the set of fixed-width primitives that can be reinterpreted
// under an explicit byte order.
type Scalar interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// hostLittle reports the byte order of the host we are running on.
var hostLittle = func() bool {
	var probe uint16 = 1
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}()

// FromEndian reinterprets a value's raw bytes under the stated source byte
// order. Converting a value already in host order is the identity. There is
// deliberately no default: silently assuming host endianness is the most
// common class of bug in this domain, so callers always state the source.
func FromEndian[T Scalar](v T, source Endian) T {
	if hostLittle == (source == LittleEndian) {
		return v
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return v
}

// FromEndianSlice converts every element of a fixed-size array or slice of
// scalars in place, element-wise.
func FromEndianSlice[T Scalar](vs []T, source Endian) {
	if hostLittle == (source == LittleEndian) {
		return
	}
	for i := range vs {
		vs[i] = FromEndian(vs[i], source)
	}
}

// ToBytes returns the value's raw bytes encoded under the stated byte order.
func ToBytes[T Scalar](v T, target Endian) []byte {
	v = FromEndian(v, target)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// FromBytes decodes a value from raw bytes stored under the stated byte
// order. The buffer must hold at least the size of T.
func FromBytes[T Scalar](b []byte, source Endian) T {
	var v T
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	copy(dst, b)
	return FromEndian(v, source)
}
