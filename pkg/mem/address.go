// Package mem models the address space of an attached target process:
// uniform 64-bit addresses, explicit pointer widths and byte orders, typed
// validated reads, and fixed-capacity pointer paths walked through the
// target's memory.
//
// Everything here is synchronous and non-blocking. "Not readable yet" is an
// ordinary error the caller retries on the next tick; no operation sleeps,
// blocks, or panics on bytes coming out of the target.
package mem

import (
	"encoding/binary"
	"fmt"
)

// Address is a location in the target process's virtual address space.
// It is always carried full-width; values read from 32-bit targets are
// zero-extended. Null (zero) never denotes a dereferenceable location.
type Address uint64

// Null is the address sentinel treated as resolution failure everywhere.
const Null Address = 0

// IsNull reports whether the address is the null sentinel.
func (a Address) IsNull() bool {
	return a == Null
}

// Add returns the address advanced by a byte offset.
func (a Address) Add(offset uint64) Address {
	return a + Address(offset)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// PointerSize is the width of one pointer-sized field in the target
// process. It is determined once at attach time from the target binary's
// machine-type header and never changes for the lifetime of the attachment.
type PointerSize int

const (
	Pointer32 PointerSize = 4
	Pointer64 PointerSize = 8
)

// Bytes returns the pointer width in bytes.
func (s PointerSize) Bytes() int {
	return int(s)
}

func (s PointerSize) String() string {
	switch s {
	case Pointer32:
		return "32-bit"
	case Pointer64:
		return "64-bit"
	default:
		return fmt.Sprintf("PointerSize(%d)", int(s))
	}
}

// Endian is the byte order used by values stored in the target process.
// It is independent of the host's byte order; emulated console targets are
// routinely big-endian on a little-endian host.
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

// ByteOrder returns the encoding/binary order for this endianness.
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}
