// Package pe reads just enough of a Portable Executable image, in place in
// target process memory, to classify the target: machine type, pointer
// width, and image size. It is a table-driven header walk, not a full PE
// parser.
package pe

import (
	"fmt"

	"github.com/tickloop/autosplit/pkg/mem"
)

const (
	dosMagic = 0x5A4D     // "MZ"
	ntMagic  = 0x00004550 // "PE\0\0"

	lfanewOffset      = 0x3C
	machineOffset     = 4  // after the PE signature
	optionalOffset    = 24 // signature + COFF header
	sizeOfImageOffset = 56 // within the optional header, same for PE32/PE32+
)

// Machine is the COFF machine type of the image.
type Machine uint16

const (
	MachineI386  Machine = 0x014C
	MachineARM   Machine = 0x01C4
	MachineAMD64 Machine = 0x8664
	MachineARM64 Machine = 0xAA64
)

// PointerSize maps the machine word to a target pointer width.
func (m Machine) PointerSize() (mem.PointerSize, bool) {
	switch m {
	case MachineI386, MachineARM:
		return mem.Pointer32, true
	case MachineAMD64, MachineARM64:
		return mem.Pointer64, true
	default:
		return 0, false
	}
}

func (m Machine) String() string {
	switch m {
	case MachineI386:
		return "i386"
	case MachineARM:
		return "arm"
	case MachineAMD64:
		return "amd64"
	case MachineARM64:
		return "arm64"
	default:
		return fmt.Sprintf("Machine(0x%04X)", uint16(m))
	}
}

// Header is the subset of the image headers the attachment logic needs.
type Header struct {
	Machine     Machine
	SizeOfImage uint32
}

// PointerSize returns the pointer width of the image's machine type.
func (h Header) PointerSize() (mem.PointerSize, bool) {
	return h.Machine.PointerSize()
}

// ReadHeader walks the DOS and NT headers of an image loaded at base in the
// target process.
func ReadHeader(p mem.Process, base mem.Address) (Header, error) {
	dos, err := mem.Read[uint16](p, base)
	if err != nil {
		return Header{}, err
	}
	if dos != dosMagic {
		return Header{}, fmt.Errorf("no DOS header at %s", base)
	}

	lfanew, err := mem.Read[uint32](p, base.Add(lfanewOffset))
	if err != nil {
		return Header{}, err
	}
	nt := base.Add(uint64(lfanew))

	sig, err := mem.Read[uint32](p, nt)
	if err != nil {
		return Header{}, err
	}
	if sig != ntMagic {
		return Header{}, fmt.Errorf("no PE signature at %s", nt)
	}

	machine, err := mem.Read[uint16](p, nt.Add(machineOffset))
	if err != nil {
		return Header{}, err
	}

	sizeOfImage, err := mem.Read[uint32](p, nt.Add(optionalOffset+sizeOfImageOffset))
	if err != nil {
		return Header{}, err
	}

	return Header{Machine: Machine(machine), SizeOfImage: sizeOfImage}, nil
}
