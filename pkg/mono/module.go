// Package mono resolves symbolic class and field names against the
// in-memory type metadata of a Mono-based target process, and caches the
// resolved numeric layout so that steady-state reads bypass the metadata
// walk entirely.
//
// The walker layer (Module) never caches anything it reads out of the
// target: class and field descriptors are plain address handles whose name,
// parent, field table and static table are read on demand. All caching of
// resolved offsets lives in Pointer, one level up.
package mono

import (
	"github.com/tickloop/autosplit/pkg/mem"
	"github.com/tickloop/autosplit/pkg/pe"
	"github.com/tickloop/autosplit/pkg/scan"
)

// DefaultImageName is the assembly image game code lives in on Unity-style
// targets.
const DefaultImageName = "Assembly-CSharp"

// nameBufferLen bounds class and field name reads. Names are compared
// against a fixed on-stack buffer; anything longer simply never matches.
const nameBufferLen = 128

// Sanity bounds on metadata the target controls. Structures larger than
// this are treated as not-yet-initialized garbage.
const (
	maxClassBuckets = 1 << 16
	maxBucketChain  = 1 << 12
	maxClassFields  = 1 << 12
)

// ClassModel is the walker surface the symbolic pointer resolver depends
// on. Concrete bindings differ only in their layout tables; the binding is
// chosen once at attach time and reused, never re-dispatched per call.
type ClassModel interface {
	PointerSize() mem.PointerSize

	// Class scans every class registered in an image for an exact name
	// match. Linear: the target keeps no index by name.
	Class(p mem.Process, img Image, name string) (Class, bool)

	// FieldOffset scans a class's own declared fields (not inherited ones)
	// for an exact name match and returns its byte offset.
	FieldOffset(p mem.Process, c Class, name string) (uint32, bool)

	// Parent follows the class's parent metadata slot.
	Parent(p mem.Process, c Class) (Class, bool)

	// StaticTable returns the address holding the class's static-field
	// values.
	StaticTable(p mem.Process, c Class) (mem.Address, bool)

	// ObjectClass walks a live object's header to its class record. The
	// number of pointer hops is a property of the binding's object model.
	ObjectClass(p mem.Process, obj mem.Address) (Class, bool)
}

// Image is an on-demand handle to an assembly image in the target.
type Image struct {
	addr mem.Address
}

// Address returns the image's location in the target.
func (i Image) Address() mem.Address {
	return i.addr
}

// Class is an on-demand handle to a class record in the target. It owns no
// data; everything is read from the target when asked for.
type Class struct {
	addr mem.Address
}

// Address returns the class record's location in the target.
func (c Class) Address() mem.Address {
	return c.addr
}

// Module is the metadata walker for one attached Mono runtime. It holds
// only attachment constants (version, pointer width, layout table, the
// address of the loaded-assemblies root); every lookup re-reads the target.
type Module struct {
	version Version
	size    mem.PointerSize
	offs    *offsets
	// assembliesRoot is the address of the slot holding the head of the
	// loaded-assemblies list. The slot is re-read per lookup because the
	// list grows while the target is loading.
	assembliesRoot mem.Address
}

// Attach locates the Mono runtime inside the target process: module range
// by name, pointer width from the image's machine-type header, and the
// loaded-assemblies root via signature scan.
func Attach(p mem.Process, version Version) (*Module, error) {
	// Both widths share the module name per version; probe with either.
	probe, ok := lookupOffsets(version, mem.Pointer64)
	if !ok {
		return nil, &AttachError{Version: version}
	}

	base, moduleSize, err := p.ModuleRange(probe.moduleName)
	if err != nil {
		return nil, &AttachError{Version: version, Module: probe.moduleName, Err: err}
	}

	header, err := pe.ReadHeader(p, base)
	if err != nil {
		return nil, &AttachError{Version: version, Module: probe.moduleName, Err: err}
	}
	size, ok := header.PointerSize()
	if !ok {
		return nil, &AttachError{Version: version, Module: probe.moduleName}
	}

	offs, ok := lookupOffsets(version, size)
	if !ok {
		return nil, &AttachError{Version: version, Module: probe.moduleName}
	}

	sig, err := scan.ParseSignature(offs.assembliesSig)
	if err != nil {
		return nil, &AttachError{Version: version, Module: offs.moduleName, Err: err}
	}
	loc, found := sig.Scan(p, base, moduleSize)
	if !found {
		return nil, &AttachError{Version: version, Module: offs.moduleName}
	}

	root, err := readSignatureTarget(p, size, loc.Add(offs.assembliesSigShift))
	if err != nil {
		return nil, &AttachError{Version: version, Module: offs.moduleName, Err: err}
	}

	return &Module{version: version, size: size, offs: offs, assembliesRoot: root}, nil
}

// readSignatureTarget decodes the scanned instruction's memory operand:
// rip-relative displacement on 64-bit targets, absolute address on 32-bit.
func readSignatureTarget(p mem.Process, size mem.PointerSize, operand mem.Address) (mem.Address, error) {
	if size == mem.Pointer64 {
		disp, err := mem.Read[int32](p, operand)
		if err != nil {
			return mem.Null, err
		}
		return operand.Add(4 + uint64(int64(disp))), nil
	}
	abs, err := mem.Read[uint32](p, operand)
	if err != nil {
		return mem.Null, err
	}
	return mem.Address(abs), nil
}

// AttachAt builds a walker for a known loaded-assemblies root. Used when
// the root was found by other means (an emulated target, or a test).
func AttachAt(version Version, size mem.PointerSize, assembliesRoot mem.Address) (*Module, bool) {
	offs, ok := lookupOffsets(version, size)
	if !ok {
		return nil, false
	}
	return &Module{version: version, size: size, offs: offs, assembliesRoot: assembliesRoot}, true
}

// Version returns the runtime generation this walker was attached with.
func (m *Module) Version() Version {
	return m.version
}

// PointerSize implements ClassModel.
func (m *Module) PointerSize() mem.PointerSize {
	return m.size
}

// DefaultImage looks up the image game code lives in.
func (m *Module) DefaultImage(p mem.Process) (Image, bool) {
	return m.Image(p, DefaultImageName)
}

// Image scans the loaded-assemblies list for an assembly with the given
// name and returns its image.
func (m *Module) Image(p mem.Process, name string) (Image, bool) {
	var buf [nameBufferLen]byte

	node, err := mem.ReadPointer(p, m.size, m.assembliesRoot)
	if err != nil {
		return Image{}, false
	}

	for steps := 0; !node.IsNull() && steps < maxBucketChain; steps++ {
		assembly, err := mem.ReadPointer(p, m.size, node)
		if err != nil {
			return Image{}, false
		}

		namePtr, err := mem.ReadPointer(p, m.size, assembly.Add(m.offs.assemblyAName))
		if err == nil && m.nameEquals(p, namePtr, name, buf[:]) {
			image, err := mem.ReadPointer(p, m.size, assembly.Add(m.offs.assemblyImage))
			if err != nil || image.IsNull() {
				return Image{}, false
			}
			return Image{addr: image}, true
		}

		node, err = mem.ReadPointer(p, m.size, node.Add(uint64(m.size.Bytes())))
		if err != nil {
			return Image{}, false
		}
	}
	return Image{}, false
}

// Class implements ClassModel: a linear walk of the image's class-cache
// hash table, bucket by bucket, chain by chain.
func (m *Module) Class(p mem.Process, img Image, name string) (Class, bool) {
	var buf [nameBufferLen]byte

	cache := img.addr.Add(m.offs.imageClassCache)

	buckets, err := mem.Read[uint32](p, cache.Add(m.offs.hashTableSize))
	if err != nil || buckets == 0 || buckets > maxClassBuckets {
		return Class{}, false
	}
	table, err := mem.ReadPointer(p, m.size, cache.Add(m.offs.hashTableTable))
	if err != nil || table.IsNull() {
		return Class{}, false
	}

	ptrBytes := uint64(m.size.Bytes())
	for i := uint64(0); i < uint64(buckets); i++ {
		entry, err := mem.ReadPointer(p, m.size, table.Add(i*ptrBytes))
		if err != nil {
			return Class{}, false
		}
		for steps := 0; !entry.IsNull() && steps < maxBucketChain; steps++ {
			namePtr, err := mem.ReadPointer(p, m.size, entry.Add(m.offs.classNamePtr))
			if err == nil && m.nameEquals(p, namePtr, name, buf[:]) {
				return Class{addr: entry}, true
			}
			entry, err = mem.ReadPointer(p, m.size, entry.Add(m.offs.classNextInBucket))
			if err != nil {
				break
			}
		}
	}
	return Class{}, false
}

// FieldOffset implements ClassModel. Only the class's own declared fields
// are scanned; inherited fields belong to the parent's table.
func (m *Module) FieldOffset(p mem.Process, c Class, name string) (uint32, bool) {
	var buf [nameBufferLen]byte

	count, err := mem.Read[uint32](p, c.addr.Add(m.offs.classFieldCount))
	if err != nil || count > maxClassFields {
		return 0, false
	}
	fields, err := mem.ReadPointer(p, m.size, c.addr.Add(m.offs.classFields))
	if err != nil || fields.IsNull() {
		return 0, false
	}

	for i := uint64(0); i < uint64(count); i++ {
		record := fields.Add(i * m.offs.fieldRecordSize)
		namePtr, err := mem.ReadPointer(p, m.size, record.Add(m.offs.fieldName))
		if err != nil {
			return 0, false
		}
		if m.nameEquals(p, namePtr, name, buf[:]) {
			offset, err := mem.Read[int32](p, record.Add(m.offs.fieldOffset))
			if err != nil || offset < 0 {
				return 0, false
			}
			return uint32(offset), true
		}
	}
	return 0, false
}

// Parent implements ClassModel.
func (m *Module) Parent(p mem.Process, c Class) (Class, bool) {
	parent, err := mem.ReadPointer(p, m.size, c.addr.Add(m.offs.classParent))
	if err != nil || parent.IsNull() {
		return Class{}, false
	}
	return Class{addr: parent}, true
}

// StaticTable implements ClassModel. The statics block hangs off the
// class's domain vtable; depending on the runtime generation the vtable
// slot either is the block (V1) or points at it (V2, V3).
func (m *Module) StaticTable(p mem.Process, c Class) (mem.Address, bool) {
	runtimeInfo, err := mem.ReadPointer(p, m.size, c.addr.Add(m.offs.classRuntimeInfo))
	if err != nil || runtimeInfo.IsNull() {
		return mem.Null, false
	}
	vtable, err := mem.ReadPointer(p, m.size, runtimeInfo.Add(m.offs.runtimeInfoDomainVTables))
	if err != nil || vtable.IsNull() {
		return mem.Null, false
	}

	vtableSize, err := mem.Read[uint32](p, c.addr.Add(m.offs.classVTableSize))
	if err != nil {
		return mem.Null, false
	}

	slot := vtable.Add(m.offs.vtableData + uint64(vtableSize)*uint64(m.size.Bytes()))
	if !m.offs.staticsIndirect {
		return slot, true
	}

	statics, err := mem.ReadPointer(p, m.size, slot)
	if err != nil || statics.IsNull() {
		return mem.Null, false
	}
	return statics, true
}

// ObjectClass implements ClassModel: hop from a live object through its
// header to its class record.
func (m *Module) ObjectClass(p mem.Process, obj mem.Address) (Class, bool) {
	addr := obj
	for hop := 0; hop < m.offs.objectClassHops; hop++ {
		next, err := mem.ReadPointer(p, m.size, addr)
		if err != nil || next.IsNull() {
			return Class{}, false
		}
		addr = next
	}
	return Class{addr: addr}, true
}

// nameEquals reads a NUL-terminated name from the target into the caller's
// fixed buffer and compares it to want. Reads are chunked so a name sitting
// at the edge of a mapped page still compares correctly.
func (m *Module) nameEquals(p mem.Process, addr mem.Address, want string, buf []byte) bool {
	if addr.IsNull() || len(want) >= len(buf) {
		return false
	}

	const chunk = 8
	n := 0
	for n < len(buf) {
		end := n + chunk
		if end > len(buf) {
			end = len(buf)
		}
		if err := p.ReadInto(addr.Add(uint64(n)), buf[n:end]); err != nil {
			return false
		}
		for i := n; i < end; i++ {
			if buf[i] == 0 {
				if i != len(want) {
					return false
				}
				for j := 0; j < i; j++ {
					if buf[j] != want[j] {
						return false
					}
				}
				return true
			}
		}
		n = end
	}
	return false
}
