package mono

import (
	"github.com/tickloop/autosplit/pkg/mem"
)

// Version selects the generation of the Mono object model used by the
// target. It is detected once at attach time (from the runtime module
// shipped with the game) and never changes for the attachment.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// offsets is the byte layout of one runtime generation at one pointer
// width. These are immutable lookup tables: data, not state.
type offsets struct {
	// MonoAssembly
	assemblyAName uint64
	assemblyImage uint64

	// MonoImage and its embedded class-cache hash table
	imageClassCache uint64
	hashTableSize   uint64
	hashTableTable  uint64

	// MonoClass / MonoClassDef
	classNamePtr      uint64
	classParent       uint64
	classFields       uint64
	classRuntimeInfo  uint64
	classVTableSize   uint64
	classFieldCount   uint64
	classNextInBucket uint64

	// MonoClassField record layout
	fieldRecordSize uint64
	fieldName       uint64
	fieldOffset     uint64

	// MonoClassRuntimeInfo / MonoVTable
	runtimeInfoDomainVTables uint64
	vtableData               uint64
	// staticsIndirect marks generations that store a pointer to the
	// static-field block in the vtable slot instead of the block itself.
	staticsIndirect bool

	// Object header: pointer hops from an object instance to its class
	// record (object -> vtable -> class for every Mono generation, but
	// carried per binding rather than assumed).
	objectClassHops int

	// Attachment data: runtime module name and the code signature whose
	// operand points at the loaded-assemblies root.
	moduleName         string
	assembliesSig      string
	assembliesSigShift uint64
}

type offsetsKey struct {
	version Version
	size    mem.PointerSize
}

var offsetTable = map[offsetsKey]*offsets{
	{V1, mem.Pointer64}: {
		assemblyAName: 0x10, assemblyImage: 0x58,
		imageClassCache: 0x3D0, hashTableSize: 0x18, hashTableTable: 0x20,
		classNamePtr: 0x40, classParent: 0x28, classFields: 0x90,
		classRuntimeInfo: 0xC8, classVTableSize: 0x54,
		classFieldCount: 0x94, classNextInBucket: 0xF8,
		fieldRecordSize: 0x20, fieldName: 0x8, fieldOffset: 0x18,
		runtimeInfoDomainVTables: 0x8, vtableData: 0x48,
		staticsIndirect: false, objectClassHops: 2,
		moduleName:         "mono.dll",
		assembliesSig:      "48 8B 0D ?? ?? ?? ?? 48 85 C9 74",
		assembliesSigShift: 3,
	},
	{V1, mem.Pointer32}: {
		assemblyAName: 0x8, assemblyImage: 0x40,
		imageClassCache: 0x2A0, hashTableSize: 0xC, hashTableTable: 0x14,
		classNamePtr: 0x30, classParent: 0x24, classFields: 0x60,
		classRuntimeInfo: 0x84, classVTableSize: 0x38,
		classFieldCount: 0x64, classNextInBucket: 0xA8,
		fieldRecordSize: 0x10, fieldName: 0x4, fieldOffset: 0xC,
		runtimeInfoDomainVTables: 0x4, vtableData: 0x28,
		staticsIndirect: false, objectClassHops: 2,
		moduleName:         "mono.dll",
		assembliesSig:      "A1 ?? ?? ?? ?? 85 C0 74",
		assembliesSigShift: 1,
	},
	{V2, mem.Pointer64}: {
		assemblyAName: 0x10, assemblyImage: 0x60,
		imageClassCache: 0x4C0, hashTableSize: 0x18, hashTableTable: 0x20,
		classNamePtr: 0x48, classParent: 0x30, classFields: 0x98,
		classRuntimeInfo: 0xD0, classVTableSize: 0x5C,
		classFieldCount: 0x100, classNextInBucket: 0x108,
		fieldRecordSize: 0x20, fieldName: 0x8, fieldOffset: 0x18,
		runtimeInfoDomainVTables: 0x8, vtableData: 0x40,
		staticsIndirect: true, objectClassHops: 2,
		moduleName:         "mono-2.0-bdwgc.dll",
		assembliesSig:      "48 8B 0D ?? ?? ?? ?? 48 85 C9 74",
		assembliesSigShift: 3,
	},
	{V2, mem.Pointer32}: {
		assemblyAName: 0x8, assemblyImage: 0x44,
		imageClassCache: 0x354, hashTableSize: 0xC, hashTableTable: 0x14,
		classNamePtr: 0x2C, classParent: 0x20, classFields: 0x60,
		classRuntimeInfo: 0x84, classVTableSize: 0x38,
		classFieldCount: 0xA4, classNextInBucket: 0xA8,
		fieldRecordSize: 0x10, fieldName: 0x4, fieldOffset: 0xC,
		runtimeInfoDomainVTables: 0x4, vtableData: 0x28,
		staticsIndirect: true, objectClassHops: 2,
		moduleName:         "mono-2.0-bdwgc.dll",
		assembliesSig:      "A1 ?? ?? ?? ?? 85 C0 74",
		assembliesSigShift: 1,
	},
	{V3, mem.Pointer64}: {
		assemblyAName: 0x10, assemblyImage: 0x60,
		imageClassCache: 0x4D0, hashTableSize: 0x18, hashTableTable: 0x20,
		classNamePtr: 0x48, classParent: 0x30, classFields: 0x98,
		classRuntimeInfo: 0xD0, classVTableSize: 0x5C,
		classFieldCount: 0x100, classNextInBucket: 0x108,
		fieldRecordSize: 0x20, fieldName: 0x8, fieldOffset: 0x18,
		runtimeInfoDomainVTables: 0x8, vtableData: 0x48,
		staticsIndirect: true, objectClassHops: 2,
		moduleName:         "mono-2.0-bdwgc.dll",
		assembliesSig:      "48 8B 0D ?? ?? ?? ?? 48 85 C9 74",
		assembliesSigShift: 3,
	},
	{V3, mem.Pointer32}: {
		assemblyAName: 0x8, assemblyImage: 0x44,
		imageClassCache: 0x35C, hashTableSize: 0xC, hashTableTable: 0x14,
		classNamePtr: 0x2C, classParent: 0x20, classFields: 0x60,
		classRuntimeInfo: 0x84, classVTableSize: 0x38,
		classFieldCount: 0xA4, classNextInBucket: 0xA8,
		fieldRecordSize: 0x10, fieldName: 0x4, fieldOffset: 0xC,
		runtimeInfoDomainVTables: 0x4, vtableData: 0x2C,
		staticsIndirect: true, objectClassHops: 2,
		moduleName:         "mono-2.0-bdwgc.dll",
		assembliesSig:      "A1 ?? ?? ?? ?? 85 C0 74",
		assembliesSigShift: 1,
	},
}

// lookupOffsets is a pure function from (version, pointer width) to the
// layout table for that combination.
func lookupOffsets(version Version, size mem.PointerSize) (*offsets, bool) {
	offs, ok := offsetTable[offsetsKey{version: version, size: size}]
	return offs, ok
}
