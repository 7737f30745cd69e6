package mono

import (
	"errors"
	"testing"

	"github.com/tickloop/autosplit/pkg/mem"
)

func TestPointerStaticField(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)
	cls := f.addClass(img, "GameManager", 1)
	f.addField(cls, "level", 0x18)
	statics := f.addStatics(cls, 0x100)
	f.putU32(statics.Add(0x18), 7)

	pt := NewPointer("GameManager", 0, "level")
	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("Deref failed: %v", err)
	}
	if got != 7 {
		t.Errorf("level = %d, want 7", got)
	}
	if pt.Resolved() != pt.Depth() {
		t.Errorf("Resolved = %d, want %d", pt.Resolved(), pt.Depth())
	}
}

func TestPointerWalksObjects(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	manager := f.addClass(img, "GameManager", 1)
	f.addField(manager, "instance", 0x8)
	statics := f.addStatics(manager, 0x100)

	player := f.addClass(img, "Player", 1)
	f.addField(player, "hp", 0x30)
	obj := f.makeObject(player)
	f.putU32(obj.Add(0x30), 250)
	f.putPtr(statics.Add(0x8), obj)

	pt := NewPointer("GameManager", 0, "instance", "hp")
	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("Deref failed: %v", err)
	}
	if got != 250 {
		t.Errorf("hp = %d, want 250", got)
	}

	addr, err := pt.DerefOffsets(f.proc, m, img)
	if err != nil {
		t.Fatalf("DerefOffsets failed: %v", err)
	}
	if want := obj.Add(0x30); addr != want {
		t.Errorf("final address = %s, want %s", addr, want)
	}
}

func TestPointerStartsAtParentClass(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	base := f.addClass(img, "SingletonBase", 1)
	f.addField(base, "instance", 0x10)
	statics := f.addStatics(base, 0x100)
	f.putU32(statics.Add(0x10), 0xCAFE)

	derived := f.addClass(img, "GameManager", 0)
	f.setParent(derived, base)

	// One parent hop: the statics and field live on SingletonBase even
	// though the path is declared against GameManager.
	pt := NewPointer("GameManager", 1, "instance")
	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("Deref failed: %v", err)
	}
	if got != 0xCAFE {
		t.Errorf("instance = %#x, want 0xCAFE", got)
	}
}

func TestPointerLiteralOffsets(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	// No field metadata at all: literal offsets never touch the field
	// tables.
	cls := f.addClass(img, "GameManager", 0)
	statics := f.addStatics(cls, 0x100)

	obj := f.makeObject(cls)
	f.putPtr(statics.Add(0x10), obj)
	f.putU32(obj.Add(0x20), 42)

	pt := NewPointer("GameManager", 0, "0x10", "32")
	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("Deref failed: %v", err)
	}
	if got != 42 {
		t.Errorf("value = %d, want 42", got)
	}
}

func TestPointerIncrementalResolution(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)
	cls := f.addClass(img, "GameManager", 2)
	statics := f.addStatics(cls, 0x100)

	pt := NewPointer("GameManager", 0, "score")

	// The field is not in the metadata yet. The attempt fails but the class
	// and statics lookups are kept.
	_, err := Deref[uint32](f.proc, m, img, pt)
	var notFound *FieldNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *FieldNotFoundError", err)
	}
	if pt.Resolved() != 0 {
		t.Fatalf("Resolved = %d after failed attempt, want 0", pt.Resolved())
	}

	// The target finishes loading and the field appears.
	f.addField(cls, "score", 0x44)
	f.putU32(statics.Add(0x44), 9001)

	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("Deref after field appeared failed: %v", err)
	}
	if got != 9001 {
		t.Errorf("score = %d, want 9001", got)
	}
}

func TestPointerResumesAfterNullObject(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	manager := f.addClass(img, "GameManager", 1)
	f.addField(manager, "instance", 0x8)
	statics := f.addStatics(manager, 0x100)

	player := f.addClass(img, "Player", 1)
	f.addField(player, "hp", 0x30)

	pt := NewPointer("GameManager", 0, "instance", "hp")

	// The instance slot still holds null: position 0 resolves, position 1
	// cannot because there is no object to take a class from.
	_, err := Deref[uint32](f.proc, m, img, pt)
	if err == nil {
		t.Fatal("Deref must fail while the instance slot is null")
	}
	if pt.Resolved() != 1 {
		t.Fatalf("Resolved = %d after partial attempt, want 1", pt.Resolved())
	}

	// The singleton is created. The retry must pick up the live object
	// instead of the null it saw last time.
	obj := f.makeObject(player)
	f.putU32(obj.Add(0x30), 100)
	f.putPtr(statics.Add(0x8), obj)

	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("Deref after instance appeared failed: %v", err)
	}
	if got != 100 {
		t.Errorf("hp = %d, want 100", got)
	}
	if pt.Resolved() != 2 {
		t.Errorf("Resolved = %d, want 2", pt.Resolved())
	}
}

func TestPointerResolvedNeverDecreases(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	manager := f.addClass(img, "GameManager", 1)
	f.addField(manager, "instance", 0x8)
	statics := f.addStatics(manager, 0x100)

	player := f.addClass(img, "Player", 1)
	f.addField(player, "hp", 0x30)
	obj := f.makeObject(player)
	f.putU32(obj.Add(0x30), 77)
	f.putPtr(statics.Add(0x8), obj)

	pt := NewPointer("GameManager", 0, "instance", "hp")
	if _, err := pt.DerefOffsets(f.proc, m, img); err != nil {
		t.Fatalf("initial resolution failed: %v", err)
	}
	first := pt.offsets

	// A scene change nulls the singleton. The walk continues arithmetically
	// through the null and the final read lands on unmapped memory, but the
	// cached offsets and the resolved count survive.
	f.putPtr(statics.Add(0x8), mem.Null)
	if _, err := Deref[uint32](f.proc, m, img, pt); err == nil {
		t.Fatal("Deref must fail while the chain is broken")
	}
	if pt.Resolved() != pt.Depth() {
		t.Errorf("Resolved = %d after live failure, want %d", pt.Resolved(), pt.Depth())
	}
	if pt.offsets != first {
		t.Error("cached offsets changed after a live-chain failure")
	}

	f.putPtr(statics.Add(0x8), obj)
	got, err := Deref[uint32](f.proc, m, img, pt)
	if err != nil {
		t.Fatalf("read after chain restored failed: %v", err)
	}
	if got != 77 {
		t.Errorf("hp = %d, want 77", got)
	}
}

func TestPointerDeepPointerExport(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	manager := f.addClass(img, "GameManager", 1)
	f.addField(manager, "instance", 0x8)
	statics := f.addStatics(manager, 0x100)

	player := f.addClass(img, "Player", 1)
	f.addField(player, "hp", 0x30)
	obj := f.makeObject(player)
	f.putU32(obj.Add(0x30), 55)
	f.putPtr(statics.Add(0x8), obj)

	pt := NewPointer("GameManager", 0, "instance", "hp")
	path, ok := pt.DeepPointer(f.proc, m, img)
	if !ok {
		t.Fatal("DeepPointer must succeed once the path is resolvable")
	}

	// The exported path walks without the metadata layer.
	want, err := pt.DerefOffsets(f.proc, m, img)
	if err != nil {
		t.Fatalf("DerefOffsets failed: %v", err)
	}
	got, err := path.DerefOffsets(f.proc)
	if err != nil {
		t.Fatalf("exported path walk failed: %v", err)
	}
	if got != want {
		t.Errorf("exported path = %s, symbolic path = %s", got, want)
	}
}

func TestPointerDeepPointerBeforeResolved(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)
	f.addClass(img, "GameManager", 1)

	// Statics are not ready, so the path cannot fully resolve yet.
	pt := NewPointer("GameManager", 0, "score")
	if _, ok := pt.DeepPointer(f.proc, m, img); ok {
		t.Error("DeepPointer must report false before full resolution")
	}
}

func TestPointerMissingClass(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)

	pt := NewPointer("GameManager", 0, "score")
	_, err := Deref[uint32](f.proc, m, img, pt)
	var notFound *ClassNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *ClassNotFoundError", err)
	}
	if notFound.Name != "GameManager" || notFound.Hop != 0 {
		t.Errorf("ClassNotFoundError = %+v", notFound)
	}
}

func TestPointerTruncatesExtraFields(t *testing.T) {
	fields := make([]string, MaxFields+4)
	for i := range fields {
		fields[i] = "0x8"
	}
	pt := NewPointer("GameManager", 0, fields...)
	if pt.Depth() != MaxFields {
		t.Errorf("Depth = %d, want %d", pt.Depth(), MaxFields)
	}
}

func TestPointerEmptyPath(t *testing.T) {
	f, m := newFakeTarget(t, V2, mem.Pointer64)
	img := f.addImage(DefaultImageName, 4)
	cls := f.addClass(img, "GameManager", 0)
	f.addStatics(cls, 0x100)

	pt := NewPointer("GameManager", 0)
	if _, err := pt.DerefOffsets(f.proc, m, img); !errors.Is(err, mem.ErrEmptyPath) {
		t.Errorf("error = %v, want ErrEmptyPath", err)
	}
}
