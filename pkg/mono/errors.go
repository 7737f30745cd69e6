package mono

import (
	"fmt"

	"github.com/tickloop/autosplit/pkg/mem"
)

// Every error in this package is transient-not-ready: the target is still
// loading and the structure being looked up does not exist yet. Callers
// retry on the next tick; nothing here is fatal.

// AttachError occurs when the runtime module or its loaded-assemblies root
// cannot be located in the target process.
type AttachError struct {
	Version Version
	Module  string
	Err     error
}

func (e *AttachError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to attach to mono %s runtime '%s': %v", e.Version, e.Module, e.Err)
	}
	return fmt.Sprintf("failed to attach to mono %s runtime '%s'", e.Version, e.Module)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

// ClassNotFoundError occurs when a class (or one of its parents, when a
// parent hop count was requested) is not present in the class cache yet.
type ClassNotFoundError struct {
	Name string
	Hop  int // which parent hop failed, 0 for the class itself
}

func (e *ClassNotFoundError) Error() string {
	if e.Hop > 0 {
		return fmt.Sprintf("parent %d of class '%s' not found", e.Hop, e.Name)
	}
	return fmt.Sprintf("class '%s' not found", e.Name)
}

// FieldNotFoundError occurs when a class's own field table has no field
// with the requested name.
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field '%s' not found", e.Field)
}

// StaticsNotReadyError occurs when a class exists but its static-field
// block has not been allocated by the target runtime yet.
type StaticsNotReadyError struct {
	Class string
}

func (e *StaticsNotReadyError) Error() string {
	return fmt.Sprintf("static table of class '%s' is not ready", e.Class)
}

// ObjectClassError occurs when the class record of a live object cannot be
// reached through its header, usually because the object slot still holds
// null or garbage while the target is loading.
type ObjectClassError struct {
	Object mem.Address
}

func (e *ObjectClassError) Error() string {
	return fmt.Sprintf("cannot resolve class of object at %s", e.Object)
}
