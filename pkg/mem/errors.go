package mem

import (
	"errors"
	"fmt"
)

// ErrInvalidBitPattern occurs when bytes were read successfully but do not
// form a legal value of the requested type (e.g. a bool byte that is neither
// 0 nor 1). This is always a hard error, never coerced.
var ErrInvalidBitPattern = errors.New("bytes do not form a valid value of the requested type")

// ErrEmptyPath occurs when dereferencing a pointer path with no offsets.
// The degenerate zero-offset case is rejected rather than silently
// returning the base address unchanged.
var ErrEmptyPath = errors.New("pointer path has no offsets")

// ReadError occurs when the underlying memory read fails: unmapped page,
// access denied, or the target process has exited. Callers treat it the
// same as transient-not-ready and retry next tick.
type ReadError struct {
	Addr Address
	Len  int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %d bytes at %s: %v", e.Len, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when the target process has no loaded module
// with the requested name.
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in target process", e.Name)
}

// PointerSizeError occurs when a pointer read is requested with a width
// that is neither 32-bit nor 64-bit.
type PointerSizeError struct {
	Size PointerSize
}

func (e *PointerSizeError) Error() string {
	return fmt.Sprintf("unsupported pointer size %d", int(e.Size))
}
