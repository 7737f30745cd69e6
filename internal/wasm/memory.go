package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Guest linear-memory access for host functions.
//
// Splitters have their own isolated linear memory that is separate from Go's
// memory. Every pointer/length pair they hand across the ABI is untrusted:
// reads and writes are bounds checked by wazero, and a failed check shows up
// here as ok=false, never as a panic.

// guestString reads an exact-length string from the calling module's memory.
// The ABI passes pointer/length pairs, not null-terminated strings.
func guestString(mod api.Module, ptr, length uint32) (string, bool) {
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(buf), true
}

// guestWrite fills a guest-owned buffer. The guest allocates; the host only
// fills regions it was handed.
func guestWrite(mod api.Module, ptr uint32, data []byte) bool {
	return mod.Memory().Write(ptr, data)
}
