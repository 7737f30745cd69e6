//go:build wasm

package splitter

// This file defines the Wasm export interface for splitters.
// Splitters must implement these functions using //go:wasmexport
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. All Wasm memory addresses are represented as 32-bit integers
// (addresses 0 to 4GB). This ensures compatibility with Wasm's memory architecture.
// See: https://github.com/golang/go/issues/59156

// Exported functions that splitters must implement:
//
// //go:wasmexport update
// func update()
//
// Called once per tick by the host. All splitter logic (attaching to the
// target, reading memory, starting and splitting the timer) happens here.
//
// Optionally:
//
// //go:wasmexport configure
// func configure()
//
// Called once before the first update, to register user settings with
// user_settings_add_bool.
