package mem

import (
	"errors"
	"fmt"
)

// MapProcess is a Process backed by in-memory regions mapped at absolute
// addresses. It serves emulated targets whose guest memory is a host-visible
// buffer, and it is the standard test double for everything built on
// Process.
//
// MapProcess follows the same single-threaded cooperative model as the rest
// of the package: no internal locking, callers serialize access.
type MapProcess struct {
	regions []mapRegion
	modules map[string]mapModule
	closed  bool
}

type mapRegion struct {
	base Address
	data []byte
}

type mapModule struct {
	base Address
	size uint64
}

// NewMapProcess creates an empty address space with nothing mapped.
func NewMapProcess() *MapProcess {
	return &MapProcess{modules: make(map[string]mapModule)}
}

// Map places data at base. The slice is retained, not copied, so later
// writes through Write are visible to readers holding the same process.
func (m *MapProcess) Map(base Address, data []byte) {
	m.regions = append(m.regions, mapRegion{base: base, data: data})
}

// MapModule maps data at base and registers it as a named module.
func (m *MapProcess) MapModule(name string, base Address, data []byte) {
	m.Map(base, data)
	m.modules[name] = mapModule{base: base, size: uint64(len(data))}
}

// Write mutates previously mapped memory. The whole write must land inside
// one mapped region.
func (m *MapProcess) Write(addr Address, data []byte) error {
	region, ok := m.find(addr, len(data))
	if !ok {
		return fmt.Errorf("write of %d bytes at %s is not inside a mapped region", len(data), addr)
	}
	copy(region.data[addr-region.base:], data)
	return nil
}

// Close simulates target process exit: every subsequent read fails.
func (m *MapProcess) Close() {
	m.closed = true
}

// IsOpen reports whether the simulated target is still running.
func (m *MapProcess) IsOpen() bool {
	return !m.closed
}

// ReadInto implements Process. The read must be fully contained within a
// single mapped region; anything else is an unmapped-page failure.
func (m *MapProcess) ReadInto(addr Address, buf []byte) error {
	if m.closed {
		return &ReadError{Addr: addr, Len: len(buf), Err: errors.New("process has exited")}
	}
	region, ok := m.find(addr, len(buf))
	if !ok {
		return &ReadError{Addr: addr, Len: len(buf), Err: errors.New("address range is not mapped")}
	}
	copy(buf, region.data[addr-region.base:])
	return nil
}

// ModuleRange implements Process.
func (m *MapProcess) ModuleRange(name string) (Address, uint64, error) {
	if m.closed {
		return Null, 0, &ModuleNotFoundError{Name: name}
	}
	mod, ok := m.modules[name]
	if !ok {
		return Null, 0, &ModuleNotFoundError{Name: name}
	}
	return mod.base, mod.size, nil
}

func (m *MapProcess) find(addr Address, n int) (mapRegion, bool) {
	for _, region := range m.regions {
		if addr >= region.base && uint64(addr-region.base)+uint64(n) <= uint64(len(region.data)) {
			return region, true
		}
	}
	return mapRegion{}, false
}
