package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tickloop/autosplit/internal/wasm"
	"github.com/tickloop/autosplit/pkg/mem"
)

// procProvider finds target processes by scanning /proc and opens them
// through the pread backend.
type procProvider struct{}

// NewProcessProvider returns the platform process backend.
func NewProcessProvider() wasm.ProcessProvider {
	return procProvider{}
}

// Open finds a running process whose executable matches name and opens
// its memory for reading.
func (procProvider) Open(name string) (mem.Process, error) {
	pid, err := findPid(name)
	if err != nil {
		return nil, err
	}
	return mem.OpenPid(pid)
}

// findPid scans /proc for a process matching the executable name. It
// checks the exe symlink basename first and falls back to comm, which
// the kernel truncates to 15 bytes.
func findPid(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("failed to scan /proc: %w", err)
	}

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		if exe, err := os.Readlink(filepath.Join("/proc", entry.Name(), "exe")); err == nil {
			if filepath.Base(exe) == name {
				return pid, nil
			}
		}

		comm, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "comm"))
		if err != nil {
			continue
		}
		if matchesComm(name, strings.TrimSpace(string(comm))) {
			return pid, nil
		}
	}

	return 0, fmt.Errorf("no process named '%s'", name)
}

func matchesComm(name, comm string) bool {
	if comm == name {
		return true
	}
	// comm holds at most 15 bytes of the executable name.
	return len(comm) == 15 && strings.HasPrefix(name, comm)
}
