//go:build linux

package mem

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ProcProcess is a Process backed by the procfs interface to a live Linux
// process: reads go through pread on /proc/<pid>/mem and module ranges come
// from /proc/<pid>/maps.
type ProcProcess struct {
	pid int
	fd  int
}

// OpenPid attaches to a running process by pid. Reading another process's
// memory requires ptrace permission over it (same user plus a permissive
// yama setting, or CAP_SYS_PTRACE).
func OpenPid(pid int) (*ProcProcess, error) {
	fd, err := unix.Open(fmt.Sprintf("/proc/%d/mem", pid), unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory of pid %d: %w", pid, err)
	}
	return &ProcProcess{pid: pid, fd: fd}, nil
}

// Pid returns the attached process id.
func (p *ProcProcess) Pid() int {
	return p.pid
}

// Close releases the memory handle.
func (p *ProcProcess) Close() error {
	return unix.Close(p.fd)
}

// IsOpen reports whether the target process is still alive. Signal 0
// performs the permission and existence checks without delivering anything.
func (p *ProcProcess) IsOpen() bool {
	return unix.Kill(p.pid, 0) == nil
}

// ReadInto implements Process.
func (p *ProcProcess) ReadInto(addr Address, buf []byte) error {
	n, err := unix.Pread(p.fd, buf, int64(addr))
	if err != nil {
		return &ReadError{Addr: addr, Len: len(buf), Err: err}
	}
	if n != len(buf) {
		return &ReadError{Addr: addr, Len: len(buf), Err: fmt.Errorf("short read of %d bytes", n)}
	}
	return nil
}

// ModuleRange implements Process. The range spans every mapping whose
// backing file has the given base name, from the lowest start to the
// highest end.
func (p *ProcProcess) ModuleRange(name string) (Address, uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", p.pid))
	if err != nil {
		return Null, 0, &ModuleNotFoundError{Name: name}
	}
	defer f.Close()

	var lo, hi uint64
	found := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// start-end perms offset dev inode [path]
		if len(fields) < 6 || filepath.Base(fields[5]) != name {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if !found || start < lo {
			lo = start
		}
		if !found || end > hi {
			hi = end
		}
		found = true
	}

	if !found {
		return Null, 0, &ModuleNotFoundError{Name: name}
	}
	return Address(lo), hi - lo, nil
}
