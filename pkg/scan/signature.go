// Package scan locates byte-pattern signatures in target process memory.
// Signatures anchor fixed entry points into runtime metadata that have no
// exported symbol, e.g. the loaded-assemblies root of a managed runtime.
package scan

import (
	"fmt"
	"strings"

	"github.com/tickloop/autosplit/pkg/mem"
)

// chunkSize is how much target memory is pulled per read while scanning a
// range. Chunks overlap by the signature length so matches spanning a chunk
// boundary are still found.
const chunkSize = 0x1000

// Signature is a byte pattern with wildcard positions, matched with a
// skip-table search.
type Signature struct {
	bytes []byte
	mask  []byte // 0xFF must match, 0x00 wildcard
	skip  [256]int
}

// ParseSignature parses patterns like "48 8B ?? 05 ?? ?? 8D". Each token is
// a two-digit hex byte or "??" for a position that matches anything.
func ParseSignature(pattern string) (*Signature, error) {
	fields := strings.Fields(pattern)
	if len(fields) == 0 {
		return nil, fmt.Errorf("signature pattern is empty")
	}

	sig := &Signature{
		bytes: make([]byte, len(fields)),
		mask:  make([]byte, len(fields)),
	}

	for i, field := range fields {
		if field == "??" || field == "?" {
			continue
		}
		var b byte
		if _, err := fmt.Sscanf(field, "%02x", &b); err != nil {
			return nil, fmt.Errorf("bad signature token '%s' at position %d", field, i)
		}
		sig.bytes[i] = b
		sig.mask[i] = 0xFF
	}

	if sig.mask[len(fields)-1] == 0 {
		return nil, fmt.Errorf("signature cannot end with a wildcard")
	}

	sig.buildSkipTable()
	return sig, nil
}

// Len returns the pattern length in bytes.
func (sig *Signature) Len() int {
	return len(sig.bytes)
}

// buildSkipTable precomputes, for every possible window-ending byte, how far
// the search window may safely advance after a mismatch. Wildcard positions
// match any byte, which caps the skip for the whole alphabet.
func (sig *Signature) buildSkipTable() {
	m := len(sig.bytes)
	for c := range sig.skip {
		sig.skip[c] = m
	}
	for i := 0; i < m-1; i++ {
		if sig.mask[i] == 0 {
			for c := range sig.skip {
				if sig.skip[c] > m-1-i {
					sig.skip[c] = m - 1 - i
				}
			}
			continue
		}
		sig.skip[sig.bytes[i]] = m - 1 - i
	}
}

// ScanBytes returns the index of the first match in the haystack.
func (sig *Signature) ScanBytes(haystack []byte) (int, bool) {
	m := len(sig.bytes)
	for pos := 0; pos+m <= len(haystack); {
		matched := true
		for i := m - 1; i >= 0; i-- {
			if sig.mask[i] != 0 && haystack[pos+i] != sig.bytes[i] {
				matched = false
				break
			}
		}
		if matched {
			return pos, true
		}
		pos += sig.skip[haystack[pos+m-1]]
	}
	return 0, false
}

// Scan searches a range of target memory and returns the address of the
// first match. Unreadable chunks (unmapped pages inside the range) are
// skipped rather than aborting the scan.
func (sig *Signature) Scan(p mem.Process, base mem.Address, size uint64) (mem.Address, bool) {
	m := uint64(sig.Len())
	if size < m {
		return mem.Null, false
	}

	buf := make([]byte, chunkSize+m-1)
	for offset := uint64(0); offset < size; offset += chunkSize {
		n := uint64(len(buf))
		if offset+n > size {
			n = size - offset
		}
		if n < m {
			break
		}
		if err := p.ReadInto(base.Add(offset), buf[:n]); err != nil {
			continue
		}
		if idx, ok := sig.ScanBytes(buf[:n]); ok {
			return base.Add(offset + uint64(idx)), true
		}
	}
	return mem.Null, false
}
