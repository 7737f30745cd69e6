package mono

import (
	"strconv"
	"strings"

	"github.com/tickloop/autosplit/pkg/mem"
)

// MaxFields is the fixed capacity of a symbolic pointer. Extra fields are
// silently truncated, matching mem.Path.
const MaxFields = mem.MaxOffsets

// Pointer is a symbolic deep pointer: a starting class name, a number of
// parent-class hops, and a sequence of field names or literal offsets.
//
// Name resolution against the target's metadata is expensive, so its result
// is cached inside the Pointer and resolution is resumable: progress made
// before a failure (the target is still loading) is kept, and the next
// attempt continues at the first unresolved position. Once every position
// is resolved, all later calls walk only the cached numeric offsets.
//
// Resolution mutates the cache, so a Pointer must not be shared between
// concurrent resolvers. The core's execution model is single-threaded and
// poll-driven; exclusive access falls out of ordinary pointer-receiver use.
type Pointer struct {
	class   string
	parents int
	fields  [MaxFields]string
	depth   int

	// Resolution cache. resolved only grows, and offsets below it are
	// never rewritten.
	offsets  [MaxFields]uint64
	resolved int
	start    Class
	started  bool
	statics  mem.Address
	current  mem.Address
}

// NewPointer declares a symbolic pointer path rooted at the static fields
// of className, nrOfParents hops up its inheritance chain. Each field is
// either a field name to resolve against the target's metadata, or a
// literal decimal or 0x-prefixed hexadecimal offset for paths hand-lifted
// out of reverse-engineering tools whose names are no longer present.
func NewPointer(className string, nrOfParents int, fields ...string) *Pointer {
	pt := &Pointer{class: className, parents: nrOfParents}
	n := len(fields)
	if n > MaxFields {
		n = MaxFields
	}
	copy(pt.fields[:], fields[:n])
	pt.depth = n
	return pt
}

// Depth returns the number of active path positions.
func (pt *Pointer) Depth() int {
	return pt.depth
}

// Resolved returns how many leading positions have been resolved so far.
func (pt *Pointer) Resolved() int {
	return pt.resolved
}

// findOffsets advances resolution as far as the target's current state
// allows, left to right, in a single call. Offsets resolved by earlier
// calls are never recomputed; only the live pointer chain is re-walked,
// because instance addresses move and populate while offsets stay fixed
// for a given build. Any failure aborts this attempt but keeps all prior
// progress for the next one.
func (pt *Pointer) findOffsets(p mem.Process, model ClassModel, img Image) error {
	if pt.started && !pt.statics.IsNull() && pt.resolved == pt.depth {
		// Fully resolved, permanently. Callers go straight to the cached
		// numeric path.
		return nil
	}

	if !pt.started {
		c, ok := model.Class(p, img, pt.class)
		if !ok {
			return &ClassNotFoundError{Name: pt.class}
		}
		for hop := 1; hop <= pt.parents; hop++ {
			c, ok = model.Parent(p, c)
			if !ok {
				return &ClassNotFoundError{Name: pt.class, Hop: hop}
			}
		}
		pt.start = c
		pt.started = true
	}

	if pt.statics.IsNull() {
		statics, ok := model.StaticTable(p, pt.start)
		if !ok {
			return &StaticsNotReadyError{Class: pt.class}
		}
		pt.statics = statics
		pt.current = statics
	}

	// Walk the live chain from the statics block on every attempt, reusing
	// cached offsets for positions already resolved. Offsets are stable for
	// a given target build; the object addresses behind them are not.
	current := pt.statics
	for i := 0; i < pt.depth; i++ {
		offset := pt.offsets[i]
		if i >= pt.resolved {
			var literal bool
			offset, literal = parseLiteralOffset(pt.fields[i])
			if !literal {
				cls := pt.start
				if i > 0 {
					// The object reached after the previous offset carries
					// a hidden pointer to its own type descriptor; ask the
					// binding to follow it.
					c, ok := model.ObjectClass(p, current)
					if !ok {
						return &ObjectClassError{Object: current}
					}
					cls = c
				}
				off32, ok := model.FieldOffset(p, cls, pt.fields[i])
				if !ok {
					return &FieldNotFoundError{Field: pt.fields[i]}
				}
				offset = uint64(off32)
			}
		}

		// The final offset is address-of, never dereferenced.
		if i < pt.depth-1 {
			next, err := mem.ReadPointer(p, model.PointerSize(), current.Add(offset))
			if err != nil {
				return err
			}
			current = next
		}

		if i >= pt.resolved {
			pt.offsets[i] = offset
			pt.resolved = i + 1
		}
		pt.current = current
	}
	return nil
}

// DerefOffsets ensures the path is fully resolved, then walks the cached
// numeric offsets from the cached static table and returns the address of
// the final field (the last offset is added, not dereferenced).
func (pt *Pointer) DerefOffsets(p mem.Process, model ClassModel, img Image) (mem.Address, error) {
	if err := pt.findOffsets(p, model, img); err != nil {
		return mem.Null, err
	}
	path := mem.NewPath(model.PointerSize(), pt.statics, pt.offsets[:pt.depth]...)
	return path.DerefOffsets(p)
}

// Deref resolves the path and reads the typed value at its end.
func Deref[T mem.Value](p mem.Process, model ClassModel, img Image, pt *Pointer) (T, error) {
	addr, err := pt.DerefOffsets(p, model, img)
	if err != nil {
		var zero T
		return zero, err
	}
	return mem.Read[T](p, addr)
}

// DeepPointer exports the resolved state as a standalone numeric pointer
// path, so steady-state ticks can skip the metadata walker entirely.
// Returns false until the path has fully resolved at least once.
func (pt *Pointer) DeepPointer(p mem.Process, model ClassModel, img Image) (mem.Path, bool) {
	if err := pt.findOffsets(p, model, img); err != nil {
		return mem.Path{}, false
	}
	return mem.NewPath(model.PointerSize(), pt.statics, pt.offsets[:pt.depth]...), true
}

// parseLiteralOffset recognizes decimal and 0x-prefixed hexadecimal
// literals. Anything else is a field name.
func parseLiteralOffset(s string) (uint64, bool) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		return v, err == nil
	}
	if rest, ok := strings.CutPrefix(s, "0X"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}
