// Package ptops implements the hardware page-table primitives the
// virtual memory subsystem consumes: pt_map, pt_unmap, and the
// accessed/dirty bit accessors the clock algorithm and the file
// backend rely on. The kernel this is adapted from walks a real
// four-level Pmap_t array of PTE_* bit-tagged entries reached through
// the direct map; hosted Go has no MMU to program, so PT plays the
// same role — one entry per mapped page, guarded by the same kind of
// embedded mutex the kernel's Vm_t uses around pmap edits — over a
// plain map keyed by virtual address instead of a walked radix tree.
package ptops

import (
	"sync"

	"vmkern/mem"
)

// Entry_t is one page-table entry: the frame currently mapped at a
// virtual address plus its permission and status bits.
type Entry_t struct {
	Kva      mem.Kva_t
	Writable bool
	Accessed bool
	Dirty    bool
}

// PT is one process's page table. The zero value is not usable; use
// New.
type PT struct {
	sync.Mutex
	entries map[uintptr]*Entry_t
}

// New allocates an empty page table.
func New() *PT {
	return &PT{entries: make(map[uintptr]*Entry_t)}
}

// Map installs a 4 KiB mapping from va to kva with the given
// permission. va must already be page-aligned; the caller (claim)
// is responsible for rounding. It returns false only when the
// implementation cannot record the mapping — this map-backed
// implementation never runs out of entries, but the interface
// preserves the bool so a future tree-walking implementation can
// report allocation failure the way pt_map does in the external
// interface.
func (pt *PT) Map(va uintptr, kva mem.Kva_t, writable bool) bool {
	pt.Lock()
	defer pt.Unlock()
	pt.entries[va] = &Entry_t{Kva: kva, Writable: writable}
	return true
}

// Unmap removes the mapping at va, if any. It is a no-op if va is not
// mapped, since destroy paths call Unmap defensively on pages that
// may never have been claimed.
func (pt *PT) Unmap(va uintptr) {
	pt.Lock()
	defer pt.Unlock()
	delete(pt.entries, va)
}

// Lookup returns the entry mapped at va, if present. The fault path
// and userspace-memory copies need to read the kva a mapping
// resolves to, not just its bits.
func (pt *PT) Lookup(va uintptr) (Entry_t, bool) {
	pt.Lock()
	defer pt.Unlock()
	e, ok := pt.entries[va]
	if !ok {
		return Entry_t{}, false
	}
	return *e, true
}

// Mapped reports whether va currently has a hardware mapping,
// matching the residency-duality invariant: P.frame == none iff no
// mapping exists for P.va.
func (pt *PT) Mapped(va uintptr) bool {
	pt.Lock()
	defer pt.Unlock()
	_, ok := pt.entries[va]
	return ok
}

// Accessed reports the accessed bit for va. Unmapped addresses read
// as not accessed.
func (pt *PT) Accessed(va uintptr) bool {
	pt.Lock()
	defer pt.Unlock()
	e, ok := pt.entries[va]
	return ok && e.Accessed
}

// SetAccessed sets or clears the accessed bit for va. It is a no-op
// if va is unmapped.
func (pt *PT) SetAccessed(va uintptr, v bool) {
	pt.Lock()
	defer pt.Unlock()
	if e, ok := pt.entries[va]; ok {
		e.Accessed = v
	}
}

// Dirty reports the dirty bit for va. Unmapped addresses read as
// clean.
func (pt *PT) Dirty(va uintptr) bool {
	pt.Lock()
	defer pt.Unlock()
	e, ok := pt.entries[va]
	return ok && e.Dirty
}

// SetDirty sets or clears the dirty bit for va. It is a no-op if va
// is unmapped.
func (pt *PT) SetDirty(va uintptr, v bool) {
	pt.Lock()
	defer pt.Unlock()
	if e, ok := pt.entries[va]; ok {
		e.Dirty = v
	}
}

// Touch marks va as accessed and, if write is true, also dirty. The
// fault path calls this once a mapping is installed and the access
// that caused the fault is retried, the same moment the hardware
// would set A and D itself.
func (pt *PT) Touch(va uintptr, write bool) {
	pt.Lock()
	defer pt.Unlock()
	e, ok := pt.entries[va]
	if !ok {
		return
	}
	e.Accessed = true
	if write {
		e.Dirty = true
	}
}
