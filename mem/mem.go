// Package mem implements the frame allocator wrapper: the lowest layer
// of the virtual memory subsystem, responsible for handing out
// zero-filled user frames and taking them back. It plays the role the
// kernel's own Physmem_t plays for physical memory, but without
// per-CPU free lists, refcounting, or a direct map — this subsystem
// never shares a frame between two pages, so a flat map of live frames
// guarded by one lock is enough.
package mem

import (
	"sync"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks offsets within a page.
const PGOFFSET uintptr = uintptr(PGSIZE - 1)

// PGMASK masks the page number out of an address.
const PGMASK uintptr = ^PGOFFSET

// Bytepg_t is a page-sized, byte-addressed frame.
type Bytepg_t [PGSIZE]uint8

// Kva_t is the kernel-accessible address of a frame: a pointer to its
// backing array. Two Kva_t values are the same frame iff they point at
// the same array.
type Kva_t = *Bytepg_t

// Pa_t is an opaque handle to a physical frame, stable across the
// frame's lifetime and suitable as a map/hashtable key. Callers never
// dereference it directly; they pass it back to Dmap to recover the
// byte slice.
type Pa_t uintptr

// Round rounds an address down to the start of its containing page.
func Round(va uintptr) uintptr {
	return va &^ PGOFFSET
}

// Phys_t is the frame allocator: a pool of host-allocated,
// page-sized byte arrays handed out on frame_alloc and returned on
// frame_free. Unlike the kernel's allocator it never reserves a fixed
// region up front; Go's runtime heap is the backing store, and frames
// are ordinary garbage-collected allocations kept alive by the
// Kva_t the caller holds.
type Phys_t struct {
	sync.Mutex
	live map[Pa_t]Kva_t
	next uintptr
	// cap bounds the number of simultaneously live frames; 0 means
	// unbounded. SetCap sizes this to whatever user-pool size a
	// deployment wants, so get_frame's eviction path
	// has something real to exercise instead of an allocator that
	// never says no.
	cap int
}

// Physmem is the global frame allocator instance, analogous to the
// kernel's package-level Physmem. It starts unbounded; call SetCap to
// size the user pool before any frame is handed out.
var Physmem = NewPhys()

// NewPhys allocates a fresh, independent frame pool. Tests that want a
// bounded pool without disturbing the shared Physmem construct their
// own.
func NewPhys() *Phys_t {
	return &Phys_t{live: make(map[Pa_t]Kva_t)}
}

// SetCap bounds the pool to n simultaneously live frames. Passing 0
// removes the bound.
func (p *Phys_t) SetCap(n int) {
	p.Lock()
	defer p.Unlock()
	p.cap = n
}

// Frame_alloc returns a fresh frame, zero-filled when zero is true.
// ok is false when the pool is at capacity; the frame table then
// falls back to eviction, exactly as frame_alloc(zero) -> kva? is
// documented to behave in the external interface.
func (p *Phys_t) Frame_alloc(zero bool) (Kva_t, Pa_t, bool) {
	p.Lock()
	defer p.Unlock()

	if p.cap != 0 && len(p.live) >= p.cap {
		return nil, 0, false
	}

	pg := new(Bytepg_t)
	if !zero {
		for i := range pg {
			pg[i] = 0xcc
		}
	}
	p.next++
	pa := Pa_t(p.next)
	p.live[pa] = pg
	return pg, pa, true
}

// Frame_free releases a frame back to the allocator. It panics if pa
// was never allocated or was already freed, the same contract the
// frame table relies on when it unlinks F.page before freeing.
func (p *Phys_t) Frame_free(pa Pa_t) {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.live[pa]; !ok {
		panic("mem: double free or free of unknown frame")
	}
	delete(p.live, pa)
}

// Dmap recovers the byte slice backing pa. It panics if pa is not
// currently live, the hosted equivalent of a direct-map access
// faulting on an address that was never mapped.
func (p *Phys_t) Dmap(pa Pa_t) Kva_t {
	p.Lock()
	defer p.Unlock()

	kva, ok := p.live[pa]
	if !ok {
		panic("mem: dmap of unknown frame")
	}
	return kva
}

// Live reports how many frames are currently outstanding, used by
// tests to check a bounded pool's usage and that teardown drains it.
func (p *Phys_t) Live() int {
	p.Lock()
	defer p.Unlock()
	return len(p.live)
}
