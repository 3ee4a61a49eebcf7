// Package frame implements the frame table and its second-chance
// (clock) eviction policy: the layer between the raw frame
// allocator (package mem) and the page backends (package page) that
// turns "give me a frame" into either a fresh zeroed allocation or a
// chosen victim's reclaimed space.
package frame

import (
	"sync"

	"vmkern/errs"
	"vmkern/mem"
	"vmkern/oommsg"
	"vmkern/page"
	"vmkern/vmstat"
)

// Frame is one entry of the frame table: a physical frame currently
// backing some page. It satisfies page.FrameRef structurally, so
// package page never needs to import frame — the cross-reference
// stays a raw handle in each direction, per the design notes on the
// page/frame back-pointer cycle.
type Frame struct {
	pa  mem.Pa_t
	kva *mem.Bytepg_t

	// page, pt, and va describe the mapping this frame currently
	// backs. page is nil only transiently, between being chosen as a
	// victim and being handed to the next claim.
	page *page.Page
	pt   page.PageTable
	va   uintptr
}

// Kva implements page.FrameRef.
func (f *Frame) Kva() *mem.Bytepg_t { return f.kva }

// Pa returns the frame's allocator handle, for diagnostics.
func (f *Frame) Pa() mem.Pa_t { return f.pa }

// Link records that this frame now backs p, reachable through pt at
// virtual address va. The claim path calls this after obtaining the
// frame and before installing the hardware mapping.
func (f *Frame) Link(p *page.Page, pt page.PageTable, va uintptr) {
	f.page = p
	f.pt = pt
	f.va = va
}

// Unlink clears the frame's page linkage without returning it to the
// allocator, used when claim must unwind after Link but before the
// frame is handed to the page's SwapIn.
func (f *Frame) Unlink() {
	f.page = nil
	f.pt = nil
	f.va = 0
}

// Table is the process-global frame table: the set of resident
// frames and the clock hand that scans them for a victim.
type Table struct {
	mu     sync.Mutex
	phys   *mem.Phys_t
	list   []*Frame
	cursor int
	stats  *vmstat.VM
}

// New creates an empty frame table backed by phys. stats may be nil.
func New(phys *mem.Phys_t, stats *vmstat.VM) *Table {
	return &Table{phys: phys, stats: stats}
}

// GetFrame returns a frame free of any prior page linkage: a fresh
// zeroed allocation if the pool has room, otherwise the result of
// evicting a clock-selected victim. It panics only if the pool is
// exhausted, there is nothing to evict, and no oommsg listener frees
// memory in time.
func (t *Table) GetFrame(sw page.SwapDevice) (*Frame, errs.Err_t) {
	if kva, pa, ok := t.phys.Frame_alloc(true); ok {
		f := &Frame{pa: pa, kva: kva}
		t.mu.Lock()
		t.list = append(t.list, f)
		t.mu.Unlock()
		return f, 0
	}

	t.mu.Lock()
	if len(t.list) == 0 {
		t.mu.Unlock()
		return t.outOfMemory(sw)
	}
	victim := t.pickAndRemoveLocked()
	t.mu.Unlock()

	// Run the victim's swap_out (which may block on the filesystem
	// lock) without the table lock held; the frame lock and the
	// filesystem lock are siblings, never nested. A victim with no
	// page linkage was already abandoned and needs no write-back at
	// all.
	if victim.page != nil {
		if err := victim.page.SwapOut(victim.pt, sw); err != 0 {
			// The frame still backs its page; put it back where the
			// clock hand can find it so no partial state is left.
			t.mu.Lock()
			t.list = append(t.list, victim)
			t.mu.Unlock()
			return nil, err
		}
		if t.stats != nil {
			t.stats.Evictions.Inc()
		}
	}
	for i := range victim.kva {
		victim.kva[i] = 0
	}
	victim.Unlink()

	t.mu.Lock()
	t.list = append(t.list, victim)
	t.mu.Unlock()
	return victim, 0
}

// outOfMemory is reached when the pool is exhausted and the frame
// list is empty, so there is nothing to evict. The reclaimer gets one
// chance to free frames before the claim gives up; a false answer
// (or no reclaimer at all) is the point of no return.
func (t *Table) outOfMemory(sw page.SwapDevice) (*Frame, errs.Err_t) {
	if !oommsg.Request(1) {
		panic("frame: out of memory and nothing to evict")
	}
	if kva, pa, ok := t.phys.Frame_alloc(true); ok {
		f := &Frame{pa: pa, kva: kva}
		t.mu.Lock()
		t.list = append(t.list, f)
		t.mu.Unlock()
		return f, 0
	}
	panic("frame: out of memory even after reclaim")
}

// FreeFrame returns f to the allocator outright, used by claim's
// unwind path when a later step fails after a frame was already
// obtained.
func (t *Table) FreeFrame(f *Frame) {
	t.mu.Lock()
	for i, e := range t.list {
		if e == f {
			t.list = append(t.list[:i], t.list[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	t.phys.Frame_free(f.pa)
}

// Release implements page.FrameReleaser: a destroyed page hands its
// frame back through this, dropping it from the eviction candidates
// and returning it to the allocator.
func (t *Table) Release(fr page.FrameRef) {
	f, ok := fr.(*Frame)
	if !ok {
		panic("frame: release of foreign frame")
	}
	f.Unlink()
	t.FreeFrame(f)
}

// pickAndRemoveLocked runs the second-chance clock scan over the
// resident list and removes the chosen victim, returning it. Callers
// must hold mu and must have already checked the list is non-empty.
func (t *Table) pickAndRemoveLocked() *Frame {
	n := len(t.list)
	idx := t.cursor % n
	for i := 0; i < n; i++ {
		f := t.list[idx]
		if f.page == nil {
			// No page linkage means nothing to write back; always
			// eligible immediately.
			return t.removeAtLocked(idx)
		}
		if f.pt.Accessed(f.va) {
			f.pt.SetAccessed(f.va, false)
			idx = (idx + 1) % n
			continue
		}
		return t.removeAtLocked(idx)
	}
	// Second pass: every accessed bit was just cleared, so the frame
	// at idx (back where the scan started) is now a valid victim.
	return t.removeAtLocked(idx)
}

func (t *Table) removeAtLocked(idx int) *Frame {
	f := t.list[idx]
	t.list = append(t.list[:idx], t.list[idx+1:]...)
	if n := len(t.list); n > 0 {
		t.cursor = idx % n
	} else {
		t.cursor = 0
	}
	return f
}

// Resident reports how many frames are currently tracked, for tests
// and diagnostics.
func (t *Table) Resident() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.list)
}
