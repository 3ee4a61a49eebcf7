// Package spt implements the Supplemental Page Table: the per-process
// catalogue of reserved virtual pages, keyed by page-aligned virtual
// address. Find runs lock-free — it is on the hot path of every page
// fault, invoked before the handler has decided whether the fault is
// even legitimate — while Insert and Remove take a per-bucket lock.
// Chain links are published with atomic pointer stores so a concurrent
// lock-free walker always sees a consistent list.
package spt

import (
	"sync"
	"sync/atomic"

	"vmkern/mem"
	"vmkern/page"
	"vmkern/vmstat"
)

// nbuckets trades a little memory for short chains; a process rarely
// holds more than a few hundred reserved pages at once.
const nbuckets = 64

// elem_t is one chain link. va duplicates pg.VA so a lookup never
// touches the page's own lock.
type elem_t struct {
	va   uintptr
	pg   *page.Page
	next atomic.Pointer[elem_t]
}

type bucket_t struct {
	sync.Mutex
	first atomic.Pointer[elem_t]
}

// SPT is one process's supplemental page table.
type SPT struct {
	buckets [nbuckets]bucket_t
}

// New allocates an empty table.
func New() *SPT {
	return &SPT{}
}

// bucket maps a page-aligned address to its chain. Page numbers are
// sequential for a typical segment, so the page number is spread with
// a Fibonacci multiply and the top bits pick the bucket.
func (s *SPT) bucket(va uintptr) *bucket_t {
	h := uint64(va>>mem.PGSHIFT) * 0x9e3779b97f4a7c15
	return &s.buckets[h>>(64-6)]
}

// Find rounds va down to its page and looks up the page reserved
// there, if any. It takes no lock.
func (s *SPT) Find(va uintptr) (*page.Page, bool) {
	va = mem.Round(va)
	for e := s.bucket(va).first.Load(); e != nil; e = e.next.Load() {
		if e.va == va {
			return e.pg, true
		}
	}
	return nil, false
}

// Insert adds p, keyed by p.VA. It fails iff a page already occupies
// that address.
func (s *SPT) Insert(p *page.Page) bool {
	b := s.bucket(p.VA)
	b.Lock()
	defer b.Unlock()

	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.va == p.VA {
			return false
		}
	}
	n := &elem_t{va: p.VA, pg: p}
	n.next.Store(b.first.Load())
	b.first.Store(n)
	return true
}

// Remove detaches p from the table without destroying it; the caller
// is responsible for calling p.Destroy through the page's backend
// when appropriate. It panics if p was never inserted, matching the
// contract that callers only remove pages they just looked up.
func (s *SPT) Remove(p *page.Page) {
	b := s.bucket(p.VA)
	b.Lock()
	defer b.Unlock()

	var prev *elem_t
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.va == p.VA {
			// The unlinked element keeps its own next pointer, so a
			// concurrent lock-free walker already inside the chain
			// still terminates.
			if prev == nil {
				b.first.Store(e.next.Load())
			} else {
				prev.next.Store(e.next.Load())
			}
			return
		}
		prev = e
	}
	panic("spt: remove of page not in table")
}

// Pages returns every page currently in the table. Order is
// unspecified.
func (s *SPT) Pages() []*page.Page {
	var out []*page.Page
	for i := range s.buckets {
		b := &s.buckets[i]
		b.Lock()
		for e := b.first.Load(); e != nil; e = e.next.Load() {
			out = append(out, e.pg)
		}
		b.Unlock()
	}
	return out
}

// Kill destroys every page in the table via its backend's destroy
// logic (write-back for File, slot release for Anon), then empties
// the table. Resident pages hand their frames back through ft.
// Destructors never propagate I/O errors upward; they write back
// best-effort. stats may be nil.
func (s *SPT) Kill(pt page.PageTable, sw page.SwapDevice, ft page.FrameReleaser, stats *vmstat.VM) {
	for _, p := range s.Pages() {
		p.Destroy(pt, sw, ft)
		s.Remove(p)
	}
	if stats != nil {
		stats.Kills.Inc()
	}
}
