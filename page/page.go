// Package page implements one entry of a process's reserved virtual
// address space: the tagged variant P described by the data model,
// dispatching swap_in/swap_out/destroy by a Go type switch instead of
// the source's hand-rolled vtable of function pointers (see the
// design notes on manual virtual-dispatch tables). Exactly one of
// Uninit, Anon, or File is live in a Page at any moment; claim and
// eviction transmute between them.
package page

import (
	"sync"

	"vmkern/errs"
	"vmkern/mem"
	"vmkern/swap"
)

// FrameRef is the page's view of the frame table: just enough to
// reach the frame's bytes. The frame table implements this
// structurally — page never imports it — so the page/frame
// back-reference pair stays a pair of raw handles, not shared
// ownership, per the design notes.
type FrameRef interface {
	Kva() *mem.Bytepg_t
}

// FrameReleaser takes a destroyed page's frame back: the frame table
// implements this so Destroy can return the frame to the allocator
// and drop it from the eviction candidates without page importing
// frame. A nil FrameReleaser (tests exercising one backend in
// isolation) skips the hand-back.
type FrameReleaser interface {
	Release(f FrameRef)
}

// PageTable is the hardware page-table view shared by the page
// backends and the frame table's clock algorithm: unmapping on
// eviction/destroy, the dirty bit around file write-back, and the
// accessed bit the clock hand inspects and clears.
type PageTable interface {
	Unmap(va uintptr)
	Dirty(va uintptr) bool
	SetDirty(va uintptr, v bool)
	Accessed(va uintptr) bool
	SetAccessed(va uintptr, v bool)
}

// Kind tags which backend an Uninit page will become.
type Kind int

const (
	KindAnon Kind = iota
	KindFile
)

// Page is one entry of the supplemental page table. The zero value is
// not valid; use New.
type Page struct {
	mu sync.Mutex

	VA       uintptr
	Writable bool
	// Owner is an opaque back-reference to the owning process,
	// meaningful only to whoever created the page; page never
	// dereferences it.
	Owner interface{}

	// Frame is non-nil iff this page is currently resident.
	Frame FrameRef

	state state
}

// state is implemented by *Uninit, *Anon, and *File: the tagged
// variant of Page.state.
type state interface {
	isPageState()
}

// New creates a page in the Uninit state at va.
func New(va uintptr, writable bool, owner interface{}, u *Uninit) *Page {
	return &Page{VA: va, Writable: writable, Owner: owner, state: u}
}

// NewAnon creates a page already in the Anon state with no swap slot,
// the state a freshly stack-grown page starts in: stack growth skips
// the Uninit detour since there is no lazy loader to run.
func NewAnon(va uintptr, writable bool, owner interface{}) *Page {
	return &Page{VA: va, Writable: writable, Owner: owner, state: &Anon{}}
}

// Resident reports whether the page currently owns a frame.
func (p *Page) Resident() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Frame != nil
}

// StateKind reports which backend is currently live, for diagnostics
// and tests.
func (p *Page) StateKind() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state.(type) {
	case *Uninit:
		return "uninit"
	case *Anon:
		return "anon"
	case *File:
		return "file"
	default:
		return "unknown"
	}
}

// SwapIn materializes the page's contents into kva and links Frame so
// the page is considered resident. The caller (claim) is responsible
// for installing the hardware mapping first; SwapIn only fills bytes
// and flips internal state.
func (p *Page) SwapIn(kva *mem.Bytepg_t, f FrameRef, pt PageTable, sw SwapDevice) errs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Frame = f
	var err errs.Err_t
	switch s := p.state.(type) {
	case *Uninit:
		err = p.swapInUninit(s)
	case *Anon:
		err = p.swapInAnon(s, kva, sw)
	case *File:
		err = p.swapInFile(s, kva)
	default:
		panic("page: unknown state")
	}
	if err != 0 {
		// The caller's unwind frees the frame; a dangling Frame here
		// would double-release it when the page is later destroyed.
		p.Frame = nil
	}
	return err
}

// SwapOut evicts the page: it writes back or swaps out as the live
// backend requires, then detaches Frame and removes the hardware
// mapping. Called only by the frame table's eviction path, after it
// has released FR, while the page is not concurrently being claimed.
func (p *Page) SwapOut(pt PageTable, sw SwapDevice) errs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Frame == nil {
		panic("page: swap_out of non-resident page")
	}
	switch s := p.state.(type) {
	case *Anon:
		return p.swapOutAnon(s, pt, sw)
	case *File:
		return p.swapOutFile(s, pt)
	default:
		panic("page: swap_out of uninit page")
	}
}

// Destroy tears the page down for good: write-back/slot-release per
// backend, unmap if resident, and hand any frame back through ft so
// the frame table stops tracking it. Called by spt kill, explicit
// remove, or munmap.
func (p *Page) Destroy(pt PageTable, sw SwapDevice, ft FrameReleaser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch s := p.state.(type) {
	case *Uninit:
		// nothing was ever materialized; destroying an Uninit page
		// that never faulted is a no-op on the backend side.
	case *Anon:
		p.destroyAnon(s, pt, sw)
	case *File:
		p.destroyFile(s, pt)
	}
	if p.Frame != nil && ft != nil {
		ft.Release(p.Frame)
	}
	p.Frame = nil
}

// CloneState returns a shallow copy of p's currently live backend
// state: a fresh *Uninit, *Anon, or *File carrying the same field
// values as p's. The caller owns the result and may mutate it (its
// own RefCount, Slot, etc.) without disturbing p. spt fork-copy uses
// this to see which variant a source page is in right now — a page
// that never faulted is still Uninit here, not whatever it would
// eventually become.
func (p *Page) CloneState() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch s := p.state.(type) {
	case *Uninit:
		cp := *s
		return &cp
	case *Anon:
		cp := *s
		return &cp
	case *File:
		cp := *s
		return &cp
	default:
		panic("page: unknown state")
	}
}

// SwapDevice is the page's view of the swap slot allocator.
type SwapDevice interface {
	Out(frame *mem.Bytepg_t) (swap.Slot, bool)
	In(slot swap.Slot, frame *mem.Bytepg_t)
	Free(slot swap.Slot)
}
