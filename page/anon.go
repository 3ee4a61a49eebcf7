package page

import (
	"vmkern/errs"
	"vmkern/mem"
	"vmkern/swap"
)

// Anon is a page with no file backing: user stack, BSS, heap, and the
// destination of forked anonymous pages.
type Anon struct {
	Slot    swap.Slot
	HasSlot bool
}

func (*Anon) isPageState() {}

// swapInAnon restores the page's contents from its swap slot, if it
// has one; a page with no slot was just allocated and the allocator
// already zeroed its frame, so there is nothing to do.
func (p *Page) swapInAnon(s *Anon, kva *mem.Bytepg_t, sw SwapDevice) errs.Err_t {
	if !s.HasSlot {
		return 0
	}
	sw.In(s.Slot, kva)
	s.HasSlot = false
	return 0
}

// swapOutAnon allocates a fresh slot, writes the frame to it, and
// detaches the page from its frame and hardware mapping. A full swap
// disk is fatal: there is no partial state to leave a resident page
// in.
func (p *Page) swapOutAnon(s *Anon, pt PageTable, sw SwapDevice) errs.Err_t {
	slot, ok := sw.Out(p.Frame.Kva())
	if !ok {
		panic("page: swap disk full")
	}
	s.Slot = slot
	s.HasSlot = true
	pt.Unmap(p.VA)
	p.Frame = nil
	return 0
}

// destroyAnon unmaps if resident and releases any owned swap slot.
func (p *Page) destroyAnon(s *Anon, pt PageTable, sw SwapDevice) {
	if p.Frame != nil {
		pt.Unmap(p.VA)
	}
	if s.HasSlot {
		sw.Free(s.Slot)
		s.HasSlot = false
	}
}
