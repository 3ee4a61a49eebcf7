package vm

import (
	"sync/atomic"

	"vmkern/errs"
	"vmkern/frame"
	"vmkern/fsops"
	"vmkern/mem"
	"vmkern/page"
	"vmkern/spt"
	"vmkern/util"
	"vmkern/vmstat"
)

// DoMmap implements the mmap path: it reserves one Uninit
// page per page covered by [addr, addr+length), each carrying a
// lazy-load initializer over the same reopened file handle and a
// ref_count shared across the whole mapping. No page is faulted in
// here; the first touch transmutes it to File and loads its range.
func DoMmap(s *spt.SPT, file fsops.File, length, ofs int, addr uintptr, writable bool, stats *vmstat.VM) (uintptr, errs.Err_t) {
	if length <= 0 {
		return 0, errs.EINVAL
	}
	if ofs%mem.PGSIZE != 0 {
		return 0, errs.EINVAL
	}
	if file == nil {
		return 0, errs.EINVAL
	}
	if addr == 0 || addr%uintptr(mem.PGSIZE) != 0 || addr >= USER_STACK {
		return 0, errs.EINVAL
	}

	npages := util.Roundup(length, mem.PGSIZE) / mem.PGSIZE
	for i := 0; i < npages; i++ {
		va := addr + uintptr(i*mem.PGSIZE)
		if va >= USER_STACK {
			return 0, errs.EINVAL
		}
		if _, ok := s.Find(va); ok {
			return 0, errs.EINVAL
		}
	}

	reopened := fsops.ReopenLocked(file)
	refCount := new(int32)

	// The readable budget is min(length, file_length); the offset only
	// shifts where each page's read starts, it does not shrink the
	// budget. Pages past the budget are pure zero pages that never
	// write back.
	remaining := util.Min(length, fsops.LengthLocked(reopened))

	created := make([]*page.Page, 0, npages)
	pos := ofs
	for i := 0; i < npages; i++ {
		va := addr + uintptr(i*mem.PGSIZE)
		readBytes := util.Min(remaining, mem.PGSIZE)
		zeroBytes := mem.PGSIZE - readBytes

		atomic.AddInt32(refCount, 1)
		aux := &page.FileLazyAux{
			File:      reopened,
			Ofs:       pos,
			ReadBytes: readBytes,
			ZeroBytes: zeroBytes,
			RefCount:  refCount,
		}
		p := page.New(va, writable, nil, page.NewUninitFile(page.LoadFileInit, aux))

		if !s.Insert(p) {
			releaseRef(reopened, refCount)
			rollbackMmap(s, created)
			return 0, errs.EINVAL
		}
		created = append(created, p)
		remaining -= readBytes
		pos += readBytes
	}

	if stats != nil {
		stats.MmapCalls.Inc()
	}
	return addr, 0
}

// DoMunmap implements munmap: it walks consecutive pages
// starting at addr that belong to the same mapping (identified by the
// shared ref_count pointer their file-future carries), writing back
// dirty resident pages before dropping each one. It stops at the
// first address that isn't part of the same mapping.
func DoMunmap(s *spt.SPT, tbl *frame.Table, pt PT, sw page.SwapDevice, addr uintptr, stats *vmstat.VM) {
	first, ok := s.Find(addr)
	if !ok {
		return
	}
	_, baseRC, hasFile := first.FileMapping()
	if !hasFile {
		return
	}

	va := addr
	for {
		p, ok := s.Find(va)
		if !ok {
			break
		}
		_, rc, hasFile := p.FileMapping()
		if !hasFile || rc != baseRC {
			break
		}
		s.Remove(p)
		releaseMmapPage(p, tbl, pt, sw)
		va += uintptr(mem.PGSIZE)
	}
	if stats != nil {
		stats.MunmapCalls.Inc()
	}
}

// rollbackMmap undoes a partially constructed mapping: every page in
// pages was inserted but never faulted, so releasing it only means
// dropping its ref_count share and closing the reopened file once the
// last share is gone.
func rollbackMmap(s *spt.SPT, pages []*page.Page) {
	for _, p := range pages {
		s.Remove(p)
		releaseMmapPage(p, nil, nil, nil)
	}
}

// releaseMmapPage drops p's claim on its mapping's file handle,
// whether or not p ever faulted in. A page that already transmuted to
// File decrements its own ref_count via Destroy; an Uninit page never
// ran its backend destructor, so its share has to be released here
// instead.
func releaseMmapPage(p *page.Page, tbl *frame.Table, pt PT, sw page.SwapDevice) {
	wasUninit := p.StateKind() == "uninit"
	file, rc, hasFile := p.FileMapping()
	p.Destroy(pt, sw, frameReleaser(tbl))
	if wasUninit && hasFile {
		releaseRef(file, rc)
	}
}

// frameReleaser converts a possibly-nil *frame.Table into the
// interface Destroy takes without producing a non-nil interface
// wrapping a nil pointer.
func frameReleaser(tbl *frame.Table) page.FrameReleaser {
	if tbl == nil {
		return nil
	}
	return tbl
}

func releaseRef(file fsops.File, rc *int32) {
	if atomic.AddInt32(rc, -1) == 0 {
		fsops.CloseLocked(file)
	}
}
