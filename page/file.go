package page

import (
	"sync/atomic"

	"vmkern/errs"
	"vmkern/fsops"
	"vmkern/mem"
)

// FileLazyAux carries everything an Uninit page needs to become a
// File page: the reopened handle shared with the rest of its mapping,
// the byte range it covers, and the shared ref_count the mapping's
// pages all point at.
type FileLazyAux struct {
	File      fsops.File
	Ofs       int
	ReadBytes int
	ZeroBytes int
	RefCount  *int32
}

// File is a page backed by a byte range of a file, created by mmap or
// by the executable loader's segment mapping. read_bytes + zero_bytes
// always equals PAGE_SIZE.
type File struct {
	File      fsops.File
	Ofs       int
	ReadBytes int
	ZeroBytes int
	RefCount  *int32
}

func (*File) isPageState() {}

// LoadFileInit is the default Uninit callback for file-future pages
// created by do_mmap: it performs the same read the backend's own
// swap_in would, since the very first fault both transmutes the page
// and must leave it resident with real file contents.
func LoadFileInit(p *Page, aux interface{}) errs.Err_t {
	s, ok := p.state.(*File)
	if !ok {
		panic("page: LoadFileInit called on non-file state")
	}
	return readFileBytes(s, p.Frame.Kva())
}

func readFileBytes(s *File, kva *mem.Bytepg_t) errs.Err_t {
	if s.ReadBytes > 0 {
		n, err := fsops.ReadAtLocked(s.File, kva[:s.ReadBytes], s.Ofs)
		if err != 0 {
			return err
		}
		for i := n; i < s.ReadBytes; i++ {
			kva[i] = 0
		}
	}
	for i := s.ReadBytes; i < s.ReadBytes+s.ZeroBytes; i++ {
		kva[i] = 0
	}
	return 0
}

// swapInFile re-reads the page's file range into kva.
func (p *Page) swapInFile(s *File, kva *mem.Bytepg_t) errs.Err_t {
	return readFileBytes(s, kva)
}

// swapOutFile writes back the page's range if it was written to and
// the mapping is writable, then detaches the frame and unmaps va.
// The write-back condition is writable && dirty; a dirty bit on a
// read-only mapping never reaches the file.
func (p *Page) swapOutFile(s *File, pt PageTable) errs.Err_t {
	if p.Writable && pt.Dirty(p.VA) {
		if err := writeBackFile(s, p.Frame.Kva(), pt, p.VA); err != 0 {
			return err
		}
	}
	pt.Unmap(p.VA)
	p.Frame = nil
	return 0
}

func writeBackFile(s *File, kva *mem.Bytepg_t, pt PageTable, va uintptr) errs.Err_t {
	if s.ReadBytes == 0 {
		pt.SetDirty(va, false)
		return 0
	}
	if err := fsops.WriteAtLocked(s.File, kva[:s.ReadBytes], s.Ofs); err != 0 {
		return err
	}
	pt.SetDirty(va, false)
	return 0
}

// FileMapping reports the file handle and shared ref_count backing
// this page's mapping, whether the page is already File or is an
// Uninit page whose future is File. do_mmap's rollback path and
// do_munmap use this to identify and release a mapping's reservation
// on a page that may never have faulted.
func (p *Page) FileMapping() (fsops.File, *int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch s := p.state.(type) {
	case *File:
		return s.File, s.RefCount, true
	case *Uninit:
		if aux, ok := s.Aux.(*FileLazyAux); ok {
			return aux.File, aux.RefCount, true
		}
	}
	return nil, nil, false
}

// destroyFile applies the same write-back policy as swapOutFile (if
// still resident), unmaps, and decrements ref_count; at zero it
// closes the reopened handle.
func (p *Page) destroyFile(s *File, pt PageTable) {
	if p.Frame != nil {
		if p.Writable && pt.Dirty(p.VA) {
			writeBackFile(s, p.Frame.Kva(), pt, p.VA)
		}
		pt.Unmap(p.VA)
	}
	if s.RefCount != nil {
		if atomic.AddInt32(s.RefCount, -1) == 0 {
			fsops.CloseLocked(s.File)
		}
	}
}
