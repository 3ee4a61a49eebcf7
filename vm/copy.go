package vm

import (
	"vmkern/frame"
	"vmkern/fsops"
	"vmkern/mem"
	"vmkern/page"
	"vmkern/spt"
	"vmkern/vmstat"
)

// Copy duplicates every entry of src into dst, the supplemental
// page table half of fork. It never shares a frame between parent
// and child: every entry ends up privately materialized in dst,
// never pointing at a frame src still owns.
//
//   - Uninit entries are re-created with the same future type and
//     initializer; a file-future's auxiliary record gets an
//     independently reopened file handle and its own ref_count.
//   - Anon entries are claimed fresh in dst and the source's resident
//     bytes are copied in, forcing the source resident first if it
//     was not already.
//   - File entries are re-created as Uninit(File) over a reopened
//     handle and claimed, so the child re-reads its own copy from the
//     file rather than inheriting the parent's frame.
//
// tbl is the single process-global frame table both address spaces
// share; dstPT/srcPT are the two processes' own hardware page tables.
// sw is the process-global swap device. On any failure Copy returns
// false; dst is left with whatever entries were already inserted,
// which remain independently destroyable via spt.Kill.
func Copy(dst, src *spt.SPT, tbl *frame.Table, dstPT, srcPT PT, sw page.SwapDevice, stats *vmstat.VM) bool {
	for _, sp := range src.Pages() {
		if !copyOnePage(dst, sp, tbl, dstPT, srcPT, sw, stats) {
			return false
		}
	}
	return true
}

func copyOnePage(dst *spt.SPT, sp *page.Page, tbl *frame.Table, dstPT, srcPT PT, sw page.SwapDevice, stats *vmstat.VM) bool {
	switch s := sp.CloneState().(type) {
	case *page.Uninit:
		np := page.New(sp.VA, sp.Writable, sp.Owner, duplicateUninit(s))
		if !dst.Insert(np) {
			if file, rc, ok := np.FileMapping(); ok {
				releaseRef(file, rc)
			}
			return false
		}
		return true

	case *page.Anon:
		// Snapshot the source bytes before claiming the destination:
		// claiming np may evict sp under memory pressure, and the
		// reverse order would let np's fresh frame be the victim of
		// the claim that forces sp resident.
		if !sp.Resident() {
			if Claim(sp, tbl, srcPT, sw, stats) != 0 {
				return false
			}
		}
		var buf mem.Bytepg_t
		copy(buf[:], sp.Frame.Kva()[:])

		np := page.NewAnon(sp.VA, sp.Writable, sp.Owner)
		if !dst.Insert(np) {
			return false
		}
		if Claim(np, tbl, dstPT, sw, stats) != 0 {
			dst.Remove(np)
			return false
		}
		copy(np.Frame.Kva()[:], buf[:])
		return true

	case *page.File:
		aux := duplicateFileAux(s)
		np := page.New(sp.VA, sp.Writable, sp.Owner, page.NewUninitFile(page.LoadFileInit, aux))
		if !dst.Insert(np) {
			releaseRef(aux.File, aux.RefCount)
			return false
		}
		if Claim(np, tbl, dstPT, sw, stats) != 0 {
			dst.Remove(np)
			releaseMmapPage(np, tbl, dstPT, sw)
			return false
		}
		return true

	default:
		return false
	}
}

// duplicateUninit rebuilds u for the destination table. A file-future
// aux needs its own reopened handle and ref_count, the only case
// where duplication must do more than copy the struct; every other
// future type's aux is reused as-is, since uninit pages carry no
// per-instance mutable state until they transmute.
func duplicateUninit(u *page.Uninit) *page.Uninit {
	aux := u.Aux
	if fa, ok := u.Aux.(*page.FileLazyAux); ok {
		aux = &page.FileLazyAux{
			File:      fsops.ReopenLocked(fa.File),
			Ofs:       fa.Ofs,
			ReadBytes: fa.ReadBytes,
			ZeroBytes: fa.ZeroBytes,
			RefCount:  newRefCount(1),
		}
	}
	return &page.Uninit{Future: u.Future, Aux: aux, InitFn: u.InitFn}
}

// duplicateFileAux builds the lazy-load record for a child copy of an
// already-materialized File page: a reopened handle, the same byte
// range, and a ref_count scoped to this copy alone: mappings are
// never shared across processes, so the reopened handle here is
// independent of src's.
func duplicateFileAux(s *page.File) *page.FileLazyAux {
	return &page.FileLazyAux{
		File:      fsops.ReopenLocked(s.File),
		Ofs:       s.Ofs,
		ReadBytes: s.ReadBytes,
		ZeroBytes: s.ZeroBytes,
		RefCount:  newRefCount(1),
	}
}

func newRefCount(n int32) *int32 {
	return &n
}
