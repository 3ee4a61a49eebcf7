package vm

import (
	"vmkern/errs"
	"vmkern/frame"
	"vmkern/page"
	"vmkern/vmstat"
)

// Claim turns a non-resident page into a resident one: obtain a
// frame, link it to p, install the hardware mapping, then invoke the
// backend's swap_in. Any sub-step failure unwinds the prior steps in
// reverse order. stats may be nil.
func Claim(p *page.Page, tbl *frame.Table, pt PT, sw page.SwapDevice, stats *vmstat.VM) errs.Err_t {
	f, err := tbl.GetFrame(sw)
	if err != 0 {
		return err
	}
	f.Link(p, pt, p.VA)

	if !pt.Map(p.VA, f.Kva(), p.Writable) {
		f.Unlink()
		tbl.FreeFrame(f)
		return errs.ENOMEM
	}

	if serr := p.SwapIn(f.Kva(), f, pt, sw); serr != 0 {
		pt.Unmap(p.VA)
		f.Unlink()
		tbl.FreeFrame(f)
		return serr
	}
	if stats != nil {
		stats.Claims.Inc()
		stats.SwapIns.Inc()
	}
	return 0
}
