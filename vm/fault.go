package vm

import (
	"vmkern/frame"
	"vmkern/mem"
	"vmkern/page"
	"vmkern/spt"
	"vmkern/vmstat"
)

// TryHandleFault resolves a page fault or rejects it.
// rsp is the stack pointer already selected by the caller: frame.rsp
// when the fault came from user mode, or the process's latched
// user_rsp when it came from the kernel touching user memory (the
// in-register context on suspension described in the design notes).
// It returns true iff the fault was absorbed and the faulting
// instruction may be restarted; false means the caller terminates the
// process. stats may be nil.
func TryHandleFault(s *spt.SPT, tbl *frame.Table, pt PT, sw page.SwapDevice,
	rsp, addr uintptr, user, write, notPresent bool, stats *vmstat.VM) bool {

	if stats != nil {
		stats.PageFaults.Inc()
	}

	if addr == 0 || addr >= USER_STACK {
		return false
	}

	va := mem.Round(addr)

	if !notPresent {
		// The hardware already has a mapping for this address, so a
		// fault here is always a genuine protection violation: there
		// is no lazy-fault step left to run.
		return false
	}

	if p, ok := s.Find(va); ok {
		if write && !p.Writable {
			return false
		}
		if err := Claim(p, tbl, pt, sw, stats); err != 0 {
			s.Remove(p)
			p.Destroy(pt, sw, tbl)
			return false
		}
		pt.Touch(va, write)
		return true
	}

	if inStackGrowthWindow(addr, rsp) {
		p := page.NewAnon(va, true, nil)
		if !s.Insert(p) {
			return false
		}
		if err := Claim(p, tbl, pt, sw, stats); err != 0 {
			s.Remove(p)
			return false
		}
		if stats != nil {
			stats.StackGrowths.Inc()
		}
		pt.Touch(va, write)
		return true
	}

	return false
}

func inStackGrowthWindow(addr, rsp uintptr) bool {
	if addr < rsp-STACK_SLACK {
		return false
	}
	if addr < USER_STACK-STACK_MAX {
		return false
	}
	return addr < USER_STACK
}
