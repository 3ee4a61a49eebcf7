// Package vm composes the lower layers — page, frame, spt, swap,
// fsops — into the operations the fault handler and the syscall layer
// actually call: claim, try_handle_fault, do_mmap/do_munmap, and
// supplemental-page-table copy/kill on fork and exit.
package vm

import (
	"vmkern/mem"
	"vmkern/page"
)

// PT is the hardware page-table view this package needs: everything
// page.PageTable offers, plus the ability to install a mapping and
// query whether one exists. Package ptops's PT satisfies this
// structurally.
type PT interface {
	page.PageTable
	Map(va uintptr, kva *mem.Bytepg_t, writable bool) bool
	Mapped(va uintptr) bool
	// Touch marks va accessed (and dirty, for a write) the way the
	// hardware would when the faulting instruction is restarted.
	Touch(va uintptr, write bool)
}

// USER_STACK is the first address past the top of the user stack
// region. STACK_MAX bounds how far it may grow; STACK_SLACK covers
// `push` instructions that fault one word below the current rsp.
const (
	USER_STACK  = uintptr(1) << 46
	STACK_MAX   = 1 << 20
	STACK_SLACK = 8
)
