// Package oommsg is the last resort of the claim path: when the frame
// pool is exhausted and the frame table has nothing left to evict,
// the blocked claim asks a reclaimer (the process-teardown side, if
// one is running) to give frames back before it declares the kernel
// out of memory. The exchange is synchronous: the claim does not
// retry its allocation until the reclaimer has answered one way or
// the other.
package oommsg

// OomCh carries one request per blocked claim. A reclaimer that wants
// to participate ranges over this channel; at most one reclaimer
// services the subsystem.
var OomCh = make(chan Oommsg_t)

// Oommsg_t asks the reclaimer for frames. Need is how many frames the
// blocked claim is waiting for — claims arrive one page fault at a
// time, but a fork-copy forcing a whole address space resident issues
// them back to back, so a reclaimer may batch ahead of demand. The
// reclaimer answers on Resume: true after freeing at least Need
// frames, false if it could not.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}

// Request asks the reclaimer to free need frames and reports whether
// it is worth retrying the allocation. It returns false immediately
// when nobody is listening — blocking a page fault on a channel no
// goroutine services would hang the faulting process forever — and
// otherwise blocks until the reclaimer answers.
func Request(need int) bool {
	resume := make(chan bool)
	select {
	case OomCh <- Oommsg_t{Need: need, Resume: resume}:
		return <-resume
	default:
		return false
	}
}
