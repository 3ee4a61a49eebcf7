package vm

import (
	"testing"

	"vmkern/mem"
	"vmkern/page"
	"vmkern/spt"
)

func TestFaultResolvesExistingPage(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()
	p := page.NewAnon(0x5000, true, nil)
	s.Insert(p)

	ok := TryHandleFault(s, tbl, pt, sw, USER_STACK, 0x5000, true, false, true, nil)
	if !ok {
		t.Fatal("fault on a reserved page should be absorbed")
	}
	if !p.Resident() {
		t.Fatal("page should be resident after the fault")
	}
}

func TestFaultWriteToReadOnlyPageIsRejected(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()
	va := uintptr(0x6000)
	p := page.NewAnon(va, true, nil)
	p.Writable = false
	s.Insert(p)
	if err := Claim(p, tbl, pt, sw, nil); err != 0 {
		t.Fatalf("Claim: %v", err)
	}

	if TryHandleFault(s, tbl, pt, sw, USER_STACK, va, true, true, false, nil) {
		t.Fatal("write fault on a mapped read-only page must be rejected")
	}
}

func TestStackGrowthWithinWindow(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()
	rsp := USER_STACK - 64
	addr := USER_STACK - 8

	if !TryHandleFault(s, tbl, pt, sw, rsp, addr, true, true, true, nil) {
		t.Fatal("fault within the stack-growth window should succeed")
	}
	p, ok := s.Find(mem.Round(addr))
	if !ok {
		t.Fatal("stack growth should have inserted a new page")
	}
	if !p.Resident() {
		t.Fatal("the grown stack page should be claimed immediately")
	}
}

func TestStaleAddressOutsideWindowIsRejected(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()
	rsp := USER_STACK - 64
	addr := USER_STACK + uintptr(mem.PGSIZE)

	if TryHandleFault(s, tbl, pt, sw, rsp, addr, true, true, true, nil) {
		t.Fatal("fault above USER_STACK must never be absorbed")
	}
	if TryHandleFault(s, tbl, pt, sw, rsp, 0, true, true, true, nil) {
		t.Fatal("fault on a null address must never be absorbed")
	}
}

func TestFaultOutsideStackWindowAndNotInSPTIsRejected(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()
	rsp := USER_STACK - 64
	// far below both the slack and the 1 MiB stack-growth ceiling.
	addr := USER_STACK - STACK_MAX - uintptr(mem.PGSIZE)

	if TryHandleFault(s, tbl, pt, sw, rsp, addr, true, true, true, nil) {
		t.Fatal("fault below the stack-growth ceiling must not be absorbed")
	}
}
