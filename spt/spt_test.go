package spt

import (
	"testing"

	"vmkern/page"
)

type fakePT struct {
	unmapped map[uintptr]bool
	dirty    map[uintptr]bool
	accessed map[uintptr]bool
}

func newFakePT() *fakePT {
	return &fakePT{unmapped: map[uintptr]bool{}, dirty: map[uintptr]bool{}, accessed: map[uintptr]bool{}}
}
func (pt *fakePT) Unmap(va uintptr)               { pt.unmapped[va] = true }
func (pt *fakePT) Dirty(va uintptr) bool          { return pt.dirty[va] }
func (pt *fakePT) SetDirty(va uintptr, v bool)    { pt.dirty[va] = v }
func (pt *fakePT) Accessed(va uintptr) bool       { return pt.accessed[va] }
func (pt *fakePT) SetAccessed(va uintptr, v bool) { pt.accessed[va] = v }

func TestInsertFindRemove(t *testing.T) {
	s := New()
	p := page.NewAnon(0x4000, true, nil)
	if !s.Insert(p) {
		t.Fatal("insert should succeed on empty table")
	}
	if s.Insert(page.NewAnon(0x4000, true, nil)) {
		t.Fatal("insert of duplicate va should fail")
	}
	got, ok := s.Find(0x4000)
	if !ok || got != p {
		t.Fatal("find should return the inserted page")
	}
	// Find rounds down to the page boundary.
	if _, ok := s.Find(0x4010); !ok {
		t.Fatal("find should round the address down before lookup")
	}
	s.Remove(p)
	if _, ok := s.Find(0x4000); ok {
		t.Fatal("page should be gone after remove")
	}
}

func TestPagesEnumeratesEverything(t *testing.T) {
	s := New()
	const n = 200
	for i := 0; i < n; i++ {
		if !s.Insert(page.NewAnon(uintptr(0x400000+i*0x1000), true, nil)) {
			t.Fatalf("insert %d failed", i)
		}
	}
	if got := len(s.Pages()); got != n {
		t.Fatalf("Pages() returned %d entries, want %d", got, n)
	}
	// Sequential page numbers must not all land in one chain.
	for i := 0; i < n; i++ {
		if _, ok := s.Find(uintptr(0x400000 + i*0x1000)); !ok {
			t.Fatalf("page %d not found", i)
		}
	}
}

func TestKillDestroysEveryPage(t *testing.T) {
	s := New()
	pt := newFakePT()
	p1 := page.NewAnon(0x1000, true, nil)
	p2 := page.NewAnon(0x2000, true, nil)
	s.Insert(p1)
	s.Insert(p2)

	s.Kill(pt, nil, nil, nil)
	if len(s.Pages()) != 0 {
		t.Fatal("table should be empty after Kill")
	}
}
