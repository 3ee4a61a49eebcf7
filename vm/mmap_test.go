package vm

import (
	"testing"

	"vmkern/fsops"
	"vmkern/mem"
	"vmkern/spt"
)

// TestMmapReadPastFileEndIsZeroFilled: a 5000-byte file
// mapped read-only reads back real bytes up to its length and zeroes
// for the remainder of the last page.
func TestMmapReadPastFileEndIsZeroFilled(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()

	data := make([]byte, 5000)
	for i := range data {
		data[i] = 'A'
	}
	f := fsops.NewFakeFile(data)

	addr := uintptr(0x10000000)
	got, err := DoMmap(s, f, 5000, 0, addr, false, nil)
	if err != 0 {
		t.Fatalf("DoMmap: %v", err)
	}
	if got != addr {
		t.Fatalf("DoMmap returned %#x, want %#x", got, addr)
	}

	// Fault in both pages covering the 5000-byte mapping.
	if !TryHandleFault(s, tbl, pt, sw, USER_STACK, addr, true, false, true, nil) {
		t.Fatal("fault on first mmap page should succeed")
	}
	secondPage := addr + uintptr(mem.PGSIZE)
	if !TryHandleFault(s, tbl, pt, sw, USER_STACK, secondPage, true, false, true, nil) {
		t.Fatal("fault on second mmap page should succeed")
	}

	p2, _ := s.Find(secondPage)
	// byte 4999 overall is offset 4999-PGSIZE within the second page.
	lastByteOfs := 4999 - mem.PGSIZE
	if p2.Frame.Kva()[lastByteOfs] != 'A' {
		t.Fatalf("byte 4999 = %#x, want 'A'", p2.Frame.Kva()[lastByteOfs])
	}

	// byte 5000 overall is offset 5000-PGSIZE within the second page.
	ofsInSecond := 5000 - mem.PGSIZE
	if p2.Frame.Kva()[ofsInSecond] != 0 {
		t.Fatalf("byte past EOF = %#x, want 0", p2.Frame.Kva()[ofsInSecond])
	}
}

// TestMmapWriteBack: a writable mapping's in-memory
// writes land back in the file on munmap.
func TestMmapWriteBack(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()

	f := fsops.NewFakeFile([]byte("0123456789"))
	addr := uintptr(0x20000000)
	if _, err := DoMmap(s, f, 10, 0, addr, true, nil); err != 0 {
		t.Fatalf("DoMmap: %v", err)
	}

	if !TryHandleFault(s, tbl, pt, sw, USER_STACK, addr, true, true, true, nil) {
		t.Fatal("fault should succeed")
	}
	p, _ := s.Find(addr)
	copy(p.Frame.Kva()[:10], []byte("abcdefghij"))
	pt.SetDirty(addr, true)

	DoMunmap(s, tbl, pt, sw, addr, nil)

	if string(f.Contents()[:10]) != "abcdefghij" {
		t.Fatalf("file contents after munmap = %q, want abcdefghij", f.Contents()[:10])
	}
	if _, ok := s.Find(addr); ok {
		t.Fatal("munmap should remove the page from the SPT")
	}
	if tbl.Resident() != 0 {
		t.Fatalf("munmap should return the frame, Resident() = %d", tbl.Resident())
	}
}

// TestMunmapIsIdempotentPerPage: find() returns none for every page
// in the unmapped range afterward, and calling munmap again is a
// no-op since the first address no longer resolves to a mapping.
func TestMunmapIsIdempotentPerPage(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()

	f := fsops.NewFakeFile([]byte("hello world"))
	addr := uintptr(0x30000000)
	DoMmap(s, f, 11, 0, addr, false, nil)

	DoMunmap(s, tbl, pt, sw, addr, nil)
	if _, ok := s.Find(addr); ok {
		t.Fatal("page should be gone after munmap")
	}

	// Calling munmap again on the now-empty range must not panic and
	// must leave the table untouched.
	DoMunmap(s, tbl, pt, sw, addr, nil)
	if _, ok := s.Find(addr); ok {
		t.Fatal("second munmap should remain a no-op")
	}
}

// TestMmapNonZeroOffset maps one page starting at file offset PGSIZE
// of a file only 10 bytes longer than that. The page reads the file
// tail and zeroes, and its read range stays min(length, file_length)
// — the offset shifts where the read starts, it does not shrink the
// write-back budget of a dirty page.
func TestMmapNonZeroOffset(t *testing.T) {
	tbl, pt, sw := newTestEnv()
	s := spt.New()

	data := make([]byte, mem.PGSIZE+10)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	f := fsops.NewFakeFile(data)

	addr := uintptr(0x70000000)
	if _, err := DoMmap(s, f, mem.PGSIZE, mem.PGSIZE, addr, true, nil); err != 0 {
		t.Fatalf("DoMmap: %v", err)
	}
	if !TryHandleFault(s, tbl, pt, sw, USER_STACK, addr, true, true, true, nil) {
		t.Fatal("fault should succeed")
	}

	p, _ := s.Find(addr)
	for i := 0; i < 10; i++ {
		if got := p.Frame.Kva()[i]; got != data[mem.PGSIZE+i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got, data[mem.PGSIZE+i])
		}
	}
	if p.Frame.Kva()[10] != 0 {
		t.Fatal("bytes past the file end should read as zero")
	}

	copy(p.Frame.Kva()[:16], []byte("0123456789ABCDEF"))
	pt.SetDirty(addr, true)
	DoMunmap(s, tbl, pt, sw, addr, nil)

	got := f.Contents()
	if len(got) != 2*mem.PGSIZE {
		t.Fatalf("file length after write-back = %d, want %d", len(got), 2*mem.PGSIZE)
	}
	if string(got[mem.PGSIZE:mem.PGSIZE+16]) != "0123456789ABCDEF" {
		t.Fatalf("write-back missing at offset: %q", got[mem.PGSIZE:mem.PGSIZE+16])
	}
}

func TestMmapRejectsOverlap(t *testing.T) {
	s := spt.New()
	f := fsops.NewFakeFile([]byte("0123456789"))
	addr := uintptr(0x40000000)
	if _, err := DoMmap(s, f, mem.PGSIZE, 0, addr, false, nil); err != 0 {
		t.Fatalf("first DoMmap: %v", err)
	}
	if _, err := DoMmap(s, f, mem.PGSIZE, 0, addr, false, nil); err == 0 {
		t.Fatal("overlapping mmap must fail")
	}
}

func TestMmapRejectsBadArgs(t *testing.T) {
	s := spt.New()
	f := fsops.NewFakeFile([]byte("x"))

	if _, err := DoMmap(s, f, 0, 0, 0x1000, false, nil); err == 0 {
		t.Fatal("zero length must be rejected")
	}
	if _, err := DoMmap(s, f, 10, 1, 0x1000, false, nil); err == 0 {
		t.Fatal("misaligned offset must be rejected")
	}
	if _, err := DoMmap(s, nil, 10, 0, 0x1000, false, nil); err == 0 {
		t.Fatal("nil file must be rejected")
	}
	if _, err := DoMmap(s, f, 10, 0, 0x1001, false, nil); err == 0 {
		t.Fatal("misaligned addr must be rejected")
	}
}
