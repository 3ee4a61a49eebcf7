package vm

import (
	"testing"

	"vmkern/frame"
	"vmkern/mem"
	"vmkern/page"
	"vmkern/ptops"
	"vmkern/spt"
	"vmkern/swap"
)

// TestSwapPressureRoundTrip allocates more anon pages than the frame
// pool holds, touches each once, then walks them again in reverse.
// The second traversal must observe the bytes written in the first,
// no frame may leak, and teardown must drain both the pool and the
// swap bitmap.
func TestSwapPressureRoundTrip(t *testing.T) {
	const poolFrames = 4
	const k = 12

	phys := mem.NewPhys()
	phys.SetCap(poolFrames)
	tbl := frame.New(phys, nil)
	pt := ptops.New()
	sw := swap.New(swap.NewMemDisk(64 * swap.SectorsPerPage))
	s := spt.New()

	base := uintptr(0x100000)
	for i := 0; i < k; i++ {
		va := base + uintptr(i*mem.PGSIZE)
		if !s.Insert(page.NewAnon(va, true, nil)) {
			t.Fatalf("insert of page %d failed", i)
		}
		if !TryHandleFault(s, tbl, pt, sw, USER_STACK, va, true, true, true, nil) {
			t.Fatalf("fault on page %d should be absorbed", i)
		}
		p, _ := s.Find(va)
		p.Frame.Kva()[0] = byte(i + 1)
	}

	if tbl.Resident() > poolFrames {
		t.Fatalf("Resident() = %d, want at most %d", tbl.Resident(), poolFrames)
	}
	if sw.Count() > k-poolFrames {
		t.Fatalf("swap slots in use = %d, want at most %d", sw.Count(), k-poolFrames)
	}

	for i := k - 1; i >= 0; i-- {
		va := base + uintptr(i*mem.PGSIZE)
		p, ok := s.Find(va)
		if !ok {
			t.Fatalf("page %d vanished from the table", i)
		}
		if !p.Resident() {
			if !TryHandleFault(s, tbl, pt, sw, USER_STACK, va, true, false, true, nil) {
				t.Fatalf("re-fault on page %d should be absorbed", i)
			}
		}
		if got := p.Frame.Kva()[0]; got != byte(i+1) {
			t.Fatalf("page %d read back %#x, want %#x", i, got, byte(i+1))
		}
	}

	s.Kill(pt, sw, tbl, nil)
	if tbl.Resident() != 0 {
		t.Fatalf("Resident() = %d after Kill, want 0", tbl.Resident())
	}
	if got := phys.Live(); got != 0 {
		t.Fatalf("allocator still holds %d frames after Kill", got)
	}
	if sw.Count() != 0 {
		t.Fatalf("swap slots still allocated after Kill: %d", sw.Count())
	}
}
