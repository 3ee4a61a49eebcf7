package swap

import "vmkern/mem"

// SectorsPerPage is the number of fixed-size sectors composing one
// swap slot, per the external interface: PAGE_SIZE / SECTOR_SIZE.
const SectorsPerPage = mem.PGSIZE / SectorSize

// Slot identifies one page-sized region on the swap disk.
type Slot int

// Swap is the swap slot allocator: a bitmap over the disk's capacity
// in page-sized slots, plus the disk itself.
type Swap struct {
	disk Disk
	bm   *bitmap_t
}

// New wraps disk with a slot bitmap sized to its capacity.
func New(disk Disk) *Swap {
	nslots := disk.Sectors() / SectorsPerPage
	return &Swap{disk: disk, bm: newBitmap(nslots)}
}

// Out writes a frame's contents to a freshly allocated slot and
// returns it. ok is false if the disk has no free slot; the caller
// (swap_out of an anon page) treats that as fatal, not recoverable.
func (s *Swap) Out(frame *mem.Bytepg_t) (Slot, bool) {
	idx, ok := s.bm.scanAndFlip()
	if !ok {
		return 0, false
	}
	slot := Slot(idx)
	var sector [SectorSize]byte
	for i := 0; i < SectorsPerPage; i++ {
		copy(sector[:], frame[i*SectorSize:(i+1)*SectorSize])
		if err := s.disk.WriteSector(idx*SectorsPerPage+i, sector[:]); err != nil {
			panic("swap: write failed: " + err.Error())
		}
	}
	return slot, true
}

// In reads slot's contents into frame and releases the slot. Callers
// must not use the slot again after In returns.
func (s *Swap) In(slot Slot, frame *mem.Bytepg_t) {
	idx := int(slot)
	var sector [SectorSize]byte
	for i := 0; i < SectorsPerPage; i++ {
		if err := s.disk.ReadSector(idx*SectorsPerPage+i, sector[:]); err != nil {
			panic("swap: read failed: " + err.Error())
		}
		copy(frame[i*SectorSize:(i+1)*SectorSize], sector[:])
	}
	s.bm.clear(idx)
}

// Free releases a slot without reading it back, used when an anon
// page owning a slot is destroyed without ever being swapped in
// again.
func (s *Swap) Free(slot Slot) {
	s.bm.clear(int(slot))
}

// Count reports the number of slots currently allocated.
func (s *Swap) Count() int {
	return s.bm.count()
}
