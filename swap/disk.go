// Package swap implements the swap slot allocator and the swap block
// device it is consumed by: a fixed-size bitmap over page-sized slots,
// each slot composed of SectorsPerPage fixed-size sectors, adapted
// from the kernel's block-device request channel (Bdev_req_t/AckCh in
// package fs) down to the synchronous read/write primitives this
// subsystem's external interface names directly: disk_read and
// disk_write.
package swap

import (
	"sync"
)

// SectorSize is the size of one disk sector in bytes, matching the
// kernel's on-disk block granularity.
const SectorSize = 512

// Disk is the swap block device interface consumed by the anonymous
// page backend. Implementations need not be backed by a real device;
// MemDisk below is a process-memory-backed fake suitable for both
// production use in this hosted environment and for tests.
type Disk interface {
	// ReadSector reads exactly len(buf) bytes (must be SectorSize)
	// from sector n into buf.
	ReadSector(n int, buf []byte) error
	// WriteSector writes exactly len(buf) bytes (must be SectorSize)
	// from buf to sector n.
	WriteSector(n int, buf []byte) error
	// Sectors reports the total number of sectors on the device.
	Sectors() int
}

// req_t mirrors the kernel's Bdev_req_t: a request queued to the
// device's single-goroutine server, acknowledged over a channel once
// serviced.
type req_t struct {
	write  bool
	sector int
	buf    []byte
	err    error
	ackCh  chan struct{}
}

// MemDisk is a swap device backed by a process-memory byte arena,
// serialized through one server goroutine the way the kernel
// serializes IDE requests through Start/AckCh — every call is still a
// blocking round trip, so callers see the same synchronous
// disk_read/disk_write contract the external interface specifies.
type MemDisk struct {
	reqCh   chan *req_t
	sectors int

	mu      sync.Mutex
	backing []byte
}

// NewMemDisk allocates a fake disk of the given sector count and
// starts its server goroutine.
func NewMemDisk(sectors int) *MemDisk {
	d := &MemDisk{
		reqCh:   make(chan *req_t),
		sectors: sectors,
		backing: make([]byte, sectors*SectorSize),
	}
	go d.serve()
	return d
}

func (d *MemDisk) serve() {
	for req := range d.reqCh {
		off := req.sector * SectorSize
		d.mu.Lock()
		if req.write {
			copy(d.backing[off:off+SectorSize], req.buf)
		} else {
			copy(req.buf, d.backing[off:off+SectorSize])
		}
		d.mu.Unlock()
		close(req.ackCh)
	}
}

func (d *MemDisk) do(write bool, n int, buf []byte) error {
	if len(buf) != SectorSize {
		panic("swap: short sector buffer")
	}
	if n < 0 || n >= d.sectors {
		panic("swap: sector out of range")
	}
	req := &req_t{write: write, sector: n, buf: buf, ackCh: make(chan struct{})}
	d.reqCh <- req
	<-req.ackCh
	return req.err
}

// ReadSector implements Disk.
func (d *MemDisk) ReadSector(n int, buf []byte) error {
	return d.do(false, n, buf)
}

// WriteSector implements Disk.
func (d *MemDisk) WriteSector(n int, buf []byte) error {
	return d.do(true, n, buf)
}

// Sectors implements Disk.
func (d *MemDisk) Sectors() int {
	return d.sectors
}
