// Package fsops is the filesystem collaborator the file-backed page
// backend consumes: byte-addressed read_at/write_at plus reopen,
// close, and length. It also owns the single global filesystem lock
// (FS) that serializes every call through it, mirroring Pintos's
// g_filesys_lock and the kernel's own habit of guarding a shared
// resource with one embedded sync.Mutex rather than per-call locking
// scattered across callers.
package fsops

import (
	"sync"

	"vmkern/errs"
)

// File is the filesystem collaborator consumed by the file-backed
// page backend and by do_mmap/do_munmap. Every method here is called
// only while FS is held; implementations do not need to be safe for
// unsynchronized concurrent use.
type File interface {
	// ReadAt reads up to len(buf) bytes starting at offset ofs using
	// the positional primitive (never a seek), returning the count
	// actually read.
	ReadAt(buf []byte, ofs int) (int, error)
	// WriteAt writes len(buf) bytes at offset ofs, returning the
	// count actually written.
	WriteAt(buf []byte, ofs int) (int, error)
	// Length reports the current file size in bytes.
	Length() int
	// Reopen returns a new File sharing the same underlying data but
	// with an independent cursor (irrelevant to ReadAt/WriteAt here,
	// since both are positional, but Reopen is also the boundary at
	// which ref_count-style sharing is established per mapping).
	Reopen() File
	// Close releases the handle. Called once ref_count reaches zero.
	Close() error
}

// FS is the global filesystem lock, acquired by swap_in/swap_out/
// destroy of file-backed pages, by do_mmap around Reopen, and by
// every write-back performed during munmap. It is never held across
// the frame lock or any SPT-local lock.
var FS sync.Mutex

// ReadAtLocked performs a full ReadAt under FS, returning errs.EIO on
// a short read (other than at end-of-file, where the caller is
// expected to zero-fill the remainder itself).
func ReadAtLocked(f File, buf []byte, ofs int) (int, errs.Err_t) {
	FS.Lock()
	defer FS.Unlock()
	n, _ := f.ReadAt(buf, ofs)
	if n < len(buf) && ofs+n < f.Length() {
		return n, errs.EIO
	}
	return n, 0
}

// WriteAtLocked performs a full WriteAt under FS, returning errs.EIO
// on a short write.
func WriteAtLocked(f File, buf []byte, ofs int) errs.Err_t {
	FS.Lock()
	defer FS.Unlock()
	n, err := f.WriteAt(buf, ofs)
	if err != nil || n != len(buf) {
		return errs.EIO
	}
	return 0
}

// LengthLocked reports f's length under FS.
func LengthLocked(f File) int {
	FS.Lock()
	defer FS.Unlock()
	return f.Length()
}

// ReopenLocked reopens f under FS, the same critical section do_mmap
// uses around reopen.
func ReopenLocked(f File) File {
	FS.Lock()
	defer FS.Unlock()
	return f.Reopen()
}

// CloseLocked closes f under FS.
func CloseLocked(f File) error {
	FS.Lock()
	defer FS.Unlock()
	return f.Close()
}
