package fsops

import "sync"

// FakeFile is an in-process File backed by a growable byte buffer,
// used by tests and by any host environment without a real
// filesystem beneath it. Reopen shares the same backing buffer
// (writes through one handle are visible through another), matching
// Pintos's file_reopen semantics of an independent cursor over the
// same inode.
type FakeFile struct {
	mu     *sync.Mutex
	data   *[]byte
	closed *bool
}

// NewFakeFile wraps the given initial contents.
func NewFakeFile(contents []byte) *FakeFile {
	buf := make([]byte, len(contents))
	copy(buf, contents)
	return &FakeFile{mu: &sync.Mutex{}, data: &buf, closed: new(bool)}
}

func (f *FakeFile) ReadAt(buf []byte, ofs int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *f.data
	if ofs >= len(d) {
		return 0, nil
	}
	n := copy(buf, d[ofs:])
	return n, nil
}

func (f *FakeFile) WriteAt(buf []byte, ofs int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	need := ofs + len(buf)
	if need > len(*f.data) {
		grown := make([]byte, need)
		copy(grown, *f.data)
		*f.data = grown
	}
	n := copy((*f.data)[ofs:], buf)
	return n, nil
}

func (f *FakeFile) Length() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(*f.data)
}

func (f *FakeFile) Reopen() File {
	return &FakeFile{mu: f.mu, data: f.data, closed: new(bool)}
}

func (f *FakeFile) Close() error {
	*f.closed = true
	return nil
}

// Closed reports whether Close has been called on this handle.
func (f *FakeFile) Closed() bool {
	return *f.closed
}

// Contents returns a copy of the current backing bytes, for test
// assertions.
func (f *FakeFile) Contents() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(*f.data))
	copy(out, *f.data)
	return out
}
